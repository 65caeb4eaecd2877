// Package params is the daemon-wide configuration layer (spec.md §6
// "Configuration (recognised options)"): one immutable Config value,
// built once at startup and injected into every other component
// (spec.md §9 "Global mutable state: none... Configuration is an
// immutable value injected at construction"). It follows the teacher's
// own `node/sc` config idiom: a plain struct plus a
// `sanitize()`/`DefaultXxxConfig` pair, loaded from an optional TOML
// file the way the teacher's `cmd/ranger/config.go` loads
// `rangerConfig`.
package params

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"

	"github.com/shieldnet/validator/machine"
	"github.com/shieldnet/validator/submitter"
	"github.com/shieldnet/validator/watcher"
)

// Config aggregates every sub-component's configuration into the one
// value cmd/validatord loads and wires everything else from. The
// machine/submitter/watcher fields are these packages' own Config
// types rather than a flattened re-declaration, so adding a field to
// one of them never requires touching this package.
type Config struct {
	Machine   machine.Config
	Watcher   watcher.Config
	Submitter submitter.Config
}

// tomlSettings matches field names to TOML keys verbatim and reports
// an unrecognised key as an error, the same strict-by-default decoder
// settings the teacher's cmd/ranger/config.go builds for its own
// node config loading.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://pkg.go.dev/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// Default is every sub-component's own DefaultConfig, composed.
var Default = Config{
	Watcher:   watcher.DefaultConfig,
	Submitter: submitter.DefaultConfig,
}

// Load reads path as TOML into a copy of Default and sanitizes the
// result, mirroring the teacher's loadConfig + per-field sanitize
// pattern rather than trusting operator-supplied values verbatim.
func Load(path string) (Config, error) {
	cfg := Default
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("params: open %s: %w", path, err)
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil {
		if _, ok := err.(*toml.LineError); ok {
			return Config{}, fmt.Errorf("params: %s: %w", path, err)
		}
		return Config{}, fmt.Errorf("params: decode %s: %w", path, err)
	}
	return cfg.sanitize(), nil
}

// Dump renders cfg back out as TOML, the counterpart to Load the
// teacher's dumpconfig CLI command exposes for operators to inspect
// the fully-resolved, post-default, post-sanitize configuration.
func Dump(w io.Writer, cfg Config) error {
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("params: marshal: %w", err)
	}
	_, err = w.Write(out)
	return err
}

func (c Config) sanitize() Config {
	out := c
	out.Watcher = out.Watcher.Sanitize()
	out.Submitter = out.Submitter.Sanitize()
	return out
}
