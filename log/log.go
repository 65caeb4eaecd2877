// Package log provides structured, per-module logging for the validator
// daemon, following the same module-scoped pattern klaytn uses over its
// own logger: every package holds a single package-level Logger obtained
// from NewModuleLogger, and every call site passes alternating key/value
// pairs rather than formatted strings.
package log

import (
	"go.uber.org/zap"
)

// Module identifies the subsystem a Logger is scoped to. Keeping this a
// distinct type (rather than a bare string) lets us catch typos in
// NewModuleLogger call sites at compile time.
type Module string

const (
	ModuleWatcher    Module = "watcher"
	ModuleVerify     Module = "verify"
	ModuleKeyGen     Module = "keygen"
	ModuleSigning    Module = "signing"
	ModuleMachine    Module = "machine"
	ModuleSubmitter  Module = "submitter"
	ModuleStorage    Module = "storage"
	ModuleChain      Module = "chain"
	ModuleValidatord Module = "validatord"
)

var base = newBase()

func newBase() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fall back to zap's example logger rather than panic
		// on a misconfigured environment; the daemon must still run.
		l = zap.NewExample()
	}
	return l
}

// Logger is a thin wrapper around *zap.SugaredLogger scoped to one module.
type Logger struct {
	s *zap.SugaredLogger
}

// NewModuleLogger returns a Logger tagged with the given module name.
func NewModuleLogger(m Module) *Logger {
	return &Logger{s: base.Sugar().With("module", string(m))}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }

// Fatal logs at error level and terminates the process. It must only be
// called from cmd/validatord's top-level run loop (spec.md §7, error
// kind 8: storage corruption, irreconcilable reorg, and similar fatal
// conditions exit the process for operator intervention).
func (l *Logger) Fatal(msg string, kv ...interface{}) { l.s.Fatalw(msg, kv...) }

// Sync flushes any buffered log entries. Call once from main() on shutdown.
func Sync() error { return base.Sync() }
