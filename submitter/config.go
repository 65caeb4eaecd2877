package submitter

// Config carries the submitter's own recognised options (spec.md §6
// configuration: `submitter{feeBumpNumerator, feeBumpDenominator}`).
type Config struct {
	FeeBumpNumerator   int64
	FeeBumpDenominator int64
}

// DefaultConfig is a conservative 101% bump, the ratio spec.md §4.6
// scenario 4 walks through.
var DefaultConfig = Config{
	FeeBumpNumerator:   101,
	FeeBumpDenominator: 100,
}

// sanitize rejects a configuration that would silently stop bumping
// fees or divide by zero, following the teacher's
// BridgeTxPoolConfig.sanitize idiom of repairing unworkable values
// rather than letting them propagate into a runtime panic.
// Sanitize repairs unworkable values; exported so callers outside this
// package (params) can normalize a Config before persisting or
// displaying it. New applies it again internally regardless.
func (c Config) Sanitize() Config {
	return c.sanitize()
}

func (c Config) sanitize() Config {
	conf := c
	if conf.FeeBumpDenominator <= 0 {
		logger.Error("sanitizing invalid fee bump denominator", "provided", conf.FeeBumpDenominator, "updated", DefaultConfig.FeeBumpDenominator)
		conf.FeeBumpDenominator = DefaultConfig.FeeBumpDenominator
	}
	if conf.FeeBumpNumerator < conf.FeeBumpDenominator {
		logger.Error("sanitizing fee bump numerator below denominator", "provided", conf.FeeBumpNumerator, "updated", DefaultConfig.FeeBumpNumerator)
		conf.FeeBumpNumerator = DefaultConfig.FeeBumpNumerator
	}
	return conf
}
