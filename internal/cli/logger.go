package cli

import "go.uber.org/zap"

// newLogger builds the daemon's zap logger from the global verbosity.
// Quiet mode only emits warnings and above.
func newLogger(globals *Globals) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	switch {
	case globals != nil && globals.Verbose:
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case globals != nil && globals.Quiet:
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
