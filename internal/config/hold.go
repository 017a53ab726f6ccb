package config

import "time"

// HoldConfig parameterises the hold lifecycle.  Duration is how long a
// purchase keeps its tickets held while payment is pending; SweepInterval
// is how often the background sweeper deletes expired holds.  A zero
// SweepInterval disables the sweeper; reads stay correct either way
// because every read path re-applies the expiry predicate.
type HoldConfig struct {
	Duration      time.Duration
	SweepInterval time.Duration
}

// LoadHoldConfig reads HOLD_DURATION_MINUTES (default 30) and
// HOLD_SWEEP_INTERVAL (default 1m).
func LoadHoldConfig() HoldConfig {
	cfg := HoldConfig{
		Duration:      time.Duration(envInt("HOLD_DURATION_MINUTES", 30)) * time.Minute,
		SweepInterval: envDur("HOLD_SWEEP_INTERVAL", time.Minute),
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 30 * time.Minute
	}
	if cfg.SweepInterval < 0 {
		cfg.SweepInterval = 0
	}
	return cfg
}
