package config

import (
	"strings"
	"time"
)

// Rate limit scopes.  Each scope has its own bucket per client IP, so a
// burst of checkouts never locks an admin out of the login form.
const (
	RateScopePurchase = "purchase"
	RateScopeLogin    = "login"
)

// RateLimitConfig configures one token bucket scope.  Capacity tokens are
// available up front and RefillTokens are added every RefillInterval.
type RateLimitConfig struct {
	Enabled        bool
	Scope          string
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
	Debug          bool
}

// scope defaults: checkout allows a short burst of purchases, login is
// strict enough to make guessing the passphrase slow.
var rateScopeDefaults = map[string]RateLimitConfig{
	RateScopePurchase: {Capacity: 10, RefillTokens: 1, RefillInterval: 6 * time.Second},
	RateScopeLogin:    {Capacity: 5, RefillTokens: 1, RefillInterval: 30 * time.Second},
}

// LoadRateLimitConfig reads the settings of one scope.  RATE_LIMIT_ENABLED,
// RATE_LIMIT_PREFIX and RATE_LIMIT_DEBUG are shared; the bucket shape is
// read from RATE_LIMIT_<SCOPE>_CAPACITY, RATE_LIMIT_<SCOPE>_REFILL_TOKENS
// and RATE_LIMIT_<SCOPE>_REFILL_INTERVAL.
func LoadRateLimitConfig(scope string) RateLimitConfig {
	def, ok := rateScopeDefaults[scope]
	if !ok {
		def = rateScopeDefaults[RateScopePurchase]
	}
	env := "RATE_LIMIT_" + strings.ToUpper(scope) + "_"
	cfg := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Scope:          scope,
		Capacity:       envInt(env+"CAPACITY", def.Capacity),
		RefillTokens:   envInt(env+"REFILL_TOKENS", def.RefillTokens),
		RefillInterval: envDur(env+"REFILL_INTERVAL", def.RefillInterval),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "lottery:rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	// An idle bucket must outlive a full refill or it would reset to full
	// capacity early.
	if full := time.Duration(cfg.Capacity/cfg.RefillTokens+1) * cfg.RefillInterval; cfg.TTL < full {
		cfg.TTL = full
	}
	return cfg
}
