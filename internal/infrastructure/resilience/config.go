package resilience

import "time"

type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64

	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerCooldown     time.Duration
	BreakerProbeCalls   uint32
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     400 * time.Millisecond,
		BackoffFactor:  2.0,

		BreakerMinRequests:  10,
		BreakerFailureRatio: 0.5,
		BreakerCooldown:     30 * time.Second,
		BreakerProbeCalls:   2,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.BackoffFactor < 1.0 {
		c.BackoffFactor = def.BackoffFactor
	}
	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = def.BreakerMinRequests
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = def.BreakerCooldown
	}
	if c.BreakerProbeCalls == 0 {
		c.BreakerProbeCalls = def.BreakerProbeCalls
	}
	return c
}
