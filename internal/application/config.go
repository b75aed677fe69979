package application

import "time"

// Config carries the broker tunables. Zero values fall back to the
// defaults below.
type Config struct {
	FailureThreshold    int
	CooldownDuration    time.Duration
	AffinityTTL         time.Duration
	AffinityMaxSize     int
	LockRegistryMaxSize int
	SweepInterval       time.Duration
}

const (
	DefaultFailureThreshold    = 3
	DefaultCooldownDuration    = 5 * time.Minute
	DefaultAffinityTTL         = time.Hour
	DefaultAffinityMaxSize     = 1000
	DefaultLockRegistryMaxSize = 2000
	DefaultSweepInterval       = 5 * time.Minute
)

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.CooldownDuration <= 0 {
		c.CooldownDuration = DefaultCooldownDuration
	}
	if c.AffinityTTL <= 0 {
		c.AffinityTTL = DefaultAffinityTTL
	}
	if c.AffinityMaxSize <= 0 {
		c.AffinityMaxSize = DefaultAffinityMaxSize
	}
	if c.LockRegistryMaxSize <= 0 {
		c.LockRegistryMaxSize = DefaultLockRegistryMaxSize
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}

	return c
}
