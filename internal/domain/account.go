package domain

import "time"

type AccountID string

// Account is the immutable descriptor for one upstream identity. The broker
// only reads it, except for Disabled which an operator may flip at runtime.
type Account struct {
	ID         AccountID
	Name       string
	Credential Credential
	ExpiresAt  *time.Time
	Disabled   bool
}

type Credential struct {
	// SecretRef points to a secret-store entry, typically in "provider://path" form.
	SecretRef string
	ConfigID  string
}

func (a Account) Expired(now time.Time) bool {
	if a.ExpiresAt == nil {
		return false
	}

	return !now.Before(*a.ExpiresAt)
}

// RemainingLifetime reports how long until the account expires. The second
// return value is false when no expiry is configured.
func (a Account) RemainingLifetime(now time.Time) (time.Duration, bool) {
	if a.ExpiresAt == nil {
		return 0, false
	}

	return a.ExpiresAt.Sub(now), true
}

type ExpiryBand string

const (
	ExpiryNotSet  ExpiryBand = "not set"
	ExpiryExpired ExpiryBand = "expired"
	ExpirySoon    ExpiryBand = "expiring soon"
	ExpiryActive  ExpiryBand = "active"
)

const expirySoonWindow = 3 * time.Hour

func (a Account) ExpiryStatus(now time.Time) ExpiryBand {
	remaining, ok := a.RemainingLifetime(now)
	switch {
	case !ok:
		return ExpiryNotSet
	case remaining <= 0:
		return ExpiryExpired
	case remaining < expirySoonWindow:
		return ExpirySoon
	default:
		return ExpiryActive
	}
}
