package application

import (
	"time"

	"github.com/bnema/account-broker/internal/domain"
)

type HealthStatus struct {
	ID              domain.AccountID
	Name            string
	Usable          bool
	CooldownSeconds int
	Reason          domain.CooldownReason
	Disabled        bool
	Expiry          domain.ExpiryBand
	ExpiresAt       *time.Time
	UsageCount      int64
	Conversations   int64
	Failures        int
	Capabilities    map[domain.Capability]domain.CapabilityQuota
}

// HealthSnapshot reports the observable state of every account in pool
// order. It reads through the same per-account locks as selection but never
// mutates availability.
func (b *Broker) HealthSnapshot() []HealthStatus {
	now := b.clock.Now()

	b.mu.RLock()
	defer b.mu.RUnlock()

	statuses := make([]HealthStatus, 0, len(b.order))
	for _, id := range b.order {
		entry := b.entries[id]

		entry.mu.Lock()
		seconds, reason := entry.health.CooldownInfo(now)
		status := HealthStatus{
			ID:              entry.account.ID,
			Name:            entry.account.Name,
			Usable:          reason == domain.CooldownReasonNone && !entry.account.Disabled && !entry.account.Expired(now),
			CooldownSeconds: seconds,
			Reason:          reason,
			Disabled:        entry.account.Disabled,
			Expiry:          entry.account.ExpiryStatus(now),
			ExpiresAt:       entry.account.ExpiresAt,
			UsageCount:      entry.health.UsageCount,
			Conversations:   entry.health.Conversations,
			Failures:        entry.health.ConsecutiveErrors,
			Capabilities:    entry.health.QuotaStatus(now),
		}
		entry.mu.Unlock()

		statuses = append(statuses, status)
	}

	return statuses
}

// AffinityLen exposes the current affinity cache population for status
// reporting.
func (b *Broker) AffinityLen() int {
	return b.affinity.Len()
}
