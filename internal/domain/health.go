package domain

import "time"

// HealthState is the broker-owned mutable record for one account. All
// mutation happens under the broker's per-account lock; none of these
// methods synchronize on their own.
type HealthState struct {
	Available           bool
	ConsecutiveErrors   int
	GlobalCooldownUntil time.Time
	CapabilityCooldowns map[Capability]time.Time
	UsageCount          int64
	Conversations       int64
}

func NewHealthState() *HealthState {
	return &HealthState{
		Available:           true,
		CapabilityCooldowns: make(map[Capability]time.Time),
	}
}

// Apply mutates the health record according to a classified action.
// Capability cooldowns never touch overall availability. Crossing the
// failure threshold disables the account with no cooldown deadline, which
// is what makes the disable permanent.
func (h *HealthState) Apply(action Action, now time.Time, failureThreshold int, cooldown time.Duration) {
	switch action.Kind {
	case ActionReset:
		h.ConsecutiveErrors = 0
		h.Available = true
		h.GlobalCooldownUntil = time.Time{}
	case ActionIgnore:
	case ActionCapabilityCooldown:
		h.CapabilityCooldowns[action.Capability] = now.Add(cooldown)
	case ActionGlobalCooldown:
		h.GlobalCooldownUntil = now.Add(cooldown)
		h.Available = false
	case ActionIncrementFailure:
		h.ConsecutiveErrors++
		if h.ConsecutiveErrors >= failureThreshold {
			h.Available = false
			h.GlobalCooldownUntil = time.Time{}
		}
	}
}

// Recover clears a lapsed global cooldown and reports whether the health
// record alone permits use. The cooldown boundary is inclusive: the account
// is usable at exactly the deadline.
func (h *HealthState) Recover(now time.Time) bool {
	if h.Available {
		return true
	}

	if !h.GlobalCooldownUntil.IsZero() {
		if now.Before(h.GlobalCooldownUntil) {
			return false
		}
		h.Available = true
		h.GlobalCooldownUntil = time.Time{}
		return true
	}

	// Disabled by the failure threshold: only an explicit reload clears it.
	return false
}

// Usable is the composite selection check: health plus the descriptor's
// manual-disable flag and expiry, evaluated at selection time.
func (h *HealthState) Usable(account Account, now time.Time) bool {
	if account.Disabled || account.Expired(now) {
		return false
	}

	return h.Recover(now)
}

type CooldownReason string

const (
	CooldownReasonNone     CooldownReason = ""
	CooldownReasonCooldown CooldownReason = "cooldown"
	CooldownReasonDisabled CooldownReason = "disabled"
)

// CooldownInfo reports the remaining global cooldown for observability.
// It returns (0, none) when the record is healthy, (remaining, "cooldown")
// during an active cooldown and (-1, "disabled") after a permanent disable.
// It never mutates state.
func (h *HealthState) CooldownInfo(now time.Time) (int, CooldownReason) {
	if !h.GlobalCooldownUntil.IsZero() {
		if remaining := h.GlobalCooldownUntil.Sub(now); remaining > 0 {
			return int(remaining.Seconds()), CooldownReasonCooldown
		}
	}

	if h.Available || !h.GlobalCooldownUntil.IsZero() {
		return 0, CooldownReasonNone
	}

	return -1, CooldownReasonDisabled
}

type CapabilityQuota struct {
	Available        bool
	RemainingSeconds int
}

// QuotaStatus reports per-capability availability. Lapsed capability
// cooldowns are dropped as a side effect, so the map never grows past the
// closed capability set and stale deadlines don't linger.
func (h *HealthState) QuotaStatus(now time.Time) map[Capability]CapabilityQuota {
	quotas := make(map[Capability]CapabilityQuota, len(Capabilities()))
	for _, capability := range Capabilities() {
		until, ok := h.CapabilityCooldowns[capability]
		if !ok || !now.Before(until) {
			delete(h.CapabilityCooldowns, capability)
			quotas[capability] = CapabilityQuota{Available: true}
			continue
		}
		quotas[capability] = CapabilityQuota{
			RemainingSeconds: int(until.Sub(now).Seconds()),
		}
	}

	return quotas
}

// CapabilityUsable reports whether one capability is currently usable.
// Capability cooldowns are independent of global availability.
func (h *HealthState) CapabilityUsable(capability Capability, now time.Time) bool {
	until, ok := h.CapabilityCooldowns[capability]
	if !ok {
		return true
	}

	return !now.Before(until)
}
