package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPolicyTable(t *testing.T) {
	upstreamErr := errors.New("upstream said no")

	tests := []struct {
		name string
		in   Outcome
		want Action
	}{
		{name: "success resets", in: SuccessOutcome(), want: Action{Kind: ActionReset}},
		{name: "400 is ignored", in: HTTPOutcome(400, upstreamErr), want: Action{Kind: ActionIgnore}},
		{name: "429 with capability cools one capability", in: HTTPCapabilityOutcome(429, CapabilityImages, upstreamErr), want: Action{Kind: ActionCapabilityCooldown, Capability: CapabilityImages}},
		{name: "429 without capability cools globally", in: HTTPOutcome(429, upstreamErr), want: Action{Kind: ActionGlobalCooldown}},
		{name: "401 cools globally", in: HTTPOutcome(401, upstreamErr), want: Action{Kind: ActionGlobalCooldown}},
		{name: "403 cools globally", in: HTTPOutcome(403, upstreamErr), want: Action{Kind: ActionGlobalCooldown}},
		{name: "500 increments failures", in: HTTPOutcome(500, upstreamErr), want: Action{Kind: ActionIncrementFailure}},
		{name: "unstructured failure increments failures", in: FailureOutcome(upstreamErr), want: Action{Kind: ActionIncrementFailure}},
		{name: "429 with bogus capability tag cools globally", in: HTTPCapabilityOutcome(429, Capability("audio"), upstreamErr), want: Action{Kind: ActionGlobalCooldown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
		})
	}
}

func TestHealthGlobalCooldownWindow(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cooldown := 5 * time.Minute
	h := NewHealthState()
	h.Apply(Action{Kind: ActionGlobalCooldown}, start, 3, cooldown)

	account := Account{ID: "a"}
	assert.False(t, h.Usable(account, start))
	assert.False(t, h.Usable(account, start.Add(cooldown-time.Second)))

	// Boundary is inclusive: usable at exactly start+cooldown.
	assert.True(t, h.Usable(account, start.Add(cooldown)))
	assert.True(t, h.Available, "lapsed cooldown auto-recovers availability")
}

func TestHealthPermanentDisableHasNoAutoRecovery(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h := NewHealthState()
	account := Account{ID: "a"}

	for i := 0; i < 3; i++ {
		h.Apply(Action{Kind: ActionIncrementFailure}, now, 3, time.Minute)
	}
	require.False(t, h.Available)
	assert.False(t, h.Usable(account, now.Add(24*time.Hour)), "time alone never recovers a threshold disable")

	// A fourth failure is a no-op on an already-disabled account.
	h.Apply(Action{Kind: ActionIncrementFailure}, now, 3, time.Minute)
	assert.Equal(t, 4, h.ConsecutiveErrors)
	assert.False(t, h.Available)

	seconds, reason := h.CooldownInfo(now)
	assert.Equal(t, -1, seconds)
	assert.Equal(t, CooldownReasonDisabled, reason)
}

func TestHealthResetClearsErrorsAndCooldown(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h := NewHealthState()
	h.Apply(Action{Kind: ActionIncrementFailure}, now, 3, time.Minute)
	h.Apply(Action{Kind: ActionIncrementFailure}, now, 3, time.Minute)
	h.Apply(Action{Kind: ActionReset}, now, 3, time.Minute)

	assert.Zero(t, h.ConsecutiveErrors)
	assert.True(t, h.Usable(Account{ID: "a"}, now))

	seconds, reason := h.CooldownInfo(now)
	assert.Zero(t, seconds)
	assert.Equal(t, CooldownReasonNone, reason)
}

func TestHealthIgnoreLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h := NewHealthState()
	h.Apply(Action{Kind: ActionIncrementFailure}, now, 3, time.Minute)
	h.Apply(Action{Kind: ActionIgnore}, now, 3, time.Minute)

	assert.Equal(t, 1, h.ConsecutiveErrors)
	assert.True(t, h.Available)
}

func TestCapabilityCooldownDoesNotAffectUsability(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cooldown := 5 * time.Minute
	h := NewHealthState()
	h.Apply(Action{Kind: ActionCapabilityCooldown, Capability: CapabilityImages}, now, 3, cooldown)

	account := Account{ID: "a"}
	assert.True(t, h.Usable(account, now), "capability cooldown must not affect overall usability")
	assert.False(t, h.CapabilityUsable(CapabilityImages, now))
	assert.True(t, h.CapabilityUsable(CapabilityText, now), "other capabilities stay usable")
	assert.True(t, h.CapabilityUsable(CapabilityImages, now.Add(cooldown)))
}

func TestQuotaStatusDropsLapsedCooldowns(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h := NewHealthState()
	h.Apply(Action{Kind: ActionCapabilityCooldown, Capability: CapabilityVideos}, now, 5, 5*time.Minute)

	quotas := h.QuotaStatus(now.Add(time.Minute))
	require.False(t, quotas[CapabilityVideos].Available)
	assert.Equal(t, 240, quotas[CapabilityVideos].RemainingSeconds)
	assert.True(t, quotas[CapabilityText].Available)

	quotas = h.QuotaStatus(now.Add(6 * time.Minute))
	assert.True(t, quotas[CapabilityVideos].Available)
	assert.Empty(t, h.CapabilityCooldowns, "lapsed deadlines are dropped on read")
}

func TestCooldownInfoDuringActiveCooldown(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h := NewHealthState()
	h.Apply(Action{Kind: ActionGlobalCooldown}, now, 3, 300*time.Second)

	seconds, reason := h.CooldownInfo(now.Add(100 * time.Second))
	assert.Equal(t, 200, seconds)
	assert.Equal(t, CooldownReasonCooldown, reason)
}

func TestAccountExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      ExpiryBand
	}{
		{name: "no expiry configured", expiresAt: nil, want: ExpiryNotSet},
		{name: "past expiry", expiresAt: timePtr(now.Add(-time.Hour)), want: ExpiryExpired},
		{name: "expiry at now", expiresAt: timePtr(now), want: ExpiryExpired},
		{name: "less than three hours left", expiresAt: timePtr(now.Add(90 * time.Minute)), want: ExpirySoon},
		{name: "plenty of time left", expiresAt: timePtr(now.Add(12 * time.Hour)), want: ExpiryActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := Account{ID: "a", ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, account.ExpiryStatus(now))
			assert.Equal(t, tt.want == ExpiryExpired, account.Expired(now))
		})
	}
}

func TestExpiredAccountIsNotUsable(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h := NewHealthState()

	expired := Account{ID: "a", ExpiresAt: timePtr(now.Add(-time.Minute))}
	assert.False(t, h.Usable(expired, now))

	disabled := Account{ID: "b", Disabled: true}
	assert.False(t, h.Usable(disabled, now))
}

func TestParseCapability(t *testing.T) {
	t.Parallel()

	c, ok := ParseCapability("  Images ")
	require.True(t, ok)
	assert.Equal(t, CapabilityImages, c)

	_, ok = ParseCapability("audio")
	assert.False(t, ok)

	_, ok = ParseCapability("")
	assert.False(t, ok)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
