package application

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/bnema/account-broker/internal/domain"
	"github.com/bnema/account-broker/internal/ports"
	"github.com/google/uuid"
)

// Broker orchestrates the account pool: selection with fair rotation,
// per-account health tracking, session affinity and per-key serialization.
//
// Lock layout, narrowest first: the rotation counter has its own mutex, each
// account entry has its own mutex, and the affinity cache and lock registry
// synchronize internally. The entries map itself only changes on Reload,
// guarded by an RWMutex so selection never serializes unrelated accounts.
type Broker struct {
	repo   ports.AccountRepository
	clock  ports.Clock
	logger *slog.Logger
	cfg    Config

	mu      sync.RWMutex
	entries map[domain.AccountID]*accountEntry
	order   []domain.AccountID

	counterMu       sync.Mutex
	counter         int
	lastUsableCount int

	affinity *AffinityCache
	locks    *KeyLockRegistry
}

type accountEntry struct {
	mu      sync.Mutex
	account domain.Account
	health  *domain.HealthState
}

func NewBroker(repo ports.AccountRepository, clock ports.Clock, logger *slog.Logger, cfg Config) *Broker {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	return &Broker{
		repo:     repo,
		clock:    clock,
		logger:   logger,
		cfg:      cfg,
		entries:  make(map[domain.AccountID]*accountEntry),
		affinity: NewAffinityCache(cfg.AffinityMaxSize, cfg.AffinityTTL),
		locks:    NewKeyLockRegistry(cfg.LockRegistryMaxSize),
	}
}

// Reload re-reads descriptors from the repository, resets every error state
// and clears the affinity cache. Lifetime conversation counters survive by
// account ID.
func (b *Broker) Reload(ctx context.Context) error {
	accounts, err := b.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	previous := b.entries
	b.entries = make(map[domain.AccountID]*accountEntry, len(accounts))
	b.order = make([]domain.AccountID, 0, len(accounts))

	for _, account := range accounts {
		health := domain.NewHealthState()
		if old, ok := previous[account.ID]; ok {
			old.mu.Lock()
			health.Conversations = old.health.Conversations
			old.mu.Unlock()
		}
		b.entries[account.ID] = &accountEntry{account: account, health: health}
		b.order = append(b.order, account.ID)
	}

	b.affinity.Clear()

	b.counterMu.Lock()
	b.lastUsableCount = 0
	b.counterMu.Unlock()

	b.logger.Info("account pool reloaded", "accounts", len(accounts))
	return nil
}

// Pick selects a usable account. With a pinned ID it resolves directly,
// failing with ErrAccountNotFound or ErrAccountUnavailable. Otherwise it
// round-robins over the usable subset; the counter is reseeded to a random
// starting point whenever the subset size changes, which avoids index skew
// when accounts drop out or recover.
func (b *Broker) Pick(ctx context.Context, pinned domain.AccountID) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	now := b.clock.Now()
	requestID := shortRequestID()

	if pinned != "" {
		entry, ok := b.lookup(pinned)
		if !ok {
			return domain.Account{}, fmt.Errorf("account %s: %w", pinned, domain.ErrAccountNotFound)
		}

		entry.mu.Lock()
		defer entry.mu.Unlock()
		if !entry.health.Usable(entry.account, now) {
			return domain.Account{}, fmt.Errorf("account %s: %w", pinned, domain.ErrAccountUnavailable)
		}
		entry.health.UsageCount++
		b.logger.Debug("picked pinned account", "account", pinned, "request", requestID)
		return entry.account, nil
	}

	usable := b.usableEntries(now)
	if len(usable) == 0 {
		return domain.Account{}, domain.ErrNoUsableAccounts
	}

	b.counterMu.Lock()
	if len(usable) != b.lastUsableCount {
		b.counter = rand.Intn(1_000_000)
		b.lastUsableCount = len(usable)
	}
	index := b.counter % len(usable)
	b.counter++
	b.counterMu.Unlock()

	selected := usable[index]
	selected.mu.Lock()
	selected.health.UsageCount++
	account := selected.account
	usage := selected.health.UsageCount
	selected.mu.Unlock()

	b.logger.Info("picked account",
		"account", account.ID,
		"index", index,
		"usable", len(usable),
		"usage", usage,
		"request", requestID,
	)
	return account, nil
}

// ReportOutcome classifies one upstream outcome and applies it to the
// account's health state. Classification is always local: only the health
// record changes, nothing propagates back to the caller.
func (b *Broker) ReportOutcome(id domain.AccountID, outcome domain.Outcome) error {
	entry, ok := b.lookup(id)
	if !ok {
		return fmt.Errorf("account %s: %w", id, domain.ErrAccountNotFound)
	}

	action := domain.Classify(outcome)
	now := b.clock.Now()

	entry.mu.Lock()
	entry.health.Apply(action, now, b.cfg.FailureThreshold, b.cfg.CooldownDuration)
	errors := entry.health.ConsecutiveErrors
	available := entry.health.Available
	if action.Kind == domain.ActionReset {
		entry.health.Conversations++
	}
	entry.mu.Unlock()

	switch action.Kind {
	case domain.ActionIgnore:
		b.logger.Warn("bad request not counted against account", "account", id, "status", outcome.StatusCode)
	case domain.ActionCapabilityCooldown:
		b.logger.Warn("capability rate limited",
			"account", id,
			"capability", action.Capability,
			"recovery", b.cfg.CooldownDuration,
		)
	case domain.ActionGlobalCooldown:
		b.logger.Warn("account cooling down",
			"account", id,
			"status", outcome.StatusCode,
			"recovery", b.cfg.CooldownDuration,
		)
	case domain.ActionIncrementFailure:
		if !available {
			b.logger.Error("account permanently disabled after consecutive failures",
				"account", id,
				"failures", errors,
			)
		} else {
			b.logger.Warn("account failure recorded",
				"account", id,
				"failures", errors,
				"threshold", b.cfg.FailureThreshold,
			)
		}
	}

	return nil
}

// SetDisabled flips the descriptor's manual-disable flag in memory and
// persists it through the repository.
func (b *Broker) SetDisabled(ctx context.Context, id domain.AccountID, disabled bool) error {
	entry, ok := b.lookup(id)
	if !ok {
		return fmt.Errorf("account %s: %w", id, domain.ErrAccountNotFound)
	}

	entry.mu.Lock()
	entry.account.Disabled = disabled
	account := entry.account
	entry.mu.Unlock()

	if err := b.repo.Save(ctx, account); err != nil {
		return fmt.Errorf("save account: %w", err)
	}

	b.logger.Info("account disable flag updated", "account", id, "disabled", disabled)
	return nil
}

// AffinityHint resolves the session key to a previously bound account. A
// hint whose account is gone or unusable is dropped and reported as a miss;
// a valid hit refreshes the entry timestamp.
func (b *Broker) AffinityHint(key string) (domain.AccountID, string, bool) {
	entry, ok := b.affinity.Lookup(key)
	if !ok {
		return "", "", false
	}

	now := b.clock.Now()
	accountEntry, ok := b.lookup(entry.AccountID)
	if !ok {
		b.affinity.Invalidate(key)
		return "", "", false
	}

	accountEntry.mu.Lock()
	usable := accountEntry.health.Usable(accountEntry.account, now)
	accountEntry.mu.Unlock()
	if !usable {
		b.affinity.Invalidate(key)
		return "", "", false
	}

	b.affinity.Touch(key, now)
	return entry.AccountID, entry.Token, true
}

func (b *Broker) RecordAffinity(key string, id domain.AccountID, token string) {
	b.affinity.Put(key, id, token, b.clock.Now())
}

func (b *Broker) TouchAffinity(key string) {
	b.affinity.Touch(key, b.clock.Now())
}

// WithKeyLock serializes fn against every other caller using the same
// logical session key. Unrelated keys proceed in parallel. The lock is
// released on every exit path, including a panic inside fn.
func (b *Broker) WithKeyLock(key string, fn func() error) error {
	lock := b.locks.Acquire(key, b.affinity.Has)
	lock.Lock()
	defer lock.Unlock()

	return fn()
}

// Sweep runs one maintenance pass: TTL expiry, size-bound eviction and lock
// registry pruning. Invoked by the background sweeper and safe to call
// directly. Never touches per-key locks.
func (b *Broker) Sweep() {
	now := b.clock.Now()

	expired := b.affinity.Sweep(now)
	evicted := b.affinity.EnforceSize()
	pruned := b.locks.Prune(b.affinity.Has)

	if expired > 0 || evicted > 0 || pruned > 0 {
		b.logger.Info("sweep pass",
			"expired", expired,
			"evicted", evicted,
			"locks_pruned", pruned,
			"cached", b.affinity.Len(),
		)
	}
}

func (b *Broker) lookup(id domain.AccountID) (*accountEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.entries[id]
	return entry, ok
}

// usableEntries filters the pool by the composite usability check. Lapsed
// cooldowns auto-recover here, under each entry's own lock.
func (b *Broker) usableEntries(now time.Time) []*accountEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	usable := make([]*accountEntry, 0, len(b.order))
	for _, id := range b.order {
		entry := b.entries[id]
		entry.mu.Lock()
		ok := entry.health.Usable(entry.account, now)
		entry.mu.Unlock()
		if ok {
			usable = append(usable, entry)
		}
	}

	return usable
}

func shortRequestID() string {
	return uuid.NewString()[:8]
}
