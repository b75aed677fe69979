package application

import (
	"sort"
	"sync"
	"time"

	"github.com/bnema/account-broker/internal/domain"
)

// AffinityEntry binds a logical session key to the account and upstream
// session that served it last.
type AffinityEntry struct {
	AccountID domain.AccountID
	Token     string
	UpdatedAt time.Time
}

// AffinityCache is a TTL-bounded map of session keys to affinity entries.
// Affinity is a performance hint, not a correctness requirement: a miss only
// costs a fresh account pick, so one exclusive lock around structural
// changes is enough.
type AffinityCache struct {
	mu      sync.Mutex
	entries map[string]AffinityEntry
	maxSize int
	ttl     time.Duration
}

func NewAffinityCache(maxSize int, ttl time.Duration) *AffinityCache {
	return &AffinityCache{
		entries: make(map[string]AffinityEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func (c *AffinityCache) Lookup(key string) (AffinityEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	return entry, ok
}

func (c *AffinityCache) Put(key string, accountID domain.AccountID, token string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = AffinityEntry{AccountID: accountID, Token: token, UpdatedAt: now}
	c.enforceSizeLocked()
}

// Touch refreshes an entry's timestamp without changing its value, keeping
// an active but idle conversation from expiring.
func (c *AffinityCache) Touch(key string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return
	}
	entry.UpdatedAt = now
	c.entries[key] = entry
}

func (c *AffinityCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Sweep removes every entry older than the TTL and returns how many were
// dropped.
func (c *AffinityCache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.UpdatedAt) > c.ttl {
			delete(c.entries, key)
			removed++
		}
	}

	return removed
}

// EnforceSize applies the over-capacity eviction policy and returns how
// many entries were evicted.
func (c *AffinityCache) EnforceSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.enforceSizeLocked()
}

// enforceSizeLocked evicts the oldest entries by UpdatedAt down to 80% of
// capacity. Removing a batch instead of a single entry amortizes the sort
// and avoids thrashing right at the boundary.
func (c *AffinityCache) enforceSizeLocked() int {
	if len(c.entries) <= c.maxSize {
		return 0
	}

	type aged struct {
		key       string
		updatedAt time.Time
	}
	sorted := make([]aged, 0, len(c.entries))
	for key, entry := range c.entries {
		sorted = append(sorted, aged{key: key, updatedAt: entry.UpdatedAt})
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].updatedAt.Before(sorted[j].updatedAt)
	})

	removeCount := len(sorted) - int(float64(c.maxSize)*0.8)
	for _, candidate := range sorted[:removeCount] {
		delete(c.entries, candidate.key)
	}

	return removeCount
}

func (c *AffinityCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	return ok
}

func (c *AffinityCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *AffinityCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]AffinityEntry)
}
