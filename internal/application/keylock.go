package application

import "sync"

// KeyLockRegistry hands out one mutex per logical session key so concurrent
// requests for the same conversation serialize while unrelated keys proceed
// in parallel. The registry's own lock is held only for the brief
// lookup/insert/prune, never across a caller's held duration.
type KeyLockRegistry struct {
	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	maxSize int
}

func NewKeyLockRegistry(maxSize int) *KeyLockRegistry {
	return &KeyLockRegistry{
		locks:   make(map[string]*sync.Mutex),
		maxSize: maxSize,
	}
}

// Acquire returns the lock for key, creating it lazily. When the registry
// is over capacity it first prunes locks whose key fails the keep check
// (typically: no longer present in the affinity cache). The caller locks
// and unlocks the returned mutex itself.
func (r *KeyLockRegistry) Acquire(key string, keep func(string) bool) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.locks) > r.maxSize {
		r.pruneLocked(keep)
	}

	lock, ok := r.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}

	return lock
}

// Prune removes half of the locks whose key fails the keep check. Dropping
// only half per pass bounds the pause under the registry lock.
func (r *KeyLockRegistry) Prune(keep func(string) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.pruneLocked(keep)
}

func (r *KeyLockRegistry) pruneLocked(keep func(string) bool) int {
	if keep == nil {
		return 0
	}

	prunable := make([]string, 0)
	for key := range r.locks {
		if !keep(key) {
			prunable = append(prunable, key)
		}
	}

	removeCount := len(prunable) / 2
	for _, key := range prunable[:removeCount] {
		delete(r.locks, key)
	}

	return removeCount
}

func (r *KeyLockRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.locks)
}
