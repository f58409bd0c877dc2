package reward

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DedupStore guards against double-rewarding a contribution. Reserve
// claims the (sessionID, contributionID) pair for the TTL; it returns
// false when the pair was already claimed, in which case the caller
// must award nothing. Release frees a claim whose reward could not be
// granted, so a client retry is admitted instead of reported as a
// duplicate.
type DedupStore interface {
	Reserve(ctx context.Context, sessionID, contributionID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, sessionID, contributionID string) error
}

// DedupKey builds the store key for a contribution
func DedupKey(sessionID, contributionID string) string {
	return fmt.Sprintf("reward:%s:%s", sessionID, contributionID)
}

// MemoryDedup is a process-local DedupStore with timer-based eviction.
// It does not survive restarts and is not shared across instances;
// production deployments use the Redis or SQL store instead.
type MemoryDedup struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryDedup creates an in-memory dedup store and starts its
// eviction loop
func NewMemoryDedup(sweep time.Duration) *MemoryDedup {
	d := &MemoryDedup{entries: make(map[string]time.Time)}
	go d.cleanup(sweep)
	return d
}

// cleanup removes expired entries periodically
func (d *MemoryDedup) cleanup(sweep time.Duration) {
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		d.mu.Lock()
		for key, expires := range d.entries {
			if now.After(expires) {
				delete(d.entries, key)
			}
		}
		d.mu.Unlock()
	}
}

// Reserve claims the pair unless a live claim already exists
func (d *MemoryDedup) Reserve(ctx context.Context, sessionID, contributionID string, ttl time.Duration) (bool, error) {
	key := DedupKey(sessionID, contributionID)
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if expires, ok := d.entries[key]; ok && now.Before(expires) {
		return false, nil
	}
	d.entries[key] = now.Add(ttl)
	return true, nil
}

// Release drops the claim for the pair
func (d *MemoryDedup) Release(ctx context.Context, sessionID, contributionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, DedupKey(sessionID, contributionID))
	return nil
}
