package authkit

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-memory KeyValueCache intended for tests and dev.
type MemoryCache struct {
	mutex   sync.Mutex
	entries map[string]memoryCacheEntry
	clock   Clock
}

type memoryCacheEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryCache creates an empty cache. A nil clock falls back to the system clock.
func NewMemoryCache(clock Clock) *MemoryCache {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &MemoryCache{
		entries: make(map[string]memoryCacheEntry),
		clock:   clock,
	}
}

// Set stores the value, replacing any previous entry and its expiry.
// Expired entries are dropped lazily by Get and Len.
func (cache *MemoryCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()

	entry := memoryCacheEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = cache.clock.Now().Add(ttl)
	}
	cache.entries[key] = entry
	return nil
}

// Get returns the live value for key.
func (cache *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()

	entry, ok := cache.entries[key]
	if !ok {
		return "", false, nil
	}
	if cache.expiredLocked(entry) {
		delete(cache.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

// Delete removes key; deleting a missing key is not an error.
func (cache *MemoryCache) Delete(ctx context.Context, key string) error {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()

	delete(cache.entries, key)
	return nil
}

// Len reports the number of unexpired entries.
func (cache *MemoryCache) Len() int {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()

	cache.purgeExpiredLocked()
	return len(cache.entries)
}

func (cache *MemoryCache) purgeExpiredLocked() {
	for key, entry := range cache.entries {
		if cache.expiredLocked(entry) {
			delete(cache.entries, key)
		}
	}
}

func (cache *MemoryCache) expiredLocked(entry memoryCacheEntry) bool {
	return !entry.expiresAt.IsZero() && !cache.clock.Now().Before(entry.expiresAt)
}
