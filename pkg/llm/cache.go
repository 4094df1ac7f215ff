package llm

import (
	"sync"
	"time"
)

// cacheSoftCap bounds how many memoized results stick around before a
// sweep runs. Entries are small (one generation each), so the cap is
// generous for a single-user app.
const cacheSoftCap = 256

// CacheStats reports memo cache occupancy and traffic.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

type cacheEntry struct {
	result   *InferenceResult
	storedAt time.Time
}

// resultCache memoizes generation results by param digest with a fixed
// TTL. Expired entries drop lazily on read and get swept when the cache
// grows past the soft cap.
type resultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	hits    int64
	misses  int64
	now     func() time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (rc *resultCache) get(key string) (*InferenceResult, bool) {
	if rc.ttl <= 0 {
		return nil, false
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	entry, ok := rc.entries[key]
	if !ok {
		rc.misses++
		return nil, false
	}
	if rc.now().Sub(entry.storedAt) > rc.ttl {
		delete(rc.entries, key)
		rc.misses++
		return nil, false
	}
	rc.hits++
	// Shallow copy so the hit flag never leaks onto the stored result.
	hit := *entry.result
	hit.CacheHit = true
	return &hit, true
}

func (rc *resultCache) put(key string, res *InferenceResult) {
	if rc.ttl <= 0 {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries[key] = cacheEntry{result: res, storedAt: rc.now()}
	if len(rc.entries) > cacheSoftCap {
		rc.sweep()
	}
}

// sweep drops expired entries, then the oldest live ones until the cap
// holds. Callers must hold mu.
func (rc *resultCache) sweep() {
	now := rc.now()
	for k, e := range rc.entries {
		if now.Sub(e.storedAt) > rc.ttl {
			delete(rc.entries, k)
		}
	}
	for len(rc.entries) > cacheSoftCap {
		var oldestKey string
		var oldest time.Time
		for k, e := range rc.entries {
			if oldestKey == "" || e.storedAt.Before(oldest) {
				oldestKey = k
				oldest = e.storedAt
			}
		}
		delete(rc.entries, oldestKey)
	}
}

func (rc *resultCache) stats() CacheStats {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return CacheStats{
		Entries: len(rc.entries),
		Hits:    rc.hits,
		Misses:  rc.misses,
	}
}
