// Package dedupe remembers the analysis results of recently completed
// messages, keyed by a digest of the raw body. The worker uses it to
// answer byte-identical redeliveries by re-upserting the cached result
// instead of re-running paid classifier calls, so a resubmitted post
// still ends up COMPLETED even when a fresh IN_PROGRESS placeholder
// was written in between.
package dedupe

import (
	"sync"
	"time"

	"github.com/impactlens/social-pulse/internal/models"
)

type entry struct {
	result  models.AnalysisResult
	expires time.Time
}

type queued struct {
	digest  string
	expires time.Time
}

// Cache is a bounded digest -> result map with a TTL window. Safe for
// concurrent use.
type Cache struct {
	mu       sync.Mutex
	results  map[string]entry
	queue    []queued
	capacity int
	ttl      time.Duration
}

// NewCache creates a cache with the provided capacity and ttl.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		results:  make(map[string]entry, capacity),
		queue:    make([]queued, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Get returns the result recorded for a digest inside the ttl window.
func (c *Cache) Get(digest string) (models.AnalysisResult, bool) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.results[digest]
	if !ok {
		return models.AnalysisResult{}, false
	}
	if now.After(e.expires) {
		delete(c.results, digest)
		return models.AnalysisResult{}, false
	}
	return e.result, true
}

// Put records the result of a fully processed message.
func (c *Cache) Put(digest string, result models.AnalysisResult) {
	now := time.Now()
	expires := now.Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.results[digest] = entry{result: result, expires: expires}
	c.queue = append(c.queue, queued{digest: digest, expires: expires})
	c.evict(now)
}

// evict drops expired entries and, while over capacity, the oldest
// live ones. A queue item only speaks for the map entry that shares
// its expiry; re-Put digests leave stale queue items behind, which are
// skipped here.
func (c *Cache) evict(now time.Time) {
	for len(c.queue) > 0 {
		head := c.queue[0]
		e, live := c.results[head.digest]
		current := live && e.expires.Equal(head.expires)

		if current && !now.After(e.expires) && len(c.results) <= c.capacity {
			return
		}

		c.queue = c.queue[1:]
		if current {
			delete(c.results, head.digest)
		}
	}
}
