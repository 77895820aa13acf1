package cache

import (
	"sync"
	"time"

	"github.com/mailster/scenario/internal/core"
	"go.uber.org/zap"
)

type entry struct {
	value     any
	expiresAt time.Time
}

type call struct {
	wg    sync.WaitGroup
	value any
	err   error
}

// TTLCache is a process-wide memoization table with per-entry expiry. It
// backs the search-filter result cache (1h TTL) and the robot-parameter
// snapshot cache (10s TTL).
//
// Refreshes go through GetOrCompute, which holds a single in-flight call per
// key so concurrent misses on the same key cost one external lookup instead
// of a thundering herd. Entries are never evicted except by TTL expiry or
// overwrite; key growth is bounded by the number of distinct lookups seen.
type TTLCache struct {
	entries     map[string]entry
	inflight    map[string]*call
	mu          sync.Mutex
	clock       core.Clock
	ttl         time.Duration
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewTTLCache creates a cache with the given entry TTL and starts a
// background cleanup task.
func NewTTLCache(logger *zap.Logger, clock core.Clock, ttl, cleanupFreq time.Duration) *TTLCache {
	c := &TTLCache{
		entries:     make(map[string]entry),
		inflight:    make(map[string]*call),
		clock:       clock,
		ttl:         ttl,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	// Start background cleanup
	go c.startCleanupTask()

	return c
}

// Get retrieves a live cache entry.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores a cache entry, replacing any previous one.
func (c *TTLCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: value, expiresAt: c.clock.Now().Add(c.ttl)}
}

// GetOrCompute returns the live entry for key, or runs fn to compute it.
// Concurrent callers for the same key share one fn invocation. Errors are
// not cached; the next caller retries.
func (c *TTLCache) GetOrCompute(key string, fn func() (any, error)) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && !c.clock.Now().After(e.expiresAt) {
		c.mu.Unlock()
		return e.value, nil
	}
	if cl, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		cl.wg.Wait()
		return cl.value, cl.err
	}
	cl := &call{}
	cl.wg.Add(1)
	c.inflight[key] = cl
	c.mu.Unlock()

	cl.value, cl.err = fn()

	c.mu.Lock()
	delete(c.inflight, key)
	if cl.err == nil {
		c.entries[key] = entry{value: cl.value, expiresAt: c.clock.Now().Add(c.ttl)}
	}
	c.mu.Unlock()

	cl.wg.Done()
	return cl.value, cl.err
}

// Cleanup removes expired entries.
func (c *TTLCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	expiredCount := 0

	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			expiredCount++
		}
	}

	if expiredCount > 0 && c.logger != nil {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int("expired_count", expiredCount))
	}
}

// startCleanupTask starts a background task to clean up expired entries.
func (c *TTLCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task.
func (c *TTLCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}
