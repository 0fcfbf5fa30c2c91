package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/use-agent/gleaner/models"
)

// Store caches scrape responses by key. Implementations are safe for
// concurrent use. Lookup failures are reported as misses.
type Store interface {
	// Get returns the response stored under key if it is younger than
	// maxAge. A maxAge <= 0 always misses.
	Get(ctx context.Context, key string, maxAge time.Duration) (*models.ScrapeResponse, bool)

	// Set stores resp under key.
	Set(ctx context.Context, key string, resp *models.ScrapeResponse)

	// Contains reports whether anything is stored under key, whatever its age.
	Contains(ctx context.Context, key string) bool

	Close() error
}

// Key generates a cache key from the URL and output format.
func Key(url, format string) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte("|"))
	h.Write([]byte(format))
	return hex.EncodeToString(h.Sum(nil))
}

type entry struct {
	response  *models.ScrapeResponse
	createdAt time.Time
}

// Memory is an in-process Store. Entries older than ttl are evicted by a
// background sweep until Close is called.
type Memory struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewMemory creates a Memory store holding at most maxEntries responses.
func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	c := &Memory{
		store:      make(map[string]*entry),
		maxEntries: max(maxEntries, 1),
		ttl:        ttl,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if ttl > 0 {
		go c.cleanupLoop(min(ttl, 5*time.Minute))
	}
	return c
}

func (c *Memory) Get(_ context.Context, key string, maxAge time.Duration) (*models.ScrapeResponse, bool) {
	if maxAge <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.createdAt) > maxAge {
		return nil, false
	}
	return e.response, true
}

// Set stores resp. At capacity an arbitrary entry is evicted first.
func (c *Memory) Set(_ context.Context, key string, resp *models.ScrapeResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}
	c.store[key] = &entry{response: resp, createdAt: c.now()}
}

func (c *Memory) Contains(_ context.Context, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.store[key]
	return ok
}

func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the background sweep.
func (c *Memory) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

func (c *Memory) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Memory) evictExpired() {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}
