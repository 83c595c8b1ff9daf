package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/roland-id-au/vows-social-sub000/pkg/observability/metrics"
)

// Classification selects the TTL for a cached answer. Discovery-style queries
// go stale quickly as new venues appear; single-entity research is stable for
// much longer.
type Classification string

const (
	ClassDiscovery Classification = "discovery"
	ClassResearch  Classification = "research"
)

const (
	discoveryTTL = 12 * time.Hour
	researchTTL  = 7 * 24 * time.Hour
	defaultTTL   = 24 * time.Hour
)

type entry struct {
	payload      json.RawMessage
	insertedAt   time.Time
	lastAccessAt time.Time
	ttl          time.Duration
	accessCount  int
}

// ResponseCache memoizes expensive external research and discovery answers
// in-process, with sliding expiration: every hit extends the entry's life.
// A cold process starts empty; every answer is re-derivable from the services.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttls    map[Classification]time.Duration
	now     func() time.Time
}

func NewResponseCache() *ResponseCache {
	return &ResponseCache{
		entries: make(map[string]*entry),
		ttls: map[Classification]time.Duration{
			ClassDiscovery: discoveryTTL,
			ClassResearch:  researchTTL,
		},
		now: time.Now,
	}
}

// SetTTL overrides the TTL for a classification.
func (c *ResponseCache) SetTTL(class Classification, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttls[class] = ttl
}

// SetClock injects the time source for tests.
func (c *ResponseCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Key hashes the normalized query text. The full digest is used so long
// queries sharing a prefix can never collide.
func Key(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func (c *ResponseCache) Get(query string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(query)
	e, ok := c.entries[key]
	if !ok {
		metrics.CacheMiss()
		return nil, false
	}

	now := c.now()
	if now.Sub(e.lastAccessAt) > e.ttl {
		delete(c.entries, key)
		metrics.CacheMiss()
		return nil, false
	}

	e.lastAccessAt = now
	e.accessCount++
	metrics.CacheHit()
	return e.payload, true
}

func (c *ResponseCache) Set(query string, payload json.RawMessage, class Classification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ttl, ok := c.ttls[class]
	if !ok {
		ttl = defaultTTL
	}

	now := c.now()
	c.entries[Key(query)] = &entry{
		payload:      payload,
		insertedAt:   now,
		lastAccessAt: now,
		ttl:          ttl,
	}

	// Sweep anything past its deadline so idle entries do not pile up.
	for k, e := range c.entries {
		if now.Sub(e.lastAccessAt) > e.ttl {
			delete(c.entries, k)
		}
	}
}

// Len reports live entries; expired-but-unswept entries are counted until the
// next Set.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
