package api

import (
	"sync"
)

// DefaultCacheSize is the number of decisions kept by default
const DefaultCacheSize = 4096

// decisionKey identifies a reproducible move request: the same position,
// AI, seed and registry generation always yield the same answer.
type decisionKey struct {
	position   string
	ai         string
	seed       uint64
	generation uint64
}

type cacheEntry struct {
	key   decisionKey
	valid bool
	resp  MoveResponse
}

// cacheNode holds primary and secondary entries for a two-way associative cache
type cacheNode struct {
	primary   cacheEntry
	secondary cacheEntry
}

// DecisionCache remembers answers to seeded move requests. It is a two-way
// associative cache indexed by a MurmurHash3-style hash; it is safe for
// concurrent use.
type DecisionCache struct {
	mu       sync.Mutex
	nodes    []cacheNode
	hashMask uint32

	lookups uint64
	hits    uint64
	adds    uint64
}

// CacheStats reports cache usage.
type CacheStats struct {
	Size    int     `json:"size"`
	Lookups uint64  `json:"lookups"`
	Hits    uint64  `json:"hits"`
	Adds    uint64  `json:"adds"`
	HitRate float64 `json:"hit_rate"` // Percent
}

// NewDecisionCache creates a cache holding at least size decisions, rounded
// up to a power of two.
func NewDecisionCache(size int) *DecisionCache {
	if size < 2 {
		size = 2
	}
	if size > 1<<24 {
		size = 1 << 24
	}
	p := 2
	for p < size {
		p <<= 1
	}
	return &DecisionCache{
		nodes:    make([]cacheNode, p/2),
		hashMask: uint32(p/2 - 1),
	}
}

// Flush drops every entry and resets the counters.
func (c *DecisionCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.nodes {
		c.nodes[i] = cacheNode{}
	}
	c.lookups, c.hits, c.adds = 0, 0, 0
}

func mix32(h, k uint32) uint32 {
	const c1 = 0xcc9e2d51
	const c2 = 0x1b873593
	k *= c1
	k = (k << 15) | (k >> 17)
	k *= c2
	h ^= k
	h = (h << 13) | (h >> 19)
	return h*5 + 0xe6546b64
}

func mixString(h uint32, s string) uint32 {
	for i := 0; i < len(s); i += 4 {
		var k uint32
		for j := i; j < i+4 && j < len(s); j++ {
			k = k<<8 | uint32(s[j])
		}
		h = mix32(h, k)
	}
	return h
}

func (c *DecisionCache) slot(k decisionKey) uint32 {
	h := mixString(0, k.position)
	h = mixString(h, k.ai)
	h = mix32(h, uint32(k.seed))
	h = mix32(h, uint32(k.seed>>32))
	h = mix32(h, uint32(k.generation))

	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h & c.hashMask
}

// Lookup returns a copy of the cached response for k.
func (c *DecisionCache) Lookup(k decisionKey) (MoveResponse, bool) {
	slot := c.slot(k)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++

	node := &c.nodes[slot]
	switch {
	case node.primary.valid && node.primary.key == k:
		c.hits++
		return node.primary.resp, true
	case node.secondary.valid && node.secondary.key == k:
		c.hits++
		node.primary, node.secondary = node.secondary, node.primary
		return node.primary.resp, true
	}
	return MoveResponse{}, false
}

// Add stores resp under k, demoting the previous primary entry of its slot.
func (c *DecisionCache) Add(k decisionKey, resp MoveResponse) {
	slot := c.slot(k)

	c.mu.Lock()
	defer c.mu.Unlock()

	node := &c.nodes[slot]
	if node.primary.valid && node.primary.key == k {
		node.primary.resp = resp
		return
	}
	node.secondary = node.primary
	node.primary = cacheEntry{key: k, valid: true, resp: resp}
	c.adds++
}

// Stats returns cache statistics.
func (c *DecisionCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := CacheStats{
		Size:    2 * len(c.nodes),
		Lookups: c.lookups,
		Hits:    c.hits,
		Adds:    c.adds,
	}
	if c.lookups > 0 {
		s.HitRate = float64(c.hits) / float64(c.lookups) * 100
	}
	return s
}
