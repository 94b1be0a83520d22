package validation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/graph"
)

// Cache memoizes validation results per scenario, keyed by a content hash so
// any edit invalidates the entry automatically.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	hash   string
	result *Result
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Hash returns a stable content hash of the scenario's nodes, connections,
// and variable declarations. Geometry participates too; that only causes
// harmless extra revalidation after layout-only edits.
func Hash(s *graph.Scenario) string {
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Validate returns the cached result when the scenario is unchanged,
// otherwise revalidates and stores the fresh result.
func (c *Cache) Validate(v *Validator, s *graph.Scenario) *Result {
	h := Hash(s)
	c.mu.Lock()
	if e, ok := c.entries[s.ID]; ok && e.hash == h && h != "" {
		c.mu.Unlock()
		return e.result
	}
	c.mu.Unlock()

	res := v.ValidateScenario(s)

	c.mu.Lock()
	c.entries[s.ID] = cacheEntry{hash: h, result: res}
	c.mu.Unlock()
	return res
}

// Invalidate drops the entry for a scenario id.
func (c *Cache) Invalidate(scenarioID string) {
	c.mu.Lock()
	delete(c.entries, scenarioID)
	c.mu.Unlock()
}
