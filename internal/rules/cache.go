package rules

import (
	"context"
	"errors"
	"sync"

	"github.com/waploaj/DyAPI/internal/registry"
)

// Lister lists every stored business rule.
type Lister interface {
	ListBusinessRules(ctx context.Context) ([]*registry.BusinessRule, error)
}

// Cache keeps parsed rules keyed by id. An entry is reused only while the
// stored definition is unchanged, so edits reach the cache as soon as the
// store serves them. Parse failures are cached too.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	def  registry.BusinessRule
	rule *Rule
	err  error
}

func NewCache() *Cache {
	return &Cache{entries: map[string]cacheEntry{}}
}

// Get returns the parsed form of def, parsing it on first use or when the
// definition differs from the cached one.
func (c *Cache) Get(def registry.BusinessRule) (*Rule, error) {
	c.mu.RLock()
	e, ok := c.entries[def.ID]
	c.mu.RUnlock()
	if ok && e.def == def {
		return e.rule, e.err
	}
	rule, err := Parse(def)
	c.mu.Lock()
	c.entries[def.ID] = cacheEntry{def: def, rule: rule, err: err}
	c.mu.Unlock()
	return rule, err
}

// Load parses every rule src lists. All malformed rules are reported in one
// joined error; well-formed rules are cached either way.
func (c *Cache) Load(ctx context.Context, src Lister) (int, error) {
	defs, err := src.ListBusinessRules(ctx)
	if err != nil {
		return 0, err
	}
	var errs []error
	for _, def := range defs {
		if _, err := c.Get(*def); err != nil {
			errs = append(errs, err)
		}
	}
	return len(defs), errors.Join(errs...)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Reset drops every entry and returns how many were dropped.
func (c *Cache) Reset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = map[string]cacheEntry{}
	return n
}
