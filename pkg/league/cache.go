package league

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
)

// ImportanceCache holds fixture importance results by content hash.
// A changed input produces a different key, so entries are never invalidated in
// place; the oldest entry is evicted once the cache is full.
type ImportanceCache struct {
	mu      sync.Mutex
	max     int
	entries map[string][]FixtureImportance
	order   []string
	hits    int
	misses  int
}

// NewImportanceCache returns a cache holding at most max entries (0 disables caching)
func NewImportanceCache(max int) *ImportanceCache {
	return &ImportanceCache{max: max, entries: map[string][]FixtureImportance{}}
}

func (c *ImportanceCache) Get(key string) ([]FixtureImportance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	return append([]FixtureImportance(nil), v...), true
}

func (c *ImportanceCache) Put(key string, v []FixtureImportance) {
	if c.max <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = append([]FixtureImportance(nil), v...)
	for len(c.order) > c.max {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
}

// Len returns the number of cached entries
func (c *ImportanceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counts
func (c *ImportanceCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// importanceKey is the canonical form of everything an analysis depends on
type importanceKey struct {
	Request     ImportanceRequest `json:"request"`
	Config      Config            `json:"config"`
	Fingerprint string            `json:"fingerprint"`
}

// ImportanceKey hashes a request with the configuration and the division data fingerprint.
// Overrides and what-if results are normalized first so equivalent requests share a key.
func ImportanceKey(req ImportanceRequest, cfg Config, fingerprint string) string {
	req = req.withDefaults(cfg)
	req.Overrides = req.Overrides.normalized()
	if len(req.Overrides) == 0 {
		req.Overrides = nil
	}
	whatIf := make([]Result, len(req.WhatIf))
	copy(whatIf, req.WhatIf)
	for i := range whatIf {
		if whatIf[i].Division == "" {
			whatIf[i].Division = req.Division
		}
		whatIf[i].Date = whatIf[i].Date.UTC()
	}
	sort.Slice(whatIf, func(i, j int) bool {
		a, b := whatIf[i], whatIf[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Home != b.Home {
			return a.Home < b.Home
		}
		if a.Away != b.Away {
			return a.Away < b.Away
		}
		if a.HomeScore != b.HomeScore {
			return a.HomeScore < b.HomeScore
		}
		return a.AwayScore < b.AwayScore
	})
	if len(whatIf) == 0 {
		whatIf = nil
	}
	req.WhatIf = whatIf
	// results do not depend on how the work is spread across goroutines
	cfg.Workers = 0
	b, _ := json.Marshal(importanceKey{Request: req, Config: cfg, Fingerprint: fingerprint})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// overrideFingerprint extends the division fingerprint with the stats of every
// player an override adds or removes. Added players can come from any roster,
// so the division's own rosters do not cover them.
func overrideFingerprint(ds DataSources, division string, overrides SquadOverrides) string {
	overrides = overrides.normalized()
	if len(overrides) == 0 {
		return Fingerprint(ds, division)
	}
	stats := ds.PlayerStats()
	players := map[string]*PlayerStats{}
	note := func(names []string) {
		for _, p := range names {
			if s, ok := stats[p]; ok {
				players[p] = &s
			} else {
				players[p] = nil
			}
		}
	}
	for _, o := range overrides {
		note(o.Added)
		note(o.Removed)
	}
	b, _ := json.Marshal(struct {
		Division string                  `json:"division"`
		Players  map[string]*PlayerStats `json:"players"`
	}{Fingerprint(ds, division), players})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
