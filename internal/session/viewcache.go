package session

// PositionCache remembers the last scroll offset per view key so that
// switching between views of the same session does not lose the reader's
// place. Writes are last-write-wins; absence reads as offset 0. The cache
// is owned by the session loop goroutine and needs no locking.
type PositionCache struct {
	positions map[string]float64
}

// NewPositionCache creates an empty cache.
func NewPositionCache() *PositionCache {
	return &PositionCache{positions: make(map[string]float64)}
}

// Save stores the last-known offset for key, overwriting any previous value.
// Negative offsets are clamped to 0.
func (c *PositionCache) Save(key string, position float64) {
	if position < 0 {
		position = 0
	}
	c.positions[key] = position
}

// Get returns the stored offset for key, or 0 if none was ever saved.
func (c *PositionCache) Get(key string) float64 {
	return c.positions[key]
}

// Snapshot returns a copy of all saved positions.
func (c *PositionCache) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(c.positions))
	for k, v := range c.positions {
		out[k] = v
	}
	return out
}
