package session

import "testing"

func TestPositionCacheSaveGet(t *testing.T) {
	c := NewPositionCache()

	c.Save("view-A", 120)
	if got := c.Get("view-A"); got != 120 {
		t.Errorf("Get(view-A) = %v, want 120", got)
	}
	// Absence is a normal case, not an error.
	if got := c.Get("view-B"); got != 0 {
		t.Errorf("Get(view-B) = %v, want 0", got)
	}
}

func TestPositionCacheOverwrite(t *testing.T) {
	c := NewPositionCache()

	// Rapid successive saves from a continuous scroll signal: last write wins.
	for _, pos := range []float64{10, 250, 80.5} {
		c.Save("p1:material", pos)
	}
	if got := c.Get("p1:material"); got != 80.5 {
		t.Errorf("Get = %v, want 80.5", got)
	}
}

func TestPositionCacheClampsNegative(t *testing.T) {
	c := NewPositionCache()
	c.Save("k", -30)
	if got := c.Get("k"); got != 0 {
		t.Errorf("Get = %v, want 0", got)
	}
}

func TestPositionCacheSnapshot(t *testing.T) {
	c := NewPositionCache()
	c.Save("a", 1)
	c.Save("b", 2)

	snap := c.Snapshot()
	snap["a"] = 99
	if got := c.Get("a"); got != 1 {
		t.Errorf("cache mutated through snapshot: %v", got)
	}
}
