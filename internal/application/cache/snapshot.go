package cache

import "time"

type snapshotEntry struct {
	key         Key
	data        interface{}
	hasData     bool
	updatedAt   time.Time
	invalidated bool
	fetch       QueryFunc
}

// Snapshot is a point-in-time copy of a set of entries. Values are shared
// with the cache, which is safe because updaters never mutate in place.
type Snapshot struct {
	entries []snapshotEntry
}

// Len returns the number of captured entries
func (s Snapshot) Len() int {
	return len(s.entries)
}

// Snapshot captures every entry under prefix
func (c *Cache) Snapshot(prefix Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(prefix)
}

func (c *Cache) snapshotLocked(prefix Key) Snapshot {
	var s Snapshot
	for _, e := range c.matchLocked(prefix) {
		s.entries = append(s.entries, snapshotEntry{
			key:         e.key,
			data:        e.data,
			hasData:     e.hasData,
			updatedAt:   e.updatedAt,
			invalidated: e.invalidated,
			fetch:       e.fetch,
		})
	}
	return s
}

// Restore writes the captured entries back verbatim, recreating any that
// were removed since.
func (c *Cache) Restore(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restoreLocked(s)
}

func (c *Cache) restoreLocked(s Snapshot) {
	for _, se := range s.entries {
		k := se.key.String()
		e, ok := c.entries[k]
		if !ok {
			e = &entry{key: se.key}
			c.entries[k] = e
		}
		e.data = se.data
		e.hasData = se.hasData
		e.updatedAt = se.updatedAt
		e.invalidated = se.invalidated
		if e.fetch == nil {
			e.fetch = se.fetch
		}
	}
}
