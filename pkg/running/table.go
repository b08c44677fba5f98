// Package running implements the RunningTable: the concurrency-safe map
// of externalCompactionId -> RunningCompaction.
package running

import (
	"sync"

	"github.com/cuemby/compactord/pkg/compaction"
)

// Table is the RunningTable. Key uniqueness and insert/remove atomicity
// are guarded by a single mutex; per-entry field mutation is the entry's
// own responsibility (compaction.RunningCompaction has its own mutex).
type Table struct {
	mu      sync.RWMutex
	entries map[string]*compaction.RunningCompaction
}

// New returns an empty RunningTable.
func New() *Table {
	return &Table{entries: make(map[string]*compaction.RunningCompaction)}
}

// Insert adds rc under id. It fails (returns false) if id is already
// present, so a racing reservation can never silently clobber another.
func (t *Table) Insert(id string, rc *compaction.RunningCompaction) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[id]; exists {
		return false
	}
	t.entries[id] = rc
	return true
}

// Get returns the entry for id, or nil if absent.
func (t *Table) Get(id string) *compaction.RunningCompaction {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entries[id]
}

// Remove unconditionally removes id.
func (t *Table) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// RemoveIf removes id only if the currently stored entry is rc, so a
// caller that raced with a cancel or membership purge can't remove an
// entry someone else already replaced or removed.
func (t *Table) RemoveIf(id string, rc *compaction.RunningCompaction) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	current, exists := t.entries[id]
	if !exists || current != rc {
		return false
	}
	delete(t.entries, id)
	return true
}

// ByTserver returns the ids of every running compaction issued by tsi.
// Used only by the MembershipReactor on rare removal events, so a linear
// scan is fine.
func (t *Table) ByTserver(tsi compaction.TabletServerID) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var ids []string
	for id, rc := range t.entries {
		if rc.TServer == tsi {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of in-flight entries, for diagnostics/metrics.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
