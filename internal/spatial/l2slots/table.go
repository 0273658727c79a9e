// Package l2slots assigns stable small-integer slots to the transient raw
// identifiers reported by the tracking source.
//
// A Table is an arena of fixed-size slot records with an explicit free
// list and a single raw id → slot map. It is not safe for concurrent use;
// the pipeline serialises producer and release access.
package l2slots

import (
	"fmt"

	"github.com/banshee-data/spatialpointer/internal/spatial"
)

// Slot is one entry of the arena.
type Slot struct {
	Index int
	RawID int32
	Live  bool

	// Generation increments every time the slot is handed out, so stale
	// references to a previous gesture can be told apart.
	Generation uint64
}

// Table maps raw identifiers onto a fixed pool of slots.
type Table struct {
	slots []Slot
	free  []int // ascending; free[0] is the lowest free slot
	byRaw map[int32]int
}

// NewTable creates a table with capacity slots.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = 1
	}
	t := &Table{
		slots: make([]Slot, capacity),
		free:  make([]int, capacity),
		byRaw: make(map[int32]int, capacity),
	}
	for i := range t.slots {
		t.slots[i].Index = i
		t.free[i] = i
	}
	return t
}

// Capacity returns the pool size.
func (t *Table) Capacity() int { return len(t.slots) }

// Live returns the number of slots currently mapped.
func (t *Table) Live() int { return len(t.byRaw) }

// Assign returns the slot mapped to rawID, allocating the lowest free
// slot if rawID is unseen. fresh is true when a slot was allocated.
// When every slot is taken it returns spatial.ErrPoolExhausted and the
// caller drops the sample.
func (t *Table) Assign(rawID int32) (slot int, fresh bool, err error) {
	if idx, ok := t.byRaw[rawID]; ok {
		return idx, false, nil
	}
	if len(t.free) == 0 {
		return -1, false, fmt.Errorf("%w: raw id %d, %d slots live", spatial.ErrPoolExhausted, rawID, len(t.slots))
	}

	idx := t.free[0]
	t.free = t.free[1:]
	s := &t.slots[idx]
	s.RawID = rawID
	s.Live = true
	s.Generation++
	t.byRaw[rawID] = idx
	return idx, true, nil
}

// Lookup returns the slot mapped to rawID without allocating.
func (t *Table) Lookup(rawID int32) (int, bool) {
	idx, ok := t.byRaw[rawID]
	return idx, ok
}

// Slot returns a copy of the slot record at idx.
func (t *Table) Slot(idx int) (Slot, bool) {
	if idx < 0 || idx >= len(t.slots) {
		return Slot{}, false
	}
	return t.slots[idx], true
}

// Release frees idx and drops its raw id mapping. Releasing a free or
// out-of-range slot is a no-op and reports false.
func (t *Table) Release(idx int) bool {
	if idx < 0 || idx >= len(t.slots) || !t.slots[idx].Live {
		return false
	}
	s := &t.slots[idx]
	if cur, ok := t.byRaw[s.RawID]; ok && cur == idx {
		delete(t.byRaw, s.RawID)
	}
	s.Live = false
	s.RawID = 0

	// Keep the free list sorted so the lowest slot is always reused first.
	pos := len(t.free)
	for i, f := range t.free {
		if f > idx {
			pos = i
			break
		}
	}
	t.free = append(t.free, 0)
	copy(t.free[pos+1:], t.free[pos:])
	t.free[pos] = idx
	return true
}

// Reset frees every slot.
func (t *Table) Reset() {
	for i := range t.slots {
		if t.slots[i].Live {
			t.Release(i)
		}
	}
}
