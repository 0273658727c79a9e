package l2slots

import (
	"errors"
	"testing"

	"github.com/banshee-data/spatialpointer/internal/spatial"
)

func mustAssign(t *testing.T, tbl *Table, rawID int32) (int, bool) {
	t.Helper()
	slot, fresh, err := tbl.Assign(rawID)
	if err != nil {
		t.Fatalf("Assign(%d) failed: %v", rawID, err)
	}
	return slot, fresh
}

func TestAssignReusesMappedSlot(t *testing.T) {
	t.Parallel()
	tbl := NewTable(2)

	if slot, fresh := mustAssign(t, tbl, 7); slot != 0 || !fresh {
		t.Errorf("first Assign = (%d, %v), want (0, true)", slot, fresh)
	}
	if slot, fresh := mustAssign(t, tbl, 7); slot != 0 || fresh {
		t.Errorf("second Assign = (%d, %v), want (0, false)", slot, fresh)
	}
	if got := tbl.Live(); got != 1 {
		t.Errorf("Live() = %d, want 1", got)
	}
}

func TestAssignLowestFreeSlot(t *testing.T) {
	t.Parallel()
	tbl := NewTable(3)

	for i, id := range []int32{100, 200, 300} {
		if slot, _ := mustAssign(t, tbl, id); slot != i {
			t.Errorf("Assign(%d) = slot %d, want %d", id, slot, i)
		}
	}

	if !tbl.Release(1) || !tbl.Release(0) {
		t.Fatal("Release of live slots failed")
	}

	slot, fresh := mustAssign(t, tbl, 400)
	if slot != 0 || !fresh {
		t.Errorf("Assign(400) = (%d, %v), want lowest free slot 0", slot, fresh)
	}
	if slot, _ := mustAssign(t, tbl, 500); slot != 1 {
		t.Errorf("Assign(500) = slot %d, want 1", slot)
	}
}

func TestPoolExhausted(t *testing.T) {
	t.Parallel()
	tbl := NewTable(2)
	mustAssign(t, tbl, 1)
	mustAssign(t, tbl, 2)

	slot, fresh, err := tbl.Assign(3)
	if !errors.Is(err, spatial.ErrPoolExhausted) {
		t.Errorf("Assign on a full table: err = %v, want ErrPoolExhausted", err)
	}
	if slot != -1 || fresh {
		t.Errorf("Assign on a full table = (%d, %v), want (-1, false)", slot, fresh)
	}
	if got := tbl.Live(); got != 2 {
		t.Errorf("Live() = %d, want 2", got)
	}

	// Existing ids keep resolving while the pool is full.
	if slot, _ := mustAssign(t, tbl, 2); slot != 1 {
		t.Errorf("Assign(2) = slot %d, want 1", slot)
	}
}

func TestReleaseDropsMapping(t *testing.T) {
	t.Parallel()
	tbl := NewTable(2)

	slot, _ := mustAssign(t, tbl, 7)
	before, _ := tbl.Slot(slot)

	if !tbl.Release(slot) {
		t.Fatal("Release of a live slot returned false")
	}
	if _, ok := tbl.Lookup(7); ok {
		t.Error("raw id still mapped after release")
	}
	if tbl.Release(slot) {
		t.Error("double release should be a no-op")
	}
	if tbl.Release(5) {
		t.Error("out of range release should be a no-op")
	}

	// The raw id may come back and land on a new generation of the slot.
	again, fresh := mustAssign(t, tbl, 7)
	if !fresh {
		t.Error("returning raw id should be fresh")
	}
	after, _ := tbl.Slot(again)
	if after.Generation != before.Generation+1 {
		t.Errorf("Generation = %d, want %d", after.Generation, before.Generation+1)
	}
}

func TestReset(t *testing.T) {
	t.Parallel()
	tbl := NewTable(2)
	mustAssign(t, tbl, 1)
	mustAssign(t, tbl, 2)

	tbl.Reset()
	if got := tbl.Live(); got != 0 {
		t.Errorf("Live() after Reset = %d, want 0", got)
	}
	if slot, _ := mustAssign(t, tbl, 3); slot != 0 {
		t.Errorf("Assign after Reset = slot %d, want 0", slot)
	}
}

func TestNewTableMinimumCapacity(t *testing.T) {
	t.Parallel()
	if got := NewTable(0).Capacity(); got != 1 {
		t.Errorf("NewTable(0).Capacity() = %d, want 1", got)
	}
}
