package solver

import (
	"math/rand/v2"
	"testing"
)

func TestStoreAddCanonicalizes(t *testing.T) {
	st := NewStore()

	// Mask occupying only the middle column and bottom two rows: the window
	// must slide right one and down one.
	if !st.Add(4, 4, 0b010_010_000, 1) {
		t.Fatalf("Expected insert")
	}
	if _, ok := st.Contains(5, 5, 0b001_001); !ok {
		t.Errorf("Expected canonical form at (5, 5) with mask %09b", 0b001_001)
	}

	for _, c := range st.All() {
		if c.Mask&colLeft == 0 {
			t.Errorf("Stored constraint %+v has an empty leftmost column", c)
		}
		if c.Mask&rowTop == 0 {
			t.Errorf("Stored constraint %+v has an empty topmost row", c)
		}
	}
}

func TestStoreDuplicateSuppression(t *testing.T) {
	st := NewStore()
	if !st.Add(2, 2, 0b11, 1) {
		t.Fatalf("Expected first insert")
	}
	if st.Add(2, 2, 0b11, 1) {
		t.Errorf("Identical (x, y, mask) must not insert twice")
	}
	// Same cells expressed against a shifted window canonicalize to the
	// same triple.
	if st.Add(1, 2, 0b110, 1) {
		t.Errorf("Shifted duplicate must canonicalize onto the stored triple")
	}
	if st.Len() != 1 {
		t.Errorf("Store size = %d, want 1", st.Len())
	}
}

func TestStoreAddEmptyMaskIsNoop(t *testing.T) {
	st := NewStore()
	if st.Add(0, 0, 0, 0) {
		t.Errorf("Empty mask must not insert")
	}
	if st.Len() != 0 {
		t.Errorf("Store size = %d, want 0", st.Len())
	}
}

func TestWorkListFIFOAndMembership(t *testing.T) {
	st := NewStore()
	st.Add(0, 0, 0b1, 0)
	st.Add(2, 0, 0b1, 1)
	st.Add(4, 0, 0b1, 0)

	if got := st.workListLen(); got != 3 {
		t.Fatalf("Work-list length = %d, want 3", got)
	}

	first, ok := st.PopWork()
	if !ok || first.X != 0 {
		t.Fatalf("Expected oldest entry (x=0) first, got %+v ok=%v", first, ok)
	}

	// Re-queueing an already queued entry is a no-op.
	st.AdjustMines(Constraint{X: 2, Y: 0, Mask: 0b1, Mines: 1}, 0)
	if got := st.workListLen(); got != 2 {
		t.Errorf("Re-adding a queued constraint changed the list length to %d", got)
	}

	// Popping clears membership, so a later adjust re-queues it.
	second, _ := st.PopWork()
	if second.X != 2 {
		t.Fatalf("Expected x=2 second, got %+v", second)
	}
	st.AdjustMines(second, 1)
	if got := st.workListLen(); got != 2 {
		t.Errorf("Adjusted constraint did not re-queue; length = %d, want 2", got)
	}
	if mines, _ := st.Contains(2, 0, 0b1); mines != 2 {
		t.Errorf("AdjustMines did not update mines; got %d, want 2", mines)
	}
}

func TestStoreRemove(t *testing.T) {
	st := NewStore()
	st.Add(0, 0, 0b11, 1)
	st.Add(3, 0, 0b11, 1)

	st.Remove(Constraint{X: 0, Y: 0, Mask: 0b11, Mines: 1})
	if st.Len() != 1 {
		t.Fatalf("Store size = %d, want 1", st.Len())
	}
	if got := st.workListLen(); got != 1 {
		t.Errorf("Removed constraint still on the work-list; length = %d", got)
	}
	if _, ok := st.Contains(0, 0, 0b11); ok {
		t.Errorf("Removed constraint still indexed")
	}
	// Double removal is a no-op.
	st.Remove(Constraint{X: 0, Y: 0, Mask: 0b11, Mines: 1})
	if st.Len() != 1 {
		t.Errorf("Double removal corrupted the store")
	}
}

func TestOverlapping(t *testing.T) {
	st := NewStore()
	st.Add(0, 0, 0b111, 1)  // cells (0..2, 0)
	st.Add(2, 0, 0b111, 1)  // cells (2..4, 0)
	st.Add(6, 0, 0b111, 1)  // cells (6..8, 0) — far away
	st.Add(0, 2, 0b111, 1)  // cells (0..2, 2) — near but disjoint from a row-0 query

	got := st.Overlapping(2, 0, 0b1)
	if len(got) != 2 {
		t.Fatalf("Overlapping(2,0) returned %d constraints, want 2: %+v", len(got), got)
	}
	for _, c := range got {
		if c.Y != 0 {
			t.Errorf("Row-2 constraint must not intersect a row-0 single cell: %+v", c)
		}
	}
}

func TestPickRandomCoversStore(t *testing.T) {
	st := NewStore()
	st.Add(0, 0, 0b1, 0)
	st.Add(2, 0, 0b1, 0)
	st.Add(4, 0, 0b1, 0)

	rng := rand.New(rand.NewPCG(7, 7))
	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		c, ok := st.PickRandom(rng)
		if !ok {
			t.Fatalf("PickRandom failed on a non-empty store")
		}
		seen[c.X] = true
	}
	if len(seen) != 3 {
		t.Errorf("200 uniform picks over 3 constraints hit only %d of them", len(seen))
	}

	st.Remove(Constraint{X: 2, Y: 0, Mask: 0b1})
	for i := 0; i < 50; i++ {
		c, _ := st.PickRandom(rng)
		if c.X == 2 {
			t.Fatalf("PickRandom returned a removed constraint")
		}
	}
}

func TestPickRandomEmpty(t *testing.T) {
	st := NewStore()
	rng := rand.New(rand.NewPCG(1, 1))
	if _, ok := st.PickRandom(rng); ok {
		t.Errorf("PickRandom on an empty store must report failure")
	}
}
