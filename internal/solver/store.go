package solver

import "math/rand/v2"

// Constraint states that the cells selected by Mask inside the 3x3 window at
// (X, Y) contain exactly Mines mines. Stored constraints are canonical: the
// leftmost occupied column and topmost occupied row of the mask sit at
// offset 0, so two constraints describe the same cells iff (X, Y, Mask) match.
type Constraint struct {
	X     int
	Y     int
	Mask  uint16
	Mines int
}

type storeKey struct {
	x, y int
	mask uint16
}

// node is an arena slot. The work-list is a doubly linked FIFO threaded
// through prev/next arena indices; inWork is the membership flag that makes
// re-enqueueing a no-op. pick is the slot's position in the pick slice used
// for uniform random sampling.
type node struct {
	c          Constraint
	prev, next int
	inWork     bool
	pick       int
}

// Store holds the constraint sets of one solver session: a content-addressed
// index for duplicate suppression, a FIFO work-list, and a parallel index
// slice for O(1) uniform random picks (swap-and-pop on removal).
type Store struct {
	arena    []node
	free     []int
	index    map[storeKey]int
	pick     []int
	workHead int
	workTail int
	scratch  []Constraint
}

func NewStore() *Store {
	return &Store{
		index:    make(map[storeKey]int),
		workHead: -1,
		workTail: -1,
	}
}

// Len returns the number of stored constraints.
func (st *Store) Len() int {
	return len(st.pick)
}

// canonicalize shifts the window so the mask's leftmost occupied column and
// topmost occupied row land at offset 0. Shifting right by one moves every
// column left exactly because the vacated column is all zero; same for rows
// with a stride of 3.
func canonicalize(x, y int, mask uint16) (int, int, uint16) {
	for mask != 0 && mask&colLeft == 0 {
		mask >>= 1
		x++
	}
	for mask != 0 && mask&rowTop == 0 {
		mask >>= 3
		y++
	}
	return x, y, mask
}

// Add canonicalizes and inserts a constraint, pushing it onto the work-list
// when newly inserted. Adding an empty mask or an already-present
// (x, y, mask) triple is a no-op. Reports whether an insert happened.
func (st *Store) Add(x, y int, mask uint16, mines int) bool {
	x, y, mask = canonicalize(x, y, mask)
	if mask == 0 {
		return false
	}
	k := storeKey{x, y, mask}
	if _, ok := st.index[k]; ok {
		return false
	}

	var idx int
	if n := len(st.free); n > 0 {
		idx = st.free[n-1]
		st.free = st.free[:n-1]
	} else {
		st.arena = append(st.arena, node{})
		idx = len(st.arena) - 1
	}
	st.arena[idx] = node{
		c:    Constraint{X: x, Y: y, Mask: mask, Mines: mines},
		prev: -1,
		next: -1,
		pick: len(st.pick),
	}
	st.index[k] = idx
	st.pick = append(st.pick, idx)
	st.pushWork(idx)
	return true
}

// Remove drops a constraint from the index, the pick slice, and the
// work-list if queued. Removing a constraint not in the store is a no-op.
func (st *Store) Remove(c Constraint) {
	k := storeKey{c.X, c.Y, c.Mask}
	idx, ok := st.index[k]
	if !ok {
		return
	}
	n := &st.arena[idx]
	if n.inWork {
		st.unlink(idx)
	}
	// Swap-and-pop the pick slice, fixing up the moved slot's position.
	last := len(st.pick) - 1
	moved := st.pick[last]
	st.pick[n.pick] = moved
	st.arena[moved].pick = n.pick
	st.pick = st.pick[:last]

	delete(st.index, k)
	st.free = append(st.free, idx)
}

// Contains reports whether the exact (x, y, mask) triple is stored and, if
// so, returns its current mine count.
func (st *Store) Contains(x, y int, mask uint16) (int, bool) {
	idx, ok := st.index[storeKey{x, y, mask}]
	if !ok {
		return 0, false
	}
	return st.arena[idx].c.Mines, true
}

// AdjustMines shifts a stored constraint's mine count by delta and re-queues
// it on the work-list so the deduction rules revisit it. Used when a
// perturbation edits the hidden layout underneath live constraints.
func (st *Store) AdjustMines(c Constraint, delta int) {
	idx, ok := st.index[storeKey{c.X, c.Y, c.Mask}]
	if !ok {
		return
	}
	st.arena[idx].c.Mines += delta
	st.pushWork(idx)
}

// PopWork dequeues the oldest work-list entry. The constraint remains in the
// store; only its queue membership is cleared.
func (st *Store) PopWork() (Constraint, bool) {
	if st.workHead == -1 {
		return Constraint{}, false
	}
	idx := st.workHead
	st.unlink(idx)
	return st.arena[idx].c, true
}

func (st *Store) pushWork(idx int) {
	n := &st.arena[idx]
	if n.inWork {
		return
	}
	n.inWork = true
	n.prev = st.workTail
	n.next = -1
	if st.workTail != -1 {
		st.arena[st.workTail].next = idx
	} else {
		st.workHead = idx
	}
	st.workTail = idx
}

func (st *Store) unlink(idx int) {
	n := &st.arena[idx]
	if n.prev != -1 {
		st.arena[n.prev].next = n.next
	} else {
		st.workHead = n.next
	}
	if n.next != -1 {
		st.arena[n.next].prev = n.prev
	} else {
		st.workTail = n.prev
	}
	n.prev, n.next = -1, -1
	n.inWork = false
}

// Overlapping returns every stored constraint whose window lies within 2
// cells of (x, y) on both axes and whose aligned mask intersects the query
// mask. The result shares one scratch slice across calls; callers must
// consume it before the next query.
func (st *Store) Overlapping(x, y int, mask uint16) []Constraint {
	st.scratch = st.scratch[:0]
	for _, idx := range st.pick {
		c := st.arena[idx].c
		if Intersect(c.X, c.Y, c.Mask, x, y, mask) != 0 {
			st.scratch = append(st.scratch, c)
		}
	}
	return st.scratch
}

// All copies the live constraints out in pick order. Used by the
// disjoint-union closure, which must enumerate a stable snapshot.
func (st *Store) All() []Constraint {
	out := make([]Constraint, 0, len(st.pick))
	for _, idx := range st.pick {
		out = append(out, st.arena[idx].c)
	}
	return out
}

// PickRandom samples one stored constraint uniformly in O(1).
func (st *Store) PickRandom(rng *rand.Rand) (Constraint, bool) {
	if len(st.pick) == 0 {
		return Constraint{}, false
	}
	return st.arena[st.pick[rng.IntN(len(st.pick))]].c, true
}

// workListLen walks the linked list; test helper for the membership
// invariant.
func (st *Store) workListLen() int {
	n := 0
	for idx := st.workHead; idx != -1; idx = st.arena[idx].next {
		n++
	}
	return n
}
