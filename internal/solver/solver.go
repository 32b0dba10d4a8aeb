package solver

import (
	"github.com/clearfield/minesweeper-engine/pkg/models"
)

// DefaultUnionCap bounds the disjoint-union closure: stores holding more
// constraints than this skip the exponential enumeration entirely.
const DefaultUnionCap = 10

// Oracle is the hidden-layout context the solver opens cells through during
// generation. Open must only be called on cells the solver has proven safe;
// it returns the cell's true 3x3 neighbor mine count.
type Oracle interface {
	Open(x, y int) int
}

// Perturber edits the hidden layout when deduction stalls. A nil or empty
// change list means no perturbation was available and the session must end
// stalled.
type Perturber interface {
	Perturb(st *Store) []models.Change
}

// Solver runs one deduction session over a visible grid. It drains a
// per-square work-list (newly known cells), then a per-constraint work-list
// (saturation and pairwise wing rules), then global-count deductions
// including the recursive disjoint-union closure, and finally asks the
// perturber for help. All constraint sets are discarded with the session.
type Solver struct {
	// UnionCap caps how many constraints the disjoint-union closure will
	// enumerate over. Tunable; DefaultUnionCap when constructed via New.
	UnionCap int

	w, h       int
	grid       []int8
	totalMines int // -1 disables global-count deductions
	oracle     Oracle
	perturber  Perturber

	store   *Store
	squares []int // FIFO of cell indices that just became known

	unknown int
	flagged int
}

// New builds a session over grid (row-major, h rows of w cells). The grid is
// mutated in place as cells are opened and flagged. totalMines of -1 leaves
// the global mine count unknown. perturber may be nil for validation runs.
func New(grid []int8, w, h, totalMines int, oracle Oracle, perturber Perturber) *Solver {
	s := &Solver{
		UnionCap:   DefaultUnionCap,
		w:          w,
		h:          h,
		grid:       grid,
		totalMines: totalMines,
		oracle:     oracle,
		perturber:  perturber,
		store:      NewStore(),
	}
	s.recount()
	return s
}

// Store exposes the session's constraint store.
func (s *Solver) Store() *Store {
	return s.store
}

// OpenStart opens the first-click cell and seeds the work-list with it.
func (s *Solver) OpenStart(x, y int) {
	s.openCell(x, y)
}

// Run drives the session to completion. Returns 0 when every UNKNOWN cell
// was resolved without perturbations, a positive count when it was resolved
// only after that many perturbations, and -1 when deduction stalled with no
// perturbation available.
func (s *Solver) Run() int {
	perturbs := 0
	for {
		if s.unknown == 0 {
			return perturbs
		}
		if s.drainSquare() {
			continue
		}
		if s.stepConstraint() {
			continue
		}
		if s.globalStep() {
			continue
		}
		if s.perturber == nil {
			return -1
		}
		changes := s.perturber.Perturb(s.store)
		if len(changes) == 0 {
			return -1
		}
		perturbs++
		s.applyChanges(changes)
	}
}

func (s *Solver) idx(x, y int) int { return y*s.w + x }

func (s *Solver) recount() {
	s.unknown, s.flagged = 0, 0
	for _, v := range s.grid {
		switch v {
		case models.CellUnknown:
			s.unknown++
		case models.CellFlagged:
			s.flagged++
		}
	}
}

// openCell reads the true count through the oracle, writes it to the visible
// grid, and queues the square for constraint propagation.
func (s *Solver) openCell(x, y int) {
	i := s.idx(x, y)
	s.grid[i] = int8(s.oracle.Open(x, y))
	s.unknown--
	s.squares = append(s.squares, i)
}

// flagCell marks a proven mine and queues the square.
func (s *Solver) flagCell(x, y int) {
	i := s.idx(x, y)
	s.grid[i] = models.CellFlagged
	s.unknown--
	s.flagged++
	s.squares = append(s.squares, i)
}

// drainSquare processes one newly known cell: a numeric cell contributes a
// fresh constraint over its still-unknown neighbors, and every stored
// constraint containing the cell is rebuilt without it (mine count reduced
// when the cell was flagged).
func (s *Solver) drainSquare() bool {
	if len(s.squares) == 0 {
		return false
	}
	i := s.squares[0]
	s.squares = s.squares[1:]
	x, y := i%s.w, i/s.w
	v := s.grid[i]

	if v >= 0 {
		var mask uint16
		mines := int(v)
		for dy := 0; dy < 3; dy++ {
			for dx := 0; dx < 3; dx++ {
				nx, ny := x-1+dx, y-1+dy
				if nx < 0 || ny < 0 || nx >= s.w || ny >= s.h {
					continue
				}
				switch s.grid[s.idx(nx, ny)] {
				case models.CellUnknown:
					mask |= 1 << (dy*3 + dx)
				case models.CellFlagged:
					mines--
				}
			}
		}
		s.store.Add(x-1, y-1, mask, mines)
	}

	flagged := v == models.CellFlagged
	for _, c := range s.store.Overlapping(x, y, 1) {
		mines := c.Mines
		if flagged {
			mines--
		}
		diff := Subtract(c.X, c.Y, c.Mask, x, y, 1)
		s.store.Remove(c)
		s.store.Add(c.X, c.Y, diff, mines)
	}
	return true
}

// stepConstraint pops one constraint and attempts the saturation rule, then
// the pairwise wing rules against every overlapping constraint. Reports
// whether a constraint was popped; the session loops back to the per-square
// list after each pop.
func (s *Solver) stepConstraint() bool {
	c, ok := s.store.PopWork()
	if !ok {
		return false
	}

	// Saturation: zero mines frees every cell, a full count mines every cell.
	n := PopCount(c.Mask)
	if c.Mines == 0 || c.Mines == n {
		asMine := c.Mines == n
		s.resolveMask(c.X, c.Y, c.Mask, asMine)
		return true
	}

	for _, o := range s.store.Overlapping(c.X, c.Y, c.Mask) {
		if o.X == c.X && o.Y == c.Y && o.Mask == c.Mask {
			continue
		}
		w := Subtract(c.X, c.Y, c.Mask, o.X, o.Y, o.Mask)  // cells only in c, c's frame
		w2 := Subtract(o.X, o.Y, o.Mask, c.X, c.Y, c.Mask) // cells only in o, o's frame
		c1, c2 := PopCount(w), PopCount(w2)
		d := c.Mines - o.Mines

		switch {
		case c1 == d && c1 != 0:
			// c's wing is saturated with mines, so o's wing is all safe.
			s.resolveMask(c.X, c.Y, w, true)
			s.resolveMask(o.X, o.Y, w2, false)
			return true
		case c2 == -d && c2 != 0:
			s.resolveMask(o.X, o.Y, w2, true)
			s.resolveMask(c.X, c.Y, w, false)
			return true
		case c1 == 0 && c2 != 0:
			// c is a subset of o: the difference carries the leftover mines.
			s.store.Remove(o)
			s.store.Add(o.X, o.Y, w2, o.Mines-c.Mines)
			return true
		case c2 == 0 && c1 != 0:
			s.store.Remove(c)
			s.store.Add(c.X, c.Y, w, c.Mines-o.Mines)
			return true
		}
	}
	return true
}

// resolveMask opens or flags every cell a mask selects.
func (s *Solver) resolveMask(x, y int, mask uint16, asMine bool) {
	for bit := 0; bit < 9; bit++ {
		if mask>>bit&1 == 0 {
			continue
		}
		cx, cy := x+bit%3, y+bit/3
		if asMine {
			s.flagCell(cx, cy)
		} else {
			s.openCell(cx, cy)
		}
	}
}

// globalStep applies deductions that need the total mine count: the trivial
// all-safe/all-mines endgames, then the disjoint-union closure.
func (s *Solver) globalStep() bool {
	if s.totalMines < 0 {
		return false
	}
	minesLeft := s.totalMines - s.flagged
	squaresLeft := s.unknown
	if squaresLeft == 0 {
		return false
	}
	if minesLeft == 0 || minesLeft == squaresLeft {
		s.resolveOutside(nil, minesLeft != 0)
		return true
	}
	if s.store.Len() > s.UnionCap {
		return false
	}
	return s.unionSearch(s.store.All(), 0, nil, minesLeft, squaresLeft)
}

// unionSearch enumerates, by recursive backtracking in store order, every
// subset of pairwise-disjoint constraints. When the cells outside a union
// have an exactly determined mine count — none left, or one per cell — every
// UNKNOWN cell outside the union resolves at once.
func (s *Solver) unionSearch(cands []Constraint, start int, cur []Constraint, minesLeft, squaresLeft int) bool {
	for i := start; i < len(cands); i++ {
		c := cands[i]
		if !disjointWithAll(cur, c) {
			continue
		}
		cur = append(cur, c)
		minesOut := minesLeft - c.Mines
		cellsOut := squaresLeft - PopCount(c.Mask)
		if minesOut >= 0 && cellsOut > 0 && (minesOut == 0 || minesOut == cellsOut) {
			s.resolveOutside(cur, minesOut != 0)
			return true
		}
		if minesOut > 0 && s.unionSearch(cands, i+1, cur, minesOut, cellsOut) {
			return true
		}
		cur = cur[:len(cur)-1]
	}
	return false
}

func disjointWithAll(cur []Constraint, c Constraint) bool {
	for _, u := range cur {
		if Intersect(u.X, u.Y, u.Mask, c.X, c.Y, c.Mask) != 0 {
			return false
		}
	}
	return true
}

// resolveOutside opens or flags every UNKNOWN cell not covered by any
// constraint in the union. A nil union resolves the whole board remainder.
func (s *Solver) resolveOutside(union []Constraint, asMine bool) {
	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {
			if s.grid[s.idx(x, y)] != models.CellUnknown {
				continue
			}
			covered := false
			for _, u := range union {
				if cellBit(u.X, u.Y, u.Mask, x, y) {
					covered = true
					break
				}
			}
			if covered {
				continue
			}
			if asMine {
				s.flagCell(x, y)
			} else {
				s.openCell(x, y)
			}
		}
	}
}

// applyChanges folds one perturbation batch back into the session: every
// constraint overlapping a changed cell has its mine count shifted to stay
// truthful against the edited layout and re-queued, which is what lets
// deduction resume. A changed cell itself never re-enters the per-square
// list — it is either still UNKNOWN (no per-square rule applies) or was
// visible, in which case the perturber has already rewritten its number and
// the surrounding constraints never contained it. The known/flagged tallies
// are recounted because the perturber may have flagged a visible cell.
func (s *Solver) applyChanges(changes []models.Change) {
	for _, ch := range changes {
		for _, c := range s.store.Overlapping(ch.X, ch.Y, 1) {
			s.store.AdjustMines(c, ch.Delta)
		}
	}
	s.recount()
}
