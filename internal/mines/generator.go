package mines

import (
	"log"
	"math/rand/v2"

	"github.com/clearfield/minesweeper-engine/internal/solver"
	"github.com/clearfield/minesweeper-engine/pkg/models"
)

// DefaultMaxAttempts bounds how many fresh random layouts one generation
// call will burn through before degrading to an unvalidated layout.
const DefaultMaxAttempts = 1000

// UnionCapDefault seeds every new Generator's disjoint-union closure cap.
// Process-wide tunable, set once at startup (SOLVER_UNION_CAP).
var UnionCapDefault = solver.DefaultUnionCap

// Generator produces mine layouts that a perfect no-guess solver can fully
// uncover from the first click. It is the solver's oracle: Open reads true
// counts off the hidden layout, and Perturb edits the layout when deduction
// stalls. One Generator serves one board geometry; it is not safe for
// concurrent use (the engine is single-threaded by design).
type Generator struct {
	// MaxAttempts is the retry ceiling for fresh random layouts.
	MaxAttempts int
	// UnionCap is forwarded to the solver's disjoint-union closure.
	UnionCap int

	w, h, mines  int
	safeX, safeY int
	rng          *rand.Rand

	layout Bitset
	opened Bitset
	grid   []int8

	perturbsSinceOpen int
}

// Result is the outcome of one generation call. Validated is false only
// after the retry ceiling was exhausted and the final layout was returned
// without a solver pass — the documented degradation.
type Result struct {
	Layout        Bitset
	Attempts      int
	Perturbations int
	Validated     bool
}

// New builds a generator for a w x h board with the given mine count. The
// caller is responsible for clamping the config first; mines must not exceed
// w*h-9.
func New(w, h, mineCount int, rng *rand.Rand) *Generator {
	return &Generator{
		MaxAttempts: DefaultMaxAttempts,
		UnionCap:    UnionCapDefault,
		w:           w,
		h:           h,
		mines:       mineCount,
		rng:         rng,
		layout:      NewBitset(w * h),
		opened:      NewBitset(w * h),
		grid:        make([]int8, w*h),
	}
}

// Layout returns the current hidden layout.
func (g *Generator) Layout() Bitset {
	return g.layout
}

// SetLayout installs a specific hidden layout, replacing the current one.
func (g *Generator) SetLayout(b Bitset) {
	g.layout = b.Clone()
}

// Generate produces a solvable layout for a first click at (sx, sy). Random
// layouts are solved with the perturber attached; a layout the solver could
// finish only after p perturbations is re-solved from scratch until the
// perturbation count stops improving, at which point it is accepted as
// converged. After MaxAttempts fresh layouts the generator gives up, logs a
// warning, and returns one last random layout unvalidated.
func (g *Generator) Generate(sx, sy int) Result {
	g.safeX, g.safeY = sx, sy

	for attempt := 1; attempt <= g.MaxAttempts; attempt++ {
		g.randomLayout()
		ret := g.solveOnce(true)
		if ret < 0 {
			continue
		}
		if ret == 0 {
			return Result{Layout: g.layout.Clone(), Attempts: attempt, Validated: true}
		}

		// The solver finished but had to reshape the layout p times. The
		// layout it finished on is not the one it started on, so re-solve
		// from scratch; accept once the count stops shrinking. This
		// convergence test is a heuristic, not a proof of monotonicity.
		prev := ret
		for {
			r := g.solveOnce(true)
			if r == 0 {
				return Result{Layout: g.layout.Clone(), Attempts: attempt, Validated: true}
			}
			if r < 0 || r >= prev {
				return Result{Layout: g.layout.Clone(), Attempts: attempt, Perturbations: prev, Validated: true}
			}
			prev = r
		}
	}

	log.Printf("[Generator] %dx%d/%d: retry ceiling (%d) reached, returning unvalidated layout",
		g.w, g.h, g.mines, g.MaxAttempts)
	g.randomLayout()
	return Result{Layout: g.layout.Clone(), Attempts: g.MaxAttempts, Validated: false}
}

// RandomLayout places one random layout honoring only the safe window and
// returns it without any solver pass. Used when ensureSolvable is off and as
// the post-ceiling degradation path.
func (g *Generator) RandomLayout(sx, sy int) Bitset {
	g.safeX, g.safeY = sx, sy
	g.randomLayout()
	return g.layout.Clone()
}

// Validate re-solves the current layout from the first click with
// perturbation disabled, returning the solver verdict: 0 solved, -1 stalled.
// The layout is never modified.
func (g *Generator) Validate(sx, sy int) int {
	g.safeX, g.safeY = sx, sy
	return g.solveOnce(false)
}

// solveOnce resets the visible grid to all-UNKNOWN, opens the safe cell, and
// runs one solver session against the current layout.
func (g *Generator) solveOnce(withPerturb bool) int {
	for i := range g.grid {
		g.grid[i] = models.CellUnknown
	}
	g.opened.Reset()
	g.perturbsSinceOpen = 0

	var p solver.Perturber
	if withPerturb {
		p = g
	}
	s := solver.New(g.grid, g.w, g.h, g.mines, g, p)
	s.UnionCap = g.UnionCap
	s.OpenStart(g.safeX, g.safeY)
	return s.Run()
}

// randomLayout places the mine count uniformly at random outside the 3x3
// safe window.
func (g *Generator) randomLayout() {
	g.layout.Reset()
	placed := 0
	for placed < g.mines {
		i := g.rng.IntN(g.w * g.h)
		if g.layout.Get(i) || g.inSafeWindow(i%g.w, i/g.w) {
			continue
		}
		g.layout.Set(i)
		placed++
	}
}

func (g *Generator) inSafeWindow(x, y int) bool {
	dx, dy := x-g.safeX, y-g.safeY
	return dx >= -1 && dx <= 1 && dy >= -1 && dy <= 1
}

// Open implements solver.Oracle: it marks the cell opened, resets the
// perturbation abort counter, and returns the cell's true neighbor count.
func (g *Generator) Open(x, y int) int {
	g.opened.Set(y*g.w + x)
	g.perturbsSinceOpen = 0
	return g.CountAround(x, y)
}

// CountAround returns the number of mines in the 3x3 neighborhood of (x, y)
// in the hidden layout.
func (g *Generator) CountAround(x, y int) int {
	n := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := x+dx, y+dy
			if nx < 0 || ny < 0 || nx >= g.w || ny >= g.h {
				continue
			}
			if g.layout.Get(ny*g.w + nx) {
				n++
			}
		}
	}
	return n
}
