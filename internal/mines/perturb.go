package mines

import (
	"github.com/clearfield/minesweeper-engine/internal/solver"
	"github.com/clearfield/minesweeper-engine/pkg/models"
)

// Perturb implements solver.Perturber. It edits the hidden layout so the
// stalled constraint store gains information: one randomly chosen constraint
// region is either emptied of mines, packed full of them, or partially
// swapped against outside cells, always preserving the total mine count and
// never touching the safe window. Visible numbers around every edited cell
// are rewritten so opened cells keep showing truthful counts.
//
// Returns nil when the session has gone max(W, H) perturbations without
// opening a single new cell — the generator must abandon the layout.
func (g *Generator) Perturb(st *solver.Store) []models.Change {
	g.perturbsSinceOpen++
	limit := g.w
	if g.h > limit {
		limit = g.h
	}
	if g.perturbsSinceOpen > limit {
		return nil
	}

	target, ok := st.PickRandom(g.rng)
	if !ok {
		return nil
	}

	cand := g.rankCandidates()

	// Capacity survey of the target region.
	var fullIn, emptyIn []int
	for bit := 0; bit < 9; bit++ {
		if target.Mask>>bit&1 == 0 {
			continue
		}
		ci := (target.Y+bit/3)*g.w + (target.X + bit%3)
		if g.layout.Get(ci) {
			fullIn = append(fullIn, ci)
		} else {
			emptyIn = append(emptyIn, ci)
		}
	}
	nfull, nempty := len(fullIn), len(emptyIn)

	// Walk the ranked candidates, partitioning into cells we could empty
	// (mines outside the region) and cells we could fill, until either side
	// reaches its target.
	var toEmpty, toFill []int
	for _, ci := range cand {
		if cellBitAt(target.X, target.Y, target.Mask, ci%g.w, ci/g.w) {
			continue
		}
		if g.layout.Get(ci) {
			if len(toEmpty) < nempty {
				toEmpty = append(toEmpty, ci)
			}
		} else {
			if len(toFill) < nfull {
				toFill = append(toFill, ci)
			}
		}
		if (nfull > 0 && len(toFill) == nfull) || (nempty > 0 && len(toEmpty) == nempty) {
			break
		}
	}

	var changes []models.Change
	switch {
	case nfull > 0 && len(toFill) == nfull:
		// Move every mine out of the region: the constraint becomes all-safe.
		for _, ci := range toFill {
			changes = g.addMine(ci, changes)
		}
		for _, ci := range fullIn {
			changes = g.removeMine(ci, changes)
		}
	case nempty > 0 && len(toEmpty) == nempty:
		// Pack the region solid: the constraint becomes all-mines.
		for _, ci := range toEmpty {
			changes = g.removeMine(ci, changes)
		}
		for _, ci := range emptyIn {
			changes = g.addMine(ci, changes)
		}
	default:
		// Partial swap: move as many outside mines into the region as it
		// has empty cells for. Keeps dense boards moving when neither full
		// rewrite fits.
		k := len(toEmpty)
		if len(emptyIn) < k {
			k = len(emptyIn)
		}
		if k == 0 {
			return nil
		}
		g.rng.Shuffle(len(emptyIn), func(i, j int) {
			emptyIn[i], emptyIn[j] = emptyIn[j], emptyIn[i]
		})
		for i := 0; i < k; i++ {
			changes = g.removeMine(toEmpty[i], changes)
			changes = g.addMine(emptyIn[i], changes)
		}
	}

	g.refreshVisible(changes)
	return changes
}

// rankCandidates triages every cell outside the safe window: unknown cells
// bordering an opened cell first, isolated unknown cells second, opened
// cells as a last resort. Flagged cells are proven mines the solver has
// committed to and are never candidates. Each class is shuffled uniformly.
func (g *Generator) rankCandidates() []int {
	var border, isolated, opened []int
	for i, v := range g.grid {
		x, y := i%g.w, i/g.w
		if g.inSafeWindow(x, y) {
			continue
		}
		switch {
		case v == models.CellUnknown && g.bordersOpened(x, y):
			border = append(border, i)
		case v == models.CellUnknown:
			isolated = append(isolated, i)
		case v >= 0:
			opened = append(opened, i)
		}
	}
	for _, class := range [][]int{border, isolated, opened} {
		g.rng.Shuffle(len(class), func(i, j int) {
			class[i], class[j] = class[j], class[i]
		})
	}
	out := make([]int, 0, len(border)+len(isolated)+len(opened))
	out = append(out, border...)
	out = append(out, isolated...)
	return append(out, opened...)
}

func (g *Generator) bordersOpened(x, y int) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if nx < 0 || ny < 0 || nx >= g.w || ny >= g.h {
				continue
			}
			if g.opened.Get(ny*g.w + nx) {
				return true
			}
		}
	}
	return false
}

func (g *Generator) addMine(ci int, changes []models.Change) []models.Change {
	g.layout.Set(ci)
	return append(changes, models.Change{X: ci % g.w, Y: ci / g.w, Delta: 1})
}

func (g *Generator) removeMine(ci int, changes []models.Change) []models.Change {
	g.layout.Clear(ci)
	return append(changes, models.Change{X: ci % g.w, Y: ci / g.w, Delta: -1})
}

// refreshVisible keeps opened cells truthful after a layout edit: every
// visible numeric neighbor of a changed cell shifts by the change's delta,
// and a changed cell that was itself visible is rewritten — flagged if it
// became a mine, recounted from the final layout if it became empty.
func (g *Generator) refreshVisible(changes []models.Change) {
	for _, ch := range changes {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nx, ny := ch.X+dx, ch.Y+dy
				if nx < 0 || ny < 0 || nx >= g.w || ny >= g.h {
					continue
				}
				ni := ny*g.w + nx
				if g.grid[ni] >= 0 {
					g.grid[ni] += int8(ch.Delta)
				}
			}
		}
	}
	for _, ch := range changes {
		ci := ch.Y*g.w + ch.X
		if g.grid[ci] < 0 {
			continue
		}
		if ch.Delta > 0 {
			g.grid[ci] = models.CellFlagged
		} else {
			g.grid[ci] = int8(g.CountAround(ch.X, ch.Y))
		}
	}
}

// cellBitAt reports whether the mask of a window at (x, y) covers the
// absolute cell (cx, cy). Mirror of the solver's internal helper; kept local
// to avoid exporting it from the solver package.
func cellBitAt(x, y int, mask uint16, cx, cy int) bool {
	if cx < x || cx >= x+3 || cy < y || cy >= y+3 {
		return false
	}
	return mask>>((cy-y)*3+(cx-x))&1 == 1
}
