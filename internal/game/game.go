package game

import (
	"math/rand/v2"

	"github.com/clearfield/minesweeper-engine/internal/mines"
	"github.com/clearfield/minesweeper-engine/pkg/models"
)

// Listener receives the engine's synchronous notifications, one call per
// state change, delivered in registration order. Listeners must not call
// back into the Game from inside a notification.
type Listener interface {
	GameStarted()
	MinesGenerated()
	CellRevealed(x, y int, value int8)
	CellFlagged(x, y int, flagged bool)
	GameWon()
	GameLost(x, y int)
}

// Game is the user-facing minesweeper state machine: reveal, flag, chord,
// flood fill, and win/loss bookkeeping over a layout produced by the
// generator. Every action method returns false for out-of-range coordinates
// or actions on a finished game; no errors are surfaced to the host UI.
type Game struct {
	cfg       models.BoardConfig
	rng       *rand.Rand
	grid      []int8
	layout    mines.Bitset
	minesLaid bool
	validated bool
	state     models.GameState
	flags     int
	revealed  int
	listeners []Listener
}

// NewGame establishes a fresh session. The config is clamped into legal
// bounds; no layout exists until the first Reveal fixes the safe click.
func NewGame(cfg models.BoardConfig) *Game {
	cfg = cfg.Clamp()
	g := &Game{
		cfg:   cfg,
		state: models.StatePlaying,
	}
	g.rng = rand.New(rand.NewPCG(uint64(cfg.Seed), 0x9e3779b97f4a7c15))
	g.grid = make([]int8, cfg.Width*cfg.Height)
	for i := range g.grid {
		g.grid[i] = models.CellUnknown
	}
	g.layout = mines.NewBitset(cfg.Width * cfg.Height)
	return g
}

// AddListener registers a notification sink.
func (g *Game) AddListener(l Listener) {
	g.listeners = append(g.listeners, l)
}

// Config returns the clamped configuration the session runs with.
func (g *Game) Config() models.BoardConfig {
	return g.cfg
}

// Reset discards all progress and re-runs NewGame with the same parameters,
// keeping the registered listeners. The same seed replays the same layout
// for the same first click.
func (g *Game) Reset() {
	fresh := NewGame(g.cfg)
	fresh.listeners = g.listeners
	*g = *fresh
}

// Reveal opens a cell. The first call triggers layout generation with
// (x, y) as the safe click, then opens it; later calls open the cell,
// flood-filling from zero counts and ending the game on a mine.
func (g *Game) Reveal(x, y int) bool {
	if !g.inBounds(x, y) || g.state != models.StatePlaying {
		return false
	}
	i := g.idx(x, y)
	if g.grid[i] != models.CellUnknown {
		return false
	}

	if !g.minesLaid {
		g.emit(func(l Listener) { l.GameStarted() })
		g.generate(x, y)
	}

	if g.layout.Get(i) {
		g.lose(x, y)
		return true
	}

	g.floodReveal(x, y)
	g.checkWin()
	return true
}

// ToggleFlag cycles UNKNOWN and FLAGGED on a not-yet-opened cell.
func (g *Game) ToggleFlag(x, y int) bool {
	if !g.inBounds(x, y) || g.state != models.StatePlaying {
		return false
	}
	i := g.idx(x, y)
	switch g.grid[i] {
	case models.CellUnknown:
		g.grid[i] = models.CellFlagged
		g.flags++
		g.emit(func(l Listener) { l.CellFlagged(x, y, true) })
	case models.CellFlagged:
		g.grid[i] = models.CellUnknown
		g.flags--
		g.emit(func(l Listener) { l.CellFlagged(x, y, false) })
	default:
		return false
	}
	return true
}

// Chord opens every unflagged neighbor of a numeric cell whose flag count
// equals its number. A wrong flag makes a chord lethal, exactly like a
// direct reveal of the mine.
func (g *Game) Chord(x, y int) bool {
	if !g.inBounds(x, y) || g.state != models.StatePlaying {
		return false
	}
	v := g.grid[g.idx(x, y)]
	if v < 0 || v > 8 {
		return false
	}
	flagged := 0
	for _, n := range g.neighbors(x, y) {
		if g.grid[g.idx(n[0], n[1])] == models.CellFlagged {
			flagged++
		}
	}
	if flagged != int(v) {
		return false
	}
	for _, n := range g.neighbors(x, y) {
		nx, ny := n[0], n[1]
		if g.grid[g.idx(nx, ny)] != models.CellUnknown {
			continue
		}
		if g.layout.Get(g.idx(nx, ny)) {
			g.lose(nx, ny)
			return true
		}
		g.floodReveal(nx, ny)
	}
	g.checkWin()
	return true
}

// ── Queries ─────────────────────────────────────────────────────────

// GetCell returns the visible value of a cell, or CellUnknown out of range.
func (g *Game) GetCell(x, y int) int8 {
	if !g.inBounds(x, y) {
		return models.CellUnknown
	}
	return g.grid[g.idx(x, y)]
}

// IsMine reports whether the hidden layout holds a mine at (x, y).
func (g *Game) IsMine(x, y int) bool {
	return g.inBounds(x, y) && g.layout.Get(g.idx(x, y))
}

// GetFlagCount returns the number of flags currently placed.
func (g *Game) GetFlagCount() int {
	return g.flags
}

// GetRemainingMines returns the mine counter as a player sees it: total
// mines minus flags placed. Over-flagging drives it negative on purpose.
func (g *Game) GetRemainingMines() int {
	return g.cfg.Mines - g.flags
}

func (g *Game) IsRevealed(x, y int) bool {
	v := g.GetCell(x, y)
	return v >= 0 && v <= 8
}

func (g *Game) IsFlagged(x, y int) bool {
	return g.GetCell(x, y) == models.CellFlagged
}

func (g *Game) IsHidden(x, y int) bool {
	return g.GetCell(x, y) == models.CellUnknown
}

// State returns the session lifecycle phase.
func (g *Game) State() models.GameState {
	return g.state
}

// Validated reports whether the current layout passed solver validation.
// Always false before the first reveal; false afterwards only when the
// generator degraded past its retry ceiling or ensureSolvable was off.
func (g *Game) Validated() bool {
	return g.validated
}

// Snapshot renders the full visible state for the API layer.
func (g *Game) Snapshot() models.GameSnapshot {
	grid := make([][]int8, g.cfg.Height)
	for y := 0; y < g.cfg.Height; y++ {
		grid[y] = make([]int8, g.cfg.Width)
		copy(grid[y], g.grid[y*g.cfg.Width:(y+1)*g.cfg.Width])
	}
	return models.GameSnapshot{
		Width:          g.cfg.Width,
		Height:         g.cfg.Height,
		Mines:          g.cfg.Mines,
		Seed:           g.cfg.Seed,
		EnsureSolvable: g.cfg.EnsureSolvable,
		State:          g.state,
		Flags:          g.flags,
		RemainingMines: g.GetRemainingMines(),
		Revealed:       g.revealed,
		Validated:      g.validated,
		Grid:           grid,
	}
}

// ── Internals ───────────────────────────────────────────────────────

func (g *Game) generate(sx, sy int) {
	gen := mines.New(g.cfg.Width, g.cfg.Height, g.cfg.Mines, g.rng)
	if g.cfg.EnsureSolvable {
		res := gen.Generate(sx, sy)
		g.layout = res.Layout
		g.validated = res.Validated
	} else {
		g.layout = gen.RandomLayout(sx, sy)
		g.validated = false
	}
	g.minesLaid = true
	g.emit(func(l Listener) { l.MinesGenerated() })
}

// floodReveal opens a safe cell and, from zero counts, every reachable
// neighbor, BFS order.
func (g *Game) floodReveal(x, y int) {
	queue := [][2]int{{x, y}}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		i := g.idx(p[0], p[1])
		if g.grid[i] != models.CellUnknown {
			continue
		}
		count := g.countAround(p[0], p[1])
		g.grid[i] = int8(count)
		g.revealed++
		g.emit(func(l Listener) { l.CellRevealed(p[0], p[1], int8(count)) })
		if count == 0 {
			for _, n := range g.neighbors(p[0], p[1]) {
				if g.grid[g.idx(n[0], n[1])] == models.CellUnknown {
					queue = append(queue, n)
				}
			}
		}
	}
}

// lose reveals the board's end state: the hit mine, every other mine, and
// every wrong flag.
func (g *Game) lose(hitX, hitY int) {
	g.state = models.StateLost
	for y := 0; y < g.cfg.Height; y++ {
		for x := 0; x < g.cfg.Width; x++ {
			i := g.idx(x, y)
			mined := g.layout.Get(i)
			switch {
			case x == hitX && y == hitY:
				g.grid[i] = models.CellMineHit
			case mined && g.grid[i] != models.CellFlagged:
				g.grid[i] = models.CellMineRevealed
			case !mined && g.grid[i] == models.CellFlagged:
				g.grid[i] = models.CellWrongFlag
			}
		}
	}
	g.emit(func(l Listener) { l.GameLost(hitX, hitY) })
}

// checkWin flips the session to won once every non-mine cell is open,
// auto-flagging whatever mines the player left unmarked.
func (g *Game) checkWin() {
	if g.state != models.StatePlaying {
		return
	}
	if g.revealed != g.cfg.Width*g.cfg.Height-g.cfg.Mines {
		return
	}
	g.state = models.StateWon
	for y := 0; y < g.cfg.Height; y++ {
		for x := 0; x < g.cfg.Width; x++ {
			i := g.idx(x, y)
			if g.layout.Get(i) && g.grid[i] != models.CellFlagged {
				g.grid[i] = models.CellFlagged
				g.flags++
				g.emit(func(l Listener) { l.CellFlagged(x, y, true) })
			}
		}
	}
	g.emit(func(l Listener) { l.GameWon() })
}

func (g *Game) countAround(x, y int) int {
	n := 0
	for _, nb := range g.neighbors(x, y) {
		if g.layout.Get(g.idx(nb[0], nb[1])) {
			n++
		}
	}
	return n
}

func (g *Game) neighbors(x, y int) [][2]int {
	var out [][2]int
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if g.inBounds(nx, ny) {
				out = append(out, [2]int{nx, ny})
			}
		}
	}
	return out
}

func (g *Game) inBounds(x, y int) bool {
	return x >= 0 && x < g.cfg.Width && y >= 0 && y < g.cfg.Height
}

func (g *Game) idx(x, y int) int { return y*g.cfg.Width + x }

func (g *Game) emit(fn func(Listener)) {
	for _, l := range g.listeners {
		fn(l)
	}
}
