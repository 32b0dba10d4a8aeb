package game

import (
	"testing"

	"github.com/clearfield/minesweeper-engine/pkg/models"
)

// newGameWithLayout builds a session with mines pinned at specific cells,
// bypassing generation. Geometry must already be legal.
func newGameWithLayout(w, h int, mineCells [][2]int) *Game {
	g := NewGame(models.BoardConfig{Width: w, Height: h, Mines: len(mineCells), Seed: 1})
	g.cfg.Mines = len(mineCells)
	g.layout.Reset()
	for _, c := range mineCells {
		g.layout.Set(c[1]*w + c[0])
	}
	g.minesLaid = true
	return g
}

// recorder captures notifications in delivery order.
type recorder struct {
	events []string
}

func (r *recorder) GameStarted()    { r.events = append(r.events, "started") }
func (r *recorder) MinesGenerated() { r.events = append(r.events, "generated") }
func (r *recorder) CellRevealed(x, y int, value int8) {
	r.events = append(r.events, "revealed")
}
func (r *recorder) CellFlagged(x, y int, flagged bool) {
	if flagged {
		r.events = append(r.events, "flagged")
	} else {
		r.events = append(r.events, "unflagged")
	}
}
func (r *recorder) GameWon()          { r.events = append(r.events, "won") }
func (r *recorder) GameLost(x, y int) { r.events = append(r.events, "lost") }

func TestClampDegenerate(t *testing.T) {
	// A 3x3 board has no legal mine cell outside the safe window: the
	// count collapses to zero and the first click clears the board.
	g := NewGame(models.BoardConfig{Width: 3, Height: 3, Mines: 1, Seed: 7, EnsureSolvable: true})
	if g.Config().Mines != 0 {
		t.Fatalf("3x3/1 clamped to %d mines, want 0", g.Config().Mines)
	}
	if !g.Reveal(0, 0) {
		t.Fatalf("First reveal rejected")
	}
	if g.State() != models.StateWon {
		t.Errorf("Mine-free board should win on first reveal, state = %s", g.State())
	}
}

func TestClampGeometry(t *testing.T) {
	tests := []struct {
		name                string
		w, h, n             int
		wantW, wantH, wantN int
	}{
		{"Tiny geometry", 1, 1, 5, 3, 3, 0},
		{"Negative mines", 9, 9, -3, 9, 9, 1},
		{"Too many mines", 9, 9, 500, 9, 9, 72},
		{"Legal passthrough", 30, 16, 99, 30, 16, 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := models.BoardConfig{Width: tt.w, Height: tt.h, Mines: tt.n}.Clamp()
			if cfg.Width != tt.wantW || cfg.Height != tt.wantH || cfg.Mines != tt.wantN {
				t.Errorf("Clamp() = %dx%d/%d, want %dx%d/%d",
					cfg.Width, cfg.Height, cfg.Mines, tt.wantW, tt.wantH, tt.wantN)
			}
		})
	}
}

func TestFloodFill(t *testing.T) {
	// Single far-corner mine: revealing the opposite corner floods all 15
	// safe cells of a 4x4 at once.
	g := newGameWithLayout(4, 4, [][2]int{{3, 3}})
	if !g.Reveal(0, 0) {
		t.Fatalf("Reveal rejected")
	}
	if g.revealed != 15 {
		t.Errorf("Flood revealed %d cells, want 15", g.revealed)
	}
	if !g.IsHidden(3, 3) && !g.IsFlagged(3, 3) {
		t.Errorf("Mine cell must not be opened by the flood")
	}
}

func TestFlagRoundTrip(t *testing.T) {
	g := newGameWithLayout(4, 4, [][2]int{{3, 3}})
	before := make([]int8, len(g.grid))
	copy(before, g.grid)

	if !g.ToggleFlag(2, 2) || !g.ToggleFlag(2, 2) {
		t.Fatalf("Flag toggles rejected")
	}
	for i := range g.grid {
		if g.grid[i] != before[i] {
			t.Fatalf("Flag → unflag is not an identity at cell %d", i)
		}
	}
	if g.GetFlagCount() != 0 {
		t.Errorf("Flag count = %d after round trip, want 0", g.GetFlagCount())
	}
}

func TestRevealIdempotent(t *testing.T) {
	g := newGameWithLayout(4, 4, [][2]int{{3, 3}})
	g.Reveal(0, 0)
	revealed := g.revealed
	if g.Reveal(0, 0) {
		t.Errorf("Re-revealing an opened cell must be a no-op returning false")
	}
	if g.revealed != revealed {
		t.Errorf("Re-reveal changed the board")
	}
}

func TestRevealFlaggedCellIsNoop(t *testing.T) {
	g := newGameWithLayout(4, 4, [][2]int{{3, 3}})
	g.ToggleFlag(3, 3)
	if g.Reveal(3, 3) {
		t.Errorf("Revealing a flagged cell must be rejected")
	}
	if g.State() != models.StatePlaying {
		t.Errorf("Flag must shield the mine")
	}
}

func TestOutOfRangeActions(t *testing.T) {
	g := newGameWithLayout(4, 4, [][2]int{{3, 3}})
	if g.Reveal(-1, 0) || g.Reveal(0, 4) || g.ToggleFlag(7, 7) || g.Chord(4, 0) {
		t.Errorf("Out-of-range actions must return false")
	}
}

func TestChordOpensNeighbors(t *testing.T) {
	// Mines flank (1, 0): once it shows 2 and both mines carry flags, the
	// chord must open every other unknown neighbor.
	g := newGameWithLayout(4, 4, [][2]int{{0, 0}, {2, 0}})
	if !g.Reveal(1, 0) {
		t.Fatalf("Reveal rejected")
	}
	if got := g.GetCell(1, 0); got != 2 {
		t.Fatalf("Cell (1,0) shows %d, want 2", got)
	}

	// Chord before the flags are down: no-op.
	if g.Chord(1, 0) {
		t.Errorf("Chord with wrong flag count must be rejected")
	}

	g.ToggleFlag(0, 0)
	g.ToggleFlag(2, 0)
	if !g.Chord(1, 0) {
		t.Fatalf("Chord rejected")
	}
	for _, c := range [][2]int{{0, 1}, {1, 1}, {2, 1}} {
		if !g.IsRevealed(c[0], c[1]) {
			t.Errorf("Chord left neighbor %v unopened", c)
		}
	}
	if g.State() != models.StatePlaying {
		t.Errorf("Correct chord must not end the game, state = %s", g.State())
	}
}

func TestChordOnWrongFlagLoses(t *testing.T) {
	g := newGameWithLayout(4, 4, [][2]int{{0, 0}, {2, 0}})
	g.Reveal(1, 0) // shows 2
	g.ToggleFlag(0, 0)
	g.ToggleFlag(1, 1) // wrong flag
	if !g.Chord(1, 0) {
		t.Fatalf("Chord rejected")
	}
	if g.State() != models.StateLost {
		t.Errorf("Chord through a wrong flag must lose, state = %s", g.State())
	}
}

func TestWinAutoFlagsAndNotifies(t *testing.T) {
	// One mine in the far corner of a 4x4: flooding from (0,0) clears all
	// 15 safe cells, the engine auto-flags the mine and announces the win.
	g := newGameWithLayout(4, 4, [][2]int{{3, 3}})
	rec := &recorder{}
	g.AddListener(rec)

	g.Reveal(0, 0)
	if g.State() != models.StateWon {
		t.Fatalf("State = %s, want won", g.State())
	}
	if !g.IsFlagged(3, 3) {
		t.Errorf("Winning must auto-flag the remaining mine")
	}

	sawFlag, sawWin := false, false
	for _, ev := range rec.events {
		switch ev {
		case "flagged":
			sawFlag = true
			if sawWin {
				t.Errorf("Auto-flag notification arrived after the win notification")
			}
		case "won":
			sawWin = true
		}
	}
	if !sawFlag || !sawWin {
		t.Errorf("Missing notifications, got %v", rec.events)
	}
}

func TestLossRevealsBoard(t *testing.T) {
	g := newGameWithLayout(4, 4, [][2]int{{0, 0}, {3, 3}})
	g.ToggleFlag(1, 1) // wrong flag
	rec := &recorder{}
	g.AddListener(rec)

	if !g.Reveal(0, 0) {
		t.Fatalf("Reveal rejected")
	}
	if g.State() != models.StateLost {
		t.Fatalf("State = %s, want lost", g.State())
	}
	if g.GetCell(0, 0) != models.CellMineHit {
		t.Errorf("Hit cell shows %d, want MINE_HIT", g.GetCell(0, 0))
	}
	if g.GetCell(3, 3) != models.CellMineRevealed {
		t.Errorf("Other mine shows %d, want MINE_REVEALED", g.GetCell(3, 3))
	}
	if g.GetCell(1, 1) != models.CellWrongFlag {
		t.Errorf("Wrong flag shows %d, want WRONG_FLAG", g.GetCell(1, 1))
	}

	// Terminated game rejects every further action.
	if g.Reveal(2, 2) || g.ToggleFlag(2, 2) || g.Chord(2, 2) {
		t.Errorf("Actions on a lost game must be no-ops")
	}
}

func TestRemainingMinesCounter(t *testing.T) {
	g := newGameWithLayout(4, 4, [][2]int{{3, 3}, {3, 2}})
	if g.GetRemainingMines() != 2 {
		t.Fatalf("Remaining = %d, want 2", g.GetRemainingMines())
	}
	g.ToggleFlag(0, 0)
	g.ToggleFlag(0, 1)
	g.ToggleFlag(0, 2)
	if g.GetRemainingMines() != -1 {
		t.Errorf("Over-flagging must drive the counter negative, got %d", g.GetRemainingMines())
	}
}

func TestGenerationDeterministicReplay(t *testing.T) {
	cfg := models.BoardConfig{Width: 9, Height: 9, Mines: 10, Seed: 42, EnsureSolvable: true}

	a := NewGame(cfg)
	a.Reveal(4, 4)
	b := NewGame(cfg)
	b.Reveal(4, 4)

	for i := range a.layout {
		if a.layout[i] != b.layout[i] {
			t.Fatalf("Identical config produced different layouts")
		}
	}
	for i := range a.grid {
		if a.grid[i] != b.grid[i] {
			t.Fatalf("Identical config produced different visible grids")
		}
	}
}

func TestResetReplaysSameLayout(t *testing.T) {
	cfg := models.BoardConfig{Width: 9, Height: 9, Mines: 10, Seed: 7, EnsureSolvable: true}
	g := NewGame(cfg)
	g.Reveal(4, 4)
	first := g.layout.Clone()

	g.Reset()
	if g.State() != models.StatePlaying || g.minesLaid {
		t.Fatalf("Reset did not clear the session")
	}
	g.Reveal(4, 4)
	for i := range first {
		if g.layout[i] != first[i] {
			t.Fatalf("Reset replay diverged from the original layout")
		}
	}
}

func TestSolvableGenerationInvariants(t *testing.T) {
	cfg := models.BoardConfig{Width: 9, Height: 9, Mines: 10, Seed: 42, EnsureSolvable: true}
	g := NewGame(cfg)
	rec := &recorder{}
	g.AddListener(rec)
	g.Reveal(4, 4)

	if !g.Validated() {
		t.Errorf("Beginner generation should validate")
	}
	if len(rec.events) < 2 || rec.events[0] != "started" || rec.events[1] != "generated" {
		t.Errorf("Expected started then generated first, got %v", rec.events[:2])
	}

	// Every opened number is truthful against the hidden layout.
	for y := 0; y < 9; y++ {
		for x := 0; x < 9; x++ {
			v := g.GetCell(x, y)
			if v < 0 || v > 8 {
				continue
			}
			count := 0
			for _, n := range g.neighbors(x, y) {
				if g.IsMine(n[0], n[1]) {
					count++
				}
			}
			if int(v) != count {
				t.Errorf("Cell (%d,%d) shows %d, true count %d", x, y, v, count)
			}
		}
	}
}
