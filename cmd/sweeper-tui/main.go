package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gdamore/tcell/v2"

	"github.com/clearfield/minesweeper-engine/internal/game"
	"github.com/clearfield/minesweeper-engine/pkg/models"
)

// Terminal client for the engine: every board it deals is guaranteed
// solvable from the first click. Arrows or hjkl move, space/enter reveals,
// f flags, c chords, r resets, q quits.

var countColors = map[int8]tcell.Color{
	1: tcell.ColorBlue,
	2: tcell.ColorGreen,
	3: tcell.ColorRed,
	4: tcell.ColorNavy,
	5: tcell.ColorMaroon,
	6: tcell.ColorTeal,
	7: tcell.ColorBlack,
	8: tcell.ColorGray,
}

type ui struct {
	screen tcell.Screen
	game   *game.Game
	curX   int
	curY   int
	status string
}

// The ui is its own notification listener: lifecycle events (start,
// generation, win, loss) set the status line; cell events are ignored
// because the board itself is redrawn wholesale each frame.
func (u *ui) GameStarted()    { u.status = "Generating solvable board..." }
func (u *ui) MinesGenerated() { u.status = "Board ready — no guessing required" }
func (u *ui) CellRevealed(x, y int, value int8) {}
func (u *ui) CellFlagged(x, y int, flagged bool) {}
func (u *ui) GameWon()        { u.status = "Cleared! Press r for another board" }
func (u *ui) GameLost(x, y int) {
	u.status = fmt.Sprintf("Boom at (%d,%d). Press r to retry", x, y)
}

func main() {
	width := flag.Int("width", 9, "board width")
	height := flag.Int("height", 9, "board height")
	minesN := flag.Int("mines", 10, "mine count")
	seed := flag.Int64("seed", 42, "layout seed")
	unsafe := flag.Bool("unsafe", false, "skip solvability validation")
	flag.Parse()

	cfg := models.BoardConfig{
		Width:          *width,
		Height:         *height,
		Mines:          *minesN,
		Seed:           *seed,
		EnsureSolvable: !*unsafe,
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "screen init failed: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "screen init failed: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()

	u := &ui{
		screen: screen,
		status: "Reveal any cell to start",
	}
	u.game = game.NewGame(cfg)
	u.game.AddListener(u)
	cfg = u.game.Config()
	u.curX, u.curY = cfg.Width/2, cfg.Height/2

	u.draw()
	for {
		switch ev := screen.PollEvent().(type) {
		case *tcell.EventResize:
			screen.Sync()
		case *tcell.EventKey:
			if !u.handleKey(ev) {
				return
			}
		}
		u.draw()
	}
}

// handleKey returns false to quit.
func (u *ui) handleKey(ev *tcell.EventKey) bool {
	cfg := u.game.Config()
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyUp:
		u.move(0, -1, cfg)
	case tcell.KeyDown:
		u.move(0, 1, cfg)
	case tcell.KeyLeft:
		u.move(-1, 0, cfg)
	case tcell.KeyRight:
		u.move(1, 0, cfg)
	case tcell.KeyEnter:
		u.game.Reveal(u.curX, u.curY)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return false
		case 'h':
			u.move(-1, 0, cfg)
		case 'j':
			u.move(0, 1, cfg)
		case 'k':
			u.move(0, -1, cfg)
		case 'l':
			u.move(1, 0, cfg)
		case ' ':
			u.game.Reveal(u.curX, u.curY)
		case 'f':
			u.game.ToggleFlag(u.curX, u.curY)
		case 'c':
			u.game.Chord(u.curX, u.curY)
		case 'r':
			u.game.Reset()
			u.status = "Reveal any cell to start"
		}
	}
	return true
}

func (u *ui) move(dx, dy int, cfg models.BoardConfig) {
	nx, ny := u.curX+dx, u.curY+dy
	if nx >= 0 && nx < cfg.Width && ny >= 0 && ny < cfg.Height {
		u.curX, u.curY = nx, ny
	}
}

func (u *ui) draw() {
	cfg := u.game.Config()
	u.screen.Clear()

	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			r, style := cellGlyph(u.game.GetCell(x, y))
			if x == u.curX && y == u.curY {
				style = style.Reverse(true)
			}
			// Two columns per cell keep the board roughly square.
			u.screen.SetContent(x*2, y, r, nil, style)
			u.screen.SetContent(x*2+1, y, ' ', nil, tcell.StyleDefault)
		}
	}

	counter := fmt.Sprintf("Mines left: %d   %s", u.game.GetRemainingMines(), u.status)
	for i, r := range counter {
		u.screen.SetContent(i, cfg.Height+1, r, nil, tcell.StyleDefault)
	}
	help := "arrows/hjkl move · space reveal · f flag · c chord · r reset · q quit"
	for i, r := range help {
		u.screen.SetContent(i, cfg.Height+2, r, nil, tcell.StyleDefault.Dim(true))
	}
	u.screen.Show()
}

func cellGlyph(v int8) (rune, tcell.Style) {
	switch {
	case v == models.CellUnknown:
		return '·', tcell.StyleDefault.Foreground(tcell.ColorGray)
	case v == models.CellFlagged:
		return '⚑', tcell.StyleDefault.Foreground(tcell.ColorYellow)
	case v == models.CellMineRevealed:
		return '*', tcell.StyleDefault.Foreground(tcell.ColorRed)
	case v == models.CellMineHit:
		return '*', tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorRed)
	case v == models.CellWrongFlag:
		return 'x', tcell.StyleDefault.Foreground(tcell.ColorRed)
	case v == 0:
		return ' ', tcell.StyleDefault
	default:
		return rune('0' + v), tcell.StyleDefault.Foreground(countColors[v])
	}
}
