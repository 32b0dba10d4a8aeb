package scan

import (
	"context"
	"log"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/clearfield/minesweeper-engine/internal/db"
	"github.com/clearfield/minesweeper-engine/internal/mines"
)

// SeedSweeper walks a seed range and runs full board generation for every
// seed, recording how hard each layout fought back: attempts burned,
// perturbations needed, and whether the generator had to degrade to an
// unvalidated layout. This is how solvability regressions get caught before
// players do.
type SeedSweeper struct {
	dbStore   *db.PostgresStore
	alertFunc func(alert DegradationAlert) // Optional broadcast callback

	// Progress tracking (atomic for safe concurrent reads)
	currentSeed    atomic.Int64
	totalGenerated atomic.Int64
	totalDegraded  atomic.Int64
	totalPerturbed atomic.Int64
	isRunning      atomic.Bool
}

// SweepRequest describes one sweep job.
type SweepRequest struct {
	Width     int   `json:"width"`
	Height    int   `json:"height"`
	Mines     int   `json:"mines"`
	StartSeed int64 `json:"startSeed"`
	EndSeed   int64 `json:"endSeed"`
}

// DegradationAlert is emitted in real time whenever a seed exhausts the
// generation retry ceiling and ships an unvalidated layout.
type DegradationAlert struct {
	Type      string `json:"type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Mines     int    `json:"mines"`
	Seed      int64  `json:"seed"`
	Attempts  int    `json:"attempts"`
	Timestamp string `json:"timestamp"`
}

// SweepProgress represents the sweeper's current state for the API.
type SweepProgress struct {
	IsRunning      bool  `json:"isRunning"`
	CurrentSeed    int64 `json:"currentSeed"`
	TotalGenerated int64 `json:"totalGenerated"`
	TotalDegraded  int64 `json:"totalDegraded"`
	TotalPerturbed int64 `json:"totalPerturbed"`
}

func NewSeedSweeper(dbStore *db.PostgresStore, alertFunc func(DegradationAlert)) *SeedSweeper {
	return &SeedSweeper{
		dbStore:   dbStore,
		alertFunc: alertFunc,
	}
}

// GetProgress returns the current sweep progress (thread-safe).
func (s *SeedSweeper) GetProgress() SweepProgress {
	return SweepProgress{
		IsRunning:      s.isRunning.Load(),
		CurrentSeed:    s.currentSeed.Load(),
		TotalGenerated: s.totalGenerated.Load(),
		TotalDegraded:  s.totalDegraded.Load(),
		TotalPerturbed: s.totalPerturbed.Load(),
	}
}

// Run processes a seed range asynchronously, running solvable-board
// generation once per seed with the first click at the board center.
func (s *SeedSweeper) Run(ctx context.Context, req SweepRequest) {
	if s.isRunning.Load() {
		log.Println("[SeedSweeper] Sweep already in progress, ignoring duplicate request")
		return
	}

	s.isRunning.Store(true)
	s.totalGenerated.Store(0)
	s.totalDegraded.Store(0)
	s.totalPerturbed.Store(0)

	go func() {
		defer s.isRunning.Store(false)

		log.Printf("[SeedSweeper] Starting sweep: %dx%d/%d seeds %d → %d",
			req.Width, req.Height, req.Mines, req.StartSeed, req.EndSeed)

		sx, sy := req.Width/2, req.Height/2
		for seed := req.StartSeed; seed <= req.EndSeed; seed++ {
			select {
			case <-ctx.Done():
				log.Printf("[SeedSweeper] Sweep cancelled at seed %d", seed)
				return
			default:
			}

			s.currentSeed.Store(seed)
			s.sweepSeed(ctx, req, seed, sx, sy)

			done := s.totalGenerated.Load()
			if done%100 == 0 && done > 0 {
				log.Printf("[SeedSweeper] Progress: seed %d | %d generated | %d degraded | %d perturbed",
					seed, done, s.totalDegraded.Load(), s.totalPerturbed.Load())
			}
		}

		log.Printf("[SeedSweeper] Sweep complete: %d layouts generated, %d degraded, %d needed perturbation",
			s.totalGenerated.Load(), s.totalDegraded.Load(), s.totalPerturbed.Load())
	}()
}

func (s *SeedSweeper) sweepSeed(ctx context.Context, req SweepRequest, seed int64, sx, sy int) {
	rng := rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
	gen := mines.New(req.Width, req.Height, req.Mines, rng)
	res := gen.Generate(sx, sy)

	s.totalGenerated.Add(1)
	if res.Perturbations > 0 {
		s.totalPerturbed.Add(1)
	}

	if s.dbStore != nil {
		err := s.dbStore.SaveSweepStat(ctx, db.SweepStat{
			Width:         req.Width,
			Height:        req.Height,
			Mines:         req.Mines,
			Seed:          seed,
			Attempts:      res.Attempts,
			Perturbations: res.Perturbations,
			Validated:     res.Validated,
		})
		if err != nil {
			log.Printf("[SeedSweeper] DB persist error at seed %d: %v", seed, err)
		}
	}

	if !res.Validated {
		s.totalDegraded.Add(1)
		if s.alertFunc != nil {
			s.alertFunc(DegradationAlert{
				Type:      "generation_degraded",
				Width:     req.Width,
				Height:    req.Height,
				Mines:     req.Mines,
				Seed:      seed,
				Attempts:  res.Attempts,
				Timestamp: time.Now().Format(time.RFC3339),
			})
		}
	}
}
