package api

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clearfield/minesweeper-engine/internal/db"
	"github.com/clearfield/minesweeper-engine/internal/game"
	"github.com/clearfield/minesweeper-engine/internal/scan"
	"github.com/clearfield/minesweeper-engine/pkg/models"
)

// maxSweepSeeds caps the seed range of a single sweep job to prevent
// runaway resource exhaustion from unconstrained requests.
const maxSweepSeeds int64 = 10_000

// cryptoRandSeed returns a cryptographically random layout seed for requests
// that do not pin one. Replays stay possible because the chosen seed is
// echoed back in every snapshot.
func cryptoRandSeed() int64 {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// Extremely unlikely — fall back to the wall clock.
		return time.Now().UnixNano()
	}
	return int64(binary.BigEndian.Uint64(b) >> 1)
}

type APIHandler struct {
	dbStore  *db.PostgresStore
	wsHub    *Hub
	registry *Registry
	sweeper  *scan.SeedSweeper
}

func SetupRouter(dbStore *db.PostgresStore, wsHub *Hub, registry *Registry, sweeper *scan.SeedSweeper) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var
	// Production: ALLOWED_ORIGINS=https://boards.clearfield.dev
	// Development: ALLOWED_ORIGINS=http://localhost:3000 (or leave empty for *)
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		dbStore:  dbStore,
		wsHub:    wsHub,
		registry: registry,
		sweeper:  sweeper,
	}

	// ── Public endpoints (no auth) ─────────────────────────────
	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
		pub.GET("/games/:id/stream", wsHub.SubscribeGame)
		pub.GET("/results", handler.handleGetResults)
		pub.GET("/sweep/progress", handler.handleSweepProgress)
	}

	// Protected routes share one cost-weighted bucket per IP: 600 tokens a
	// minute, burst 100. Queries, actions and resets draw CostQuery (1 token),
	// including the first reveal that runs a session's layout generation;
	// session creation and sweeps draw CostGenerate.
	rl := NewRateLimiter(600, 100)

	// ── Read scope: snapshots and settings, open to API_READ_TOKEN ──
	read := r.Group("/api/v1")
	read.Use(RequireAuth(ScopeRead), rl.Middleware(CostQuery))
	{
		read.GET("/games/:id", handler.handleGetGame)
		read.GET("/settings", handler.handleGetSettings)
	}

	// ── Mutate scope, cheap: actions on an existing board ──
	act := r.Group("/api/v1")
	act.Use(RequireAuth(ScopeMutate), rl.Middleware(CostQuery))
	{
		act.POST("/games/:id/reveal", handler.handleAction(actReveal))
		act.POST("/games/:id/flag", handler.handleAction(actFlag))
		act.POST("/games/:id/chord", handler.handleAction(actChord))
		act.POST("/games/:id/reset", handler.handleReset)
		act.PUT("/settings", handler.handlePutSettings)
	}

	// ── Mutate scope, generation-priced: session creation and sweeps ──
	gen := r.Group("/api/v1")
	gen.Use(RequireAuth(ScopeMutate), rl.Middleware(CostGenerate))
	{
		gen.POST("/games", handler.handleCreateGame)
		gen.POST("/sweep", handler.handleStartSweep)
	}

	// Serve static dashboard
	r.Static("/dashboard", "./public")

	return r
}

type createGameRequest struct {
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Mines          int    `json:"mines"`
	Seed           *int64 `json:"seed"`
	EnsureSolvable bool   `json:"ensureSolvable"`
}

func (h *APIHandler) handleCreateGame(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	cfg := models.BoardConfig{
		Width:          req.Width,
		Height:         req.Height,
		Mines:          req.Mines,
		EnsureSolvable: req.EnsureSolvable,
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	} else {
		cfg.Seed = cryptoRandSeed()
	}

	sess, err := h.registry.Create(cfg, h.wsHub)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       sess.ID,
		"snapshot": h.snapshot(sess),
	})
}

func (h *APIHandler) handleGetGame(c *gin.Context) {
	sess, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown game id"})
		return
	}
	c.JSON(http.StatusOK, h.snapshot(sess))
}

type actionKind int

const (
	actReveal actionKind = iota
	actFlag
	actChord
)

type actionRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// handleAction routes reveal/flag/chord through the session lock. Invalid
// coordinates and actions on finished games surface as ok=false, never as
// HTTP errors — the engine's no-op contract.
func (h *APIHandler) handleAction(kind actionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := h.registry.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown game id"})
			return
		}
		var req actionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. Expected: {x, y}"})
			return
		}

		var applied bool
		sess.Do(func(g *game.Game) {
			switch kind {
			case actReveal:
				applied = g.Reveal(req.X, req.Y)
			case actFlag:
				applied = g.ToggleFlag(req.X, req.Y)
			case actChord:
				applied = g.Chord(req.X, req.Y)
			}
		})

		snap := h.snapshot(sess)
		if snap.State != models.StatePlaying {
			h.persistResult(sess, snap)
		}
		c.JSON(http.StatusOK, gin.H{"ok": applied, "snapshot": snap})
	}
}

func (h *APIHandler) handleReset(c *gin.Context) {
	sess, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown game id"})
		return
	}
	sess.Do(func(g *game.Game) { g.Reset() })
	c.JSON(http.StatusOK, h.snapshot(sess))
}

func (h *APIHandler) snapshot(sess *Session) models.GameSnapshot {
	var snap models.GameSnapshot
	sess.Do(func(g *game.Game) { snap = g.Snapshot() })
	snap.ID = sess.ID
	return snap
}

func (h *APIHandler) persistResult(sess *Session, snap models.GameSnapshot) {
	if h.dbStore == nil {
		return
	}
	err := h.dbStore.SaveGameResult(context.Background(), db.GameResult{
		GameID:        sess.ID,
		Width:         snap.Width,
		Height:        snap.Height,
		Mines:         snap.Mines,
		Seed:          snap.Seed,
		Outcome:       string(snap.State),
		Validated:     snap.Validated,
		Revealed:      snap.Revealed,
		FlagsPlaced:   snap.Flags,
		DurationMilli: time.Since(sess.Created).Milliseconds(),
	})
	if err != nil {
		log.Printf("Failed to save game result to DB: %v", err)
	}
}

// handleHealth returns engine status and capabilities for service discovery
func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"engine": "Clearfield Minesweeper Engine v1.0",
		"capabilities": gin.H{
			"solvable_generation": true,
			"perturbation":        true,
			"disjoint_union":      true,
			"seed_sweeps":         true,
		},
		"liveSessions": h.registry.Len(),
		"dbConnected":  h.dbStore != nil,
	})
}

// handleGetResults returns finished sessions from the database, paginated.
func (h *APIHandler) handleGetResults(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	results, totalCount, err := h.dbStore.GetRecentResults(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch results", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       results,
		"totalCount": totalCount,
		"page":       page,
		"limit":      limit,
	})
}

// handleStartSweep launches a solvability seed sweep in the background.
// POST /api/v1/sweep { "width": 30, "height": 16, "mines": 99, "startSeed": 0, "endSeed": 99 }
func (h *APIHandler) handleStartSweep(c *gin.Context) {
	if h.sweeper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Seed sweeper not initialized"})
		return
	}

	var req scan.SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. Expected: {width, height, mines, startSeed, endSeed}"})
		return
	}

	if req.StartSeed > req.EndSeed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid seed range"})
		return
	}
	// Cap the range to prevent unbounded background resource consumption.
	if req.EndSeed-req.StartSeed+1 > maxSweepSeeds {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "Seed range too large",
			"maxSeeds": maxSweepSeeds,
			"hint":     "Split into multiple smaller requests",
		})
		return
	}

	// Geometry runs through the same clamp as game creation.
	cfg := models.BoardConfig{Width: req.Width, Height: req.Height, Mines: req.Mines}.Clamp()
	req.Width, req.Height, req.Mines = cfg.Width, cfg.Height, cfg.Mines

	h.sweeper.Run(context.Background(), req)

	c.JSON(http.StatusOK, gin.H{
		"status":     "sweep_started",
		"width":      req.Width,
		"height":     req.Height,
		"mines":      req.Mines,
		"startSeed":  req.StartSeed,
		"endSeed":    req.EndSeed,
		"totalSeeds": req.EndSeed - req.StartSeed + 1,
	})
}

// handleSweepProgress returns the current progress of the seed sweeper.
func (h *APIHandler) handleSweepProgress(c *gin.Context) {
	if h.sweeper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Seed sweeper not initialized"})
		return
	}
	c.JSON(http.StatusOK, h.sweeper.GetProgress())
}

func (h *APIHandler) handleGetSettings(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}
	settings, err := h.dbStore.LoadSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"settings":     settings,
		"defaultBoard": db.DefaultBoardSetting(settings),
	})
}

func (h *APIHandler) handlePutSettings(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	for k, v := range req {
		if err := h.dbStore.SaveSetting(c.Request.Context(), k, v); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save setting", "details": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"saved": len(req)})
}

// BroadcastDegradationAlert sends a sweep degradation alert via the
// WebSocket hub. Wired as the alertFunc callback for the SeedSweeper.
func BroadcastDegradationAlert(wsHub *Hub) func(scan.DegradationAlert) {
	return func(alert scan.DegradationAlert) {
		alertBytes, _ := json.Marshal(alert)
		wsHub.Broadcast(alertBytes)
		log.Printf("[ALERT] Generation degraded: %dx%d/%d seed %d gave up after %d attempts",
			alert.Width, alert.Height, alert.Mines, alert.Seed, alert.Attempts)
	}
}
