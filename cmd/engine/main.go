package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/clearfield/minesweeper-engine/internal/api"
	"github.com/clearfield/minesweeper-engine/internal/db"
	"github.com/clearfield/minesweeper-engine/internal/mines"
	"github.com/clearfield/minesweeper-engine/internal/scan"
)

func main() {
	log.Println("Starting Clearfield Minesweeper Engine (guaranteed-solvable board service)...")

	// ─── Environment Variables ──────────────────────────────────────────
	// DATABASE_URL is optional: without it the engine runs fully in-memory
	// and skips result/sweep/settings persistence. Use a .env file for
	// local development: cp .env.example .env && edit .env
	// ────────────────────────────────────────────────────────────────────

	var dbConn *db.PostgresStore
	if dbUrl := os.Getenv("DATABASE_URL"); dbUrl != "" {
		conn, err := db.Connect(dbUrl)
		if err != nil {
			log.Printf("Warning: Failed to connect to PostgreSQL, continuing without persistence. Error: %v", err)
		} else {
			dbConn = conn
			defer dbConn.Close()
			if err := dbConn.InitSchema(); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
		}
	} else {
		log.Println("DATABASE_URL not set — engine running without persistence")
	}

	// Setup WebSocket Hub
	wsHub := api.NewHub()
	go wsHub.Run()

	// Session registry with an idle-session janitor
	registry := api.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go registry.Janitor(ctx, 30*time.Minute)

	// Seed sweeper with real-time WebSocket degradation alerts
	sweeper := scan.NewSeedSweeper(dbConn, api.BroadcastDegradationAlert(wsHub))

	// Solver tunables
	if capStr := os.Getenv("SOLVER_UNION_CAP"); capStr != "" {
		if v, err := strconv.Atoi(capStr); err == nil && v > 0 {
			mines.UnionCapDefault = v
			log.Printf("Disjoint-union closure cap overridden: %d", v)
		}
	}

	// Setup the Gin Router
	r := api.SetupRouter(dbConn, wsHub, registry, sweeper)

	port := getEnvOrDefault("PORT", "5341")

	// Start the server
	log.Printf("Engine running on :%s\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
