package api

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clearfield/minesweeper-engine/internal/game"
	"github.com/clearfield/minesweeper-engine/pkg/models"
)

// maxSessions caps live sessions to prevent unbounded memory growth from
// clients that create games and walk away.
const maxSessions = 4096

// Session is one live game keyed by uuid. The engine is single-threaded and
// non-reentrant, so every engine call goes through the session mutex.
type Session struct {
	ID      string
	Game    *game.Game
	Created time.Time

	mu          sync.Mutex
	lastTouched time.Time
}

// Do runs fn with the session locked and refreshes the idle timer.
func (s *Session) Do(fn func(g *game.Game)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = time.Now()
	fn(s.Game)
}

// Registry maps session ids to live games and expires the idle ones.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create builds a new session around a clamped config, wiring the hub in as
// the notification sink.
func (r *Registry) Create(cfg models.BoardConfig, hub *Hub) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) >= maxSessions {
		return nil, fmt.Errorf("session limit reached (%d)", maxSessions)
	}
	s := &Session{
		ID:          uuid.NewString(),
		Game:        game.NewGame(cfg),
		Created:     time.Now(),
		lastTouched: time.Now(),
	}
	if hub != nil {
		s.Game.AddListener(&streamListener{gameID: s.ID, hub: hub})
	}
	r.sessions[s.ID] = s
	return s, nil
}

// Get returns the session for an id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove drops a session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Janitor expires sessions idle longer than maxIdle. Run it as a goroutine;
// it exits when the context is cancelled.
func (r *Registry) Janitor(ctx context.Context, maxIdle time.Duration) {
	ticker := time.NewTicker(maxIdle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping session janitor...")
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-maxIdle)
			r.mu.Lock()
			for id, s := range r.sessions {
				s.mu.Lock()
				idle := s.lastTouched.Before(cutoff)
				s.mu.Unlock()
				if idle {
					delete(r.sessions, id)
				}
			}
			n := len(r.sessions)
			r.mu.Unlock()
			log.Printf("[Janitor] Sweep complete, %d live sessions", n)
		}
	}
}
