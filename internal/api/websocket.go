package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/clearfield/minesweeper-engine/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for local boards/clients
	},
}

// envelope is one queued outbound message. gameID routes game events to the
// clients watching that session; an empty gameID (sweep alerts, service
// notices) reaches every client.
type envelope struct {
	gameID string
	data   []byte
}

// Hub fans engine notifications out to websocket clients. A client is either
// a firehose subscriber (/stream: every game's events plus sweep alerts) or
// pinned to one session (/games/:id/stream). Filtering happens here in the
// hub, not client-side, so one busy board's flood fills don't saturate every
// dashboard connection.
type Hub struct {
	clients  map[*websocket.Conn]string // value is the game-id filter, "" = firehose
	messages chan envelope
	mutex    sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		messages: make(chan envelope, 256),
		clients:  make(map[*websocket.Conn]string),
	}
}

func (h *Hub) Run() {
	for env := range h.messages {
		h.mutex.Lock()
		for client, filter := range h.clients {
			if env.gameID != "" && filter != "" && filter != env.gameID {
				continue
			}
			// Write deadline keeps one blocked client from hanging the hub
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			err := client.WriteMessage(websocket.TextMessage, env.data)
			if err != nil {
				log.Printf("Websocket write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe attaches a firehose client that receives every event.
func (h *Hub) Subscribe(c *gin.Context) {
	h.attach(c, "")
}

// SubscribeGame attaches a client to a single session's event stream.
func (h *Hub) SubscribeGame(c *gin.Context) {
	h.attach(c, c.Param("id"))
}

func (h *Hub) attach(c *gin.Context, filter string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = filter
	total := len(h.clients)
	h.mutex.Unlock()

	if filter == "" {
		log.Printf("New firehose WebSocket client. Total clients: %d", total)
	} else {
		log.Printf("New WebSocket client watching game %s. Total clients: %d", filter, total)
	}

	// We only push down, but must read to notice disconnects
	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			total := len(h.clients)
			h.mutex.Unlock()
			conn.Close()
			log.Printf("WebSocket client disconnected. Total clients: %d", total)
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				break
			}
		}
	}()
}

// Broadcast sends raw JSON data to every connected client.
func (h *Hub) Broadcast(data []byte) {
	h.messages <- envelope{data: data}
}

// BroadcastEvent marshals one game event and routes it to the clients
// watching that session plus the firehose subscribers.
func (h *Hub) BroadcastEvent(ev models.GameEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Failed to marshal game event: %v", err)
		return
	}
	h.messages <- envelope{gameID: ev.GameID, data: payload}
}

// streamListener adapts the game engine's synchronous notifications onto the
// hub as JSON events tagged with the session id.
type streamListener struct {
	gameID string
	hub    *Hub
}

func (s *streamListener) GameStarted() {
	s.hub.BroadcastEvent(models.GameEvent{Type: "game_started", GameID: s.gameID})
}

func (s *streamListener) MinesGenerated() {
	s.hub.BroadcastEvent(models.GameEvent{Type: "mines_generated", GameID: s.gameID})
}

func (s *streamListener) CellRevealed(x, y int, value int8) {
	s.hub.BroadcastEvent(models.GameEvent{Type: "cell_revealed", GameID: s.gameID, X: x, Y: y, Value: value})
}

func (s *streamListener) CellFlagged(x, y int, flagged bool) {
	s.hub.BroadcastEvent(models.GameEvent{Type: "cell_flagged", GameID: s.gameID, X: x, Y: y, Flagged: flagged})
}

func (s *streamListener) GameWon() {
	s.hub.BroadcastEvent(models.GameEvent{Type: "game_won", GameID: s.gameID})
}

func (s *streamListener) GameLost(x, y int) {
	s.hub.BroadcastEvent(models.GameEvent{Type: "game_lost", GameID: s.gameID, X: x, Y: y})
}
