package ingest

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sbauctions/archive/pkg/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Allow same-origin requests, or requests with no Origin header
		// (direct connections from non-browser clients).
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SalesHub manages WebSocket connections for the live sold-auction
// push feed.
type SalesHub struct {
	// Registered clients
	clients map[*websocket.Conn]bool

	// Register requests from clients
	register chan *websocket.Conn

	// Unregister requests from clients
	unregister chan *websocket.Conn

	// Broadcast channel for sale updates
	broadcast chan []byte

	mu sync.RWMutex
}

// NewSalesHub creates a new WebSocket hub.
func NewSalesHub() *SalesHub {
	return &SalesHub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn, config.WSChannelBuffer),
		unregister: make(chan *websocket.Conn, config.WSChannelBuffer),
		broadcast:  make(chan []byte, config.WSBroadcastBuffer),
	}
}

// Run starts the hub's main loop.
func (h *SalesHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Close all client connections on shutdown
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
			}
			h.mu.Unlock()
			return
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("Sales feed client connected (total: %d)", count)
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("Sales feed client disconnected (total: %d)", count)
		case message := <-h.broadcast:
			h.mu.RLock()
			// Collect failed connections to unregister after releasing lock
			var failed []*websocket.Conn
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					log.Printf("Sales feed write error: %v", err)
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()

			// Unregister failed connections without holding the lock
			for _, conn := range failed {
				h.unregister <- conn
			}
		}
	}
}

// Broadcast sends a message to all connected clients.
func (h *SalesHub) Broadcast(data interface{}) error {
	message, err := json.Marshal(data)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- message:
		return nil
	default:
		// Channel full, drop message to prevent blocking
		log.Printf("Sales feed broadcast channel full, dropping message")
		return nil
	}
}

// HasClients returns true if there are any connected clients.
func (h *SalesHub) HasClients() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) > 0
}

// HandleWebSocket handles WebSocket upgrade requests.
func (h *SalesHub) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		h.register <- conn

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Ping sender keeps the connection alive.
		go func() {
			ticker := time.NewTicker(config.WSPingInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				}
			}
		}()

		defer func() {
			cancel()
			h.unregister <- conn
		}()

		conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
			return nil
		})

		// Read loop handles control frames and detects close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				break
			}
		}
	}
}
