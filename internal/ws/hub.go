// Package ws provides the WebSocket fan-out used by syzygyd. Every
// telemetry event broadcast through the hub reaches each connected client;
// slow or dead clients are dropped rather than allowed to stall the loop.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingEvery    = 20 * time.Second
	readDeadline = 60 * time.Second
	writeTimeout = 3 * time.Second
)

// Hub manages client connections. Register, unregister and broadcast all
// go through channels so only Run touches the client set. Register and
// unregister are unbuffered: a send succeeds only while Run is receiving.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	upgrader   websocket.Upgrader
	log        *slog.Logger

	connected atomic.Int64
	dropped   atomic.Uint64
}

// NewHub allocates a hub. Call Run in a goroutine to start the event loop.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		log:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Run services the hub until ctx is cancelled, then closes every client.
// Run must be called at most once; connections arriving after it returns
// are closed immediately.
func (h *Hub) Run(ctx context.Context) {
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.connected.Store(int64(len(h.clients)))
			h.log.Debug("client connected", "remote", c.RemoteAddr().String(), "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					h.drop(c)
				}
			}

		case <-ping.C:
			for c := range h.clients {
				_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *websocket.Conn) {
	delete(h.clients, c)
	_ = c.Close()
	h.connected.Store(int64(len(h.clients)))
}

// Handler upgrades requests and registers the connection. Client frames
// are read and discarded so pongs and close frames are processed.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		select {
		case h.register <- conn:
		case <-h.done:
			_ = conn.Close()
			return
		}

		go func() {
			defer func() {
				select {
				case h.unregister <- conn:
				case <-h.done:
				}
			}()
			_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(readDeadline))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
}

// BroadcastJSON queues v for every client. When the queue is full the
// message is dropped and counted instead of blocking the caller.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Error("broadcast marshal failed", "err", err)
		return
	}
	select {
	case h.broadcast <- b:
	default:
		h.dropped.Add(1)
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int { return int(h.connected.Load()) }

// Dropped reports how many broadcasts were discarded on a full queue.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }
