// Package events streams job status transitions to websocket subscribers.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cuongbtq/job-dispatcher/internal/jobs/domain"
	"github.com/cuongbtq/job-dispatcher/internal/metrics"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Subscribers only send control frames
	maxMessageSize = 512

	clientBuffer    = 64
	broadcastBuffer = 256
)

// MessageTypeJobUpdate tags status transition messages.
const MessageTypeJobUpdate = "job_update"

// Message is the envelope written to subscribers.
type Message struct {
	Type string             `json:"type"`
	Data domain.StatusEvent `json:"data"`
}

// Hub fans status events out to every connected subscriber. Slow subscribers
// lose messages rather than block the engine.
type Hub struct {
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	clients    map[*client]struct{}
	count      atomic.Int64
	done       chan struct{}
}

// NewHub creates a hub. allowedOrigin "*" or "" accepts any origin.
func NewHub(logger *slog.Logger, allowedOrigin string) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigin),
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, broadcastBuffer),
		clients:    make(map[*client]struct{}),
		done:       make(chan struct{}),
	}
}

func checkOrigin(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if allowed == "" || allowed == "*" {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowed
	}
}

// Run delivers broadcasts until ctx is done, then disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.remove(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Add(1)
			metrics.EventSubscribers.Inc()
			h.logger.Debug("Event subscriber connected",
				slog.String("remote_addr", c.conn.RemoteAddr().String()),
			)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.remove(c)
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.logger.Warn("Event subscriber too slow, disconnecting",
						slog.String("remote_addr", c.conn.RemoteAddr().String()),
					)
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Add(-1)
	metrics.EventSubscribers.Dec()
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	return int(h.count.Load())
}

// Publish queues event for every subscriber without blocking.
func (h *Hub) Publish(event domain.StatusEvent) {
	msg, err := json.Marshal(Message{Type: MessageTypeJobUpdate, Data: event})
	if err != nil {
		h.logger.Error("Failed to marshal status event",
			slog.String("job_id", event.JobID),
			slog.Any("error", err),
		)
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Event broadcast buffer full, dropping status event",
			slog.String("job_id", event.JobID),
			slog.String("status", string(event.Status)),
		)
	}
}

// ServeWS upgrades the request and registers the connection as a subscriber.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, clientBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump discards inbound messages and detects disconnects
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.hub.logger.Warn("Websocket read error", slog.Any("error", err))
			}
			return
		}
	}
}

// writePump writes queued events and keepalive pings
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
