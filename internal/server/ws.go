package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ayusman/fingercount/internal/app"
)

const writeTimeout = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(snap app.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(snap)
}

// write sends snap. Callers hold c.mu.
func (c *client) write(snap app.Snapshot) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(snap)
}

// CountHandler pushes count snapshots to WebSocket clients. Each client
// receives the current snapshot on connect and then every change.
type CountHandler struct {
	source  Source
	logger  zerolog.Logger
	clients map[*client]bool
	mu      sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewCountHandler creates a CountHandler and starts its broadcaster.
func NewCountHandler(source Source, logger zerolog.Logger) *CountHandler {
	h := &CountHandler{
		source:  source,
		logger:  logger,
		clients: make(map[*client]bool),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *CountHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Hold the client's write lock across registration so the initial
	// snapshot goes out before any broadcast.
	c := &client{conn: conn}
	c.mu.Lock()

	h.mu.Lock()
	select {
	case <-h.stop:
		h.mu.Unlock()
		c.mu.Unlock()
		return
	default:
	}
	h.clients[c] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
	}()

	err = c.write(h.source.Snapshot())
	c.mu.Unlock()
	if err != nil {
		return
	}

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *CountHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcaster and disconnects every client.
func (h *CountHandler) Close() {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		close(h.stop)
		for c := range h.clients {
			c.conn.Close()
		}
		h.mu.Unlock()
	})
	<-h.done
}

// broadcast sends a snapshot to all clients whenever it changes.
func (h *CountHandler) broadcast() {
	defer close(h.done)

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	last := h.source.Snapshot()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}

		snap := h.source.Snapshot()
		if !changed(last, snap) {
			continue
		}
		last = snap

		h.mu.RLock()
		clients := make([]*client, 0, len(h.clients))
		for c := range h.clients {
			clients = append(clients, c)
		}
		h.mu.RUnlock()

		for _, c := range clients {
			if err := c.send(snap); err != nil {
				h.logger.Debug().Err(err).Msg("dropping websocket client")
				c.conn.Close()
			}
		}
	}
}

// changed reports whether two snapshots differ in anything a client shows.
// Frame counters and timestamps advance on every frame and are ignored.
func changed(a, b app.Snapshot) bool {
	return a.State != b.State ||
		a.Available != b.Available ||
		a.Count != b.Count ||
		a.Raw != b.Raw ||
		a.Observed != b.Observed ||
		a.Quota != b.Quota ||
		a.CalibrationID != b.CalibrationID ||
		a.Dropped != b.Dropped
}
