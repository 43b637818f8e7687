package httpapi

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/overlay-eye/internal/logger"
	"github.com/ironsheep/overlay-eye/internal/pipeline"
)

// Hub fans overlay messages out to websocket clients.
//
// Each client gets a bounded send queue drained by its own writer
// goroutine, and every write carries a deadline. A client whose queue is
// full or whose write times out is dropped, so one stalled viewer never
// holds up Broadcast or the session feeding it.
type Hub struct {
	clients    map[*websocket.Conn]*client
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	mutex      sync.RWMutex
	last       []byte
	log        *logrus.Logger
}

const (
	// writeWait bounds one websocket write.
	writeWait = 5 * time.Second
	// sendQueue is the number of messages buffered per client.
	sendQueue = 16
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. Call Run before registering clients.
func NewHub(log *logrus.Logger) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]*client),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves the hub until ctx is done, then closes every client. Client
// queues are only modified on the Run goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case conn := <-h.register:
			c := &client{conn: conn, send: make(chan []byte, sendQueue)}
			if h.last != nil {
				c.send <- h.last
			}
			h.mutex.Lock()
			h.clients[conn] = c
			n := len(h.clients)
			h.mutex.Unlock()
			go h.writePump(c)
			h.log.WithField("clients", n).Info("overlay client connected")

		case conn := <-h.unregister:
			if h.drop(conn) {
				h.log.WithField("clients", h.ClientCount()).Info("overlay client disconnected")
			}

		case message := <-h.broadcast:
			h.last = message
			h.mutex.RLock()
			var slow []*websocket.Conn
			for conn, c := range h.clients {
				select {
				case c.send <- message:
				default:
					slow = append(slow, conn)
				}
			}
			h.mutex.RUnlock()
			for _, conn := range slow {
				h.log.WithField("remote", conn.RemoteAddr().String()).Warn("dropping slow overlay client")
				h.drop(conn)
			}

		case <-ctx.Done():
			h.mutex.RLock()
			conns := make([]*websocket.Conn, 0, len(h.clients))
			for conn := range h.clients {
				conns = append(conns, conn)
			}
			h.mutex.RUnlock()
			for _, conn := range conns {
				h.drop(conn)
			}
			return
		}
	}
}

// writePump is the only writer for c.conn. It exits when the queue is
// closed or a write fails.
func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.log.WithError(err).Warn("dropping overlay client")
			h.Unregister(c.conn)
			return
		}
	}
}

// drop removes conn and stops its writer. It reports whether conn was
// registered.
func (h *Hub) drop(conn *websocket.Conn) bool {
	h.mutex.Lock()
	c, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mutex.Unlock()
	if !ok {
		return false
	}
	close(c.send)
	// Unblocks a write in progress and the reader in overlayFeed.
	conn.Close()
	return true
}

// Register adds a client. After Run has stopped the connection is closed.
func (h *Hub) Register(c *websocket.Conn) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

// Unregister removes and closes a client.
func (h *Hub) Unregister(c *websocket.Conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast sends message to every client. It is a no-op once Run stopped.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Pump drains a session's message stream into the hub until the stream is
// closed. It must run for the whole life of the session.
func (h *Hub) Pump(messages <-chan pipeline.Message) {
	for m := range messages {
		data, err := json.Marshal(m)
		if err != nil {
			h.log.WithError(err).Error("failed to encode overlay message")
			continue
		}
		h.Broadcast(data)
	}
}
