// internal/web/websocket.go
package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"ravenwatch/internal/metrics"
	"ravenwatch/internal/monitoring"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type WSClient struct {
	conn *websocket.Conn
	send chan WSMessage
	hub  *Hub
}

// Hub tracks websocket clients and broadcasts probe events to them. It is
// registered with the engine as an event sink.
type Hub struct {
	mu      sync.Mutex
	clients map[*WSClient]bool
	metrics *metrics.Collector
}

func NewHub(metricsCollector *metrics.Collector) *Hub {
	return &Hub{
		clients: make(map[*WSClient]bool),
		metrics: metricsCollector,
	}
}

func (h *Hub) Name() string { return "websocket" }

// Publish implements monitoring.EventSink.
func (h *Hub) Publish(ctx context.Context, e monitoring.Event) error {
	h.broadcast(WSMessage{Type: "monitor." + string(e.Kind), Data: e})
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.RecordWebSocketConnection(1)
	}
}

func (h *Hub) unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if ok && h.metrics != nil {
		h.metrics.RecordWebSocketConnection(-1)
	}
}

// broadcast drops clients whose send buffer is full.
func (h *Hub) broadcast(message WSMessage) {
	h.mu.Lock()
	var slow []*WSClient
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.Unlock()

	for _, client := range slow {
		h.unregister(client)
	}
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade websocket")
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan WSMessage, 256),
		hub:  s.hub,
	}
	s.hub.register(client)

	go client.writePump()
	go client.readPump()
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.hub.unregister(c)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.unregister(c)
				return
			}
		}
	}
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
