// Package realtime streams risk activity to WebSocket subscribers.
//
// Dashboards and agents subscribe instead of polling: scan verdicts,
// login and transfer scores, trust status changes, and Merkle batch cuts
// are pushed as they happen.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sentinel-labs/sentinelx/internal/metrics"
)

// EventType names a feed event.
type EventType string

const (
	EventScan          EventType = "scan"
	EventLoginScore    EventType = "login_score"
	EventTransferScore EventType = "transfer_score"
	EventTrustChange   EventType = "trust_change"
	EventBatchCut      EventType = "batch_cut"
)

// Event is one feed message.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Subscription filters what a client receives. Clients send a new
// Subscription as a JSON text frame to change their filter; a fresh
// connection receives everything.
type Subscription struct {
	AllEvents  bool        `json:"allEvents"`
	EventTypes []EventType `json:"eventTypes"`
	Identities []string    `json:"identities"`
	MinScore   float64     `json:"minScore"`
}

// matches reports whether the subscription wants event.
func (s Subscription) matches(event *Event) bool {
	if s.AllEvents {
		return true
	}
	if len(s.EventTypes) > 0 && !containsType(s.EventTypes, event.Type) {
		return false
	}
	data, _ := event.Data.(map[string]interface{})
	if len(s.Identities) > 0 && data != nil {
		identity, _ := data["identity"].(string)
		sender, _ := data["sender"].(string)
		found := false
		for _, id := range s.Identities {
			if id == identity || id == sender {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	// Batch cuts carry no score; the floor only applies to scored events.
	if s.MinScore > 0 && event.Type != EventBatchCut && data != nil {
		if score, ok := data["score"].(float64); ok && score < s.MinScore {
			return false
		}
	}
	return true
}

func containsType(types []EventType, t EventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// client is one WebSocket connection with its outbound queue.
type client struct {
	conn *websocket.Conn
	send chan []byte

	mu  sync.RWMutex
	sub Subscription
}

func (c *client) subscription() Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sub
}

// Connection tuning.
const (
	// MaxClients caps concurrent feed connections.
	MaxClients = 10000

	sendQueueDepth = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxFrameSize   = 512 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin.
			return true
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

// Hub fans events out to connected clients. All client map mutations
// happen on the Run goroutine; a client that cannot keep up with the
// feed is dropped rather than allowed to stall the broadcast.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*client]bool

	events     chan *Event
	register   chan *client
	unregister chan *client
	done       chan struct{}

	totalEvents  atomic.Int64
	totalClients atomic.Int64
	peakClients  atomic.Int64
}

// NewHub creates a hub; call Run to start delivery.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*client]bool),
		events:     make(chan *Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Run delivers events until ctx ends, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("realtime hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Info("realtime hub stopped")
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case event := <-h.events:
			h.fanOut(event)
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	n := int64(len(h.clients))
	h.mu.Unlock()

	h.totalClients.Add(1)
	if n > h.peakClients.Load() {
		h.peakClients.Store(n)
	}
	metrics.ActiveWebSocketClients.Set(float64(n))
	h.logger.Info("feed client connected", "total", n)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.ActiveWebSocketClients.Set(float64(n))
	h.logger.Info("feed client disconnected", "total", n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
	metrics.ActiveWebSocketClients.Set(0)
}

func (h *Hub) fanOut(event *Event) {
	h.totalEvents.Add(1)
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	var stalled []*client
	h.mu.RLock()
	for c := range h.clients {
		if !c.subscription().matches(event) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			stalled = append(stalled, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stalled {
		h.remove(c)
	}
}

// Broadcast queues an event for delivery. Events are dropped, not
// queued unboundedly, when the hub is saturated.
func (h *Hub) Broadcast(event *Event) {
	select {
	case h.events <- event:
	default:
		h.logger.Warn("event feed saturated, dropping event", "type", event.Type)
	}
}

// BroadcastScan sends a content scan verdict.
func (h *Hub) BroadcastScan(data map[string]interface{}) {
	h.Broadcast(&Event{Type: EventScan, Timestamp: time.Now(), Data: data})
}

// BroadcastLoginScore sends a scored login attempt.
func (h *Hub) BroadcastLoginScore(data map[string]interface{}) {
	h.Broadcast(&Event{Type: EventLoginScore, Timestamp: time.Now(), Data: data})
}

// BroadcastTransferScore sends a transfer evaluation.
func (h *Hub) BroadcastTransferScore(data map[string]interface{}) {
	h.Broadcast(&Event{Type: EventTransferScore, Timestamp: time.Now(), Data: data})
}

// BroadcastTrustChange sends an enforcement status transition.
func (h *Hub) BroadcastTrustChange(data map[string]interface{}) {
	h.Broadcast(&Event{Type: EventTrustChange, Timestamp: time.Now(), Data: data})
}

// BroadcastBatchCut announces a newly cut Merkle batch.
func (h *Hub) BroadcastBatchCut(data map[string]interface{}) {
	h.Broadcast(&Event{Type: EventBatchCut, Timestamp: time.Now(), Data: data})
}

// Stats summarizes hub activity.
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	connected := len(h.clients)
	h.mu.RUnlock()

	return map[string]interface{}{
		"connectedClients": connected,
		"totalEvents":      h.totalEvents.Load(),
		"totalClients":     h.totalClients.Load(),
		"peakClients":      h.peakClients.Load(),
	}
}

// HandleWebSocket upgrades the request and attaches it to the feed.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n >= MaxClients {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendQueueDepth),
		sub:  Subscription{AllEvents: true},
	}
	h.register <- c

	go h.writePump(c)
	go h.readPump(c)
}

var expectedCloseCodes = []int{
	websocket.CloseNormalClosure,
	websocket.CloseGoingAway,
	websocket.CloseNoStatusReceived,
}

// readPump consumes inbound frames: subscription updates and pongs.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, expectedCloseCodes...) {
				h.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		var sub Subscription
		if err := json.Unmarshal(frame, &sub); err == nil {
			c.mu.Lock()
			c.sub = sub
			c.mu.Unlock()
		}
	}
}

// writePump drains the client's queue and keeps the connection alive
// with pings. A closed send channel means the hub dropped the client.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
