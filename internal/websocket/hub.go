package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-secretary-funnel-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const clusterChannel = "funnel_state_events"

// Hub pushes visitor state to the tabs following it. With redis configured,
// every push is also published so other instances can reach their clients.
type Hub struct {
	// Visitor id -> open tabs
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb    *redis.Client
	origin string

	logger logger.ILogger
}

type clusterMessage struct {
	Origin    string          `json:"origin"`
	VisitorID string          `json:"visitor_id"`
	Message   json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, origin string, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		origin:     origin,
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.VisitorID] = append(h.clients[client.VisitorID], client)
			h.mu.Unlock()
			h.logger.Debug("Hub", "Client registered", map[string]interface{}{"visitor_id": client.VisitorID})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[client.VisitorID]
	for i, c := range clients {
		if c == client {
			h.clients[client.VisitorID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.VisitorID]) == 0 {
		delete(h.clients, client.VisitorID)
	}
}

// Encode builds the frame every push uses: {"type": kind, "data": data}.
func Encode(kind string, data interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type": kind,
		"data": data,
	})
}

// Push sends one frame to the visitor's tabs.
func (h *Hub) Push(visitorID, kind string, data interface{}) {
	message, err := Encode(kind, data)
	if err != nil {
		h.logger.Error("Hub", "Failed to encode push", map[string]interface{}{"error": err.Error()})
		return
	}

	h.deliver(visitorID, message)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{Origin: h.origin, VisitorID: visitorID, Message: message})
		if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Cluster publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// deliver never blocks: a tab with a full buffer is dropped.
func (h *Hub) deliver(visitorID string, message []byte) {
	// Held while sending so remove cannot close a channel mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[visitorID] {
		select {
		case client.Send <- message:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"visitor_id": visitorID})
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

// Connected is the number of open tabs for visitorID on this instance.
func (h *Hub) Connected(visitorID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[visitorID])
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			var payload clusterMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("Hub", "Cluster message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.origin {
				continue
			}
			h.deliver(payload.VisitorID, payload.Message)
		}
	}
}
