package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"ai-saleschat-be/internal/dto"
	"ai-saleschat-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const streamChannel = "stream_frames"

// Hub fans streamed response frames out to the sockets watching each
// session. Multi-device: one session can have several live sockets.
// Redis pub/sub carries frames to sibling instances.
type Hub struct {
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_id": client.SessionID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.SessionID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.SessionID]) == 0 {
					delete(h.clients, client.SessionID)
					h.logger.Info("Hub", "Session fully disconnected", map[string]interface{}{"session_id": client.SessionID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// Deliver pushes one stream frame to every socket watching the frame's
// session, locally and via redis for sibling instances.
func (h *Hub) Deliver(frame dto.StreamFrame) {
	data, _ := json.Marshal(map[string]interface{}{
		"type": "stream",
		"data": frame,
	})

	h.deliverLocal(frame.SessionId, data)

	if h.rdb != nil {
		payload := map[string]interface{}{
			"target_session_id": frame.SessionId.String(),
			"message":           data,
		}
		jsonPayload, _ := json.Marshal(payload)
		h.rdb.Publish(context.Background(), streamChannel, jsonPayload)
	}
}

// Rebind moves a client to a new session bucket. Used when a turn on a
// closed session transparently reopens as a fresh session id.
func (h *Hub) Rebind(client *Client, sessionID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.SessionID]; ok {
		for i, c := range clients {
			if c == client {
				h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
				break
			}
		}
		if len(h.clients[client.SessionID]) == 0 {
			delete(h.clients, client.SessionID)
		}
	}
	client.SessionID = sessionID
	h.clients[sessionID] = append(h.clients[sessionID], client)
}

func (h *Hub) deliverLocal(sessionID uuid.UUID, data []byte) {
	h.mu.RLock()
	clients := h.clients[sessionID]
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"session_id": sessionID})
			h.unregister <- client
		}
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, streamChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload struct {
			TargetSessionID string          `json:"target_session_id"`
			Message         json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}

		sessionID, err := uuid.Parse(payload.TargetSessionID)
		if err != nil {
			continue
		}
		h.deliverLocal(sessionID, payload.Message)
	}
}
