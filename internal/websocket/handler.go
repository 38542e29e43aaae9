package websocket

import (
	"context"
	"encoding/json"
	"log"

	"ai-saleschat-be/internal/dto"
	"ai-saleschat-be/internal/pkg/serverutils"
	"ai-saleschat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type Handler struct {
	hub         *Hub
	chatService service.IChatService
}

func NewHandler(hub *Hub, chatService service.IChatService) *Handler {
	return &Handler{hub: hub, chatService: chatService}
}

// RegisterRoutes wires the streaming endpoint. Connections without a
// session id get one assigned on their first turn.
func (h *Handler) RegisterRoutes(r fiber.Router) {
	r.Use("/ws/chat", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get("/ws/chat", websocket.New(h.serveWs))
}

func (h *Handler) serveWs(conn *websocket.Conn) {
	sessionID := uuid.Nil
	if raw := conn.Query("session_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			conn.WriteJSON(fiber.Map{"type": "error", "message": "invalid session_id"})
			conn.Close()
			return
		}
		sessionID = parsed
	}

	client := &Client{
		Hub:       h.hub,
		Conn:      conn,
		SessionID: sessionID,
		Send:      make(chan []byte, 256),
		onMessage: h.handleInbound,
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}

// handleInbound runs one chat turn for a frame received on the socket.
// Responses stream back through the hub so every device watching the
// session sees the same chunks.
func (h *Handler) handleInbound(client *Client, payload []byte) {
	var req dto.SendChatRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(client, "invalid request payload")
		return
	}
	if req.SessionId == nil && client.SessionID != uuid.Nil {
		id := client.SessionID
		req.SessionId = &id
	}
	req.Stream = true

	if err := serverutils.ValidateRequest(req); err != nil {
		h.sendError(client, err.Error())
		return
	}

	go func() {
		current := client.SessionID
		resp, err := h.chatService.SendChatStream(context.Background(), &req, func(frame dto.StreamFrame) {
			if frame.SessionId != current {
				h.hub.Rebind(client, frame.SessionId)
				current = frame.SessionId
			}
			h.hub.Deliver(frame)
		})
		if err != nil {
			log.Printf("ws turn error for session %s: %v", client.SessionID, err)
			h.sendError(client, err.Error())
			return
		}

		// Turn summary after the final chunk, so the client learns the
		// stage and any reopened session id.
		data, _ := json.Marshal(fiber.Map{"type": "turn", "data": resp})
		select {
		case client.Send <- data:
		default:
		}
	}()
}

func (h *Handler) sendError(client *Client, message string) {
	data, _ := json.Marshal(fiber.Map{"type": "error", "message": message})
	select {
	case client.Send <- data:
	default:
	}
}
