package handlers

import (
	"context"
	"encoding/base64"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/healthbot/backend/internal/chat"
	"github.com/healthbot/backend/internal/scan"
	"github.com/healthbot/backend/pkg/logger"
)

const localSession = "chat_session"

// frameOverhead covers the JSON envelope and the text field around an image payload.
const frameOverhead = 64 << 10

type WebSocketHandler struct {
	manager       *chat.Manager
	maxImageBytes int
}

func NewWebSocketHandler(manager *chat.Manager, maxImageBytes int) *WebSocketHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = 10 << 20
	}
	return &WebSocketHandler{
		manager:       manager,
		maxImageBytes: maxImageBytes,
	}
}

// readLimit bounds a single frame: a base64 image at the size cap plus the envelope.
func (h *WebSocketHandler) readLimit() int64 {
	return int64(base64.StdEncoding.EncodedLen(h.maxImageBytes) + frameOverhead)
}

type socketMessage struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	// Data is the base64 image payload for type "image".
	Data []byte `json:"data"`
}

// Upgrade resolves the session before the handshake so unknown ids get a plain 404.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return errorJSON(c, fiber.StatusNotFound, "Chat session not found")
	}
	c.Locals(localSession, s)
	return c.Next()
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	s, ok := c.Locals(localSession).(*chat.Session)
	if !ok {
		c.Close()
		return
	}

	c.SetReadLimit(h.readLimit())
	logger.Info("WebSocket connection established", zap.String("session_id", s.ID()))

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed", zap.String("session_id", s.ID()))
	}()

	for {
		var msg socketMessage
		if err := c.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}

		if err := h.handle(c, s, msg); err != nil {
			logger.Error("Failed to write WebSocket message", zap.Error(err))
			return
		}
	}
}

func (h *WebSocketHandler) handle(c *websocket.Conn, s *chat.Session, msg socketMessage) error {
	switch msg.Type {
	case "text":
	case "image":
		if len(msg.Data) > h.maxImageBytes {
			return h.sendError(c, "Image exceeds maximum size")
		}
		if _, err := s.AttachImage(scan.Image{
			Filename:    msg.Filename,
			ContentType: msg.ContentType,
			Data:        msg.Data,
		}); err != nil {
			_, text, _ := chatError(err)
			return h.sendError(c, text)
		}
		if err := h.send(c, "status", fiber.Map{"content": "Analyzing image..."}); err != nil {
			return err
		}
	default:
		return h.sendError(c, "Unknown message type")
	}

	appended, err := s.Send(context.Background(), msg.Text)
	if err != nil {
		_, text, known := chatError(err)
		if !known {
			logger.Error("Chat message failed", zap.Error(err))
		}
		return h.sendError(c, text)
	}

	return h.send(c, "messages", fiber.Map{
		"session_id": s.ID(),
		"state":      s.State(),
		"messages":   appended,
	})
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType string, payload fiber.Map) error {
	payload["type"] = msgType
	return c.WriteJSON(payload)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) error {
	return h.send(c, "error", fiber.Map{"error": errorMsg})
}
