package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/healthbot/backend/internal/chat"
	"github.com/healthbot/backend/internal/scan"
	"github.com/healthbot/backend/pkg/logger"
)

type ChatHandler struct {
	manager       *chat.Manager
	maxImageBytes int
}

func NewChatHandler(manager *chat.Manager, maxImageBytes int) *ChatHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = 10 << 20
	}
	return &ChatHandler{
		manager:       manager,
		maxImageBytes: maxImageBytes,
	}
}

type sessionView struct {
	SessionID string         `json:"session_id"`
	State     chat.State     `json:"state"`
	Messages  []chat.Message `json:"messages"`
}

func viewOf(s *chat.Session, messages []chat.Message) sessionView {
	if messages == nil {
		messages = []chat.Message{}
	}
	return sessionView{SessionID: s.ID(), State: s.State(), Messages: messages}
}

// chatError maps session errors to HTTP responses. ok is false for unexpected errors.
func chatError(err error) (int, string, bool) {
	switch {
	case errors.Is(err, chat.ErrSessionNotFound), errors.Is(err, chat.ErrSessionClosed):
		return fiber.StatusNotFound, "Chat session not found", true
	case errors.Is(err, chat.ErrScanInProgress):
		return fiber.StatusConflict, "An image scan is already in progress", true
	case errors.Is(err, chat.ErrEmptyMessage):
		return fiber.StatusBadRequest, "Message text is required", true
	case errors.Is(err, chat.ErrEmptyImage):
		return fiber.StatusBadRequest, "Image is empty", true
	}
	return fiber.StatusInternalServerError, "Failed to process message", false
}

func (h *ChatHandler) respondError(c *fiber.Ctx, err error) error {
	status, msg, known := chatError(err)
	if !known {
		logger.Error("Chat request failed", zap.Error(err))
	}
	return errorJSON(c, status, msg)
}

func (h *ChatHandler) OpenSession(c *fiber.Ctx) error {
	s := h.manager.Open()
	return c.Status(fiber.StatusCreated).JSON(viewOf(s, s.Messages()))
}

func (h *ChatHandler) GetSession(c *fiber.Ctx) error {
	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(viewOf(s, s.Messages()))
}

func (h *ChatHandler) CloseSession(c *fiber.Ctx) error {
	if err := h.manager.Close(c.Params("id")); err != nil {
		return h.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SendMessage accepts JSON {text} or a multipart form with text and an optional image field.
// The response carries only the messages this call appended.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return h.respondError(c, err)
	}

	var text string
	if strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid multipart form")
		}
		if v := form.Value["text"]; len(v) > 0 {
			text = v[0]
		}
		if files := form.File["image"]; len(files) > 0 {
			img, status, msg := h.readImage(files[0])
			if status != 0 {
				return errorJSON(c, status, msg)
			}
			if _, err := s.AttachImage(img); err != nil {
				return h.respondError(c, err)
			}
		}
	} else {
		var req struct {
			Text string `json:"text"`
		}
		if err := c.BodyParser(&req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
		}
		text = req.Text
	}

	appended, err := s.Send(c.UserContext(), text)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(viewOf(s, appended))
}

func (h *ChatHandler) readImage(fh *multipart.FileHeader) (scan.Image, int, string) {
	if fh.Size > int64(h.maxImageBytes) {
		return scan.Image{}, fiber.StatusRequestEntityTooLarge, "Image exceeds maximum size"
	}

	f, err := fh.Open()
	if err != nil {
		return scan.Image{}, fiber.StatusBadRequest, "Failed to read image"
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, int64(h.maxImageBytes)+1))
	if err != nil {
		return scan.Image{}, fiber.StatusBadRequest, "Failed to read image"
	}
	if len(data) > h.maxImageBytes {
		return scan.Image{}, fiber.StatusRequestEntityTooLarge, "Image exceeds maximum size"
	}

	return scan.Image{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}, 0, ""
}
