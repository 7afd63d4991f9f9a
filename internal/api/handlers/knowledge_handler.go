package handlers

import (
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/healthbot/backend/internal/knowledge"
)

type KnowledgeHandler struct {
	kb *knowledge.KnowledgeBase
}

func NewKnowledgeHandler(kb *knowledge.KnowledgeBase) *KnowledgeHandler {
	return &KnowledgeHandler{kb: kb}
}

func (h *KnowledgeHandler) ListTopics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"topics": h.kb.Topics(),
		"total":  h.kb.Len(),
	})
}

func (h *KnowledgeHandler) ListQuestions(c *fiber.Ctx) error {
	// fiber leaves route params escaped; several topics contain spaces
	topic, err := url.PathUnescape(c.Params("topic"))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid topic")
	}

	questions := h.kb.Questions(topic)
	if len(questions) == 0 {
		return errorJSON(c, fiber.StatusNotFound, "Unknown topic")
	}
	return c.JSON(fiber.Map{
		"topic":     topic,
		"questions": questions,
	})
}

// Lookup answers a single question without opening a chat session.
func (h *KnowledgeHandler) Lookup(c *fiber.Ctx) error {
	var req struct {
		Question string `json:"question"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if knowledge.Normalize(req.Question) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Question is required")
	}

	answer, matched := h.kb.Lookup(req.Question)
	if !matched {
		answer = knowledge.FallbackAnswer
	}
	return c.JSON(fiber.Map{
		"question": req.Question,
		"answer":   answer,
		"matched":  matched,
	})
}
