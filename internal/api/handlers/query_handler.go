package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/healthbot/backend/internal/auth"
	"github.com/healthbot/backend/internal/llm"
	"github.com/healthbot/backend/internal/query"
	"github.com/healthbot/backend/internal/storage/models"
	"github.com/healthbot/backend/pkg/logger"
)

type QueryHandler struct {
	queryEngine *query.Engine
}

func NewQueryHandler(queryEngine *query.Engine) *QueryHandler {
	return &QueryHandler{
		queryEngine: queryEngine,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req struct {
		Query       string `json:"query"`
		Perspective string `json:"perspective"`
		ReportID    string `json:"report_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	perspective, ok := llm.ParsePerspective(req.Perspective)
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "Perspective must be patient or doctor")
	}

	response, err := h.queryEngine.ProcessQuery(c.UserContext(), query.QueryRequest{
		UserID:      auth.UserID(c),
		ReportID:    req.ReportID,
		Query:       req.Query,
		Perspective: perspective,
	})
	switch {
	case errors.Is(err, query.ErrEmptyQuery):
		return errorJSON(c, fiber.StatusBadRequest, "No query provided")
	case errors.Is(err, query.ErrNoRelevantInfo):
		return errorJSON(c, fiber.StatusNotFound, "No relevant information found in the uploaded documents")
	case err != nil:
		logger.Error("Failed to process query", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Error processing query")
	}

	return c.JSON(response)
}

func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	history, err := h.queryEngine.History(c.UserContext(), auth.UserID(c), c.QueryInt("limit", 20))
	if err != nil {
		logger.Error("Failed to load query history", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to load query history")
	}
	if history == nil {
		history = []models.QueryRecord{}
	}

	return c.JSON(fiber.Map{
		"history": history,
	})
}
