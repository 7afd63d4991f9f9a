package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/healthbot/backend/pkg/logger"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type ReportCounter interface {
	CountReports(ctx context.Context) (int, error)
}

type SystemInfo struct {
	EmbeddingModel string
	LLMModel       string
	VectorDB       string
}

type SystemHandler struct {
	db     Pinger
	counts ReportCounter
	deps   map[string]Pinger
	info   SystemInfo
}

// NewSystemHandler builds the health endpoints. deps are optional backends reported by /ready.
func NewSystemHandler(db Pinger, counts ReportCounter, deps map[string]Pinger, info SystemInfo) *SystemHandler {
	return &SystemHandler{db: db, counts: counts, deps: deps, info: info}
}

func (h *SystemHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *SystemHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	checks := fiber.Map{}
	ready := true

	if err := h.db.Ping(ctx); err != nil {
		logger.Warn("Readiness check failed", zap.String("dependency", "sqlite"), zap.Error(err))
		checks["sqlite"] = "down"
		ready = false
	} else {
		checks["sqlite"] = "up"
	}

	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "down"
			ready = false
			continue
		}
		checks[name] = "up"
	}

	status := fiber.StatusOK
	state := "ready"
	if !ready {
		status = fiber.StatusServiceUnavailable
		state = "not ready"
	}
	return c.Status(status).JSON(fiber.Map{
		"status": state,
		"checks": checks,
	})
}

func (h *SystemHandler) Status(c *fiber.Ctx) error {
	count, err := h.counts.CountReports(c.UserContext())
	if err != nil {
		logger.Error("Failed to count reports", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Error checking status")
	}

	return c.JSON(fiber.Map{
		"status":           "healthy",
		"documents_stored": count,
		"embedding_model":  h.info.EmbeddingModel,
		"vector_db":        h.info.VectorDB,
		"llm_model":        h.info.LLMModel,
	})
}
