package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/healthbot/backend/internal/auth"
	"github.com/healthbot/backend/internal/emergency"
	"github.com/healthbot/backend/internal/storage/models"
	"github.com/healthbot/backend/pkg/logger"
)

type EmergencyHandler struct {
	service *emergency.Service
}

func NewEmergencyHandler(service *emergency.Service) *EmergencyHandler {
	return &EmergencyHandler{service: service}
}

func (h *EmergencyHandler) Contacts(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"contacts": emergency.Contacts()})
}

func (h *EmergencyHandler) Submit(c *fiber.Ctx) error {
	var req emergency.SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	report, err := h.service.Submit(c.UserContext(), auth.UserID(c), req)
	if errors.Is(err, emergency.ErrInvalidReport) {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		logger.Error("Failed to submit emergency report", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to submit emergency report")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Emergency report submitted. If this is life-threatening, call 911 now.",
		"report":  report,
	})
}

func (h *EmergencyHandler) List(c *fiber.Ctx) error {
	reports, err := h.service.List(c.UserContext(), auth.UserID(c))
	if err != nil {
		logger.Error("Failed to list emergency reports", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to list emergency reports")
	}
	if reports == nil {
		reports = []models.EmergencyReport{}
	}
	return c.JSON(fiber.Map{"reports": reports})
}
