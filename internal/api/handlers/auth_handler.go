package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/healthbot/backend/internal/auth"
	"github.com/healthbot/backend/internal/storage/sqlite"
	"github.com/healthbot/backend/pkg/logger"
)

type AuthHandler struct {
	service *auth.Service
}

func NewAuthHandler(service *auth.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req auth.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	resp, err := h.service.Register(c.UserContext(), req)
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		return errorJSON(c, fiber.StatusBadRequest, strings.TrimPrefix(err.Error(), auth.ErrInvalidInput.Error()+": "))
	case errors.Is(err, auth.ErrEmailTaken):
		return errorJSON(c, fiber.StatusConflict, "Email already registered")
	case err != nil:
		logger.Error("Registration failed", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Registration failed")
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req auth.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	resp, err := h.service.Login(c.UserContext(), req)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return errorJSON(c, fiber.StatusUnauthorized, "Invalid email or password")
	case err != nil:
		logger.Error("Login failed", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Login failed")
	}

	return c.JSON(resp)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := h.service.Me(c.UserContext(), auth.UserID(c))
	if errors.Is(err, sqlite.ErrNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "User not found")
	}
	if err != nil {
		logger.Error("Failed to load user", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to load user")
	}
	return c.JSON(user)
}
