package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/healthbot/backend/internal/appointment"
	"github.com/healthbot/backend/internal/auth"
	"github.com/healthbot/backend/internal/storage/models"
	"github.com/healthbot/backend/pkg/logger"
)

type AppointmentHandler struct {
	service *appointment.Service
}

func NewAppointmentHandler(service *appointment.Service) *AppointmentHandler {
	return &AppointmentHandler{service: service}
}

func (h *AppointmentHandler) ListDoctors(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"doctors": appointment.Doctors()})
}

// Book accepts JSON, or a multipart form whose "appointment" field holds the JSON and whose
// "reports" files are attached as previous reports.
func (h *AppointmentHandler) Book(c *fiber.Ctx) error {
	var req appointment.BookingRequest
	var attachments []appointment.Attachment

	if strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid multipart form")
		}
		if v := form.Value["appointment"]; len(v) == 0 || json.Unmarshal([]byte(v[0]), &req) != nil {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid appointment data")
		}
		for _, fh := range form.File["reports"] {
			f, err := fh.Open()
			if err != nil {
				return errorJSON(c, fiber.StatusBadRequest, "Failed to read attachment")
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return errorJSON(c, fiber.StatusBadRequest, "Failed to read attachment")
			}
			attachments = append(attachments, appointment.Attachment{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get(fiber.HeaderContentType),
				Data:        data,
			})
		}
	} else if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	appt, err := h.service.Book(c.UserContext(), auth.UserID(c), req, attachments)
	switch {
	case errors.Is(err, appointment.ErrInvalidBooking),
		errors.Is(err, appointment.ErrUnknownDoctor),
		errors.Is(err, appointment.ErrSlotUnavailable):
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, appointment.ErrSlotTaken):
		return errorJSON(c, fiber.StatusConflict, "That time slot is already booked")
	case err != nil:
		logger.Error("Failed to book appointment", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to book appointment")
	}

	return c.Status(fiber.StatusCreated).JSON(appt)
}

func (h *AppointmentHandler) List(c *fiber.Ctx) error {
	list, err := h.service.List(c.UserContext(), auth.UserID(c))
	if err != nil {
		logger.Error("Failed to list appointments", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to list appointments")
	}
	if list == nil {
		list = []models.Appointment{}
	}
	return c.JSON(fiber.Map{"appointments": list})
}

func (h *AppointmentHandler) Cancel(c *fiber.Ctx) error {
	appt, err := h.service.Cancel(c.UserContext(), auth.UserID(c), c.Params("id"))
	switch {
	case errors.Is(err, appointment.ErrNotFound):
		return errorJSON(c, fiber.StatusNotFound, "Appointment not found")
	case errors.Is(err, appointment.ErrAlreadyCanceled):
		return errorJSON(c, fiber.StatusConflict, "Appointment already cancelled")
	case err != nil:
		logger.Error("Failed to cancel appointment", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to cancel appointment")
	}
	return c.JSON(appt)
}
