package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/healthbot/backend/internal/auth"
	"github.com/healthbot/backend/internal/ingestion"
	"github.com/healthbot/backend/internal/storage/models"
	"github.com/healthbot/backend/pkg/logger"
)

type ReportStore interface {
	ListReports(ctx context.Context, userID string) ([]models.Report, error)
}

type DocumentHandler struct {
	processor *ingestion.Processor
	reports   ReportStore
}

func NewDocumentHandler(processor *ingestion.Processor, reports ReportStore) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		reports:   reports,
	}
}

// UploadReport ingests a multipart "file" upload into the caller's report library.
func (h *DocumentHandler) UploadReport(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "No file provided")
	}
	if fh.Filename == "" {
		return errorJSON(c, fiber.StatusBadRequest, "No file selected")
	}

	f, err := fh.Open()
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Failed to read file")
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Failed to read file")
	}

	report, err := h.processor.Process(c.UserContext(), ingestion.Upload{
		UserID:      auth.UserID(c),
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		ReportType:  c.FormValue("report_type"),
		Data:        data,
	})
	switch {
	case errors.Is(err, ingestion.ErrEmptyFile):
		return errorJSON(c, fiber.StatusBadRequest, "No file selected")
	case errors.Is(err, ingestion.ErrFileTooLarge):
		return errorJSON(c, fiber.StatusRequestEntityTooLarge, "File exceeds maximum size")
	case errors.Is(err, ingestion.ErrUnsupportedType):
		return errorJSON(c, fiber.StatusBadRequest, "Invalid file type. Please upload a PDF, HTML or text file.")
	case errors.Is(err, ingestion.ErrNoText):
		return errorJSON(c, fiber.StatusBadRequest, "No text could be extracted from the file")
	case err != nil:
		logger.Error("Failed to process report", zap.String("filename", fh.Filename), zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Error processing file")
	}

	return c.JSON(fiber.Map{
		"message":        fmt.Sprintf("%s processed successfully", report.Filename),
		"chunks_created": report.ChunkCount,
		"filename":       report.Filename,
		"report_id":      report.ID,
	})
}

func (h *DocumentHandler) ListReports(c *fiber.Ctx) error {
	reports, err := h.reports.ListReports(c.UserContext(), auth.UserID(c))
	if err != nil {
		logger.Error("Failed to list reports", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to list reports")
	}
	if reports == nil {
		reports = []models.Report{}
	}
	return c.JSON(fiber.Map{"reports": reports})
}
