package emergency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/healthbot/backend/internal/metrics"
	"github.com/healthbot/backend/internal/storage/models"
	"github.com/healthbot/backend/pkg/logger"
)

const StatusSubmitted = "submitted"

var ErrInvalidReport = errors.New("invalid emergency report")

type Contact struct {
	Name   string `json:"name"`
	Number string `json:"number"`
	Type   string `json:"type"`
}

var contacts = []Contact{
	{Name: "Emergency Services", Number: "911", Type: "General Emergency"},
	{Name: "Poison Control", Number: "1-800-222-1222", Type: "Poisoning"},
	{Name: "Crisis Hotline", Number: "988", Type: "Mental Health Crisis"},
	{Name: "Fire Department", Number: "911", Type: "Fire Emergency"},
}

var types = map[string]bool{
	"medical":       true,
	"accident":      true,
	"fire":          true,
	"crime":         true,
	"mental-health": true,
	"other":         true,
}

func Contacts() []Contact {
	return append([]Contact(nil), contacts...)
}

type Store interface {
	InsertEmergencyReport(ctx context.Context, r *models.EmergencyReport) error
	ListEmergencyReports(ctx context.Context, userID string) ([]models.EmergencyReport, error)
}

type SubmitRequest struct {
	Type         string `json:"emergency_type"`
	Location     string `json:"location"`
	Description  string `json:"description"`
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Submit(ctx context.Context, userID string, req SubmitRequest) (*models.EmergencyReport, error) {
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	req.Location = strings.TrimSpace(req.Location)
	req.Description = strings.TrimSpace(req.Description)

	switch {
	case req.Type == "":
		return nil, fmt.Errorf("%w: emergency type is required", ErrInvalidReport)
	case !types[req.Type]:
		return nil, fmt.Errorf("%w: unknown emergency type %q", ErrInvalidReport, req.Type)
	case req.Location == "":
		return nil, fmt.Errorf("%w: location is required", ErrInvalidReport)
	case req.Description == "":
		return nil, fmt.Errorf("%w: description is required", ErrInvalidReport)
	}

	report := &models.EmergencyReport{
		ID:           uuid.New().String(),
		UserID:       userID,
		Type:         req.Type,
		Location:     req.Location,
		Description:  req.Description,
		ContactName:  strings.TrimSpace(req.ContactName),
		ContactPhone: strings.TrimSpace(req.ContactPhone),
		Status:       StatusSubmitted,
		CreatedAt:    time.Now(),
	}

	if err := s.store.InsertEmergencyReport(ctx, report); err != nil {
		return nil, err
	}

	metrics.EmergencyReports.WithLabelValues(report.Type).Inc()
	logger.Info("Emergency report submitted", zap.String("report_id", report.ID), zap.String("type", report.Type))
	return report, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]models.EmergencyReport, error) {
	return s.store.ListEmergencyReports(ctx, userID)
}
