package appointment

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
	"github.com/healthbot/backend/internal/storage/objectstore"
	"github.com/healthbot/backend/internal/storage/sqlite"
	"github.com/healthbot/backend/pkg/logger"
)

const dateLayout = "2006-01-02"

var (
	ErrInvalidBooking  = errors.New("invalid booking")
	ErrUnknownDoctor   = errors.New("unknown doctor")
	ErrSlotUnavailable = errors.New("doctor is not available at that time")
	ErrSlotTaken       = errors.New("time slot already booked")
	ErrNotFound        = errors.New("appointment not found")
	ErrAlreadyCanceled = errors.New("appointment already cancelled")
)

type Store interface {
	InsertAppointment(ctx context.Context, a *models.Appointment) error
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	ListAppointments(ctx context.Context, userID string) ([]models.Appointment, error)
	SlotTaken(ctx context.Context, doctorID, date, slot string) (bool, error)
	UpdateAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus) error
}

type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type BookingRequest struct {
	PatientName  string `json:"patient_name"`
	PatientAge   int    `json:"patient_age"`
	PatientEmail string `json:"patient_email"`
	PatientPhone string `json:"patient_phone"`
	DoctorID     string `json:"doctor_id"`
	Date         string `json:"appointment_date"`
	Time         string `json:"appointment_time"`
	Reason       string `json:"reason"`
}

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Service struct {
	store   Store
	objects ObjectStore
	now     func() time.Time
}

// NewService builds the booking service. objects may be nil, in which case attachments are refused.
func NewService(store Store, objects ObjectStore) *Service {
	return &Service{store: store, objects: objects, now: time.Now}
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidBooking, msg)
}

func (s *Service) validate(req *BookingRequest) (Doctor, error) {
	req.PatientName = strings.TrimSpace(req.PatientName)
	req.PatientEmail = strings.TrimSpace(req.PatientEmail)
	req.PatientPhone = strings.TrimSpace(req.PatientPhone)
	req.Reason = strings.TrimSpace(req.Reason)

	switch {
	case req.PatientName == "":
		return Doctor{}, invalid("name is required")
	case req.PatientAge <= 0:
		return Doctor{}, invalid("age is required")
	case req.PatientEmail == "":
		return Doctor{}, invalid("email is required")
	case req.PatientPhone == "":
		return Doctor{}, invalid("phone is required")
	case req.DoctorID == "":
		return Doctor{}, invalid("please select a doctor")
	case req.Date == "":
		return Doctor{}, invalid("date is required")
	case req.Time == "":
		return Doctor{}, invalid("time is required")
	}

	day, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return Doctor{}, invalid("date must be YYYY-MM-DD")
	}
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(today) {
		return Doctor{}, invalid("date is in the past")
	}

	doctor, ok := findDoctor(req.DoctorID)
	if !ok {
		return Doctor{}, fmt.Errorf("%w: %s", ErrUnknownDoctor, req.DoctorID)
	}
	if !doctor.offers(req.Time) {
		return Doctor{}, fmt.Errorf("%w: %s", ErrSlotUnavailable, req.Time)
	}
	return doctor, nil
}

func (s *Service) Book(ctx context.Context, userID string, req BookingRequest, attachments []Attachment) (*models.Appointment, error) {
	doctor, err := s.validate(&req)
	if err != nil {
		return nil, err
	}
	if len(attachments) > 0 && s.objects == nil {
		return nil, invalid("attachments are not accepted")
	}

	// fast path; the unique slot index decides races at insert time
	taken, err := s.store.SlotTaken(ctx, doctor.ID, req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlotTaken
	}

	urls := make([]string, 0, len(attachments))
	for _, a := range attachments {
		url, err := s.objects.Put(ctx, objectstore.NewKey("", a.Filename), a.Data, a.ContentType)
		if err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", a.Filename, err)
		}
		urls = append(urls, url)
	}

	now := s.now()
	appt := &models.Appointment{
		ID:              uuid.New().String(),
		UserID:          userID,
		PatientName:     req.PatientName,
		PatientAge:      req.PatientAge,
		PatientEmail:    req.PatientEmail,
		PatientPhone:    req.PatientPhone,
		DoctorID:        doctor.ID,
		DoctorName:      doctor.Name,
		Specialization:  doctor.Specialization,
		Location:        doctor.Location,
		Date:            req.Date,
		Time:            req.Time,
		Reason:          req.Reason,
		PreviousReports: urls,
		Status:          models.AppointmentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.InsertAppointment(ctx, appt); err != nil {
		if errors.Is(err, sqlite.ErrDuplicate) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}

	metrics.AppointmentsBooked.WithLabelValues("booked").Inc()
	logger.Info("Appointment booked",
		zap.String("appointment_id", appt.ID),
		zap.String("user_id", userID),
		zap.String("doctor_id", doctor.ID),
		zap.Int("attachments", len(urls)),
	)
	return appt, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]models.Appointment, error) {
	return s.store.ListAppointments(ctx, userID)
}

// Cancel marks the caller's appointment cancelled. Other users' appointments read as not found.
func (s *Service) Cancel(ctx context.Context, userID, id string) (*models.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if appt.UserID != userID {
		return nil, ErrNotFound
	}
	if appt.Status == models.AppointmentCancelled {
		return nil, ErrAlreadyCanceled
	}

	if err := s.store.UpdateAppointmentStatus(ctx, id, models.AppointmentCancelled); err != nil {
		return nil, err
	}
	appt.Status = models.AppointmentCancelled
	appt.UpdatedAt = s.now()

	metrics.AppointmentsBooked.WithLabelValues("cancelled").Inc()
	logger.Info("Appointment cancelled", zap.String("appointment_id", id), zap.String("user_id", userID))
	return appt, nil
}
