package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/healthbot/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(":memory:")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.InitSchema(); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestUsers(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	u := &models.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Phone: "+1 555", PasswordHash: "hash", CreatedAt: time.Now()}
	if err := c.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	dup := *u
	dup.ID = "u2"
	if err := c.CreateUser(ctx, &dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := c.GetUserByEmail(ctx, "ada@example.com")
	if err != nil || got.ID != "u1" || got.PasswordHash != "hash" {
		t.Fatalf("GetUserByEmail: %+v %v", got, err)
	}
	if _, err := c.GetUserByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReportsAndChunks(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	r := &models.Report{ID: "r1", UserID: "u1", Filename: "labs.pdf", ContentType: "application/pdf", SizeBytes: 42, CreatedAt: time.Now()}
	chunks := []models.ReportChunk{
		{ID: "c1", ChunkIndex: 0, Text: "Hemoglobin 13.5", CreatedAt: time.Now()},
		{ID: "c2", ChunkIndex: 1, Text: "Glucose 92", CreatedAt: time.Now()},
	}
	if err := c.InsertReport(ctx, r, chunks); err != nil {
		t.Fatalf("InsertReport: %v", err)
	}

	got, err := c.GetReport(ctx, "r1")
	if err != nil || got.ChunkCount != 2 {
		t.Fatalf("GetReport: %+v %v", got, err)
	}

	list, err := c.ListReports(ctx, "u1")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListReports: %v %v", list, err)
	}

	n, err := c.CountReports(ctx)
	if err != nil || n != 1 {
		t.Fatalf("CountReports: %d %v", n, err)
	}

	if err := c.DeleteReport(ctx, "r1"); err != nil {
		t.Fatalf("DeleteReport: %v", err)
	}
	if _, err := c.GetReport(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	var chunksLeft int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM report_chunks WHERE report_id = 'r1'`).Scan(&chunksLeft); err != nil || chunksLeft != 0 {
		t.Errorf("chunks left after delete: %d %v", chunksLeft, err)
	}
}

func TestQueryHistory(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	for i, q := range []string{"first", "second"} {
		rec := &models.QueryRecord{
			ID:          q,
			UserID:      "u1",
			Perspective: "patient",
			QueryText:   q,
			Response:    "answer",
			ChunksUsed:  i,
			Cached:      i == 1,
			CreatedAt:   time.Unix(1_700_000_000, 0),
		}
		if err := c.InsertQueryRecord(ctx, rec); err != nil {
			t.Fatalf("InsertQueryRecord: %v", err)
		}
	}

	history, err := c.GetQueryHistory(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("GetQueryHistory: %v", err)
	}
	if len(history) != 2 || history[0].QueryText != "second" || !history[0].Cached {
		t.Fatalf("unexpected history %+v", history)
	}

	other, _ := c.GetQueryHistory(ctx, "u2", 10)
	if len(other) != 0 {
		t.Errorf("history leaked across users: %+v", other)
	}
}

func TestAppointments(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	a := &models.Appointment{
		ID: "a1", UserID: "u1", PatientName: "Ada", PatientAge: 36,
		PatientEmail: "ada@example.com", PatientPhone: "555",
		DoctorID: "1", DoctorName: "Dr. Sarah Johnson", Specialization: "Cardiology", Location: "City Hospital, New York",
		Date: "2026-11-02", Time: "09:00", PreviousReports: []string{"http://minio/r.pdf"},
		Status: models.AppointmentPending, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := c.InsertAppointment(ctx, a); err != nil {
		t.Fatalf("InsertAppointment: %v", err)
	}

	taken, err := c.SlotTaken(ctx, "1", "2026-11-02", "09:00")
	if err != nil || !taken {
		t.Fatalf("expected slot taken, got %v %v", taken, err)
	}

	if err := c.UpdateAppointmentStatus(ctx, "a1", models.AppointmentCancelled); err != nil {
		t.Fatalf("UpdateAppointmentStatus: %v", err)
	}
	taken, _ = c.SlotTaken(ctx, "1", "2026-11-02", "09:00")
	if taken {
		t.Error("cancelled appointment must free the slot")
	}

	got, err := c.GetAppointment(ctx, "a1")
	if err != nil || got.Status != models.AppointmentCancelled || len(got.PreviousReports) != 1 {
		t.Fatalf("GetAppointment: %+v %v", got, err)
	}

	if err := c.UpdateAppointmentStatus(ctx, "nope", models.AppointmentCancelled); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	list, err := c.ListAppointments(ctx, "u1")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListAppointments: %v %v", list, err)
	}
}

func TestActiveSlotIsUnique(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	booking := func(id string) *models.Appointment {
		return &models.Appointment{
			ID: id, UserID: "u1", PatientName: "Ada", PatientAge: 36,
			DoctorID: "dr-sarah-johnson", Date: "2026-11-02", Time: "09:00",
			Status: models.AppointmentPending, CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}
	}

	if err := c.InsertAppointment(ctx, booking("a1")); err != nil {
		t.Fatalf("InsertAppointment: %v", err)
	}
	if err := c.InsertAppointment(ctx, booking("a2")); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for a held slot, got %v", err)
	}

	if err := c.UpdateAppointmentStatus(ctx, "a1", models.AppointmentCancelled); err != nil {
		t.Fatalf("UpdateAppointmentStatus: %v", err)
	}
	if err := c.InsertAppointment(ctx, booking("a2")); err != nil {
		t.Fatalf("cancelled slot should be bookable: %v", err)
	}
}

func TestCorruptPreviousReportsIsAnError(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.db.Exec(`
		INSERT INTO appointments (id, user_id, patient_name, patient_age, patient_email, patient_phone,
			doctor_id, doctor_name, specialization, location, appointment_date, appointment_time,
			reason, previous_reports, status, created_at, updated_at)
		VALUES ('a1', 'u1', 'Ada', 36, '', '', 'd', '', '', '', '2026-11-02', '09:00', '', '{not json', 'pending', 0, 0)`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := c.GetAppointment(ctx, "a1"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a decode error, got %v", err)
	}
}

func TestEmergencyReports(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	r := &models.EmergencyReport{ID: "e1", UserID: "u1", Type: "fire", Location: "Main St", Description: "smoke", Status: "submitted", CreatedAt: time.Now()}
	if err := c.InsertEmergencyReport(ctx, r); err != nil {
		t.Fatalf("InsertEmergencyReport: %v", err)
	}

	list, err := c.ListEmergencyReports(ctx, "u1")
	if err != nil || len(list) != 1 || list[0].Type != "fire" {
		t.Fatalf("ListEmergencyReports: %+v %v", list, err)
	}
}
