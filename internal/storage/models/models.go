package models

import "time"

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Report struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Filename    string    `json:"filename"`
	ReportType  string    `json:"report_type,omitempty"`
	ContentType string    `json:"content_type"`
	ObjectKey   string    `json:"object_key,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	ChunkCount  int       `json:"chunk_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type ReportChunk struct {
	ID          string
	ReportID    string
	ChunkIndex  int
	Text        string
	EmbeddingID string
	CreatedAt   time.Time
}

type QueryRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	ReportID    string    `json:"report_id,omitempty"`
	Perspective string    `json:"perspective"`
	QueryText   string    `json:"query"`
	Response    string    `json:"response"`
	ChunksUsed  int       `json:"chunks_used"`
	Cached      bool      `json:"cached"`
	LatencyMS   int       `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

type Appointment struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	PatientName     string            `json:"patient_name"`
	PatientAge      int               `json:"patient_age"`
	PatientEmail    string            `json:"patient_email"`
	PatientPhone    string            `json:"patient_phone"`
	DoctorID        string            `json:"doctor_id"`
	DoctorName      string            `json:"doctor_name"`
	Specialization  string            `json:"specialization"`
	Location        string            `json:"location"`
	Date            string            `json:"appointment_date"`
	Time            string            `json:"appointment_time"`
	Reason          string            `json:"reason,omitempty"`
	PreviousReports []string          `json:"previous_reports,omitempty"`
	Status          AppointmentStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type EmergencyReport struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id,omitempty"`
	Type         string    `json:"emergency_type"`
	Location     string    `json:"location"`
	Description  string    `json:"description"`
	ContactName  string    `json:"contact_name,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}
