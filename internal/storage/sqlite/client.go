package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/healthbot/backend/internal/storage/models"
	"github.com/healthbot/backend/pkg/logger"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every connection to :memory: is a separate database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		phone TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		report_type TEXT,
		content_type TEXT,
		object_key TEXT,
		size_bytes INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_user ON reports(user_id);

	CREATE TABLE IF NOT EXISTS report_chunks (
		id TEXT PRIMARY KEY,
		report_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		embedding_id TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_report ON report_chunks(report_id);

	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		report_id TEXT,
		perspective TEXT NOT NULL,
		query_text TEXT NOT NULL,
		response TEXT,
		chunks_used INTEGER,
		cached INTEGER DEFAULT 0,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_user ON query_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_history(created_at);

	CREATE TABLE IF NOT EXISTS appointments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		patient_name TEXT NOT NULL,
		patient_age INTEGER NOT NULL,
		patient_email TEXT NOT NULL,
		patient_phone TEXT NOT NULL,
		doctor_id TEXT NOT NULL,
		doctor_name TEXT NOT NULL,
		specialization TEXT NOT NULL,
		location TEXT NOT NULL,
		appointment_date TEXT NOT NULL,
		appointment_time TEXT NOT NULL,
		reason TEXT,
		previous_reports TEXT,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_appointments_user ON appointments(user_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_active_slot
		ON appointments(doctor_id, appointment_date, appointment_time)
		WHERE status != 'cancelled';

	CREATE TABLE IF NOT EXISTS emergency_reports (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		emergency_type TEXT NOT NULL,
		location TEXT NOT NULL,
		description TEXT NOT NULL,
		contact_name TEXT,
		contact_phone TEXT,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_emergency_created ON emergency_reports(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func (c *Client) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, name, email, phone, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := c.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.CreatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	logger.Info("User created", zap.String("user_id", user.ID))
	return nil
}

func (c *Client) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return c.getUser(ctx, `SELECT id, name, email, phone, password_hash, created_at FROM users WHERE email = ?`, email)
}

func (c *Client) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return c.getUser(ctx, `SELECT id, name, email, phone, password_hash, created_at FROM users WHERE id = ?`, id)
}

func (c *Client) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	var u models.User
	var createdAt int64

	err := c.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.PasswordHash,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.CreatedAt = time.Unix(createdAt, 0)
	return &u, nil
}

// InsertReport stores the report and its chunks in one transaction.
func (c *Client) InsertReport(ctx context.Context, report *models.Report, chunks []models.ReportChunk) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reports (id, user_id, filename, report_type, content_type, object_key, size_bytes, chunk_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID,
		report.UserID,
		report.Filename,
		report.ReportType,
		report.ContentType,
		report.ObjectKey,
		report.SizeBytes,
		len(chunks),
		report.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO report_chunks (id, report_id, chunk_index, text, embedding_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		_, err := stmt.ExecContext(ctx,
			chunk.ID,
			report.ID,
			chunk.ChunkIndex,
			chunk.Text,
			chunk.EmbeddingID,
			chunk.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}

	report.ChunkCount = len(chunks)
	logger.Debug("Report inserted", zap.String("report_id", report.ID), zap.Int("chunks", len(chunks)))
	return nil
}

// DeleteReport removes a report and its chunks. Deleting a missing report is not an error.
func (c *Client) DeleteReport(ctx context.Context, id string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM report_chunks WHERE report_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report delete: %w", err)
	}

	logger.Debug("Report deleted", zap.String("report_id", id))
	return nil
}

func (c *Client) GetReport(ctx context.Context, id string) (*models.Report, error) {
	query := `SELECT id, user_id, filename, report_type, content_type, object_key, size_bytes, chunk_count, created_at FROM reports WHERE id = ?`

	var r models.Report
	var createdAt int64

	err := c.db.QueryRowContext(ctx, query, id).Scan(
		&r.ID,
		&r.UserID,
		&r.Filename,
		&r.ReportType,
		&r.ContentType,
		&r.ObjectKey,
		&r.SizeBytes,
		&r.ChunkCount,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	r.CreatedAt = time.Unix(createdAt, 0)
	return &r, nil
}

func (c *Client) ListReports(ctx context.Context, userID string) ([]models.Report, error) {
	query := `
		SELECT id, user_id, filename, report_type, content_type, object_key, size_bytes, chunk_count, created_at
		FROM reports
		WHERE user_id = ?
		ORDER BY created_at DESC
	`

	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var r models.Report
		var createdAt int64

		err := rows.Scan(&r.ID, &r.UserID, &r.Filename, &r.ReportType, &r.ContentType, &r.ObjectKey, &r.SizeBytes, &r.ChunkCount, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		reports = append(reports, r)
	}

	return reports, rows.Err()
}

func (c *Client) CountReports(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return n, nil
}

func (c *Client) InsertQueryRecord(ctx context.Context, record *models.QueryRecord) error {
	query := `
		INSERT INTO query_history (id, user_id, report_id, perspective, query_text, response,
			chunks_used, cached, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	cached := 0
	if record.Cached {
		cached = 1
	}

	_, err := c.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.ReportID,
		record.Perspective,
		record.QueryText,
		record.Response,
		record.ChunksUsed,
		cached,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	logger.Info("Query recorded",
		zap.String("query_id", record.ID),
		zap.String("perspective", record.Perspective),
		zap.Int("chunks_used", record.ChunksUsed),
	)

	return nil
}

func (c *Client) GetQueryHistory(ctx context.Context, userID string, limit int) ([]models.QueryRecord, error) {
	query := `
		SELECT id, report_id, perspective, query_text, response, chunks_used, cached, latency_ms, created_at
		FROM query_history
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get query history: %w", err)
	}
	defer rows.Close()

	var records []models.QueryRecord
	for rows.Next() {
		var r models.QueryRecord
		var createdAt int64
		var cached int

		err := rows.Scan(&r.ID, &r.ReportID, &r.Perspective, &r.QueryText, &r.Response, &r.ChunksUsed, &cached, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.UserID = userID
		r.Cached = cached == 1
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) InsertAppointment(ctx context.Context, a *models.Appointment) error {
	reportsJSON, err := json.Marshal(a.PreviousReports)
	if err != nil {
		return fmt.Errorf("failed to encode previous reports: %w", err)
	}

	query := `
		INSERT INTO appointments (id, user_id, patient_name, patient_age, patient_email, patient_phone,
			doctor_id, doctor_name, specialization, location, appointment_date, appointment_time,
			reason, previous_reports, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.ExecContext(ctx, query,
		a.ID,
		a.UserID,
		a.PatientName,
		a.PatientAge,
		a.PatientEmail,
		a.PatientPhone,
		a.DoctorID,
		a.DoctorName,
		a.Specialization,
		a.Location,
		a.Date,
		a.Time,
		a.Reason,
		string(reportsJSON),
		string(a.Status),
		a.CreatedAt.Unix(),
		a.UpdatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert appointment: %w", err)
	}

	logger.Info("Appointment stored",
		zap.String("appointment_id", a.ID),
		zap.String("doctor_id", a.DoctorID),
		zap.String("date", a.Date),
		zap.String("time", a.Time),
	)
	return nil
}

const appointmentColumns = `id, user_id, patient_name, patient_age, patient_email, patient_phone,
	doctor_id, doctor_name, specialization, location, appointment_date, appointment_time,
	reason, previous_reports, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var a models.Appointment
	var reportsJSON, status string
	var createdAt, updatedAt int64

	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.PatientName,
		&a.PatientAge,
		&a.PatientEmail,
		&a.PatientPhone,
		&a.DoctorID,
		&a.DoctorName,
		&a.Specialization,
		&a.Location,
		&a.Date,
		&a.Time,
		&a.Reason,
		&reportsJSON,
		&status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if reportsJSON != "" {
		if err := json.Unmarshal([]byte(reportsJSON), &a.PreviousReports); err != nil {
			return nil, fmt.Errorf("failed to decode previous reports of appointment %s: %w", a.ID, err)
		}
	}
	a.Status = models.AppointmentStatus(status)
	a.CreatedAt = time.Unix(createdAt, 0)
	a.UpdatedAt = time.Unix(updatedAt, 0)
	return &a, nil
}

func (c *Client) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)

	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return a, nil
}

func (c *Client) ListAppointments(ctx context.Context, userID string) ([]models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE user_id = ? ORDER BY appointment_date, appointment_time`

	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var out []models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, *a)
	}

	return out, rows.Err()
}

// SlotTaken reports whether a non-cancelled appointment already holds the doctor's slot.
func (c *Client) SlotTaken(ctx context.Context, doctorID, date, slot string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM appointments
		WHERE doctor_id = ? AND appointment_date = ? AND appointment_time = ? AND status != ?
	`

	var n int
	err := c.db.QueryRowContext(ctx, query, doctorID, date, slot, string(models.AppointmentCancelled)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check slot: %w", err)
	}
	return n > 0, nil
}

func (c *Client) UpdateAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE appointments SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *Client) InsertEmergencyReport(ctx context.Context, r *models.EmergencyReport) error {
	query := `
		INSERT INTO emergency_reports (id, user_id, emergency_type, location, description,
			contact_name, contact_phone, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		r.ID,
		r.UserID,
		r.Type,
		r.Location,
		r.Description,
		r.ContactName,
		r.ContactPhone,
		r.Status,
		r.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert emergency report: %w", err)
	}

	logger.Warn("Emergency report stored",
		zap.String("report_id", r.ID),
		zap.String("type", r.Type),
		zap.String("location", r.Location),
	)
	return nil
}

func (c *Client) ListEmergencyReports(ctx context.Context, userID string) ([]models.EmergencyReport, error) {
	query := `
		SELECT id, user_id, emergency_type, location, description, contact_name, contact_phone, status, created_at
		FROM emergency_reports
		WHERE user_id = ?
		ORDER BY created_at DESC
	`

	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list emergency reports: %w", err)
	}
	defer rows.Close()

	var out []models.EmergencyReport
	for rows.Next() {
		var r models.EmergencyReport
		var createdAt int64

		err := rows.Scan(&r.ID, &r.UserID, &r.Type, &r.Location, &r.Description, &r.ContactName, &r.ContactPhone, &r.Status, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, r)
	}

	return out, rows.Err()
}
