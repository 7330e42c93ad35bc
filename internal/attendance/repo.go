package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"classattend/internal/store"
)

// Repository persists attendance facts in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new presence fact. The unique constraint on
// (session_id, student_id) is the authoritative exactly-once guard: a
// violation surfaces as ErrAlreadyMarked, so two concurrent marks from the
// same student race safely.
func (r *Repository) Insert(ctx context.Context, att Attendance) (Attendance, error) {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	if att.CapturedAt.IsZero() {
		att.CapturedAt = time.Now().UTC()
	}
	if att.Status == "" {
		att.Status = StatusPresent
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (id, session_id, student_id, status, device_id, latitude, longitude, captured_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, att.ID, att.SessionID, att.StudentID, att.Status, att.DeviceID, att.Latitude, att.Longitude, att.CapturedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return Attendance{}, fmt.Errorf("session %s student %s: %w", att.SessionID, att.StudentID, ErrAlreadyMarked)
		}
		return Attendance{}, err
	}
	return att, nil
}

// GetByID returns a single fact by id, nil when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*Attendance, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, student_id, status, device_id, latitude, longitude, captured_at
		FROM attendance WHERE id = $1
	`, id)
	var att Attendance
	err := row.Scan(&att.ID, &att.SessionID, &att.StudentID, &att.Status,
		&att.DeviceID, &att.Latitude, &att.Longitude, &att.CapturedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &att, nil
}

// Roster returns every enrolled student for the session's course with their
// status for this session. Drives from enrollments outward so students with
// no attendance row still appear, as absent.
func (r *Repository) Roster(ctx context.Context, sessionID string) ([]RosterEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.full_name,
		       COALESCE(a.status, 'absent') AS status,
		       a.captured_at
		FROM sessions s
		JOIN enrollments e ON e.course_id = s.course_id
		JOIN users u ON u.id = e.student_id
		LEFT JOIN attendance a ON a.session_id = s.id AND a.student_id = u.id
		WHERE s.id = $1
		ORDER BY status DESC, u.full_name ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []RosterEntry
	for rows.Next() {
		var entry RosterEntry
		if err := rows.Scan(&entry.StudentID, &entry.Name, &entry.Status, &entry.CapturedAt); err != nil {
			return nil, err
		}
		res = append(res, entry)
	}
	return res, rows.Err()
}

// History returns the student's own attendance records, most recent session
// first.
func (r *Repository) History(ctx context.Context, studentID string) ([]HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.session_id, c.course_name, a.status, s.created_at, a.captured_at
		FROM attendance a
		JOIN sessions s ON s.id = a.session_id
		JOIN courses c ON c.id = s.course_id
		WHERE a.student_id = $1
		ORDER BY s.created_at DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		if err := rows.Scan(&entry.SessionID, &entry.CourseName, &entry.Status, &entry.SessionDate, &entry.CapturedAt); err != nil {
			return nil, err
		}
		res = append(res, entry)
	}
	return res, rows.Err()
}

// CourseLog returns all facts across a course's sessions, most recent
// session first.
func (r *Repository) CourseLog(ctx context.Context, courseID string) ([]CourseRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.session_id, a.student_id, u.full_name, a.status, s.created_at, a.captured_at
		FROM attendance a
		JOIN users u ON u.id = a.student_id
		JOIN sessions s ON s.id = a.session_id
		WHERE s.course_id = $1
		ORDER BY s.created_at DESC
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []CourseRecord
	for rows.Next() {
		var rec CourseRecord
		if err := rows.Scan(&rec.SessionID, &rec.StudentID, &rec.StudentName, &rec.Status, &rec.SessionDate, &rec.CapturedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// DeviceReuseCount counts facts in a session sharing a device with other
// students. Used by the worker to spot one phone marking several students.
func (r *Repository) DeviceReuseCount(ctx context.Context, sessionID, deviceID, studentID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance
		WHERE session_id = $1 AND device_id = $2 AND student_id <> $3
	`, sessionID, deviceID, studentID).Scan(&n)
	return n, err
}

// InsertFlag records an anomaly over an existing fact.
func (r *Repository) InsertFlag(ctx context.Context, f Flag) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mark_flags (id, session_id, student_id, device_id, reason)
		VALUES ($1,$2,$3,$4,$5)
	`, f.ID, f.SessionID, f.StudentID, f.DeviceID, f.Reason)
	return err
}

// Flags lists anomalies raised for a session.
func (r *Repository) Flags(ctx context.Context, sessionID string) ([]Flag, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, student_id, device_id, reason, created_at
		FROM mark_flags WHERE session_id = $1 ORDER BY created_at DESC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Flag
	for rows.Next() {
		var f Flag
		if err := rows.Scan(&f.ID, &f.SessionID, &f.StudentID, &f.DeviceID, &f.Reason, &f.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}
