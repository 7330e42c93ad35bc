package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"classattend/internal/store"
)

// Store is the persistence surface the lifecycle service needs.
type Store interface {
	CourseTeacher(ctx context.Context, courseID string) (string, error)
	Create(ctx context.Context, s Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	SetToken(ctx context.Context, id, token string) error
	Deactivate(ctx context.Context, id string) error
	ActiveForTeacher(ctx context.Context, teacherID string) (*Session, error)
	ActivePINInUse(ctx context.Context, pin string) (bool, error)
}

// Repository persists sessions in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const sessionColumns = `id, course_id, created_by, token, pin, latitude, longitude, radius_meters, is_active, expires_at, created_at`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.CourseID, &s.CreatedBy, &s.Token, &s.PIN,
		&s.Latitude, &s.Longitude, &s.RadiusMeters, &s.IsActive, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// CourseTeacher returns the owning teacher of a course, or ErrNotFound.
func (r *Repository) CourseTeacher(ctx context.Context, courseID string) (string, error) {
	var teacherID string
	err := r.db.QueryRowContext(ctx,
		`SELECT teacher_id FROM courses WHERE id = $1`, courseID).Scan(&teacherID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}
	return teacherID, err
}

// Create deactivates any currently-active session for the course and inserts
// the new one in a single transaction, so there is no window with two active
// sessions for one course.
func (r *Repository) Create(ctx context.Context, s Session) error {
	return store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET is_active = FALSE WHERE course_id = $1 AND is_active`, s.CourseID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, course_id, created_by, token, pin, latitude, longitude, radius_meters, is_active, expires_at, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, s.ID, s.CourseID, s.CreatedBy, s.Token, s.PIN,
			s.Latitude, s.Longitude, s.RadiusMeters, s.IsActive, s.ExpiresAt, s.CreatedAt)
		return err
	})
}

// GetByID returns a session by id, nil when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// SetToken overwrites the session token. The old token stops validating the
// instant this commits; lookups always read the stored row, never a cache.
func (r *Repository) SetToken(ctx context.Context, id, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET token = $2 WHERE id = $1`, id, token)
	return err
}

// Deactivate ends a session unconditionally.
func (r *Repository) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = FALSE WHERE id = $1`, id)
	return err
}

// ActiveForTeacher returns the teacher's single live session, nil when none.
// Expiry is applied lazily in the predicate.
func (r *Repository) ActiveForTeacher(ctx context.Context, teacherID string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT s.id, s.course_id, s.created_by, s.token, s.pin, s.latitude, s.longitude, s.radius_meters, s.is_active, s.expires_at, s.created_at
		FROM sessions s
		JOIN courses c ON c.id = s.course_id
		WHERE c.teacher_id = $1 AND s.is_active AND s.expires_at > NOW()
		ORDER BY s.created_at DESC
		LIMIT 1
	`, teacherID)
	return scanSession(row)
}

// ActivePINInUse reports whether a live session already holds the PIN.
func (r *Repository) ActivePINInUse(ctx context.Context, pin string) (bool, error) {
	var inUse bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sessions WHERE pin = $1 AND is_active AND expires_at > NOW())`,
		pin).Scan(&inUse)
	return inUse, err
}

// FindActiveByToken resolves a token to its live session, nil when no live
// session carries it. Used by the attendance recorder.
func (r *Repository) FindActiveByToken(ctx context.Context, token string) (*Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE token = $1 AND is_active AND expires_at > NOW()`,
		token)
	return scanSession(row)
}

// FindActiveByPIN resolves a PIN to the first live session carrying it.
// PINs are not globally unique; the activeness predicate bounds the risk.
func (r *Repository) FindActiveByPIN(ctx context.Context, pin string) (*Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE pin = $1 AND is_active AND expires_at > NOW() ORDER BY created_at DESC LIMIT 1`,
		pin)
	return scanSession(row)
}
