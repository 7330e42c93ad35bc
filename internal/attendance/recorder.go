package attendance

import (
	"context"
	"fmt"
	"time"

	"classattend/internal/geo"
	"classattend/internal/session"
)

// SessionDirectory resolves credentials and ownership against the session
// store. Lookups apply lazy expiry; a stale-flagged but expired session is
// simply not found.
type SessionDirectory interface {
	FindActiveByToken(ctx context.Context, token string) (*session.Session, error)
	FindActiveByPIN(ctx context.Context, pin string) (*session.Session, error)
	GetByID(ctx context.Context, id string) (*session.Session, error)
	CourseTeacher(ctx context.Context, courseID string) (string, error)
}

// Store is the persistence surface the recorder needs.
type Store interface {
	Insert(ctx context.Context, att Attendance) (Attendance, error)
	Roster(ctx context.Context, sessionID string) ([]RosterEntry, error)
	History(ctx context.Context, studentID string) ([]HistoryEntry, error)
	CourseLog(ctx context.Context, courseID string) ([]CourseRecord, error)
	Flags(ctx context.Context, sessionID string) ([]Flag, error)
}

// MarkRequest is a student's attempt to mark themselves present.
type MarkRequest struct {
	Token     string   `json:"session_token"`
	PIN       string   `json:"pin"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	DeviceID  string   `json:"device_id"`
}

// Recorder validates mark requests against the live session and the
// geofence, and writes presence facts exactly once per (session, student).
type Recorder struct {
	sessions SessionDirectory
	store    Store
	now      func() time.Time
}

// NewRecorder creates a recorder.
func NewRecorder(sessions SessionDirectory, store Store) *Recorder {
	return &Recorder{sessions: sessions, store: store, now: time.Now}
}

// Mark resolves the credential (token first, PIN as fallback), applies the
// geofence gate, and persists the fact. Duplicate marks surface as
// ErrAlreadyMarked without creating a second row.
func (r *Recorder) Mark(ctx context.Context, studentID string, req MarkRequest) (*Attendance, error) {
	sess, err := r.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	if sess.HasFence() {
		if req.Latitude == nil || req.Longitude == nil {
			return nil, ErrLocationRequired
		}
		radius := 50.0
		if sess.RadiusMeters != nil {
			radius = *sess.RadiusMeters
		}
		distance := geo.DistanceMeters(*sess.Latitude, *sess.Longitude, *req.Latitude, *req.Longitude)
		if distance > radius {
			return nil, &FenceError{DistanceMeters: distance, RadiusMeters: radius}
		}
	}

	att := Attendance{
		SessionID:  sess.ID,
		StudentID:  studentID,
		Status:     StatusPresent,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		CapturedAt: r.now().UTC(),
	}
	if req.DeviceID != "" {
		deviceID := req.DeviceID
		att.DeviceID = &deviceID
	}
	created, err := r.store.Insert(ctx, att)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *Recorder) resolve(ctx context.Context, req MarkRequest) (*session.Session, error) {
	if req.Token != "" {
		sess, err := r.sessions.FindActiveByToken(ctx, req.Token)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			return sess, nil
		}
	}
	if req.PIN != "" {
		sess, err := r.sessions.FindActiveByPIN(ctx, req.PIN)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			return sess, nil
		}
	}
	return nil, ErrSessionNotFound
}

// LiveRoster returns the enrollment roster with per-student status for the
// session, present first then by name. Only the owning teacher may read it.
func (r *Recorder) LiveRoster(ctx context.Context, teacherID, sessionID string) ([]RosterEntry, error) {
	if err := r.authorize(ctx, teacherID, sessionID); err != nil {
		return nil, err
	}
	return r.store.Roster(ctx, sessionID)
}

// History returns the student's own records, most recent session first.
func (r *Recorder) History(ctx context.Context, studentID string) ([]HistoryEntry, error) {
	return r.store.History(ctx, studentID)
}

// CourseLog returns the attendance log for a course the teacher owns.
func (r *Recorder) CourseLog(ctx context.Context, teacherID, courseID string) ([]CourseRecord, error) {
	owner, err := r.sessions.CourseTeacher(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if owner != teacherID {
		return nil, fmt.Errorf("course %s not owned by teacher: %w", courseID, session.ErrForbidden)
	}
	return r.store.CourseLog(ctx, courseID)
}

// SessionFlags lists device-reuse anomalies raised for a session the
// teacher owns.
func (r *Recorder) SessionFlags(ctx context.Context, teacherID, sessionID string) ([]Flag, error) {
	if err := r.authorize(ctx, teacherID, sessionID); err != nil {
		return nil, err
	}
	return r.store.Flags(ctx, sessionID)
}

func (r *Recorder) authorize(ctx context.Context, teacherID, sessionID string) error {
	sess, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %s: %w", sessionID, session.ErrNotFound)
	}
	owner, err := r.sessions.CourseTeacher(ctx, sess.CourseID)
	if err != nil {
		return err
	}
	if owner != teacherID {
		return fmt.Errorf("session %s not owned by teacher: %w", sessionID, session.ErrForbidden)
	}
	return nil
}
