package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"classattend/internal/credential"
	"classattend/internal/store"
)

// pinAttempts bounds the re-roll loop when a freshly drawn PIN collides
// with another live session.
const pinAttempts = 5

// createAttempts bounds retries when the token unique index rejects an
// insert. With 128 bits of token entropy this effectively never loops.
const createAttempts = 3

// Service governs session lifecycle transitions.
type Service struct {
	store         Store
	window        time.Duration
	defaultRadius float64
	now           func() time.Time
}

// NewService creates a lifecycle service. window is the fixed validity
// window applied at start; defaultRadius is used when a fence is requested
// without an explicit radius.
func NewService(store Store, window time.Duration, defaultRadius float64) *Service {
	if window <= 0 {
		window = 45 * time.Minute
	}
	if defaultRadius <= 0 {
		defaultRadius = 50
	}
	return &Service{store: store, window: window, defaultRadius: defaultRadius, now: time.Now}
}

// Start opens a new session for the course: any previously active session
// for the course is deactivated in the same transaction, then a fresh
// token+PIN pair is issued. Only the owning teacher may start.
func (s *Service) Start(ctx context.Context, teacherID, courseID string, fence *Fence) (*Session, error) {
	owner, err := s.store.CourseTeacher(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if owner != teacherID {
		return nil, fmt.Errorf("course %s not owned by teacher: %w", courseID, ErrForbidden)
	}

	pin, err := s.freshPIN(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		CreatedBy: teacherID,
		PIN:       pin,
		IsActive:  true,
		ExpiresAt: now.Add(s.window),
		CreatedAt: now,
	}
	if fence != nil {
		lat, lon := fence.Latitude, fence.Longitude
		radius := fence.RadiusMeters
		if radius <= 0 {
			radius = s.defaultRadius
		}
		sess.Latitude, sess.Longitude, sess.RadiusMeters = &lat, &lon, &radius
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		sess.Token, err = credential.NewToken()
		if err != nil {
			return nil, err
		}
		err = s.store.Create(ctx, sess)
		if err == nil {
			return &sess, nil
		}
		if !store.IsUniqueViolation(err) {
			return nil, err
		}
	}
	return nil, err
}

// Rotate issues a replacement token for a live session, leaving the PIN
// untouched. The old token stops validating as soon as the new one is
// stored; expiry is not extended.
func (s *Service) Rotate(ctx context.Context, teacherID, sessionID string) (string, error) {
	sess, err := s.owned(ctx, teacherID, sessionID)
	if err != nil {
		return "", err
	}
	if !sess.Live(s.now()) {
		return "", fmt.Errorf("session %s: %w", sessionID, ErrNotActive)
	}
	token, err := credential.NewToken()
	if err != nil {
		return "", err
	}
	if err := s.store.SetToken(ctx, sessionID, token); err != nil {
		return "", err
	}
	return token, nil
}

// End deactivates a session unconditionally. Terminal: no further rotation
// or marking is accepted afterward.
func (s *Service) End(ctx context.Context, teacherID, sessionID string) error {
	if _, err := s.owned(ctx, teacherID, sessionID); err != nil {
		return err
	}
	return s.store.Deactivate(ctx, sessionID)
}

// ActiveFor returns the teacher's currently live session, nil when there is
// none. Side-effect free; used by clients to resume after a page reload.
func (s *Service) ActiveFor(ctx context.Context, teacherID string) (*Session, error) {
	return s.store.ActiveForTeacher(ctx, teacherID)
}

func (s *Service) owned(ctx context.Context, teacherID, sessionID string) (*Session, error) {
	sess, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	owner, err := s.store.CourseTeacher(ctx, sess.CourseID)
	if err != nil {
		return nil, err
	}
	if owner != teacherID {
		return nil, fmt.Errorf("session %s not owned by teacher: %w", sessionID, ErrForbidden)
	}
	return sess, nil
}

// freshPIN draws PINs until one is not held by another live session.
// Collisions across courses are tolerable (lookups also require activeness),
// but cheap to avoid while a free value exists.
func (s *Service) freshPIN(ctx context.Context) (string, error) {
	var pin string
	var err error
	for attempt := 0; attempt < pinAttempts; attempt++ {
		pin, err = credential.NewPIN()
		if err != nil {
			return "", err
		}
		inUse, err := s.store.ActivePINInUse(ctx, pin)
		if err != nil {
			return "", err
		}
		if !inUse {
			return pin, nil
		}
	}
	return pin, nil
}
