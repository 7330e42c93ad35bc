package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	courses   map[string]string // course id -> teacher id
	sessions  map[string]*Session
	order     []string
	now       func() time.Time
	pinInUse  int // ActivePINInUse returns true this many times
	pinChecks int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		courses:  map[string]string{"c1": "t1", "c2": "t2"},
		sessions: map[string]*Session{},
		now:      time.Now,
	}
}

func (f *fakeStore) CourseTeacher(_ context.Context, courseID string) (string, error) {
	teacher, ok := f.courses[courseID]
	if !ok {
		return "", ErrNotFound
	}
	return teacher, nil
}

func (f *fakeStore) Create(_ context.Context, s Session) error {
	for _, existing := range f.sessions {
		if existing.CourseID == s.CourseID {
			existing.IsActive = false
		}
	}
	copied := s
	f.sessions[s.ID] = &copied
	f.order = append(f.order, s.ID)
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*Session, error) {
	return f.sessions[id], nil
}

func (f *fakeStore) SetToken(_ context.Context, id, token string) error {
	f.sessions[id].Token = token
	return nil
}

func (f *fakeStore) Deactivate(_ context.Context, id string) error {
	f.sessions[id].IsActive = false
	return nil
}

func (f *fakeStore) ActiveForTeacher(_ context.Context, teacherID string) (*Session, error) {
	for i := len(f.order) - 1; i >= 0; i-- {
		s := f.sessions[f.order[i]]
		if f.courses[s.CourseID] == teacherID && s.Live(f.now()) {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ActivePINInUse(_ context.Context, _ string) (bool, error) {
	f.pinChecks++
	if f.pinInUse > 0 {
		f.pinInUse--
		return true, nil
	}
	return false, nil
}

func (f *fakeStore) activeCount(courseID string) int {
	n := 0
	for _, s := range f.sessions {
		if s.CourseID == courseID && s.IsActive {
			n++
		}
	}
	return n
}

func TestStartIssuesCredentials(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, 45*time.Minute, 50)

	sess, err := svc.Start(context.Background(), "t1", "c1", nil)
	require.NoError(t, err)
	assert.Len(t, sess.Token, 32)
	assert.Len(t, sess.PIN, 4)
	assert.True(t, sess.IsActive)
	assert.Nil(t, sess.Latitude)
	assert.WithinDuration(t, time.Now().Add(45*time.Minute), sess.ExpiresAt, 5*time.Second)
}

func TestStartSingleActivePerCourse(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, 45*time.Minute, 50)

	first, err := svc.Start(context.Background(), "t1", "c1", nil)
	require.NoError(t, err)
	second, err := svc.Start(context.Background(), "t1", "c1", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, fs.activeCount("c1"))
	assert.False(t, fs.sessions[first.ID].IsActive)
	assert.True(t, fs.sessions[second.ID].IsActive)
}

func TestStartForbiddenForNonOwner(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, 45*time.Minute, 50)

	_, err := svc.Start(context.Background(), "t1", "c2", nil)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestStartUnknownCourse(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, 45*time.Minute, 50)

	_, err := svc.Start(context.Background(), "t1", "missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartAppliesDefaultRadius(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, 45*time.Minute, 50)

	sess, err := svc.Start(context.Background(), "t1", "c1", &Fence{Latitude: 22.5726, Longitude: 88.3639})
	require.NoError(t, err)
	require.True(t, sess.HasFence())
	assert.Equal(t, 50.0, *sess.RadiusMeters)
}

func TestStartRerollsCollidingPIN(t *testing.T) {
	fs := newFakeStore()
	fs.pinInUse = 2
	svc := NewService(fs, 45*time.Minute, 50)

	_, err := svc.Start(context.Background(), "t1", "c1", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, fs.pinChecks)
}

func TestRotateReplacesTokenOnly(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, 45*time.Minute, 50)

	sess, err := svc.Start(context.Background(), "t1", "c1", nil)
	require.NoError(t, err)
	oldToken, pin := sess.Token, sess.PIN

	newToken, err := svc.Rotate(context.Background(), "t1", sess.ID)
	require.NoError(t, err)
	assert.NotEqual(t, oldToken, newToken)
	assert.Equal(t, newToken, fs.sessions[sess.ID].Token)
	assert.Equal(t, pin, fs.sessions[sess.ID].PIN)
	assert.Equal(t, sess.ExpiresAt, fs.sessions[sess.ID].ExpiresAt)
}

func TestRotateForbiddenForNonOwner(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, 45*time.Minute, 50)

	sess, err := svc.Start(context.Background(), "t1", "c1", nil)
	require.NoError(t, err)

	_, err = svc.Rotate(context.Background(), "t2", sess.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRotateEndedSession(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, 45*time.Minute, 50)

	sess, err := svc.Start(context.Background(), "t1", "c1", nil)
	require.NoError(t, err)
	require.NoError(t, svc.End(context.Background(), "t1", sess.ID))

	_, err = svc.Rotate(context.Background(), "t1", sess.ID)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestRotateExpiredSession(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, 45*time.Minute, 50)

	sess, err := svc.Start(context.Background(), "t1", "c1", nil)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = svc.Rotate(context.Background(), "t1", sess.ID)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestActiveForResumesLiveSession(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, 45*time.Minute, 50)

	sess, err := svc.Start(context.Background(), "t1", "c1", nil)
	require.NoError(t, err)

	got, err := svc.ActiveFor(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.ID, got.ID)

	none, err := svc.ActiveFor(context.Background(), "t2")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestActiveForLazyExpiry(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, 45*time.Minute, 50)

	_, err := svc.Start(context.Background(), "t1", "c1", nil)
	require.NoError(t, err)

	// The active flag is still set, but expiry makes the session invisible.
	fs.now = func() time.Time { return time.Now().Add(time.Hour) }
	got, err := svc.ActiveFor(context.Background(), "t1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
