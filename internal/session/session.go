// Package session owns the attendance session lifecycle: starting a
// time-boxed session for a course, rotating its token, and ending it.
package session

import (
	"errors"
	"time"
)

var (
	// ErrNotFound means the session or course lookup failed.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the principal does not own the course or session.
	ErrForbidden = errors.New("forbidden")
	// ErrNotActive means the session has ended or expired.
	ErrNotActive = errors.New("session not active")
)

// Session is one live, time-boxed attendance-taking window tied to a course.
// Sessions are never deleted; ended and expired sessions are retained for
// analytics.
type Session struct {
	ID           string    `json:"id"`
	CourseID     string    `json:"course_id"`
	CreatedBy    string    `json:"created_by"`
	Token        string    `json:"token"`
	PIN          string    `json:"pin"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	RadiusMeters *float64  `json:"radius_meters,omitempty"`
	IsActive     bool      `json:"is_active"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasFence reports whether the session defines a geofence center.
func (s *Session) HasFence() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// Live reports whether the session accepts credentials at the given instant.
// Expiry is evaluated lazily here; there is no background sweep flipping
// the active flag.
func (s *Session) Live(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

// Fence is the geographic admission region requested at session start.
type Fence struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}
