// Package attendance records presence facts and serves the read models
// built on them.
//
// Absence is never materialized: a student is absent for a session exactly
// when no present-row exists. Every consumer must therefore drive from the
// enrollment roster outward and left-join attendance, never query
// attendance alone, or never-attending students silently disappear.
package attendance

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Attendance status values. Only present is ever written by the recorder;
// late may exist in imported data and counts as attended. absent is derived
// at read time and never stored.
const (
	StatusPresent = "present"
	StatusLate    = "late"
	StatusAbsent  = "absent"
)

var (
	// ErrSessionNotFound means neither token nor PIN resolved to a live
	// session. Deliberately conflates wrong code, expired, and ended.
	ErrSessionNotFound = errors.New("no active session for credential")
	// ErrAlreadyMarked means attendance already exists for (session, student).
	ErrAlreadyMarked = errors.New("attendance already marked")
	// ErrLocationRequired means the session has a fence but the caller
	// supplied no coordinates.
	ErrLocationRequired = errors.New("location required")
)

// FenceError reports a mark attempt from outside the session's geofence.
// Distance is unrounded; rounding happens only when rendering the message.
type FenceError struct {
	DistanceMeters float64
	RadiusMeters   float64
}

func (e *FenceError) Error() string {
	return fmt.Sprintf("outside class range: %dm away (max %dm)",
		int(math.Round(e.DistanceMeters)), int(math.Round(e.RadiusMeters)))
}

// Attendance is an immutable presence fact, created exactly once per
// (session, student) and never updated or deleted.
type Attendance struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	StudentID  string    `json:"student_id"`
	Status     string    `json:"status"`
	DeviceID   *string   `json:"device_id,omitempty"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// RosterEntry is one row of the live roster: every enrolled student, with
// absent filled in for missing facts.
type RosterEntry struct {
	StudentID  string     `json:"student_id"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

// HistoryEntry is one row of a student's own attendance history.
type HistoryEntry struct {
	SessionID   string    `json:"session_id"`
	CourseName  string    `json:"course_name"`
	Status      string    `json:"status"`
	SessionDate time.Time `json:"session_date"`
	CapturedAt  time.Time `json:"captured_at"`
}

// CourseRecord is one row of a course's attendance log.
type CourseRecord struct {
	SessionID   string    `json:"session_id"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	Status      string    `json:"status"`
	SessionDate time.Time `json:"session_date"`
	CapturedAt  time.Time `json:"captured_at"`
}

// FlagDeviceReuse marks a device that submitted marks for more than one
// student in the same session.
const FlagDeviceReuse = "device_reuse"

// Flag is an anomaly raised by the worker over an attendance fact, kept in
// a side table so the fact itself stays immutable.
type Flag struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	StudentID string    `json:"student_id"`
	DeviceID  string    `json:"device_id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
