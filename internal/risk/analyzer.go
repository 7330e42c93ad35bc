package risk

import (
	"context"
	"math"
	"sort"
	"time"
)

// lookback caps per-student history reads; streak and trend only ever see
// this many sessions, so analyzer cost scales with students, not history.
const lookback = 10

// StudentStats is the per-student aggregate the analyzer starts from.
// TotalSessions counts sessions that existed for the student's enrollments
// regardless of marking, so exhaustive absence still counts.
type StudentStats struct {
	StudentID        string
	Name             string
	Email            string
	TotalSessions    int
	AttendedSessions int
	LastAttendance   *time.Time
}

// Store is the read-only persistence surface of the analyzer.
type Store interface {
	EnrolledStudentStats(ctx context.Context, teacherID string) ([]StudentStats, error)
	RecentPresence(ctx context.Context, teacherID, studentID string, limit int) ([]bool, error)
	ActiveSessionCount(ctx context.Context, teacherID string) (int, error)
	EnrolledStudentCount(ctx context.Context, teacherID string) (int, error)
	AverageAttendanceRate(ctx context.Context, teacherID string) (float64, error)
}

// Snapshot is a derived, request-scoped risk assessment. Never persisted.
type Snapshot struct {
	StudentID           string     `json:"student_id"`
	Name                string     `json:"full_name"`
	Email               string     `json:"email"`
	AttendancePercent   int        `json:"attendance_percent"`
	ConsecutiveAbsences int        `json:"consecutive_absences"`
	Trend               Trend      `json:"trend"`
	RiskLevel           Level      `json:"risk_level"`
	LastAttendance      *time.Time `json:"last_attendance_date,omitempty"`
}

// Breakdown counts the risk population per tier.
type Breakdown struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Report is the at-risk population for one teacher.
type Report struct {
	Total     int        `json:"total"`
	Breakdown Breakdown  `json:"breakdown"`
	Students  []Snapshot `json:"students"`
}

// Stats is the teacher dashboard summary.
type Stats struct {
	ActiveSessions  int       `json:"active_sessions"`
	TotalStudents   int       `json:"total_students"`
	AvgAttendance   int       `json:"avg_attendance"`
	AtRisk          int       `json:"at_risk"`
	AtRiskBreakdown Breakdown `json:"at_risk_breakdown"`
}

// Analyzer computes risk reports on demand. Read-only and side-effect free;
// safe to run concurrently with marking and rotation, tolerating slightly
// stale reads.
type Analyzer struct {
	store Store
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(store Store) *Analyzer {
	return &Analyzer{store: store}
}

// AtRisk classifies every student enrolled in the teacher's courses.
// Students with zero session history are excluded entirely; students
// matching no risk rule are omitted from the report. Results sort by tier
// (high first) then ascending attendance percent.
func (a *Analyzer) AtRisk(ctx context.Context, teacherID string) (*Report, error) {
	stats, err := a.store.EnrolledStudentStats(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	report := &Report{Students: []Snapshot{}}
	for _, student := range stats {
		if student.TotalSessions == 0 {
			continue
		}
		percent := int(math.Round(float64(student.AttendedSessions) / float64(student.TotalSessions) * 100))

		recent, err := a.store.RecentPresence(ctx, teacherID, student.StudentID, lookback)
		if err != nil {
			return nil, err
		}
		streak := ConsecutiveAbsences(recent)
		trend := TrendOf(recent)

		level, atRisk := Classify(percent, streak, trend)
		if !atRisk {
			continue
		}

		report.Students = append(report.Students, Snapshot{
			StudentID:           student.StudentID,
			Name:                student.Name,
			Email:               student.Email,
			AttendancePercent:   percent,
			ConsecutiveAbsences: streak,
			Trend:               trend,
			RiskLevel:           level,
			LastAttendance:      student.LastAttendance,
		})
		switch level {
		case LevelHigh:
			report.Breakdown.High++
		case LevelMedium:
			report.Breakdown.Medium++
		case LevelLow:
			report.Breakdown.Low++
		}
	}

	sort.SliceStable(report.Students, func(i, j int) bool {
		a, b := report.Students[i], report.Students[j]
		if a.RiskLevel != b.RiskLevel {
			return a.RiskLevel.rank() < b.RiskLevel.rank()
		}
		return a.AttendancePercent < b.AttendancePercent
	})
	report.Total = len(report.Students)
	return report, nil
}

// TeacherStats assembles the dashboard summary for a teacher.
func (a *Analyzer) TeacherStats(ctx context.Context, teacherID string) (*Stats, error) {
	active, err := a.store.ActiveSessionCount(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	students, err := a.store.EnrolledStudentCount(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	avgRate, err := a.store.AverageAttendanceRate(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	report, err := a.AtRisk(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	return &Stats{
		ActiveSessions:  active,
		TotalStudents:   students,
		AvgAttendance:   int(math.Round(avgRate)),
		AtRisk:          report.Total,
		AtRiskBreakdown: report.Breakdown,
	}, nil
}
