package risk

import (
	"context"
	"database/sql"
)

// Repository reads attendance aggregates from Postgres. All queries drive
// from enrollments outward with left joins so never-attending students are
// counted, not dropped.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnrolledStudentStats aggregates session and attendance counts per student
// across the teacher's courses. Students with no session history are
// filtered out here; they cannot be assessed.
func (r *Repository) EnrolledStudentStats(ctx context.Context, teacherID string) ([]StudentStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.full_name, u.email,
		       COUNT(DISTINCT s.id) AS total_sessions,
		       COUNT(DISTINCT a.session_id) AS attended_sessions,
		       MAX(a.captured_at) AS last_attendance
		FROM users u
		JOIN enrollments e ON e.student_id = u.id
		JOIN courses c ON c.id = e.course_id
		LEFT JOIN sessions s ON s.course_id = c.id
		LEFT JOIN attendance a ON a.session_id = s.id AND a.student_id = u.id AND a.status IN ('present', 'late')
		WHERE c.teacher_id = $1 AND u.role = 'student'
		GROUP BY u.id, u.full_name, u.email
		HAVING COUNT(DISTINCT s.id) > 0
	`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []StudentStats
	for rows.Next() {
		var st StudentStats
		if err := rows.Scan(&st.StudentID, &st.Name, &st.Email, &st.TotalSessions, &st.AttendedSessions, &st.LastAttendance); err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, rows.Err()
}

// RecentPresence returns the student's presence across the teacher's most
// recent sessions, newest first, capped at limit.
func (r *Repository) RecentPresence(ctx context.Context, teacherID, studentID string, limit int) ([]bool, error) {
	if limit <= 0 {
		limit = lookback
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id IS NOT NULL AS present
		FROM sessions s
		JOIN courses c ON c.id = s.course_id
		JOIN enrollments e ON e.course_id = c.id AND e.student_id = $2
		LEFT JOIN attendance a ON a.session_id = s.id AND a.student_id = $2 AND a.status IN ('present', 'late')
		WHERE c.teacher_id = $1
		ORDER BY s.created_at DESC
		LIMIT $3
	`, teacherID, studentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []bool
	for rows.Next() {
		var present bool
		if err := rows.Scan(&present); err != nil {
			return nil, err
		}
		res = append(res, present)
	}
	return res, rows.Err()
}

// ActiveSessionCount counts the teacher's live sessions, applying lazy
// expiry in the predicate.
func (r *Repository) ActiveSessionCount(ctx context.Context, teacherID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM sessions s
		JOIN courses c ON c.id = s.course_id
		WHERE c.teacher_id = $1 AND s.is_active AND s.expires_at > NOW()
	`, teacherID).Scan(&n)
	return n, err
}

// EnrolledStudentCount counts distinct students across the teacher's courses.
func (r *Repository) EnrolledStudentCount(ctx context.Context, teacherID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT e.student_id)
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		WHERE c.teacher_id = $1
	`, teacherID).Scan(&n)
	return n, err
}

// AverageAttendanceRate averages presence over all recorded facts for the
// teacher's courses, as a percentage.
func (r *Repository) AverageAttendanceRate(ctx context.Context, teacherID string) (float64, error) {
	var rate float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(CASE WHEN a.status IN ('present', 'late') THEN 100.0 ELSE 0.0 END), 0)
		FROM attendance a
		JOIN sessions s ON s.id = a.session_id
		JOIN courses c ON c.id = s.course_id
		WHERE c.teacher_id = $1
	`, teacherID).Scan(&rate)
	return rate, err
}
