package store

import "database/sql"

// Migrate applies the schema idempotently at startup.
//
// The UNIQUE constraints carry semantics, not just hygiene: sessions.token
// backs the rotate-and-retry loop, and attendance(session_id, student_id) is
// the exactly-once guard for marks.
func Migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		full_name  TEXT NOT NULL,
		email      TEXT UNIQUE NOT NULL,
		role       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS courses (
		id          TEXT PRIMARY KEY,
		course_name TEXT NOT NULL,
		teacher_id  TEXT NOT NULL REFERENCES users(id),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS enrollments (
		course_id  TEXT NOT NULL REFERENCES courses(id),
		student_id TEXT NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (course_id, student_id)
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id            TEXT PRIMARY KEY,
		course_id     TEXT NOT NULL REFERENCES courses(id),
		created_by    TEXT NOT NULL REFERENCES users(id),
		token         TEXT UNIQUE NOT NULL,
		pin           TEXT NOT NULL,
		latitude      DOUBLE PRECISION,
		longitude     DOUBLE PRECISION,
		radius_meters DOUBLE PRECISION,
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		expires_at    TIMESTAMPTZ NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_active_course ON sessions(course_id) WHERE is_active;
	CREATE INDEX IF NOT EXISTS idx_sessions_active_pin    ON sessions(pin) WHERE is_active;

	CREATE TABLE IF NOT EXISTS attendance (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL REFERENCES sessions(id),
		student_id  TEXT NOT NULL REFERENCES users(id),
		status      TEXT NOT NULL DEFAULT 'present',
		device_id   TEXT,
		latitude    DOUBLE PRECISION,
		longitude   DOUBLE PRECISION,
		captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (session_id, student_id)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_student ON attendance(student_id);

	CREATE TABLE IF NOT EXISTS mark_flags (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		student_id TEXT NOT NULL REFERENCES users(id),
		device_id  TEXT NOT NULL,
		reason     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_mark_flags_session ON mark_flags(session_id);
	`
	_, err := db.Exec(schema)
	return err
}
