package db

// The partial unique index is what makes "one open shift per user" hold under
// concurrent starts: the losing insert hits ON CONFLICT DO NOTHING.

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS shifts (
	id SERIAL PRIMARY KEY,
	external_id TEXT NOT NULL REFERENCES users (external_id),
	department TEXT NOT NULL,
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ,
	duration_minutes INTEGER CHECK (duration_minutes >= 0)
);

CREATE UNIQUE INDEX IF NOT EXISTS shifts_one_open_per_user
	ON shifts (external_id) WHERE end_time IS NULL;

CREATE INDEX IF NOT EXISTS shifts_department_idx ON shifts (department);
`

const sqliteSchema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS shifts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id TEXT NOT NULL REFERENCES users (external_id),
	department TEXT NOT NULL,
	start_time TIMESTAMP NOT NULL,
	end_time TIMESTAMP,
	duration_minutes INTEGER CHECK (duration_minutes >= 0)
);

CREATE UNIQUE INDEX IF NOT EXISTS shifts_one_open_per_user
	ON shifts (external_id) WHERE end_time IS NULL;

CREATE INDEX IF NOT EXISTS shifts_department_idx ON shifts (department);
`
