// FilePath: internal/repository/postgres/postgres.schema.go
package postgres

import (
	"github.com/smartallotment/hub/internal/database"
	"github.com/smartallotment/hub/internal/errors"
)

// InitializeSchema creates all tables and indexes if they do not exist.
// The uniqueness constraints here are load-bearing: device resolution and
// sensor resolution rely on them for atomic find-or-create, and the
// api_tokens CHECK enforces the one-of-user-or-device owner invariant.
func InitializeSchema(db database.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sites (
			id TEXT PRIMARY KEY,
			site_code TEXT NOT NULL UNIQUE,
			friendly_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS devices (
			id TEXT PRIMARY KEY,
			uid TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT FALSE,
			last_seen TIMESTAMPTZ,
			site_id TEXT REFERENCES sites(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS sensors (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			sensor_name TEXT NOT NULL,
			sensor_type TEXT NOT NULL,
			unit TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_value DOUBLE PRECISION,
			last_seen TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT uq_device_sensor UNIQUE (device_id, sensor_name)
		)`,
		`CREATE TABLE IF NOT EXISTS sensor_data (
			id TEXT PRIMARY KEY,
			site_id TEXT REFERENCES sites(id),
			device_id TEXT NOT NULL REFERENCES devices(id),
			time TIMESTAMPTZ NOT NULL,
			sensor_name TEXT NOT NULL,
			sensor_type TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			unit TEXT NOT NULL DEFAULT '',
			raw JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sensor_data_device_time
			ON sensor_data(device_id, time DESC)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			full_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL CHECK (role IN ('sys_admin', 'user')),
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_login TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS user_site_assignments (
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			site_id TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, site_id)
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			expires_at TIMESTAMPTZ NOT NULL,
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at
			ON sessions(expires_at)`,
		`CREATE TABLE IF NOT EXISTS api_tokens (
			id TEXT PRIMARY KEY,
			token_hash TEXT NOT NULL UNIQUE,
			user_id TEXT REFERENCES users(id) ON DELETE CASCADE,
			device_id TEXT REFERENCES devices(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			scopes TEXT[] NOT NULL DEFAULT '{}',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_used TIMESTAMPTZ,
			expires_at TIMESTAMPTZ,
			created_by TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT chk_token_owner CHECK ((user_id IS NULL) <> (device_id IS NULL))
		)`,
	}

	for _, query := range queries {
		_, err := db.GetDB().Exec(query)
		if err != nil {
			return errors.NewDatabaseError("failed to initialize schema", err)
		}
	}
	return nil
}
