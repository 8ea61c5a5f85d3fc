package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements creates the monitoring tables when missing. Sessions and
// samples cascade with their device; samples outlive their session.
var schemaStatements = []struct {
	table string
	query string
}{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			user_id       BIGSERIAL PRIMARY KEY,
			username      VARCHAR(50) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			email         VARCHAR(100) UNIQUE NOT NULL,
			full_name     VARCHAR(100) NOT NULL DEFAULT '',
			role          VARCHAR(16) NOT NULL DEFAULT 'user',
			is_active     BOOLEAN NOT NULL DEFAULT TRUE,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{"devices", `
		CREATE TABLE IF NOT EXISTS devices (
			device_id      BIGSERIAL PRIMARY KEY,
			device_name    VARCHAR(100) NOT NULL,
			device_code    VARCHAR(50) UNIQUE NOT NULL,
			esp32_mac      VARCHAR(17) UNIQUE NOT NULL,
			user_id        BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			location       VARCHAR(100) NOT NULL DEFAULT '',
			device_type    VARCHAR(16) NOT NULL DEFAULT 'lighting',
			power_rating_w NUMERIC(8,2) NOT NULL DEFAULT 0,
			is_online      BOOLEAN NOT NULL DEFAULT FALSE,
			is_active      BOOLEAN NOT NULL DEFAULT TRUE,
			last_seen      TIMESTAMPTZ,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{"monitoring_sessions", `
		CREATE TABLE IF NOT EXISTS monitoring_sessions (
			session_id   BIGSERIAL PRIMARY KEY,
			device_id    BIGINT NOT NULL REFERENCES devices(device_id) ON DELETE CASCADE,
			user_id      BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			session_name VARCHAR(100) NOT NULL DEFAULT '',
			start_time   TIMESTAMPTZ NOT NULL,
			end_time     TIMESTAMPTZ,
			initial_kwh  NUMERIC(12,6) NOT NULL CHECK (initial_kwh >= 0),
			final_kwh    NUMERIC(12,6),
			status       VARCHAR(16) NOT NULL DEFAULT 'ACTIVE'
				CHECK (status IN ('ACTIVE', 'PAUSED', 'COMPLETED', 'CANCELLED')),
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (final_kwh IS NULL OR final_kwh >= initial_kwh),
			CHECK (end_time IS NULL OR end_time >= start_time)
		)`},
	{"monitoring_logs", `
		CREATE TABLE IF NOT EXISTS monitoring_logs (
			log_id         BIGSERIAL PRIMARY KEY,
			device_id      BIGINT NOT NULL REFERENCES devices(device_id) ON DELETE CASCADE,
			session_id     BIGINT REFERENCES monitoring_sessions(session_id) ON DELETE SET NULL,
			"timestamp"    TIMESTAMPTZ NOT NULL,
			voltage_v      DOUBLE PRECISION NOT NULL CHECK (voltage_v >= 0),
			current_a      DOUBLE PRECISION NOT NULL CHECK (current_a >= 0),
			active_power_w DOUBLE PRECISION NOT NULL CHECK (active_power_w >= 0),
			energy_wh      DOUBLE PRECISION NOT NULL CHECK (energy_wh >= 0),
			device_status  VARCHAR(3) NOT NULL DEFAULT 'ON',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{"monitoring_sessions_user_idx", `CREATE INDEX IF NOT EXISTS monitoring_sessions_user_idx ON monitoring_sessions (user_id, start_time DESC)`},
	{"monitoring_sessions_device_idx", `CREATE INDEX IF NOT EXISTS monitoring_sessions_device_idx ON monitoring_sessions (device_id, status)`},
	{"monitoring_logs_session_idx", `CREATE INDEX IF NOT EXISTS monitoring_logs_session_idx ON monitoring_logs (session_id, "timestamp")`},
	{"monitoring_logs_device_idx", `CREATE INDEX IF NOT EXISTS monitoring_logs_device_idx ON monitoring_logs (device_id)`},
}

// EnsureSchema creates missing tables and indexes inside one transaction.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt.query); err != nil {
			return fmt.Errorf("schema: create %s: %w", stmt.table, err)
		}
	}
	return tx.Commit()
}
