package repository

import (
	"context"
	"database/sql"
	"errors"

	"energymonitor/backend/services/monitoring-service/internal/models"
)

const sampleColumns = `log_id, device_id, session_id, "timestamp", voltage_v, current_a, active_power_w, energy_wh, device_status, created_at`

// SampleRepository is the append-only telemetry log in PostgreSQL.
type SampleRepository struct {
	db *sql.DB
}

// NewSampleRepository returns repository.
func NewSampleRepository(db *sql.DB) *SampleRepository {
	return &SampleRepository{db: db}
}

// Append validates the sample against its session and inserts it in one
// transaction. The session row is locked so that a concurrent transition or
// append observes the result of this one.
func (r *SampleRepository) Append(ctx context.Context, sample *models.Sample) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if sample.SessionID != nil {
		if err := checkSessionForAppend(ctx, tx, sample); err != nil {
			return err
		}
	} else {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM devices WHERE device_id = $1 AND is_active)`, sample.DeviceID,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return ErrDeviceNotFound
		}
	}

	const insert = `
		INSERT INTO monitoring_logs (device_id, session_id, "timestamp", voltage_v, current_a, active_power_w, energy_wh, device_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING log_id, created_at
	`
	err = tx.QueryRowContext(ctx, insert,
		sample.DeviceID,
		sample.SessionID,
		sample.Timestamp,
		sample.VoltageV,
		sample.CurrentA,
		sample.PowerW,
		sample.EnergyWh,
		sample.Status,
	).Scan(&sample.ID, &sample.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrDeviceNotFound
		}
		return err
	}
	return tx.Commit()
}

func checkSessionForAppend(ctx context.Context, tx *sql.Tx, sample *models.Sample) error {
	var (
		deviceID int64
		status   models.SessionStatus
	)
	err := tx.QueryRowContext(ctx,
		`SELECT device_id, status FROM monitoring_sessions WHERE session_id = $1 FOR UPDATE`, *sample.SessionID,
	).Scan(&deviceID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	if deviceID != sample.DeviceID {
		return ErrDeviceMismatch
	}
	if status != models.SessionActive {
		return ErrSessionNotActive
	}

	var last sql.NullTime
	err = tx.QueryRowContext(ctx,
		`SELECT MAX("timestamp") FROM monitoring_logs WHERE session_id = $1`, *sample.SessionID,
	).Scan(&last)
	if err != nil {
		return err
	}
	if last.Valid && !sample.Timestamp.After(last.Time) {
		return ErrTimestampOutOfOrder
	}
	return nil
}

// ListBySession returns the session's samples in timestamp order.
func (r *SampleRepository) ListBySession(ctx context.Context, sessionID int64) ([]models.Sample, error) {
	query := `
		SELECT ` + sampleColumns + `
		FROM monitoring_logs
		WHERE session_id = $1
		ORDER BY "timestamp" ASC, log_id ASC`
	return r.list(ctx, query, sessionID)
}

// ListByDevice returns every sample of the device, sessionless ones included.
func (r *SampleRepository) ListByDevice(ctx context.Context, deviceID int64) ([]models.Sample, error) {
	query := `
		SELECT ` + sampleColumns + `
		FROM monitoring_logs
		WHERE device_id = $1
		ORDER BY "timestamp" ASC, log_id ASC`
	return r.list(ctx, query, deviceID)
}

func (r *SampleRepository) list(ctx context.Context, query string, args ...any) ([]models.Sample, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []models.Sample
	for rows.Next() {
		var (
			s         models.Sample
			sessionID sql.NullInt64
		)
		if err := rows.Scan(
			&s.ID,
			&s.DeviceID,
			&sessionID,
			&s.Timestamp,
			&s.VoltageV,
			&s.CurrentA,
			&s.PowerW,
			&s.EnergyWh,
			&s.Status,
			&s.CreatedAt,
		); err != nil {
			return nil, err
		}
		if sessionID.Valid {
			id := sessionID.Int64
			s.SessionID = &id
		}
		s.Timestamp = s.Timestamp.UTC()
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}
