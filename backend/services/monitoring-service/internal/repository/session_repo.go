package repository

import (
	"context"
	"database/sql"
	"errors"

	"energymonitor/backend/services/monitoring-service/internal/models"
)

const sessionColumns = `session_id, device_id, user_id, session_name, start_time, end_time, initial_kwh, final_kwh, status, created_at`

// SessionRepository persists monitoring sessions in PostgreSQL.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository returns repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session and fills its generated id.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	const query = `
		INSERT INTO monitoring_sessions (device_id, user_id, session_name, start_time, initial_kwh, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING session_id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		session.DeviceID,
		session.UserID,
		session.Name,
		session.StartTime,
		session.InitialKWh,
		session.Status,
	).Scan(&session.ID, &session.CreatedAt)
	if isForeignKeyViolation(err) {
		return ErrDeviceNotFound
	}
	return err
}

// GetByID loads one session.
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM monitoring_sessions WHERE session_id = $1`
	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return session, err
}

// ListByUser returns the user's sessions, newest first. A non-positive limit
// returns every session.
func (r *SessionRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM monitoring_sessions
		WHERE user_id = $1
		ORDER BY start_time DESC, session_id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return r.list(ctx, query, args...)
}

// ListByDevice returns every session recorded for the device, newest first.
func (r *SessionRepository) ListByDevice(ctx context.Context, deviceID int64) ([]models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM monitoring_sessions
		WHERE device_id = $1
		ORDER BY start_time DESC, session_id DESC`
	return r.list(ctx, query, deviceID)
}

// ActiveByDevice returns the most recently started ACTIVE session of a device.
func (r *SessionRepository) ActiveByDevice(ctx context.Context, deviceID int64) (*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM monitoring_sessions
		WHERE device_id = $1 AND status = $2
		ORDER BY start_time DESC, session_id DESC
		LIMIT 1`
	session, err := scanSession(r.db.QueryRowContext(ctx, query, deviceID, models.SessionActive))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return session, err
}

// ListActive returns every ACTIVE or PAUSED session of the user.
func (r *SessionRepository) ListActive(ctx context.Context, userID int64) ([]models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM monitoring_sessions
		WHERE user_id = $1 AND status IN ($2, $3)
		ORDER BY start_time DESC, session_id DESC`
	return r.list(ctx, query, userID, models.SessionActive, models.SessionPaused)
}

// Transition moves a session from t.From to t.To only if its status is still
// t.From. It returns ErrStatusConflict when another writer got there first.
func (r *SessionRepository) Transition(ctx context.Context, t models.SessionTransition) (*models.Session, error) {
	query := `
		UPDATE monitoring_sessions
		SET status = $3,
		    end_time = COALESCE($4::timestamptz, end_time),
		    final_kwh = COALESCE($5::numeric, final_kwh)
		WHERE session_id = $1 AND status = $2
		RETURNING ` + sessionColumns
	session, err := scanSession(r.db.QueryRowContext(ctx, query,
		t.SessionID,
		t.From,
		t.To,
		t.EndTime,
		t.FinalKWh,
	))
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM monitoring_sessions WHERE session_id = $1)`, t.SessionID,
		).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrSessionNotFound
		}
		return nil, ErrStatusConflict
	}
	return session, err
}

func (r *SessionRepository) list(ctx context.Context, query string, args ...any) ([]models.Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s        models.Session
		endTime  sql.NullTime
		finalKWh sql.NullFloat64
	)
	if err := row.Scan(
		&s.ID,
		&s.DeviceID,
		&s.UserID,
		&s.Name,
		&s.StartTime,
		&endTime,
		&s.InitialKWh,
		&finalKWh,
		&s.Status,
		&s.CreatedAt,
	); err != nil {
		return nil, err
	}
	if endTime.Valid {
		end := endTime.Time.UTC()
		s.EndTime = &end
	}
	if finalKWh.Valid {
		final := finalKWh.Float64
		s.FinalKWh = &final
	}
	s.StartTime = s.StartTime.UTC()
	return &s, nil
}
