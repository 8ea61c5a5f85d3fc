package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"energymonitor/backend/services/monitoring-service/internal/models"
)

const deviceColumns = `device_id, user_id, device_name, device_code, esp32_mac, location, device_type, power_rating_w, is_online, is_active, last_seen, created_at`

// DeviceRepository stores registered devices.
type DeviceRepository struct {
	db *sql.DB
}

// NewDeviceRepository returns repository.
func NewDeviceRepository(db *sql.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// OwnerOf resolves the owning user of an active device.
func (r *DeviceRepository) OwnerOf(ctx context.Context, deviceID int64) (int64, error) {
	const query = `SELECT user_id FROM devices WHERE device_id = $1 AND is_active`
	var userID int64
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrDeviceNotFound
	}
	return userID, err
}

// Create registers a device and fills its generated id.
func (r *DeviceRepository) Create(ctx context.Context, device *models.Device) error {
	const query = `
		INSERT INTO devices (device_name, device_code, esp32_mac, user_id, location, device_type, power_rating_w, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, NOW())
		RETURNING device_id, is_active, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		device.Name,
		device.Code,
		device.MAC,
		device.UserID,
		device.Location,
		device.Type,
		device.PowerRatingW,
	).Scan(&device.ID, &device.IsActive, &device.CreatedAt)
	switch {
	case isUniqueViolation(err):
		return ErrDeviceExists
	case isForeignKeyViolation(err):
		return ErrUserNotFound
	}
	return err
}

// GetByID loads one device regardless of its active flag.
func (r *DeviceRepository) GetByID(ctx context.Context, id int64) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = $1`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	devices, err := scanDevices(rows)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrDeviceNotFound
	}
	return &devices[0], nil
}

// ListByUser returns the user's active devices ordered by name.
func (r *DeviceRepository) ListByUser(ctx context.Context, userID int64) ([]models.Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE user_id = $1 AND is_active
		ORDER BY device_name ASC, device_id ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return scanDevices(rows)
}

// Delete removes a device owned by userID. Its sessions and samples cascade.
func (r *DeviceRepository) Delete(ctx context.Context, id, userID int64) error {
	const query = `DELETE FROM devices WHERE device_id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Touch marks a device online after it reported telemetry.
func (r *DeviceRepository) Touch(ctx context.Context, id int64, seenAt time.Time) error {
	const query = `UPDATE devices SET is_online = TRUE, last_seen = $2 WHERE device_id = $1`
	_, err := r.db.ExecContext(ctx, query, id, seenAt)
	return err
}

func scanDevices(rows *sql.Rows) ([]models.Device, error) {
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		var (
			d        models.Device
			lastSeen sql.NullTime
		)
		if err := rows.Scan(
			&d.ID,
			&d.UserID,
			&d.Name,
			&d.Code,
			&d.MAC,
			&d.Location,
			&d.Type,
			&d.PowerRatingW,
			&d.IsOnline,
			&d.IsActive,
			&lastSeen,
			&d.CreatedAt,
		); err != nil {
			return nil, err
		}
		if lastSeen.Valid {
			seen := lastSeen.Time.UTC()
			d.LastSeen = &seen
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return devices, nil
}
