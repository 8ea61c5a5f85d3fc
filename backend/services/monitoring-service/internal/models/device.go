package models

import "time"

// DeviceType classifies monitored appliances.
type DeviceType string

const (
	DeviceLighting  DeviceType = "lighting"
	DeviceAppliance DeviceType = "appliance"
	DeviceAC        DeviceType = "ac"
	DeviceOther     DeviceType = "other"
)

// Device is a registered, user-owned metering point.
type Device struct {
	ID           int64      `db:"device_id" json:"id"`
	UserID       int64      `db:"user_id" json:"user_id"`
	Name         string     `db:"device_name" json:"name"`
	Code         string     `db:"device_code" json:"code"`
	MAC          string     `db:"esp32_mac" json:"mac"`
	Location     string     `db:"location" json:"location"`
	Type         DeviceType `db:"device_type" json:"type"`
	PowerRatingW float64    `db:"power_rating_w" json:"power_rating_w"`
	IsOnline     bool       `db:"is_online" json:"is_online"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastSeen     *time.Time `db:"last_seen" json:"last_seen,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Valid reports whether t is a known device type.
func (t DeviceType) Valid() bool {
	switch t {
	case DeviceLighting, DeviceAppliance, DeviceAC, DeviceOther:
		return true
	}
	return false
}
