package models

import "time"

// DeviceStatus is the on/off flag reported with a sample.
type DeviceStatus string

const (
	DeviceOn  DeviceStatus = "ON"
	DeviceOff DeviceStatus = "OFF"
)

// Sample is one instantaneous telemetry observation.
type Sample struct {
	ID        int64        `db:"log_id" json:"id"`
	DeviceID  int64        `db:"device_id" json:"device_id"`
	SessionID *int64       `db:"session_id" json:"session_id,omitempty"`
	Timestamp time.Time    `db:"timestamp" json:"timestamp"`
	VoltageV  float64      `db:"voltage_v" json:"voltage_v"`
	CurrentA  float64      `db:"current_a" json:"current_a"`
	PowerW    float64      `db:"active_power_w" json:"active_power_w"`
	EnergyWh  float64      `db:"energy_wh" json:"energy_wh"`
	Status    DeviceStatus `db:"device_status" json:"device_status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}
