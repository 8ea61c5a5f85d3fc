package models

import "time"

// SessionStatus is the lifecycle state of a monitoring session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionPaused    SessionStatus = "PAUSED"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionCancelled SessionStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed from s.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// CanTransition reports whether the lifecycle permits moving from s to next.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	switch s {
	case SessionActive:
		return next == SessionCompleted || next == SessionCancelled || next == SessionPaused
	case SessionPaused:
		// Stopping a paused session closes it with the supplied reading.
		return next == SessionActive || next == SessionCancelled || next == SessionCompleted
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionPaused, SessionCompleted, SessionCancelled:
		return true
	}
	return false
}

// Session is a bounded period during which a device's consumption is tracked
// between two meter readings.
type Session struct {
	ID         int64         `db:"session_id" json:"id"`
	DeviceID   int64         `db:"device_id" json:"device_id"`
	UserID     int64         `db:"user_id" json:"user_id"`
	Name       string        `db:"session_name" json:"name"`
	StartTime  time.Time     `db:"start_time" json:"start_time"`
	EndTime    *time.Time    `db:"end_time" json:"end_time,omitempty"`
	InitialKWh float64       `db:"initial_kwh" json:"initial_kwh"`
	FinalKWh   *float64      `db:"final_kwh" json:"final_kwh,omitempty"`
	Status     SessionStatus `db:"status" json:"status"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// SessionTransition describes a compare-and-swap on a session's status.
// EndTime and FinalKWh are written only when non-nil.
type SessionTransition struct {
	SessionID int64
	From      SessionStatus
	To        SessionStatus
	EndTime   *time.Time
	FinalKWh  *float64
}
