package repository

import "errors"

var (
	// ErrSessionNotFound indicates a missing session row.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStatusConflict means the session's status changed before a transition was written.
	ErrStatusConflict = errors.New("session status changed concurrently")
	// ErrSessionNotActive rejects samples for sessions that are not ACTIVE.
	ErrSessionNotActive = errors.New("session not active")
	// ErrDeviceMismatch rejects samples whose device differs from the session's device.
	ErrDeviceMismatch = errors.New("sample device does not match session device")
	// ErrTimestampOutOfOrder rejects samples not strictly after the session's last sample.
	ErrTimestampOutOfOrder = errors.New("sample timestamp not after last sample")
	// ErrDeviceNotFound indicates a missing or inactive device.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrDeviceExists reports a duplicate device code or MAC.
	ErrDeviceExists = errors.New("device already registered")
	// ErrUserNotFound indicates a missing user.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists reports a duplicate username or email.
	ErrUserExists = errors.New("user already exists")
)
