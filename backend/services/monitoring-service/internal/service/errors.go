package service

import (
	"errors"
	"fmt"

	"energymonitor/backend/services/monitoring-service/internal/repository"
)

// Error kinds surfaced by the monitoring core. Callers match them with
// errors.Is; the wrapped message carries the detail.
var (
	ErrInvalidInput       = errors.New("monitoring: invalid input")
	ErrInvalidState       = errors.New("monitoring: invalid state")
	ErrOutOfOrder         = errors.New("monitoring: sample out of order")
	ErrNotFound           = errors.New("monitoring: not found")
	ErrStorageUnavailable = errors.New("monitoring: storage unavailable")
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func invalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// mapRepoError translates repository sentinels into error kinds. Anything the
// repository did not classify is a storage fault.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, repository.ErrDeviceNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrStatusConflict),
		errors.Is(err, repository.ErrSessionNotActive),
		errors.Is(err, repository.ErrDeviceMismatch),
		errors.Is(err, repository.ErrDeviceExists),
		errors.Is(err, repository.ErrUserExists):
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	case errors.Is(err, repository.ErrTimestampOutOfOrder):
		return fmt.Errorf("%w: %w", ErrOutOfOrder, err)
	default:
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
}

// Kind returns the error kind err belongs to, or nil for unclassified errors.
func Kind(err error) error {
	for _, kind := range []error{ErrInvalidInput, ErrInvalidState, ErrOutOfOrder, ErrNotFound, ErrStorageUnavailable} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
