package service

import (
	"context"
	"time"

	"energymonitor/backend/services/monitoring-service/internal/events"
	"energymonitor/backend/services/monitoring-service/internal/models"
	redisstore "energymonitor/backend/services/monitoring-service/internal/redis"
)

// SessionRepository is the durable session ledger.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id int64) (*models.Session, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]models.Session, error)
	ListByDevice(ctx context.Context, deviceID int64) ([]models.Session, error)
	ListActive(ctx context.Context, userID int64) ([]models.Session, error)
	ActiveByDevice(ctx context.Context, deviceID int64) (*models.Session, error)
	Transition(ctx context.Context, t models.SessionTransition) (*models.Session, error)
}

// SampleRepository is the append-only telemetry log. Append must check the
// session (existence, device, ACTIVE, last timestamp) atomically with the insert.
type SampleRepository interface {
	Append(ctx context.Context, sample *models.Sample) error
	ListBySession(ctx context.Context, sessionID int64) ([]models.Sample, error)
	ListByDevice(ctx context.Context, deviceID int64) ([]models.Sample, error)
}

// DeviceRegistry resolves the owner of an active device.
type DeviceRegistry interface {
	OwnerOf(ctx context.Context, deviceID int64) (int64, error)
}

// DeviceTracker is the registry plus presence updates from device transports.
type DeviceTracker interface {
	DeviceRegistry
	Touch(ctx context.Context, deviceID int64, seenAt time.Time) error
}

// DeviceRepository manages the device registry.
type DeviceRepository interface {
	DeviceTracker
	Create(ctx context.Context, device *models.Device) error
	GetByID(ctx context.Context, id int64) (*models.Device, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Device, error)
	Delete(ctx context.Context, id, userID int64) error
}

// ActiveSessionCache maps devices to their current ACTIVE session.
type ActiveSessionCache interface {
	Save(ctx context.Context, session redisstore.ActiveSession) error
	Get(ctx context.Context, deviceID int64) (*redisstore.ActiveSession, error)
	Delete(ctx context.Context, deviceID int64) error
}

// EventPublisher emits session lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event events.SessionEvent) error
}

// Recorder receives counters for lifecycle and ingestion outcomes.
type Recorder interface {
	SessionTransitioned(status models.SessionStatus)
	SampleIngested(source string)
	SampleRejected(source string, kind string)
}

type nopRecorder struct{}

func (nopRecorder) SessionTransitioned(models.SessionStatus) {}
func (nopRecorder) SampleIngested(string)                    {}
func (nopRecorder) SampleRejected(string, string)            {}
