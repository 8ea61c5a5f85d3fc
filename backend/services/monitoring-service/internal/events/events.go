package events

import (
	"context"
	"time"

	"energymonitor/backend/services/monitoring-service/internal/models"
)

// Event types emitted on session transitions.
const (
	TypeSessionStarted   = "session.started"
	TypeSessionPaused    = "session.paused"
	TypeSessionResumed   = "session.resumed"
	TypeSessionCompleted = "session.completed"
	TypeSessionCancelled = "session.cancelled"
)

// SessionEvent is the payload published for every lifecycle transition.
type SessionEvent struct {
	Type       string               `json:"type"`
	SessionID  int64                `json:"session_id"`
	DeviceID   int64                `json:"device_id"`
	UserID     int64                `json:"user_id"`
	Status     models.SessionStatus `json:"status"`
	InitialKWh float64              `json:"initial_kwh"`
	FinalKWh   *float64             `json:"final_kwh,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// TypeFor maps the status a session entered to its event type.
func TypeFor(from, to models.SessionStatus) string {
	switch to {
	case models.SessionPaused:
		return TypeSessionPaused
	case models.SessionCompleted:
		return TypeSessionCompleted
	case models.SessionCancelled:
		return TypeSessionCancelled
	case models.SessionActive:
		if from == models.SessionPaused {
			return TypeSessionResumed
		}
	}
	return TypeSessionStarted
}

// NewSessionEvent builds the event for a session that just reached its status.
func NewSessionEvent(eventType string, session models.Session, at time.Time) SessionEvent {
	return SessionEvent{
		Type:       eventType,
		SessionID:  session.ID,
		DeviceID:   session.DeviceID,
		UserID:     session.UserID,
		Status:     session.Status,
		InitialKWh: session.InitialKWh,
		FinalKWh:   session.FinalKWh,
		OccurredAt: at.UTC(),
	}
}

// NopPublisher drops events. It is used when no broker is configured.
type NopPublisher struct{}

// Publish implements the publisher contract.
func (NopPublisher) Publish(context.Context, SessionEvent) error { return nil }

// Close implements io.Closer.
func (NopPublisher) Close() error { return nil }
