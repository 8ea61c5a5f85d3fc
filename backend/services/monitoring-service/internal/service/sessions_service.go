package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"energymonitor/backend/services/monitoring-service/internal/events"
	"energymonitor/backend/services/monitoring-service/internal/models"
	redisstore "energymonitor/backend/services/monitoring-service/internal/redis"
)

const maxSessionNameLength = 100

// SessionsService owns the monitoring session lifecycle. It is the only
// writer of session status and closing readings.
type SessionsService struct {
	repo        SessionRepository
	devices     DeviceRegistry
	activeStore ActiveSessionCache
	publisher   EventPublisher
	recorder    Recorder
	logger      *zap.Logger
	now         func() time.Time
}

// StartSessionInput describes a new monitoring session.
type StartSessionInput struct {
	DeviceID   int64
	UserID     int64
	Name       string
	InitialKWh float64
}

// NewSessionsService builds service. activeStore and publisher may be nil.
func NewSessionsService(
	repo SessionRepository,
	devices DeviceRegistry,
	activeStore ActiveSessionCache,
	publisher EventPublisher,
	logger *zap.Logger,
) *SessionsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionsService{
		repo:        repo,
		devices:     devices,
		activeStore: activeStore,
		publisher:   publisher,
		recorder:    nopRecorder{},
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (s *SessionsService) WithClock(now func() time.Time) *SessionsService {
	s.now = now
	return s
}

// WithRecorder installs a metrics recorder.
func (s *SessionsService) WithRecorder(r Recorder) *SessionsService {
	if r != nil {
		s.recorder = r
	}
	return s
}

// StartSession opens an ACTIVE session on a device owned by the user.
func (s *SessionsService) StartSession(ctx context.Context, input StartSessionInput) (*models.Session, error) {
	if !validReading(input.InitialKWh) {
		return nil, invalidInput("initial reading must be a non-negative number")
	}
	name := strings.TrimSpace(input.Name)
	if len(name) > maxSessionNameLength {
		return nil, invalidInput("session name longer than %d characters", maxSessionNameLength)
	}

	owner, err := s.devices.OwnerOf(ctx, input.DeviceID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if owner != input.UserID {
		return nil, notFound("device %d", input.DeviceID)
	}

	session := &models.Session{
		DeviceID:   input.DeviceID,
		UserID:     input.UserID,
		Name:       name,
		StartTime:  s.now().Truncate(time.Microsecond),
		InitialKWh: input.InitialKWh,
		Status:     models.SessionActive,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, mapRepoError(err)
	}

	s.cacheActive(ctx, *session)
	s.publish(ctx, events.TypeSessionStarted, *session)
	s.recorder.SessionTransitioned(models.SessionActive)
	s.logger.Info("monitoring session started",
		zap.Int64("session_id", session.ID),
		zap.Int64("device_id", session.DeviceID),
		zap.Int64("user_id", session.UserID),
		zap.Float64("initial_kwh", session.InitialKWh),
	)
	return session, nil
}

// StopSession completes an ACTIVE or PAUSED session with its final reading.
func (s *SessionsService) StopSession(ctx context.Context, sessionID, userID int64, finalKWh float64) (*models.Session, error) {
	return s.transition(ctx, sessionID, userID, models.SessionCompleted, &finalKWh)
}

// CancelSession closes a session without a final reading.
func (s *SessionsService) CancelSession(ctx context.Context, sessionID, userID int64) (*models.Session, error) {
	return s.transition(ctx, sessionID, userID, models.SessionCancelled, nil)
}

// PauseSession suspends ingestion for an ACTIVE session.
func (s *SessionsService) PauseSession(ctx context.Context, sessionID, userID int64) (*models.Session, error) {
	return s.transition(ctx, sessionID, userID, models.SessionPaused, nil)
}

// ResumeSession reactivates a PAUSED session.
func (s *SessionsService) ResumeSession(ctx context.Context, sessionID, userID int64) (*models.Session, error) {
	return s.transition(ctx, sessionID, userID, models.SessionActive, nil)
}

// GetSession returns a session owned by the user.
func (s *SessionsService) GetSession(ctx context.Context, sessionID, userID int64) (*models.Session, error) {
	return ownedSession(ctx, s.repo, sessionID, userID)
}

// ListSessions returns the user's sessions newest first.
func (s *SessionsService) ListSessions(ctx context.Context, userID int64, limit int) ([]models.Session, error) {
	sessions, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return sessions, nil
}

// ListActiveSessions returns the user's ACTIVE and PAUSED sessions.
func (s *SessionsService) ListActiveSessions(ctx context.Context, userID int64) ([]models.Session, error) {
	sessions, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return sessions, nil
}

// transition validates against the current state and then applies a
// compare-and-swap on the stored status. Losing the swap to a concurrent
// writer is reported as ErrInvalidState and leaves the session untouched.
func (s *SessionsService) transition(
	ctx context.Context,
	sessionID, userID int64,
	to models.SessionStatus,
	finalKWh *float64,
) (*models.Session, error) {
	current, err := ownedSession(ctx, s.repo, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransition(to) {
		return nil, invalidState("session %d is %s and cannot become %s", sessionID, current.Status, to)
	}
	if finalKWh != nil {
		if !validReading(*finalKWh) {
			return nil, invalidInput("final reading must be a non-negative number")
		}
		if *finalKWh < current.InitialKWh {
			return nil, invalidInput("final reading %.6f is below initial reading %.6f", *finalKWh, current.InitialKWh)
		}
	}

	t := models.SessionTransition{
		SessionID: sessionID,
		From:      current.Status,
		To:        to,
		FinalKWh:  finalKWh,
	}
	if to.Terminal() {
		end := s.now().Truncate(time.Microsecond)
		if end.Before(current.StartTime) {
			end = current.StartTime
		}
		t.EndTime = &end
	}

	updated, err := s.repo.Transition(ctx, t)
	if err != nil {
		return nil, mapRepoError(err)
	}

	if to == models.SessionActive {
		s.cacheActive(ctx, *updated)
	} else {
		s.evictActive(ctx, *updated)
	}
	s.publish(ctx, events.TypeFor(current.Status, to), *updated)
	s.recorder.SessionTransitioned(to)
	s.logger.Info("monitoring session transitioned",
		zap.Int64("session_id", updated.ID),
		zap.Int64("user_id", userID),
		zap.String("from", string(current.Status)),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

func (s *SessionsService) cacheActive(ctx context.Context, session models.Session) {
	if s.activeStore == nil {
		return
	}
	err := s.activeStore.Save(ctx, redisstore.ActiveSession{
		SessionID: session.ID,
		DeviceID:  session.DeviceID,
		UserID:    session.UserID,
		StartTime: session.StartTime,
	})
	if err != nil {
		s.logger.Warn("failed to cache active session", zap.Int64("session_id", session.ID), zap.Error(err))
	}
}

func (s *SessionsService) evictActive(ctx context.Context, session models.Session) {
	if s.activeStore == nil {
		return
	}
	cached, err := s.activeStore.Get(ctx, session.DeviceID)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("failed to read active session cache", zap.Int64("device_id", session.DeviceID), zap.Error(err))
		}
		return
	}
	if cached.SessionID != session.ID {
		return
	}
	if err := s.activeStore.Delete(ctx, session.DeviceID); err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn("failed to delete active session cache", zap.Int64("session_id", session.ID), zap.Error(err))
	}
}

func (s *SessionsService) publish(ctx context.Context, eventType string, session models.Session) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewSessionEvent(eventType, session, s.now())); err != nil {
		s.logger.Warn("failed to publish session event",
			zap.String("type", eventType),
			zap.Int64("session_id", session.ID),
			zap.Error(err),
		)
	}
}

// ownedSession loads a session and hides it from anyone but its owner.
func ownedSession(ctx context.Context, repo SessionRepository, sessionID, userID int64) (*models.Session, error) {
	session, err := repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if session.UserID != userID {
		return nil, notFound("session %d", sessionID)
	}
	return session, nil
}

func validReading(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
