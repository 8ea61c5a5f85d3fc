package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"energymonitor/backend/services/monitoring-service/internal/models"
	redisstore "energymonitor/backend/services/monitoring-service/internal/redis"
)

// Ingestion sources reported to the recorder.
const (
	SourceAPI       = "api"
	SourceSynthetic = "synthetic"
	SourceDevice    = "device"
)

// TelemetryService validates and appends telemetry samples.
type TelemetryService struct {
	sessions    SessionRepository
	samples     SampleRepository
	devices     DeviceTracker
	activeStore ActiveSessionCache
	source      SampleSource
	recorder    Recorder
	logger      *zap.Logger
	now         func() time.Time
	maxSkew     time.Duration
}

// DefaultMaxClockSkew bounds how far a sample timestamp may lead server time.
const DefaultMaxClockSkew = 5 * time.Minute

// SampleInput is a sample submitted for ingestion. A zero Timestamp means now
// and an empty Status means ON.
type SampleInput struct {
	DeviceID  int64               `json:"device_id"`
	SessionID *int64              `json:"session_id,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	VoltageV  float64             `json:"voltage_v"`
	CurrentA  float64             `json:"current_a"`
	PowerW    float64             `json:"active_power_w"`
	EnergyWh  float64             `json:"energy_wh"`
	Status    models.DeviceStatus `json:"device_status"`
}

// DeviceReading is what a device transport delivers: a reading with an
// optional device-side timestamp.
type DeviceReading struct {
	Reading
	Timestamp time.Time `json:"timestamp"`
}

// NewTelemetryService returns service instance. activeStore may be nil; a nil
// source falls back to RandomSource.
func NewTelemetryService(
	sessions SessionRepository,
	samples SampleRepository,
	devices DeviceTracker,
	activeStore ActiveSessionCache,
	source SampleSource,
	logger *zap.Logger,
) *TelemetryService {
	if source == nil {
		source = NewRandomSource(DefaultSampleInterval, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelemetryService{
		sessions:    sessions,
		samples:     samples,
		devices:     devices,
		activeStore: activeStore,
		source:      source,
		recorder:    nopRecorder{},
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		maxSkew:     DefaultMaxClockSkew,
	}
}

// WithClock replaces the time source.
func (s *TelemetryService) WithClock(now func() time.Time) *TelemetryService {
	s.now = now
	return s
}

// WithMaxClockSkew sets how far ahead of server time a sample timestamp may be.
// Non-positive values keep the default.
func (s *TelemetryService) WithMaxClockSkew(d time.Duration) *TelemetryService {
	if d > 0 {
		s.maxSkew = d
	}
	return s
}

// WithRecorder installs a metrics recorder.
func (s *TelemetryService) WithRecorder(r Recorder) *TelemetryService {
	if r != nil {
		s.recorder = r
	}
	return s
}

// IngestSample appends one sample. Tagged samples must target an ACTIVE
// session of the same device with a timestamp after the session's last sample.
// Session totals are not touched.
func (s *TelemetryService) IngestSample(ctx context.Context, input SampleInput) (*models.Sample, error) {
	return s.ingest(ctx, SourceAPI, input)
}

// IngestUserSample ingests on behalf of a user, who must own the device.
func (s *TelemetryService) IngestUserSample(ctx context.Context, userID int64, input SampleInput) (*models.Sample, error) {
	owner, err := s.devices.OwnerOf(ctx, input.DeviceID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if owner != userID {
		return nil, notFound("device %d", input.DeviceID)
	}
	return s.ingest(ctx, SourceAPI, input)
}

// IngestSessionSample appends a sample to the user's session. A zero device id
// is taken from the session.
func (s *TelemetryService) IngestSessionSample(ctx context.Context, sessionID, userID int64, input SampleInput) (*models.Sample, error) {
	session, err := ownedSession(ctx, s.sessions, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if input.DeviceID == 0 {
		input.DeviceID = session.DeviceID
	}
	input.SessionID = &session.ID
	return s.ingest(ctx, SourceAPI, input)
}

// GenerateSyntheticSample draws a reading from the configured source and
// ingests it into the user's session at the current time.
func (s *TelemetryService) GenerateSyntheticSample(ctx context.Context, sessionID, userID int64) (*models.Sample, error) {
	session, err := ownedSession(ctx, s.sessions, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionActive {
		return nil, invalidState("session %d is %s", sessionID, session.Status)
	}

	reading := s.source.Next(*session)
	return s.ingest(ctx, SourceSynthetic, SampleInput{
		DeviceID:  session.DeviceID,
		SessionID: &session.ID,
		Timestamp: s.now(),
		VoltageV:  reading.VoltageV,
		CurrentA:  reading.CurrentA,
		PowerW:    reading.PowerW,
		EnergyWh:  reading.EnergyWh,
		Status:    reading.Status,
	})
}

// ListSamples returns the samples of the user's session in timestamp order.
func (s *TelemetryService) ListSamples(ctx context.Context, sessionID, userID int64) ([]models.Sample, error) {
	if _, err := ownedSession(ctx, s.sessions, sessionID, userID); err != nil {
		return nil, err
	}
	samples, err := s.samples.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return samples, nil
}

// IngestDeviceReading stores a reading pushed by a device. It is tagged with
// the device's most recent ACTIVE session, or stored sessionless when none is
// running.
func (s *TelemetryService) IngestDeviceReading(ctx context.Context, deviceID int64, reading DeviceReading) (*models.Sample, error) {
	input := SampleInput{
		DeviceID:  deviceID,
		Timestamp: reading.Timestamp,
		VoltageV:  reading.VoltageV,
		CurrentA:  reading.CurrentA,
		PowerW:    reading.PowerW,
		EnergyWh:  reading.EnergyWh,
		Status:    reading.Status,
	}

	sessionID, cached, err := s.activeSessionOf(ctx, deviceID, true)
	if err != nil {
		return nil, err
	}
	input.SessionID = sessionID

	sample, err := s.ingest(ctx, SourceDevice, input)
	if err != nil && cached && (errors.Is(err, ErrInvalidState) || errors.Is(err, ErrNotFound)) {
		// The cache pointed at a session that is no longer ACTIVE.
		s.dropCached(ctx, deviceID)
		if input.SessionID, _, err = s.activeSessionOf(ctx, deviceID, false); err != nil {
			return nil, err
		}
		sample, err = s.ingest(ctx, SourceDevice, input)
	}
	if err != nil {
		return nil, err
	}

	if err := s.devices.Touch(ctx, deviceID, sample.Timestamp); err != nil {
		s.logger.Warn("failed to update device presence", zap.Int64("device_id", deviceID), zap.Error(err))
	}
	return sample, nil
}

func (s *TelemetryService) ingest(ctx context.Context, source string, input SampleInput) (*models.Sample, error) {
	sample, err := s.buildSample(input)
	if err == nil {
		err = mapRepoError(s.samples.Append(ctx, sample))
	}
	if err != nil {
		s.recorder.SampleRejected(source, kindLabel(err))
		return nil, err
	}
	s.recorder.SampleIngested(source)
	s.logger.Debug("telemetry sample stored",
		zap.Int64("sample_id", sample.ID),
		zap.Int64("device_id", sample.DeviceID),
		zap.String("source", source),
	)
	return sample, nil
}

func (s *TelemetryService) buildSample(input SampleInput) (*models.Sample, error) {
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"voltage_v", input.VoltageV},
		{"current_a", input.CurrentA},
		{"active_power_w", input.PowerW},
		{"energy_wh", input.EnergyWh},
	} {
		if !validReading(field.value) {
			return nil, invalidInput("%s must be a non-negative number", field.name)
		}
	}

	status := input.Status
	if status == "" {
		status = models.DeviceOn
	}
	if status != models.DeviceOn && status != models.DeviceOff {
		return nil, invalidInput("unknown device status %q", status)
	}

	now := s.now()
	ts := input.Timestamp
	if ts.IsZero() {
		ts = now
	}
	if ts.After(now.Add(s.maxSkew)) {
		return nil, invalidInput("timestamp %s is ahead of server time", ts.UTC().Format(time.RFC3339))
	}

	sample := &models.Sample{
		DeviceID:  input.DeviceID,
		Timestamp: ts.UTC().Truncate(time.Microsecond),
		VoltageV:  input.VoltageV,
		CurrentA:  input.CurrentA,
		PowerW:    input.PowerW,
		EnergyWh:  input.EnergyWh,
		Status:    status,
	}
	if input.SessionID != nil {
		id := *input.SessionID
		sample.SessionID = &id
	}
	return sample, nil
}

// activeSessionOf resolves the session a device reading belongs to. The
// second result reports whether the answer came from the cache.
func (s *TelemetryService) activeSessionOf(ctx context.Context, deviceID int64, useCache bool) (*int64, bool, error) {
	if useCache && s.activeStore != nil {
		cached, err := s.activeStore.Get(ctx, deviceID)
		switch {
		case err == nil:
			return &cached.SessionID, true, nil
		case !errors.Is(err, redis.Nil):
			s.logger.Warn("failed to read active session cache", zap.Int64("device_id", deviceID), zap.Error(err))
		}
	}

	session, err := s.sessions.ActiveByDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, mapRepoError(err)
	}

	if s.activeStore != nil {
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
	return &session.ID, false, nil
}

func (s *TelemetryService) dropCached(ctx context.Context, deviceID int64) {
	if err := s.activeStore.Delete(ctx, deviceID); err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn("failed to delete active session cache", zap.Int64("device_id", deviceID), zap.Error(err))
	}
}

func kindLabel(err error) string {
	switch Kind(err) {
	case ErrInvalidInput:
		return "invalid_input"
	case ErrInvalidState:
		return "invalid_state"
	case ErrOutOfOrder:
		return "out_of_order"
	case ErrNotFound:
		return "not_found"
	case ErrStorageUnavailable:
		return "storage_unavailable"
	}
	return "unknown"
}
