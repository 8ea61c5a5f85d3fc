package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energymonitor/backend/services/monitoring-service/internal/events"
	"energymonitor/backend/services/monitoring-service/internal/models"
)

func TestStartIngestStopScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	session := f.start(t, 100.0)
	assert.Equal(t, models.SessionActive, session.Status)
	assert.Equal(t, f.clock.Now(), session.StartTime)
	assert.Nil(t, session.EndTime)

	f.clock.Advance(time.Minute)
	_, err := f.telemetry.IngestSample(ctx, sampleAt(f.device.ID, session.ID, f.clock.Now()))
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	stopped, err := f.sessions.StopSession(ctx, session.ID, f.user.ID, 100.5)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, stopped.Status)
	require.NotNil(t, stopped.EndTime)
	assert.Equal(t, f.clock.Now(), *stopped.EndTime)

	summary := Summarize(*stopped, DefaultTariff())
	assert.InDelta(t, 0.5, summary.TotalEnergyKWh, 1e-9)
	assert.InDelta(t, 0.5*DefaultRatePerKWh, summary.EnergyCost, 1e-9)

	assert.Equal(t, []string{events.TypeSessionStarted, events.TypeSessionCompleted}, f.publisher.types())
	assert.Equal(t, 1, f.recorder.transitions[models.SessionCompleted])
}

func TestStartSessionValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, initial := range []float64{-0.1, math.NaN(), math.Inf(1)} {
		_, err := f.sessions.StartSession(ctx, StartSessionInput{DeviceID: f.device.ID, UserID: f.user.ID, InitialKWh: initial})
		assert.ErrorIs(t, err, ErrInvalidInput)
	}

	_, err := f.sessions.StartSession(ctx, StartSessionInput{DeviceID: f.device.ID, UserID: f.stranger.ID})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.sessions.StartSession(ctx, StartSessionInput{DeviceID: 9999, UserID: f.user.ID})
	assert.ErrorIs(t, err, ErrNotFound)

	f.store.Devices().SetActive(f.device.ID, false)
	_, err = f.sessions.StartSession(ctx, StartSessionInput{DeviceID: f.device.ID, UserID: f.user.ID})
	assert.ErrorIs(t, err, ErrNotFound)

	sessions, err := f.sessions.ListSessions(ctx, f.user.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestStopBelowInitialLeavesSessionActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session := f.start(t, 100.0)

	_, err := f.sessions.StopSession(ctx, session.ID, f.user.ID, 99.0)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.sessions.StopSession(ctx, session.ID, f.user.ID, math.NaN())
	require.ErrorIs(t, err, ErrInvalidInput)

	reloaded, err := f.sessions.GetSession(ctx, session.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, *session, *reloaded)
}

func TestTerminalSessionsRejectEveryTransition(t *testing.T) {
	ctx := context.Background()

	for _, closeWith := range []string{"stop", "cancel"} {
		t.Run(closeWith, func(t *testing.T) {
			f := newFixture(t)
			session := f.start(t, 10)

			var err error
			if closeWith == "stop" {
				_, err = f.sessions.StopSession(ctx, session.ID, f.user.ID, 12)
			} else {
				_, err = f.sessions.CancelSession(ctx, session.ID, f.user.ID)
			}
			require.NoError(t, err)
			closed, err := f.sessions.GetSession(ctx, session.ID, f.user.ID)
			require.NoError(t, err)

			ops := map[string]func() error{
				"stop":   func() error { _, err := f.sessions.StopSession(ctx, session.ID, f.user.ID, 20); return err },
				"cancel": func() error { _, err := f.sessions.CancelSession(ctx, session.ID, f.user.ID); return err },
				"pause":  func() error { _, err := f.sessions.PauseSession(ctx, session.ID, f.user.ID); return err },
				"resume": func() error { _, err := f.sessions.ResumeSession(ctx, session.ID, f.user.ID); return err },
			}
			for name, op := range ops {
				assert.ErrorIsf(t, op(), ErrInvalidState, "%s after %s", name, closeWith)
			}

			after, err := f.sessions.GetSession(ctx, session.ID, f.user.ID)
			require.NoError(t, err)
			assert.Equal(t, *closed, *after)
		})
	}
}

func TestConcurrentStopsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session := f.start(t, 100)

	readings := []float64{101, 102, 103, 104, 105, 106, 107, 108}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []float64
		failures []error
	)
	for _, reading := range readings {
		wg.Add(1)
		go func(reading float64) {
			defer wg.Done()
			_, err := f.sessions.StopSession(ctx, session.ID, f.user.ID, reading)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			winners = append(winners, reading)
		}(reading)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	require.Len(t, failures, len(readings)-1)
	for _, err := range failures {
		assert.ErrorIs(t, err, ErrInvalidState)
	}

	final, err := f.sessions.GetSession(ctx, session.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, final.Status)
	require.NotNil(t, final.FinalKWh)
	assert.Equal(t, winners[0], *final.FinalKWh)
}

func TestCancelActiveSessionHasZeroEnergy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session := f.start(t, 50)

	cancelled, err := f.sessions.CancelSession(ctx, session.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, cancelled.Status)
	assert.Nil(t, cancelled.FinalKWh)
	assert.NotNil(t, cancelled.EndTime)

	summary := Summarize(*cancelled, DefaultTariff())
	assert.Zero(t, summary.TotalEnergyKWh)
	assert.Zero(t, summary.EnergyCost)
}

func TestPauseResumeAndStopFromPaused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session := f.start(t, 1)

	paused, err := f.sessions.PauseSession(ctx, session.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionPaused, paused.Status)
	assert.Nil(t, paused.EndTime)

	_, err = f.sessions.PauseSession(ctx, session.ID, f.user.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	resumed, err := f.sessions.ResumeSession(ctx, session.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, resumed.Status)

	_, err = f.sessions.ResumeSession(ctx, session.ID, f.user.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.sessions.PauseSession(ctx, session.ID, f.user.ID)
	require.NoError(t, err)
	stopped, err := f.sessions.StopSession(ctx, session.ID, f.user.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, stopped.Status)
	assert.InDelta(t, 2.0, Summarize(*stopped, DefaultTariff()).TotalEnergyKWh, 1e-9)

	assert.Equal(t, []string{
		events.TypeSessionStarted,
		events.TypeSessionPaused,
		events.TypeSessionResumed,
		events.TypeSessionPaused,
		events.TypeSessionCompleted,
	}, f.publisher.types())
}

func TestSessionsAreHiddenFromOtherUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session := f.start(t, 1)

	_, err := f.sessions.GetSession(ctx, session.ID, f.stranger.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.sessions.StopSession(ctx, session.ID, f.stranger.ID, 2)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.sessions.CancelSession(ctx, 424242, f.user.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	reloaded, err := f.sessions.GetSession(ctx, session.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, reloaded.Status)
}

func TestActiveSessionCacheFollowsLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session := f.start(t, 1)

	cached, err := f.cache.Get(ctx, f.device.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, cached.SessionID)

	_, err = f.sessions.PauseSession(ctx, session.ID, f.user.ID)
	require.NoError(t, err)
	_, err = f.cache.Get(ctx, f.device.ID)
	assert.Error(t, err)

	_, err = f.sessions.ResumeSession(ctx, session.ID, f.user.ID)
	require.NoError(t, err)
	cached, err = f.cache.Get(ctx, f.device.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, cached.SessionID)
}

func TestListActiveSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.start(t, 1)
	f.clock.Advance(time.Second)
	second := f.start(t, 2)
	f.clock.Advance(time.Second)
	third := f.start(t, 3)

	_, err := f.sessions.PauseSession(ctx, second.ID, f.user.ID)
	require.NoError(t, err)
	_, err = f.sessions.StopSession(ctx, third.ID, f.user.ID, 4)
	require.NoError(t, err)

	active, err := f.sessions.ListActiveSessions(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, second.ID, active[0].ID)
	assert.Equal(t, first.ID, active[1].ID)

	all, err := f.sessions.ListSessions(ctx, f.user.ID, 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, third.ID, all[0].ID)
}

type failingSessions struct {
	SessionRepository
}

func (failingSessions) GetByID(context.Context, int64) (*models.Session, error) {
	return nil, errors.New("connection refused")
}

func TestStorageFaultsAreSurfaced(t *testing.T) {
	f := newFixture(t)
	svc := NewSessionsService(failingSessions{}, f.store.Devices(), nil, nil, nil)

	_, err := svc.GetSession(context.Background(), 1, f.user.ID)
	require.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, ErrStorageUnavailable, Kind(err))
}
