package service

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportsServiceDeviceReports(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	session := f.start(t, 100)
	f.clock.Advance(time.Second)
	_, err := f.telemetry.IngestSample(ctx, sampleAt(f.device.ID, session.ID, f.clock.Now()))
	require.NoError(t, err)
	_, err = f.sessions.StopSession(ctx, session.ID, f.user.ID, 100.5)
	require.NoError(t, err)

	reports, err := f.reports.DeviceReports(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, f.device.ID, reports[0].DeviceID)
	assert.Equal(t, 1, reports[0].SessionCount)
	assert.InDelta(t, 0.5, reports[0].TotalEnergyKWh, 1e-9)
	assert.Equal(t, 1, reports[0].SampleCount)
	assert.Equal(t, 440.0, reports[0].PeakPowerW)

	_, err = f.reports.DeviceReport(ctx, f.device.ID, f.stranger.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	one, err := f.reports.DeviceReport(ctx, f.device.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, reports[0], *one)

	empty, err := f.reports.DeviceReports(ctx, f.stranger.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestReportsServiceDailyAndDashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 7; i++ {
		s := f.start(t, float64(i))
		_, err := f.sessions.StopSession(ctx, s.ID, f.user.ID, float64(i)+1)
		require.NoError(t, err)
		f.clock.Advance(24 * time.Hour)
	}
	f.start(t, 50)

	seq, err := f.reports.DailyReport(ctx, f.user.ID, DailyWindow{Limit: 3})
	require.NoError(t, err)
	days := slices.Collect(seq)
	require.Len(t, days, 3)
	assert.Equal(t, "2024-05-07", days[0].Date)
	assert.Equal(t, 1500.0, days[0].TotalCost)

	_, err = f.reports.DailyReport(ctx, f.user.ID, DailyWindow{Limit: -1})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.reports.DailyReport(ctx, f.user.ID, DailyWindow{From: f.clock.Now(), To: f.clock.Now()})
	assert.ErrorIs(t, err, ErrInvalidInput)

	dash, err := f.reports.Dashboard(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, dash.Overview.CompletedSessions)
	assert.Equal(t, 1, dash.Overview.ActiveSessions)
	assert.InDelta(t, 7.0, dash.Overview.TotalEnergyKWh, 1e-9)
	require.Len(t, dash.Recent, 5)
	assert.Equal(t, 50.0, dash.Recent[0].InitialKWh)
	assert.Zero(t, dash.Recent[0].Summary.TotalEnergyKWh)
	assert.InDelta(t, 1.0, dash.Recent[1].Summary.TotalEnergyKWh, 1e-9)
}
