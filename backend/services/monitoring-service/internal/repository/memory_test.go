package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energymonitor/backend/services/monitoring-service/internal/models"
)

func seedDevice(t *testing.T, store *MemoryStore) (models.User, models.Device) {
	t.Helper()
	ctx := context.Background()
	user := models.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, store.Users().Create(ctx, &user))
	device := models.Device{UserID: user.ID, Name: "Lamp", Code: "LAMP-1", MAC: "AA:BB:CC:DD:EE:01"}
	require.NoError(t, store.Devices().Create(ctx, &device))
	return user, device
}

func TestMemorySessionsTransitionIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	user, device := seedDevice(t, store)

	session := models.Session{DeviceID: device.ID, UserID: user.ID, StartTime: time.Now().UTC(), Status: models.SessionActive}
	require.NoError(t, store.Sessions().Create(ctx, &session))

	final := 12.5
	end := time.Now().UTC()
	updated, err := store.Sessions().Transition(ctx, models.SessionTransition{
		SessionID: session.ID, From: models.SessionActive, To: models.SessionCompleted, EndTime: &end, FinalKWh: &final,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, updated.Status)
	require.NotNil(t, updated.FinalKWh)
	assert.InDelta(t, 12.5, *updated.FinalKWh, 1e-9)

	_, err = store.Sessions().Transition(ctx, models.SessionTransition{
		SessionID: session.ID, From: models.SessionActive, To: models.SessionCancelled,
	})
	assert.ErrorIs(t, err, ErrStatusConflict)

	_, err = store.Sessions().Transition(ctx, models.SessionTransition{SessionID: 999, From: models.SessionActive, To: models.SessionPaused})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySamplesAppendChecks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	user, device := seedDevice(t, store)
	other := models.Device{UserID: user.ID, Name: "Fan", Code: "FAN-1", MAC: "AA:BB:CC:DD:EE:02"}
	require.NoError(t, store.Devices().Create(ctx, &other))

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	session := models.Session{DeviceID: device.ID, UserID: user.ID, StartTime: start, Status: models.SessionActive}
	require.NoError(t, store.Sessions().Create(ctx, &session))

	sample := func(deviceID int64, ts time.Time) *models.Sample {
		return &models.Sample{DeviceID: deviceID, SessionID: &session.ID, Timestamp: ts, Status: models.DeviceOn}
	}

	require.NoError(t, store.Samples().Append(ctx, sample(device.ID, start.Add(5*time.Second))))
	assert.ErrorIs(t, store.Samples().Append(ctx, sample(device.ID, start.Add(5*time.Second))), ErrTimestampOutOfOrder)
	assert.ErrorIs(t, store.Samples().Append(ctx, sample(device.ID, start.Add(time.Second))), ErrTimestampOutOfOrder)
	assert.ErrorIs(t, store.Samples().Append(ctx, sample(other.ID, start.Add(10*time.Second))), ErrDeviceMismatch)

	missing := int64(404)
	assert.ErrorIs(t, store.Samples().Append(ctx, &models.Sample{DeviceID: device.ID, SessionID: &missing, Timestamp: start}), ErrSessionNotFound)

	_, err := store.Sessions().Transition(ctx, models.SessionTransition{SessionID: session.ID, From: models.SessionActive, To: models.SessionPaused})
	require.NoError(t, err)
	assert.ErrorIs(t, store.Samples().Append(ctx, sample(device.ID, start.Add(20*time.Second))), ErrSessionNotActive)

	require.NoError(t, store.Samples().Append(ctx, &models.Sample{DeviceID: other.ID, Timestamp: start}))
	assert.ErrorIs(t, store.Samples().Append(ctx, &models.Sample{DeviceID: 777, Timestamp: start}), ErrDeviceNotFound)

	samples, err := store.Samples().ListBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, samples, 1)
}

func TestMemorySamplesListSortedByTimestamp(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, device := seedDevice(t, store)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{30, 10, 20} {
		require.NoError(t, store.Samples().Append(ctx, &models.Sample{DeviceID: device.ID, Timestamp: base.Add(offset * time.Second)}))
	}

	samples, err := store.Samples().ListByDevice(ctx, device.ID)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.True(t, samples[0].Timestamp.Before(samples[1].Timestamp))
	assert.True(t, samples[1].Timestamp.Before(samples[2].Timestamp))
}

func TestMemoryDeviceDeleteCascades(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	user, device := seedDevice(t, store)

	session := models.Session{DeviceID: device.ID, UserID: user.ID, StartTime: time.Now().UTC(), Status: models.SessionActive}
	require.NoError(t, store.Sessions().Create(ctx, &session))
	require.NoError(t, store.Samples().Append(ctx, &models.Sample{DeviceID: device.ID, SessionID: &session.ID, Timestamp: time.Now().UTC()}))

	assert.ErrorIs(t, store.Devices().Delete(ctx, device.ID, user.ID+1), ErrDeviceNotFound)
	require.NoError(t, store.Devices().Delete(ctx, device.ID, user.ID))

	_, err := store.Sessions().GetByID(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	samples, err := store.Samples().ListByDevice(ctx, device.ID)
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestMemoryDevicesOwnerOfIgnoresInactive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	user, device := seedDevice(t, store)

	owner, err := store.Devices().OwnerOf(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, owner)

	store.Devices().SetActive(device.ID, false)
	_, err = store.Devices().OwnerOf(ctx, device.ID)
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	dup := models.Device{UserID: user.ID, Name: "Copy", Code: "LAMP-1", MAC: "00:00:00:00:00:00"}
	assert.ErrorIs(t, store.Devices().Create(ctx, &dup), ErrDeviceExists)
}
