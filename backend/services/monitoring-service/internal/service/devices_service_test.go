package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energymonitor/backend/services/monitoring-service/internal/models"
)

func TestDevicesServiceRegisterValidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewDevicesService(f.store.Devices(), nil)

	valid := RegisterDeviceInput{UserID: f.user.ID, Name: "Kulkas", Code: "frg-001", MAC: "aa:bb:cc:dd:ee:10", Type: models.DeviceAppliance, PowerRatingW: 150}
	device, err := svc.Register(ctx, valid)
	require.NoError(t, err)
	assert.Equal(t, "FRG-001", device.Code)
	assert.Equal(t, "AA:BB:CC:DD:EE:10", device.MAC)
	assert.True(t, device.IsActive)

	_, err = svc.Register(ctx, valid)
	assert.ErrorIs(t, err, ErrInvalidState)

	bad := []func(*RegisterDeviceInput){
		func(in *RegisterDeviceInput) { in.Name = " " },
		func(in *RegisterDeviceInput) { in.Code = "" },
		func(in *RegisterDeviceInput) { in.MAC = "not-a-mac" },
		func(in *RegisterDeviceInput) { in.Type = "reactor" },
		func(in *RegisterDeviceInput) { in.PowerRatingW = -5 },
	}
	for _, mutate := range bad {
		in := valid
		in.Code, in.MAC = "NEW-1", "AA:BB:CC:DD:EE:11"
		mutate(&in)
		_, err := svc.Register(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestDevicesServiceDeleteCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewDevicesService(f.store.Devices(), nil)
	session := f.start(t, 1)

	assert.ErrorIs(t, svc.Delete(ctx, f.device.ID, f.stranger.ID), ErrNotFound)
	require.NoError(t, svc.Delete(ctx, f.device.ID, f.user.ID))

	_, err := f.sessions.GetSession(ctx, session.ID, f.user.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	devices, err := svc.List(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, devices)
}
