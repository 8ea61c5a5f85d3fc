package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"energymonitor/backend/services/monitoring-service/internal/auth"
	"energymonitor/backend/services/monitoring-service/internal/models"
	"energymonitor/backend/services/monitoring-service/internal/service"
)

type seedDevice struct {
	name     string
	code     string
	mac      string
	location string
	kind     models.DeviceType
	ratingW  float64
}

var demoDevices = []seedDevice{
	{"Kitchen Lights", "DEV-KITCH-001", "AA:BB:CC:DD:EE:FF", "Kitchen", models.DeviceLighting, 100},
	{"Living Room AC", "DEV-LIVING-001", "11:22:33:44:55:66", "Living Room", models.DeviceAC, 500},
	{"Workspace PC", "DEV-WORK-001", "77:88:99:AA:BB:CC", "Workspace", models.DeviceAppliance, 300},
}

// seedDemo creates the admin and demo accounts and the demo user's devices.
// Existing rows are left alone, so it is safe on every start.
func seedDemo(
	ctx context.Context,
	users auth.UserRepository,
	authenticator *auth.Authenticator,
	devices *service.DevicesService,
	adminPassword, userPassword string,
	logger *zap.Logger,
) error {
	if _, err := ensureUser(ctx, users, authenticator, models.User{
		Username: "admin", Email: "admin@iot.com", FullName: "Administrator", Role: models.RoleAdmin, IsActive: true,
	}, adminPassword); err != nil {
		return err
	}
	budi, err := ensureUser(ctx, users, authenticator, models.User{
		Username: "budi", Email: "budi@iot.com", FullName: "Budi Santoso", Role: models.RoleUser, IsActive: true,
	}, userPassword)
	if err != nil {
		return err
	}

	for _, d := range demoDevices {
		_, err := devices.Register(ctx, service.RegisterDeviceInput{
			UserID:       budi.ID,
			Name:         d.name,
			Code:         d.code,
			MAC:          d.mac,
			Location:     d.location,
			Type:         d.kind,
			PowerRatingW: d.ratingW,
		})
		if err != nil && !errors.Is(err, service.ErrInvalidState) {
			return err
		}
	}
	logger.Info("demo data ready", zap.Int64("user_id", budi.ID), zap.Int("devices", len(demoDevices)))
	return nil
}

func ensureUser(ctx context.Context, users auth.UserRepository, authenticator *auth.Authenticator, user models.User, password string) (*models.User, error) {
	if existing, err := users.GetByUsername(ctx, user.Username); err == nil {
		return existing, nil
	}
	created, err := authenticator.Register(ctx, user, password)
	if errors.Is(err, auth.ErrUserExists) {
		return users.GetByUsername(ctx, user.Username)
	}
	return created, err
}
