package service

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"energymonitor/backend/services/monitoring-service/internal/models"
)

var macPattern = regexp.MustCompile(`^([0-9A-F]{2}:){5}[0-9A-F]{2}$`)

// DevicesService manages the user's device registry entries.
type DevicesService struct {
	repo   DeviceRepository
	logger *zap.Logger
}

// RegisterDeviceInput describes a device to register.
type RegisterDeviceInput struct {
	UserID       int64
	Name         string
	Code         string
	MAC          string
	Location     string
	Type         models.DeviceType
	PowerRatingW float64
}

// NewDevicesService builds service.
func NewDevicesService(repo DeviceRepository, logger *zap.Logger) *DevicesService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DevicesService{repo: repo, logger: logger}
}

// Register adds a device owned by the user.
func (s *DevicesService) Register(ctx context.Context, input RegisterDeviceInput) (*models.Device, error) {
	device := &models.Device{
		UserID:       input.UserID,
		Name:         strings.TrimSpace(input.Name),
		Code:         strings.ToUpper(strings.TrimSpace(input.Code)),
		MAC:          strings.ToUpper(strings.TrimSpace(input.MAC)),
		Location:     strings.TrimSpace(input.Location),
		Type:         input.Type,
		PowerRatingW: input.PowerRatingW,
	}
	if device.Type == "" {
		device.Type = models.DeviceLighting
	}
	switch {
	case device.Name == "" || len(device.Name) > 100:
		return nil, invalidInput("device name must be 1-100 characters")
	case device.Code == "" || len(device.Code) > 50:
		return nil, invalidInput("device code must be 1-50 characters")
	case !macPattern.MatchString(device.MAC):
		return nil, invalidInput("mac %q is not of the form AA:BB:CC:DD:EE:FF", input.MAC)
	case !device.Type.Valid():
		return nil, invalidInput("unknown device type %q", input.Type)
	case !validReading(device.PowerRatingW):
		return nil, invalidInput("power rating must be a non-negative number")
	}

	if err := s.repo.Create(ctx, device); err != nil {
		return nil, mapRepoError(err)
	}
	s.logger.Info("device registered",
		zap.Int64("device_id", device.ID),
		zap.Int64("user_id", device.UserID),
		zap.String("code", device.Code),
	)
	return device, nil
}

// List returns the user's active devices.
func (s *DevicesService) List(ctx context.Context, userID int64) ([]models.Device, error) {
	devices, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return devices, nil
}

// Delete removes a device with its sessions and samples.
func (s *DevicesService) Delete(ctx context.Context, deviceID, userID int64) error {
	if err := s.repo.Delete(ctx, deviceID, userID); err != nil {
		return mapRepoError(err)
	}
	s.logger.Info("device deleted", zap.Int64("device_id", deviceID), zap.Int64("user_id", userID))
	return nil
}
