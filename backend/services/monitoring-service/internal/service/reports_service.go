package service

import (
	"context"
	"iter"

	"go.uber.org/zap"

	"energymonitor/backend/services/monitoring-service/internal/models"
)

const dashboardRecentSessions = 5

// ReportsService loads ledger and telemetry state and runs the aggregation
// engine over it.
type ReportsService struct {
	devices  DeviceRepository
	sessions SessionRepository
	samples  SampleRepository
	tariff   Tariff
	logger   *zap.Logger
}

// Dashboard is the overview plus the latest sessions.
type Dashboard struct {
	Overview Overview      `json:"overview"`
	Recent   []SessionView `json:"recent_sessions"`
}

// NewReportsService builds service.
func NewReportsService(devices DeviceRepository, sessions SessionRepository, samples SampleRepository, tariff Tariff, logger *zap.Logger) *ReportsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportsService{
		devices:  devices,
		sessions: sessions,
		samples:  samples,
		tariff:   tariff,
		logger:   logger,
	}
}

// Tariff returns the tariff reports are priced with.
func (s *ReportsService) Tariff() Tariff {
	return s.tariff
}

// Summarize prices a single session.
func (s *ReportsService) Summarize(session models.Session) SessionSummary {
	return Summarize(session, s.tariff)
}

// Views attaches summaries to sessions.
func (s *ReportsService) Views(sessions []models.Session) []SessionView {
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, View(session, s.tariff))
	}
	return views
}

// DeviceReport builds the report of one device owned by the user.
func (s *ReportsService) DeviceReport(ctx context.Context, deviceID, userID int64) (*DeviceReport, error) {
	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if device.UserID != userID {
		return nil, notFound("device %d", deviceID)
	}
	report, err := s.deviceReport(ctx, *device)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// DeviceReports builds a report for each of the user's devices.
func (s *ReportsService) DeviceReports(ctx context.Context, userID int64) ([]DeviceReport, error) {
	devices, err := s.devices.ListByUser(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	reports := make([]DeviceReport, 0, len(devices))
	for _, device := range devices {
		report, err := s.deviceReport(ctx, device)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (s *ReportsService) deviceReport(ctx context.Context, device models.Device) (DeviceReport, error) {
	sessions, err := s.sessions.ListByDevice(ctx, device.ID)
	if err != nil {
		return DeviceReport{}, mapRepoError(err)
	}
	samples, err := s.samples.ListByDevice(ctx, device.ID)
	if err != nil {
		return DeviceReport{}, mapRepoError(err)
	}
	return BuildDeviceReport(device, sessions, samples, s.tariff), nil
}

// DailyReport returns the user's completed sessions grouped by start date,
// newest date first.
func (s *ReportsService) DailyReport(ctx context.Context, userID int64, window DailyWindow) (iter.Seq[DailyTotal], error) {
	if window.Limit < 0 {
		return nil, invalidInput("limit must not be negative")
	}
	if !window.From.IsZero() && !window.To.IsZero() && !window.From.Before(window.To) {
		return nil, invalidInput("from must be before to")
	}
	sessions, err := s.sessions.ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return DailyTotals(userID, sessions, window, s.tariff), nil
}

// Dashboard summarizes the user's devices and sessions.
func (s *ReportsService) Dashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	devices, err := s.devices.ListByUser(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	sessions, err := s.sessions.ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, mapRepoError(err)
	}

	recent := sessions
	if len(recent) > dashboardRecentSessions {
		recent = recent[:dashboardRecentSessions]
	}
	return &Dashboard{
		Overview: BuildOverview(devices, sessions, s.tariff),
		Recent:   s.Views(recent),
	}, nil
}
