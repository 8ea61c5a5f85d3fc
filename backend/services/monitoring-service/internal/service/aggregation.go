package service

import (
	"iter"
	"slices"
	"time"

	"energymonitor/backend/services/monitoring-service/internal/models"
)

// Rounding applied to derived quantities.
const (
	energyPlaces = 6
	costPlaces   = 2
	powerPlaces  = 2
)

// DateLayout formats daily report keys.
const DateLayout = "2006-01-02"

// SessionSummary holds the derived energy and cost of one session.
type SessionSummary struct {
	SessionID      int64   `json:"session_id"`
	TotalEnergyKWh float64 `json:"total_energy_kwh"`
	EnergyCost     float64 `json:"energy_cost"`
	Currency       string  `json:"currency"`
}

// SessionView is a session together with its summary.
type SessionView struct {
	models.Session
	Summary SessionSummary `json:"summary"`
}

// DeviceReport aggregates a device's sessions and samples.
type DeviceReport struct {
	DeviceID       int64   `json:"device_id"`
	DeviceName     string  `json:"device_name"`
	Location       string  `json:"location"`
	SessionCount   int     `json:"session_count"`
	TotalEnergyKWh float64 `json:"total_energy_kwh"`
	TotalCost      float64 `json:"total_cost"`
	SampleCount    int     `json:"sample_count"`
	AvgPowerW      float64 `json:"avg_power_w"`
	PeakPowerW     float64 `json:"peak_power_w"`
	Currency       string  `json:"currency"`
}

// DailyWindow bounds a daily report. Zero From/To leave that side open, a zero
// Limit keeps every date, and a nil Location groups by UTC date.
type DailyWindow struct {
	From     time.Time
	To       time.Time
	Limit    int
	Location *time.Location
}

// DailyTotal is one calendar date of completed sessions.
type DailyTotal struct {
	Date           string  `json:"date"`
	SessionCount   int     `json:"session_count"`
	TotalEnergyKWh float64 `json:"total_energy_kwh"`
	TotalCost      float64 `json:"total_cost"`
}

// Overview is the dashboard headline.
type Overview struct {
	DeviceCount       int     `json:"device_count"`
	OnlineDeviceCount int     `json:"online_device_count"`
	CompletedSessions int     `json:"completed_sessions"`
	ActiveSessions    int     `json:"active_sessions"`
	MonitoredDevices  int     `json:"monitored_devices"`
	TotalEnergyKWh    float64 `json:"total_energy_kwh"`
	TotalCost         float64 `json:"total_cost"`
	Currency          string  `json:"currency"`
}

// Summarize derives energy and cost from the session's meter readings. Energy
// is zero until the session is closed with a final reading.
func Summarize(session models.Session, tariff Tariff) SessionSummary {
	summary := SessionSummary{SessionID: session.ID, Currency: tariff.Currency}
	if session.FinalKWh == nil || !session.Status.Terminal() {
		return summary
	}
	summary.TotalEnergyKWh = roundTo(*session.FinalKWh-session.InitialKWh, energyPlaces)
	summary.EnergyCost = tariff.Cost(summary.TotalEnergyKWh)
	return summary
}

// View pairs a session with its summary.
func View(session models.Session, tariff Tariff) SessionView {
	return SessionView{Session: session, Summary: Summarize(session, tariff)}
}

// BuildDeviceReport totals the device's sessions and power statistics over all
// of its samples, sessionless ones included. Rows of other devices are ignored.
func BuildDeviceReport(device models.Device, sessions []models.Session, samples []models.Sample, tariff Tariff) DeviceReport {
	report := DeviceReport{
		DeviceID:   device.ID,
		DeviceName: device.Name,
		Location:   device.Location,
		Currency:   tariff.Currency,
	}

	var energy, cost float64
	for _, s := range sessions {
		if s.DeviceID != device.ID {
			continue
		}
		summary := Summarize(s, tariff)
		report.SessionCount++
		energy += summary.TotalEnergyKWh
		cost += summary.EnergyCost
	}
	report.TotalEnergyKWh = roundTo(energy, energyPlaces)
	report.TotalCost = roundTo(cost, costPlaces)

	var powerSum float64
	for _, sample := range samples {
		if sample.DeviceID != device.ID {
			continue
		}
		report.SampleCount++
		powerSum += sample.PowerW
		report.PeakPowerW = max(report.PeakPowerW, sample.PowerW)
	}
	if report.SampleCount > 0 {
		report.AvgPowerW = roundTo(powerSum/float64(report.SampleCount), powerPlaces)
	}
	return report
}

// DailyTotals groups the user's COMPLETED sessions by the calendar date of
// their start time and yields the dates newest first. Grouping happens on the
// first iteration; the sessions slice must not change while the sequence is in use.
func DailyTotals(userID int64, sessions []models.Session, window DailyWindow, tariff Tariff) iter.Seq[DailyTotal] {
	return func(yield func(DailyTotal) bool) {
		loc := window.Location
		if loc == nil {
			loc = time.UTC
		}

		type bucket struct {
			total  DailyTotal
			energy float64
			cost   float64
		}
		buckets := make(map[string]*bucket)
		for _, s := range sessions {
			if s.UserID != userID || s.Status != models.SessionCompleted {
				continue
			}
			if !window.From.IsZero() && s.StartTime.Before(window.From) {
				continue
			}
			if !window.To.IsZero() && !s.StartTime.Before(window.To) {
				continue
			}
			date := s.StartTime.In(loc).Format(DateLayout)
			b, ok := buckets[date]
			if !ok {
				b = &bucket{total: DailyTotal{Date: date}}
				buckets[date] = b
			}
			summary := Summarize(s, tariff)
			b.total.SessionCount++
			b.energy += summary.TotalEnergyKWh
			b.cost += summary.EnergyCost
		}

		dates := make([]string, 0, len(buckets))
		for date := range buckets {
			dates = append(dates, date)
		}
		slices.Sort(dates)
		slices.Reverse(dates)

		for i, date := range dates {
			if window.Limit > 0 && i >= window.Limit {
				return
			}
			b := buckets[date]
			b.total.TotalEnergyKWh = roundTo(b.energy, energyPlaces)
			b.total.TotalCost = roundTo(b.cost, costPlaces)
			if !yield(b.total) {
				return
			}
		}
	}
}

// BuildOverview summarizes the user's devices and sessions for the dashboard.
// Energy and cost count COMPLETED sessions only.
func BuildOverview(devices []models.Device, sessions []models.Session, tariff Tariff) Overview {
	overview := Overview{DeviceCount: len(devices), Currency: tariff.Currency}
	for _, d := range devices {
		if d.IsOnline {
			overview.OnlineDeviceCount++
		}
	}

	monitored := make(map[int64]struct{})
	var energy, cost float64
	for _, s := range sessions {
		switch s.Status {
		case models.SessionActive, models.SessionPaused:
			overview.ActiveSessions++
		case models.SessionCompleted:
			summary := Summarize(s, tariff)
			overview.CompletedSessions++
			energy += summary.TotalEnergyKWh
			cost += summary.EnergyCost
			monitored[s.DeviceID] = struct{}{}
		}
	}
	overview.MonitoredDevices = len(monitored)
	overview.TotalEnergyKWh = roundTo(energy, energyPlaces)
	overview.TotalCost = roundTo(cost, costPlaces)
	return overview
}
