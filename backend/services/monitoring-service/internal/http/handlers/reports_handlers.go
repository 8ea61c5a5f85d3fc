package handlers

import (
	"fmt"
	"net/http"
	"slices"
	"time"

	"go.uber.org/zap"

	"energymonitor/backend/services/monitoring-service/internal/service"
)

const defaultReportDays = 7

// ReportsHandlers serves read-only aggregates.
type ReportsHandlers struct {
	reports  *service.ReportsService
	location *time.Location
	logger   *zap.Logger
}

// NewReportsHandlers returns handler. Daily reports group by dates in loc.
func NewReportsHandlers(reports *service.ReportsService, loc *time.Location, logger *zap.Logger) *ReportsHandlers {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportsHandlers{reports: reports, location: loc, logger: logger}
}

// Devices handles GET /api/reports/devices.
func (h *ReportsHandlers) Devices(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	reports, err := h.reports.DeviceReports(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": reports})
}

// Daily handles GET /api/reports/daily?days=N&from=YYYY-MM-DD&to=YYYY-MM-DD.
// to is inclusive; days=0 returns every date.
func (h *ReportsHandlers) Daily(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	window, err := h.dailyWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	totals, err := h.reports.DailyReport(r.Context(), userID, window)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	days := slices.Collect(totals)
	if days == nil {
		days = []service.DailyTotal{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":     days,
		"currency": h.reports.Tariff().Currency,
	})
}

// Dashboard handles GET /api/dashboard.
func (h *ReportsHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	dashboard, err := h.reports.Dashboard(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// Tariff handles GET /api/tariff.
func (h *ReportsHandlers) Tariff(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reports.Tariff())
}

func (h *ReportsHandlers) dailyWindow(r *http.Request) (service.DailyWindow, error) {
	window := service.DailyWindow{Location: h.location}
	limit, err := queryInt(r, "days", defaultReportDays)
	if err != nil {
		return window, err
	}
	window.Limit = limit

	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		from, err := time.ParseInLocation(service.DateLayout, raw, h.location)
		if err != nil {
			return window, fmt.Errorf("invalid from %q", raw)
		}
		window.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.ParseInLocation(service.DateLayout, raw, h.location)
		if err != nil {
			return window, fmt.Errorf("invalid to %q", raw)
		}
		window.To = to.AddDate(0, 0, 1)
	}
	return window, nil
}
