package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"energymonitor/backend/services/monitoring-service/internal/models"
	"energymonitor/backend/services/monitoring-service/internal/service"
)

// DevicesHandlers serves the device registry.
type DevicesHandlers struct {
	devices *service.DevicesService
	reports *service.ReportsService
	logger  *zap.Logger
}

// NewDevicesHandlers returns handler.
func NewDevicesHandlers(devices *service.DevicesService, reports *service.ReportsService, logger *zap.Logger) *DevicesHandlers {
	return &DevicesHandlers{devices: devices, reports: reports, logger: logger}
}

type registerDeviceRequest struct {
	Name         string            `json:"name"`
	Code         string            `json:"code"`
	MAC          string            `json:"mac"`
	Location     string            `json:"location"`
	Type         models.DeviceType `json:"type"`
	PowerRatingW float64           `json:"power_rating_w"`
}

// List handles GET /api/devices.
func (h *DevicesHandlers) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	devices, err := h.devices.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": devices})
}

// Register handles POST /api/devices.
func (h *DevicesHandlers) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req registerDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	device, err := h.devices.Register(r.Context(), service.RegisterDeviceInput{
		UserID:       userID,
		Name:         req.Name,
		Code:         req.Code,
		MAC:          req.MAC,
		Location:     req.Location,
		Type:         req.Type,
		PowerRatingW: req.PowerRatingW,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, device)
}

// Delete handles DELETE /api/devices/{id}.
func (h *DevicesHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	deviceID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.devices.Delete(r.Context(), deviceID, userID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Report handles GET /api/devices/{id}/report.
func (h *DevicesHandlers) Report(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	deviceID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := h.reports.DeviceReport(r.Context(), deviceID, userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
