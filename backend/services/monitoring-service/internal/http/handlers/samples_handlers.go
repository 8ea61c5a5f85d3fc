package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"energymonitor/backend/services/monitoring-service/internal/service"
)

// SamplesHandlers serves telemetry ingestion and sample listing.
type SamplesHandlers struct {
	telemetry *service.TelemetryService
	logger    *zap.Logger
}

// NewSamplesHandlers returns handler.
func NewSamplesHandlers(telemetry *service.TelemetryService, logger *zap.Logger) *SamplesHandlers {
	return &SamplesHandlers{telemetry: telemetry, logger: logger}
}

// Ingest handles POST /api/telemetry.
func (h *SamplesHandlers) Ingest(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var input service.SampleInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sample, err := h.telemetry.IngestUserSample(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sample)
}

// IngestIntoSession handles POST /api/sessions/{id}/samples.
func (h *SamplesHandlers) IngestIntoSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var input service.SampleInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sample, err := h.telemetry.IngestSessionSample(r.Context(), sessionID, userID, input)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sample)
}

// List handles GET /api/sessions/{id}/samples.
func (h *SamplesHandlers) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	samples, err := h.telemetry.ListSamples(r.Context(), sessionID, userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"samples": samples})
}

// Simulate handles POST /api/sessions/{id}/simulate.
func (h *SamplesHandlers) Simulate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sample, err := h.telemetry.GenerateSyntheticSample(r.Context(), sessionID, userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sample)
}
