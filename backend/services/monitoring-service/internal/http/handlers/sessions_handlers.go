package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"energymonitor/backend/services/monitoring-service/internal/models"
	"energymonitor/backend/services/monitoring-service/internal/service"
)

const defaultSessionsLimit = 50

// SessionsHandlers serves the monitoring session lifecycle.
type SessionsHandlers struct {
	sessions *service.SessionsService
	reports  *service.ReportsService
	logger   *zap.Logger
}

// NewSessionsHandlers returns handler.
func NewSessionsHandlers(sessions *service.SessionsService, reports *service.ReportsService, logger *zap.Logger) *SessionsHandlers {
	return &SessionsHandlers{sessions: sessions, reports: reports, logger: logger}
}

type startSessionRequest struct {
	DeviceID   int64   `json:"device_id"`
	Name       string  `json:"name"`
	InitialKWh float64 `json:"initial_kwh"`
}

type stopSessionRequest struct {
	FinalKWh *float64 `json:"final_kwh"`
}

// List handles GET /api/sessions?limit=N. limit=0 returns every session.
func (h *SessionsHandlers) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", defaultSessionsLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessions, err := h.sessions.ListSessions(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": h.reports.Views(sessions)})
}

// Active handles GET /api/sessions/active.
func (h *SessionsHandlers) Active(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessions, err := h.sessions.ListActiveSessions(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": h.reports.Views(sessions)})
}

// Start handles POST /api/sessions.
func (h *SessionsHandlers) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DeviceID <= 0 {
		writeError(w, http.StatusBadRequest, "device_id is required")
		return
	}
	session, err := h.sessions.StartSession(r.Context(), service.StartSessionInput{
		DeviceID:   req.DeviceID,
		UserID:     userID,
		Name:       req.Name,
		InitialKWh: req.InitialKWh,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, service.View(*session, h.reports.Tariff()))
}

// Get handles GET /api/sessions/{id}.
func (h *SessionsHandlers) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, h.sessions.GetSession)
}

// Stop handles POST /api/sessions/{id}/stop with the closing meter reading.
func (h *SessionsHandlers) Stop(w http.ResponseWriter, r *http.Request) {
	var req stopSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.FinalKWh == nil {
		writeError(w, http.StatusBadRequest, "final_kwh is required")
		return
	}
	h.respond(w, r, http.StatusOK, func(ctx context.Context, sessionID, userID int64) (*models.Session, error) {
		return h.sessions.StopSession(ctx, sessionID, userID, *req.FinalKWh)
	})
}

// Cancel handles POST /api/sessions/{id}/cancel.
func (h *SessionsHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, h.sessions.CancelSession)
}

// Pause handles POST /api/sessions/{id}/pause.
func (h *SessionsHandlers) Pause(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, h.sessions.PauseSession)
}

// Resume handles POST /api/sessions/{id}/resume.
func (h *SessionsHandlers) Resume(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, h.sessions.ResumeSession)
}

func (h *SessionsHandlers) respond(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	op func(ctx context.Context, sessionID, userID int64) (*models.Session, error),
) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := op(r.Context(), sessionID, userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, status, service.View(*session, h.reports.Tariff()))
}
