package httpserver

import (
	"net/http"

	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"energymonitor/backend/services/monitoring-service/internal/http/handlers"
	"energymonitor/backend/services/monitoring-service/internal/http/middleware"
	"energymonitor/backend/services/monitoring-service/internal/models"
)

// Routes groups handlers.
type Routes struct {
	Health    http.HandlerFunc
	Metrics   http.Handler
	WebSocket http.HandlerFunc
	Auth      *handlers.AuthHandlers
	Devices   *handlers.DevicesHandlers
	Sessions  *handlers.SessionsHandlers
	Samples   *handlers.SamplesHandlers
	Reports   *handlers.ReportsHandlers
}

// RouterOptions configures cross-cutting middleware.
type RouterOptions struct {
	Auth        func(http.Handler) http.Handler
	Metrics     func(http.Handler) http.Handler
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter registers endpoints. Only /api routes pass through logging and
// metrics; the WebSocket route is left unwrapped so the upgrade can hijack the
// connection.
func NewRouter(routes Routes, opts RouterOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	authenticated := func(handler http.HandlerFunc) http.Handler {
		if opts.Auth == nil {
			return handler
		}
		return opts.Auth(handler)
	}
	adminOnly := func(handler http.HandlerFunc) http.Handler {
		return authenticated(middleware.RequireRole(models.RoleAdmin)(handler).ServeHTTP)
	}

	router := mux.NewRouter()
	router.NotFoundHandler = jsonStatus(http.StatusNotFound, "not found")
	router.MethodNotAllowedHandler = jsonStatus(http.StatusMethodNotAllowed, "method not allowed")

	if routes.Health != nil {
		router.Handle("/health", routes.Health).Methods(http.MethodGet)
	}
	if routes.Metrics != nil {
		router.Handle("/metrics", routes.Metrics).Methods(http.MethodGet)
	}
	if routes.WebSocket != nil {
		router.HandleFunc("/ws/devices/{id:[0-9]+}/telemetry", routes.WebSocket).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = router.NotFoundHandler
	api.MethodNotAllowedHandler = router.MethodNotAllowedHandler
	api.Use(middleware.RequestID, middleware.Logging(opts.Logger))
	if opts.Metrics != nil {
		api.Use(opts.Metrics)
	}

	if h := routes.Auth; h != nil {
		api.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
		api.HandleFunc("/auth/signup", h.Signup).Methods(http.MethodPost)
		api.Handle("/users", adminOnly(h.Users)).Methods(http.MethodGet)
	}
	if h := routes.Devices; h != nil {
		api.Handle("/devices", authenticated(h.List)).Methods(http.MethodGet)
		api.Handle("/devices", authenticated(h.Register)).Methods(http.MethodPost)
		api.Handle("/devices/{id:[0-9]+}", authenticated(h.Delete)).Methods(http.MethodDelete)
		api.Handle("/devices/{id:[0-9]+}/report", authenticated(h.Report)).Methods(http.MethodGet)
	}
	if h := routes.Sessions; h != nil {
		api.Handle("/sessions", authenticated(h.List)).Methods(http.MethodGet)
		api.Handle("/sessions", authenticated(h.Start)).Methods(http.MethodPost)
		api.Handle("/sessions/active", authenticated(h.Active)).Methods(http.MethodGet)
		api.Handle("/sessions/{id:[0-9]+}", authenticated(h.Get)).Methods(http.MethodGet)
		api.Handle("/sessions/{id:[0-9]+}/stop", authenticated(h.Stop)).Methods(http.MethodPost)
		api.Handle("/sessions/{id:[0-9]+}/cancel", authenticated(h.Cancel)).Methods(http.MethodPost)
		api.Handle("/sessions/{id:[0-9]+}/pause", authenticated(h.Pause)).Methods(http.MethodPost)
		api.Handle("/sessions/{id:[0-9]+}/resume", authenticated(h.Resume)).Methods(http.MethodPost)
	}
	if h := routes.Samples; h != nil {
		api.Handle("/telemetry", authenticated(h.Ingest)).Methods(http.MethodPost)
		api.Handle("/sessions/{id:[0-9]+}/samples", authenticated(h.List)).Methods(http.MethodGet)
		api.Handle("/sessions/{id:[0-9]+}/samples", authenticated(h.IngestIntoSession)).Methods(http.MethodPost)
		api.Handle("/sessions/{id:[0-9]+}/simulate", authenticated(h.Simulate)).Methods(http.MethodPost)
	}
	if h := routes.Reports; h != nil {
		api.Handle("/reports/devices", authenticated(h.Devices)).Methods(http.MethodGet)
		api.Handle("/reports/daily", authenticated(h.Daily)).Methods(http.MethodGet)
		api.Handle("/dashboard", authenticated(h.Dashboard)).Methods(http.MethodGet)
		api.Handle("/tariff", authenticated(h.Tariff)).Methods(http.MethodGet)
	}

	var handler http.Handler = router
	if len(opts.CORSOrigins) > 0 {
		handler = ghandlers.CORS(
			ghandlers.AllowedOrigins(opts.CORSOrigins),
			ghandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
			ghandlers.AllowedHeaders([]string{"Authorization", "Content-Type", middleware.RequestIDHeader}),
		)(handler)
	}
	return ghandlers.RecoveryHandler(
		ghandlers.RecoveryLogger(zapRecoveryLogger{opts.Logger}),
		ghandlers.PrintRecoveryStack(false),
	)(handler)
}

func jsonStatus(status int, message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
	})
}

type zapRecoveryLogger struct {
	logger *zap.Logger
}

func (l zapRecoveryLogger) Println(v ...interface{}) {
	l.logger.Error("recovered from panic", zap.Any("panic", v))
}
