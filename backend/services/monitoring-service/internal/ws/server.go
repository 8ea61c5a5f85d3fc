package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"energymonitor/backend/services/monitoring-service/internal/repository"
)

// DeviceRegistry resolves registered, active devices.
type DeviceRegistry interface {
	OwnerOf(ctx context.Context, deviceID int64) (int64, error)
}

// Server upgrades device HTTP connections to telemetry WebSockets.
type Server struct {
	manager      *Manager
	devices      DeviceRegistry
	ingestor     Ingestor
	logger       *zap.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

// NewServer builds ws server.
func NewServer(manager *Manager, devices DeviceRegistry, ingestor Ingestor, writeTimeout time.Duration, logger *zap.Logger) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Server{
		manager:      manager,
		devices:      devices,
		ingestor:     ingestor,
		logger:       logger,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is the HTTP handler for /ws/devices/{id}/telemetry.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	deviceID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || deviceID <= 0 {
		http.Error(w, "invalid device id", http.StatusBadRequest)
		return
	}
	if _, err := s.devices.OwnerOf(r.Context(), deviceID); err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			http.Error(w, "device not found", http.StatusNotFound)
			return
		}
		s.logger.Error("device lookup failed", zap.Int64("device_id", deviceID), zap.Error(err))
		http.Error(w, "device lookup failed", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := NewConnection(deviceID, conn, s.ingestor, s.writeTimeout, s.logger, func(c *Connection) {
		s.manager.Remove(c)
		cancel()
		_ = conn.Close()
	})
	s.manager.Add(connection)

	go connection.Start(ctx)
	s.logger.Info("device connected", zap.Int64("device_id", deviceID))
}
