package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"energymonitor/backend/services/monitoring-service/internal/models"
	"energymonitor/backend/services/monitoring-service/internal/service"
)

const (
	maxMessageSize = 64 * 1024
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
)

// Ingestor stores readings pushed by devices.
type Ingestor interface {
	IngestDeviceReading(ctx context.Context, deviceID int64, reading service.DeviceReading) (*models.Sample, error)
}

// Ack is written back for every received reading.
type Ack struct {
	OK        bool   `json:"ok"`
	SampleID  int64  `json:"sample_id,omitempty"`
	SessionID *int64 `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Connection represents an active device WebSocket connection.
type Connection struct {
	deviceID     int64
	ws           *websocket.Conn
	send         chan []byte
	logger       *zap.Logger
	ingestor     Ingestor
	writeTimeout time.Duration
	onClose      func(*Connection)
}

// NewConnection builds connection wrapper.
func NewConnection(deviceID int64, ws *websocket.Conn, ingestor Ingestor, writeTimeout time.Duration, logger *zap.Logger, onClose func(*Connection)) *Connection {
	return &Connection{
		deviceID:     deviceID,
		ws:           ws,
		send:         make(chan []byte, 16),
		logger:       logger.With(zap.Int64("device_id", deviceID)),
		ingestor:     ingestor,
		writeTimeout: writeTimeout,
		onClose:      onClose,
	}
}

// DeviceID returns the connected device.
func (c *Connection) DeviceID() int64 {
	return c.deviceID
}

// Start launches the write pump and blocks in the read pump.
func (c *Connection) Start(ctx context.Context) {
	go c.writePump(ctx)
	c.readPump(ctx)
}

// Close terminates the connection; the read pump then cleans up.
func (c *Connection) Close() {
	_ = c.ws.Close()
}

func (c *Connection) readPump(ctx context.Context) {
	defer c.cleanup()
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.ws.ReadMessage()
		if err != nil {
			c.logger.Info("device connection closed", zap.Error(err))
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		c.reply(c.handle(ctx, message))
	}
}

func (c *Connection) handle(ctx context.Context, message []byte) Ack {
	var reading service.DeviceReading
	if err := json.Unmarshal(message, &reading); err != nil {
		return Ack{Error: "invalid JSON reading"}
	}
	sample, err := c.ingestor.IngestDeviceReading(ctx, c.deviceID, reading)
	if err != nil {
		c.logger.Warn("device reading rejected", zap.Error(err))
		return Ack{Error: err.Error()}
	}
	return Ack{OK: true, SampleID: sample.ID, SessionID: sample.SessionID}
}

func (c *Connection) reply(ack Ack) {
	payload, err := json.Marshal(ack)
	if err != nil {
		c.logger.Warn("failed to encode ack", zap.Error(err))
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Warn("dropping outgoing message, buffer full")
	}
}

func (c *Connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Connection) cleanup() {
	// send is only written by the read pump, which has returned.
	close(c.send)
	if c.onClose != nil {
		c.onClose(c)
	}
}
