package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"energymonitor/backend/services/monitoring-service/internal/models"
	"energymonitor/backend/services/monitoring-service/internal/service"
)

// DefaultTopic matches per-device telemetry topics such as
// energymonitor/devices/7/telemetry.
const DefaultTopic = "energymonitor/devices/+/telemetry"

const (
	connectTimeout = 10 * time.Second
	handleTimeout  = 5 * time.Second
)

// Ingestor stores readings pushed by devices.
type Ingestor interface {
	IngestDeviceReading(ctx context.Context, deviceID int64, reading service.DeviceReading) (*models.Sample, error)
}

// Config describes the broker connection.
type Config struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Topic     string
	QoS       byte
}

// Subscriber feeds MQTT device telemetry into the ingestion service.
type Subscriber struct {
	cfg      Config
	ingestor Ingestor
	logger   *zap.Logger
	client   paho.Client
}

// NewSubscriber builds a subscriber; it connects in Run.
func NewSubscriber(cfg Config, ingestor Ingestor, logger *zap.Logger) (*Subscriber, error) {
	if strings.TrimSpace(cfg.BrokerURL) == "" {
		return nil, errors.New("mqtt: broker url is empty")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "monitoring-service"
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt: invalid qos %d", cfg.QoS)
	}
	return &Subscriber{cfg: cfg, ingestor: ingestor, logger: logger}, nil
}

// Run connects, subscribes and blocks until ctx is cancelled. The
// subscription is renewed on every reconnect.
func (s *Subscriber) Run(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(s.cfg.BrokerURL).
		SetClientID(s.cfg.ClientID).
		SetUsername(s.cfg.Username).
		SetPassword(s.cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(c paho.Client) {
			token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, func(_ paho.Client, msg paho.Message) {
				s.onMessage(ctx, msg)
			})
			if err := waitToken(token, connectTimeout, "subscribe"); err != nil {
				s.logger.Error("mqtt subscribe failed", zap.String("topic", s.cfg.Topic), zap.Error(err))
				return
			}
			s.logger.Info("mqtt subscribed", zap.String("topic", s.cfg.Topic))
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.logger.Warn("mqtt connection lost", zap.Error(err))
		})

	s.client = paho.NewClient(opts)
	if err := waitToken(s.client.Connect(), connectTimeout, "connect"); err != nil {
		return err
	}

	<-ctx.Done()
	s.client.Unsubscribe(s.cfg.Topic).WaitTimeout(time.Second)
	s.client.Disconnect(250)
	return nil
}

// waitToken fails when the operation does not complete within timeout or
// completes with an error.
func waitToken(token paho.Token, timeout time.Duration, op string) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt: %s timed out after %s", op, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: %s: %w", op, err)
	}
	return nil
}

func (s *Subscriber) onMessage(ctx context.Context, msg paho.Message) {
	if err := s.Handle(ctx, msg.Topic(), msg.Payload()); err != nil {
		s.logger.Warn("mqtt reading rejected", zap.String("topic", msg.Topic()), zap.Error(err))
	}
}

// Handle decodes one telemetry message and ingests it.
func (s *Subscriber) Handle(ctx context.Context, topic string, payload []byte) error {
	deviceID, err := DeviceIDFromTopic(topic)
	if err != nil {
		return err
	}
	var reading service.DeviceReading
	if err := json.Unmarshal(payload, &reading); err != nil {
		return fmt.Errorf("mqtt: decode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()
	sample, err := s.ingestor.IngestDeviceReading(ctx, deviceID, reading)
	if err != nil {
		return err
	}
	s.logger.Debug("mqtt reading stored", zap.Int64("device_id", deviceID), zap.Int64("sample_id", sample.ID))
	return nil
}

// DeviceIDFromTopic extracts the id following the "devices" level.
func DeviceIDFromTopic(topic string) (int64, error) {
	levels := strings.Split(topic, "/")
	for i := 0; i < len(levels)-1; i++ {
		if levels[i] != "devices" {
			continue
		}
		id, err := strconv.ParseInt(levels[i+1], 10, 64)
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("mqtt: invalid device id in topic %q", topic)
		}
		return id, nil
	}
	return 0, fmt.Errorf("mqtt: no device level in topic %q", topic)
}
