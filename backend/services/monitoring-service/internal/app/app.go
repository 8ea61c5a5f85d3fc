package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libredis "energymonitor/backend/libs/redis"
	"energymonitor/backend/services/monitoring-service/internal/auth"
	"energymonitor/backend/services/monitoring-service/internal/config"
	"energymonitor/backend/services/monitoring-service/internal/db"
	"energymonitor/backend/services/monitoring-service/internal/events"
	httpserver "energymonitor/backend/services/monitoring-service/internal/http"
	"energymonitor/backend/services/monitoring-service/internal/http/handlers"
	"energymonitor/backend/services/monitoring-service/internal/http/middleware"
	"energymonitor/backend/services/monitoring-service/internal/metrics"
	"energymonitor/backend/services/monitoring-service/internal/mqtt"
	redisstore "energymonitor/backend/services/monitoring-service/internal/redis"
	"energymonitor/backend/services/monitoring-service/internal/repository"
	"energymonitor/backend/services/monitoring-service/internal/service"
	"energymonitor/backend/services/monitoring-service/internal/ws"
)

const seedTimeout = 30 * time.Second

type eventSink interface {
	service.EventPublisher
	Close() error
}

type storage struct {
	users    auth.UserRepository
	devices  service.DeviceRepository
	sessions service.SessionRepository
	samples  service.SampleRepository
}

// App wires monitoring-service dependencies.
type App struct {
	server      *httpserver.Server
	subscriber  *mqtt.Subscriber
	wsManager   *ws.Manager
	publisher   eventSink
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	store, err := a.openStorage(cfg)
	if err != nil {
		return nil, err
	}

	var activeStore service.ActiveSessionCache
	if cfg.RedisEnabled() {
		a.redisClient, err = libredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		activeStore = redisstore.NewStore(a.redisClient, cfg.ActiveSessionTTL())
	}

	a.publisher = events.NopPublisher{}
	if cfg.KafkaEnabled() {
		publisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			return nil, err
		}
		a.publisher = publisher
	}

	tariff, err := service.NewTariff(cfg.Tariff.RatePerKWh, cfg.Tariff.Currency)
	if err != nil {
		return nil, err
	}
	location, err := cfg.ReportLocation()
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	source := service.NewRandomSource(cfg.SimulatorInterval(), cfg.Simulator.Seed)

	sessionsService := service.NewSessionsService(store.sessions, store.devices, activeStore, a.publisher, logger).WithRecorder(m)
	telemetryService := service.NewTelemetryService(store.sessions, store.samples, store.devices, activeStore, source, logger).
		WithRecorder(m).
		WithMaxClockSkew(cfg.Telemetry.MaxClockSkew)
	reportsService := service.NewReportsService(store.devices, store.sessions, store.samples, tariff, logger)
	devicesService := service.NewDevicesService(store.devices, logger)

	tokens := auth.NewTokenService(cfg.JWT.Secret, cfg.JWTExpiration())
	authenticator := auth.NewAuthenticator(store.users, auth.NewBcryptHasher(0), tokens, logger)

	if cfg.Seed.Demo {
		ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
		err := seedDemo(ctx, store.users, authenticator, devicesService, cfg.Seed.AdminPassword, cfg.Seed.UserPassword, logger)
		cancel()
		if err != nil {
			return nil, err
		}
	}

	a.wsManager = ws.NewManager()
	wsServer := ws.NewServer(a.wsManager, store.devices, telemetryService, cfg.WebSocket.WriteTimeout, logger)

	if cfg.MQTTEnabled() {
		a.subscriber, err = mqtt.NewSubscriber(mqtt.Config{
			BrokerURL: cfg.MQTT.BrokerURL,
			ClientID:  cfg.MQTT.ClientID,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
			Topic:     cfg.MQTT.Topic,
			QoS:       byte(cfg.MQTT.QoS),
		}, telemetryService, logger)
		if err != nil {
			return nil, err
		}
	}

	var pinger handlers.Pinger
	if a.db != nil {
		pinger = a.db
	}

	routes := httpserver.Routes{
		Health:    handlers.NewHealthHandler(pinger),
		Metrics:   m.Handler(),
		WebSocket: wsServer.HandleWS,
		Auth:      handlers.NewAuthHandlers(authenticator, logger),
		Devices:   handlers.NewDevicesHandlers(devicesService, reportsService, logger),
		Sessions:  handlers.NewSessionsHandlers(sessionsService, reportsService, logger),
		Samples:   handlers.NewSamplesHandlers(telemetryService, logger),
		Reports:   handlers.NewReportsHandlers(reportsService, location, logger),
	}
	router := httpserver.NewRouter(routes, httpserver.RouterOptions{
		Auth:        middleware.AuthMiddleware(tokens),
		Metrics:     m.Middleware,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Logger:      logger,
	})
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	logger.Info("monitoring service configured",
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("redis", cfg.RedisEnabled()),
		zap.Bool("kafka", cfg.KafkaEnabled()),
		zap.Bool("mqtt", cfg.MQTTEnabled()),
		zap.Float64("tariff_rate", tariff.RatePerKWh),
		zap.String("currency", tariff.Currency),
	)
	ok = true
	return a, nil
}

func (a *App) openStorage(cfg *config.Config) (storage, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		mem := repository.NewMemoryStore()
		a.logger.Warn("using in-memory storage; data is lost on restart")
		return storage{
			users:    mem.Users(),
			devices:  mem.Devices(),
			sessions: mem.Sessions(),
			samples:  mem.Samples(),
		}, nil
	}

	sqlDB, err := db.NewPostgres(cfg)
	if err != nil {
		return storage{}, err
	}
	a.db = sqlDB
	return storage{
		users:    repository.NewUserRepository(sqlDB),
		devices:  repository.NewDeviceRepository(sqlDB),
		sessions: repository.NewSessionRepository(sqlDB),
		samples:  repository.NewSampleRepository(sqlDB),
	}, nil
}

// Run starts the MQTT subscriber, if configured, and the HTTP server.
func (a *App) Run(ctx context.Context) error {
	if a.subscriber != nil {
		go func() {
			if err := a.subscriber.Run(ctx); err != nil {
				a.logger.Error("mqtt subscriber stopped", zap.Error(err))
			}
		}()
	}
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.wsManager != nil {
		a.wsManager.CloseAll()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("failed to close event publisher", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
