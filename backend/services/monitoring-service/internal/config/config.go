package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	_ "time/tzdata"

	libconfig "energymonitor/backend/libs/config"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config defines monitoring service configuration.
type Config struct {
	HTTP struct {
		Port        string   `yaml:"port" env:"MONITORING_HTTP_PORT"`
		CORSOrigins []string `yaml:"corsOrigins" env:"MONITORING_CORS_ORIGINS"`
	} `yaml:"http"`
	Storage struct {
		Driver string `yaml:"driver" env:"MONITORING_STORAGE_DRIVER"`
	} `yaml:"storage"`
	Database struct {
		DSN          string        `yaml:"dsn" env:"MONITORING_POSTGRES_DSN"`
		MaxOpenConns int           `yaml:"maxOpenConns" env:"MONITORING_POSTGRES_MAX_OPEN"`
		MaxIdleConns int           `yaml:"maxIdleConns" env:"MONITORING_POSTGRES_MAX_IDLE"`
		ConnLifetime time.Duration `yaml:"connLifetime" env:"MONITORING_POSTGRES_CONN_LIFETIME"`
		AutoMigrate  bool          `yaml:"autoMigrate" env:"MONITORING_POSTGRES_AUTO_MIGRATE"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"MONITORING_REDIS_ADDR"`
		Password string `yaml:"password" env:"MONITORING_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"MONITORING_REDIS_DB"`
		TTL      int    `yaml:"ttlSeconds" env:"MONITORING_REDIS_TTL"`
	} `yaml:"redis"`
	JWT struct {
		Secret            string `yaml:"secret" env:"MONITORING_JWT_SECRET"`
		ExpirationMinutes int    `yaml:"expirationMinutes" env:"MONITORING_JWT_EXPIRATION_MINUTES"`
	} `yaml:"jwt"`
	Kafka struct {
		Brokers []string `yaml:"brokers" env:"MONITORING_KAFKA_BROKERS"`
		Topic   string   `yaml:"topic" env:"MONITORING_KAFKA_TOPIC"`
	} `yaml:"kafka"`
	MQTT struct {
		BrokerURL string `yaml:"brokerUrl" env:"MONITORING_MQTT_BROKER_URL"`
		ClientID  string `yaml:"clientId" env:"MONITORING_MQTT_CLIENT_ID"`
		Username  string `yaml:"username" env:"MONITORING_MQTT_USERNAME"`
		Password  string `yaml:"password" env:"MONITORING_MQTT_PASSWORD"`
		Topic     string `yaml:"topic" env:"MONITORING_MQTT_TOPIC"`
		QoS       int    `yaml:"qos" env:"MONITORING_MQTT_QOS"`
	} `yaml:"mqtt"`
	Tariff struct {
		RatePerKWh float64 `yaml:"ratePerKwh" env:"MONITORING_TARIFF_RATE"`
		Currency   string  `yaml:"currency" env:"MONITORING_TARIFF_CURRENCY"`
	} `yaml:"tariff"`
	Telemetry struct {
		MaxClockSkew time.Duration `yaml:"maxClockSkew" env:"MONITORING_TELEMETRY_MAX_CLOCK_SKEW"`
	} `yaml:"telemetry"`
	Simulator struct {
		IntervalSeconds int    `yaml:"intervalSeconds" env:"MONITORING_SIMULATOR_INTERVAL"`
		Seed            uint64 `yaml:"seed" env:"MONITORING_SIMULATOR_SEED"`
	} `yaml:"simulator"`
	Reports struct {
		TimeZone string `yaml:"timeZone" env:"MONITORING_REPORTS_TZ"`
	} `yaml:"reports"`
	WebSocket struct {
		WriteTimeout time.Duration `yaml:"writeTimeout" env:"MONITORING_WS_WRITE_TIMEOUT"`
	} `yaml:"websocket"`
	Seed struct {
		Demo          bool   `yaml:"demo" env:"MONITORING_SEED_DEMO"`
		AdminPassword string `yaml:"adminPassword" env:"MONITORING_SEED_ADMIN_PASSWORD"`
		UserPassword  string `yaml:"userPassword" env:"MONITORING_SEED_USER_PASSWORD"`
	} `yaml:"seed"`
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8080"
	cfg.HTTP.CORSOrigins = []string{"*"}
	cfg.Storage.Driver = DriverPostgres
	cfg.Database.AutoMigrate = true
	cfg.Redis.TTL = 86400
	cfg.JWT.ExpirationMinutes = 60
	cfg.Kafka.Topic = "energymonitor.sessions"
	cfg.MQTT.ClientID = "monitoring-service"
	cfg.Tariff.RatePerKWh = 1500
	cfg.Tariff.Currency = "IDR"
	cfg.Telemetry.MaxClockSkew = 5 * time.Minute
	cfg.Simulator.IntervalSeconds = 5
	cfg.Reports.TimeZone = "UTC"
	cfg.WebSocket.WriteTimeout = 10 * time.Second
	cfg.Seed.AdminPassword = "admin123"
	cfg.Seed.UserPassword = "user123"

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("config: database dsn required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt secret required")
	}
	if r := c.Tariff.RatePerKWh; r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return errors.New("config: tariff rate must be non-negative")
	}
	if strings.TrimSpace(c.Tariff.Currency) == "" {
		return errors.New("config: tariff currency required")
	}
	if c.Telemetry.MaxClockSkew < 0 {
		return errors.New("config: telemetry max clock skew must be non-negative")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return errors.New("config: mqtt qos must be 0, 1 or 2")
	}
	if _, err := c.ReportLocation(); err != nil {
		return fmt.Errorf("config: reports time zone: %w", err)
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// ActiveSessionTTL returns ttl as duration.
func (c *Config) ActiveSessionTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Redis.TTL) * time.Second
}

// JWTExpiration returns token lifetime.
func (c *Config) JWTExpiration() time.Duration {
	if c.JWT.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.JWT.ExpirationMinutes) * time.Minute
}

// SimulatorInterval returns the period one synthetic sample covers.
func (c *Config) SimulatorInterval() time.Duration {
	if c.Simulator.IntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Simulator.IntervalSeconds) * time.Second
}

// ReportLocation returns the zone daily reports group dates in.
func (c *Config) ReportLocation() (*time.Location, error) {
	name := strings.TrimSpace(c.Reports.TimeZone)
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// RedisEnabled reports whether an active-session cache is configured.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}

// KafkaEnabled reports whether session events are published.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

// MQTTEnabled reports whether the MQTT ingestion subscriber runs.
func (c *Config) MQTTEnabled() bool {
	return strings.TrimSpace(c.MQTT.BrokerURL) != ""
}
