package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	libconfig "energymonitor/backend/libs/config"
)

func TestLoadDefaultsWithMemoryDriver(t *testing.T) {
	t.Setenv(libconfig.ConfigFileEnv, "")
	t.Setenv("MONITORING_STORAGE_DRIVER", "memory")
	t.Setenv("MONITORING_JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 24*time.Hour, cfg.ActiveSessionTTL())
	assert.Equal(t, time.Hour, cfg.JWTExpiration())
	assert.Equal(t, 5*time.Second, cfg.SimulatorInterval())
	assert.Equal(t, 1500.0, cfg.Tariff.RatePerKWh)
	assert.Equal(t, 5*time.Minute, cfg.Telemetry.MaxClockSkew)
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.KafkaEnabled())
	assert.False(t, cfg.MQTTEnabled())
}

func TestLoadFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitoring.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: "9090"
database:
  dsn: postgres://monitor@localhost/energy
redis:
  addr: localhost:6379
jwt:
  secret: from-file
kafka:
  brokers: ["localhost:9092"]
reports:
  timeZone: Asia/Jakarta
`), 0o600))
	t.Setenv(libconfig.ConfigFileEnv, path)
	t.Setenv("MONITORING_TARIFF_RATE", "1444.70")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddress())
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.True(t, cfg.RedisEnabled())
	assert.True(t, cfg.KafkaEnabled())
	assert.InDelta(t, 1444.70, cfg.Tariff.RatePerKWh, 1e-9)

	loc, err := cfg.ReportLocation()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jakarta", loc.String())
}

func TestLoadHonoursZeroTariff(t *testing.T) {
	t.Setenv(libconfig.ConfigFileEnv, "")
	t.Setenv("MONITORING_STORAGE_DRIVER", "memory")
	t.Setenv("MONITORING_JWT_SECRET", "s3cret")
	t.Setenv("MONITORING_TARIFF_RATE", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Tariff.RatePerKWh)
	assert.Equal(t, "IDR", cfg.Tariff.Currency)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.Storage.Driver = DriverMemory
		cfg.JWT.Secret = "x"
		cfg.Tariff.Currency = "IDR"
		return cfg
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(*Config){
		"postgres without dsn": func(c *Config) { c.Storage.Driver = DriverPostgres },
		"unknown driver":       func(c *Config) { c.Storage.Driver = "sqlite" },
		"missing secret":       func(c *Config) { c.JWT.Secret = " " },
		"negative tariff":      func(c *Config) { c.Tariff.RatePerKWh = -1 },
		"missing currency":     func(c *Config) { c.Tariff.Currency = "" },
		"bad qos":              func(c *Config) { c.MQTT.QoS = 3 },
		"negative skew":        func(c *Config) { c.Telemetry.MaxClockSkew = -time.Second },
		"bad zone":             func(c *Config) { c.Reports.TimeZone = "Mars/Olympus" },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}
