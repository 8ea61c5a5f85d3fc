package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleConfig struct {
	HTTP struct {
		Port string `yaml:"port" env:"SAMPLE_HTTP_PORT"`
	} `yaml:"http"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	Interval time.Duration `yaml:"interval"`
	Rate     float64       `yaml:"rate"`
	Secret   string        `yaml:"secret" env:"-"`
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "service.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: "9000"
kafka:
  brokers: ["a:9092"]
  topic: sessions
rate: 1500
secret: from-file
`), 0o600))

	t.Setenv(ConfigFileEnv, path)
	t.Setenv("SAMPLE_HTTP_PORT", "9100")
	t.Setenv("KAFKA_BROKERS", "b:9092, c:9092,")
	t.Setenv("INTERVAL", "5s")
	t.Setenv("SECRET", "ignored")

	var cfg sampleConfig
	require.NoError(t, LoadConfig(&cfg))

	assert.Equal(t, "9100", cfg.HTTP.Port)
	assert.Equal(t, []string{"b:9092", "c:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "sessions", cfg.Kafka.Topic)
	assert.Equal(t, 5*time.Second, cfg.Interval)
	assert.InDelta(t, 1500.0, cfg.Rate, 1e-9)
	assert.Equal(t, "from-file", cfg.Secret)
}

func TestLoadConfigRejectsBadTarget(t *testing.T) {
	var cfg sampleConfig
	assert.Error(t, LoadConfig(nil))
	assert.Error(t, LoadConfig(cfg))
}

func TestLoadConfigReportsParseErrors(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("RATE", "not-a-number")

	var cfg sampleConfig
	err := LoadConfig(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE")
}

func TestLoadFileMissing(t *testing.T) {
	var cfg sampleConfig
	err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}
