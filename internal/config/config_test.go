package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	cfg, err := loadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "postgres://localhost/test", cfg.RPCDatabaseURL, "RPC database falls back to DATABASE_URL")
	assert.Equal(t, TransportAMQP, cfg.RPCTransport)
	assert.Equal(t, time.Duration(0), cfg.HTTPTxTimeout)
	assert.Equal(t, 2*time.Second, cfg.GraphQLTxTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("GRAPHQL_TX_TIMEOUT", "1500")
	t.Setenv("RPC_TX_TIMEOUT", "750ms")
	t.Setenv("RPC_TRANSPORT", "redis")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("PROMETHEUS_ENABLED", "true")

	cfg, err := loadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 1500*time.Millisecond, cfg.GraphQLTxTimeout, "bare integers are milliseconds")
	assert.Equal(t, 750*time.Millisecond, cfg.RPCTxTimeout)
	assert.Equal(t, TransportRedis, cfg.RPCTransport)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.True(t, cfg.PrometheusEnabled)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("HTTP_PORT", "eighty")
	_, err := loadFromEnv()
	assert.ErrorContains(t, err, "HTTP_PORT")

	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("HTTP_TX_TIMEOUT", "soon")
	_, err = loadFromEnv()
	assert.ErrorContains(t, err, "HTTP_TX_TIMEOUT")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			HTTPPort:     8080,
			DatabaseURL:  "postgres://localhost/test",
			RPCTransport: TransportNone,
			LogLevel:     "info",
			LogFormat:    "json",
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"port out of range", func(c *Config) { c.HTTPPort = 70000 }, "HTTP_PORT"},
		{"unknown transport", func(c *Config) { c.RPCTransport = "kafka" }, "RPC_TRANSPORT"},
		{"queue required", func(c *Config) { c.RPCTransport = TransportAMQP }, "RPC_QUEUE"},
		{"negative timeout", func(c *Config) { c.GraphQLTxTimeout = -time.Second }, "timeouts"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{LogLevel: "warn", LogFormat: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"key":"value"`)
}
