package config_test

import (
	"testing"
	"time"

	testify "github.com/stretchr/testify/assert"

	"github.com/kimalale/tactical-workflow-manager/internal/assert"
	"github.com/kimalale/tactical-workflow-manager/internal/config"
)

func TestConfigValidation(t *testing.T) {
	as := assert.New(t)

	t.Run("valid_default_config", func(t *testing.T) {
		cfg := config.NewDefaultConfig()
		as.ConfigValid(cfg)
	})

	tests := []struct {
		name          string
		configMod     func(*config.Config)
		errorContains string
	}{
		{
			name: "invalid_api_port_zero",
			configMod: func(c *config.Config) {
				c.APIPort = 0
			},
			errorContains: "invalid API port",
		},
		{
			name: "invalid_api_port_too_high",
			configMod: func(c *config.Config) {
				c.APIPort = 70000
			},
			errorContains: "invalid API port",
		},
		{
			name: "missing_gateway_url",
			configMod: func(c *config.Config) {
				c.GatewayURL = ""
			},
			errorContains: "gateway URL is required",
		},
		{
			name: "zero_gateway_timeout",
			configMod: func(c *config.Config) {
				c.GatewayTimeout = 0
			},
			errorContains: "gateway timeout must be positive",
		},
		{
			name: "zero_http_timeout",
			configMod: func(c *config.Config) {
				c.HTTPTimeout = 0
			},
			errorContains: "HTTP timeout must be positive",
		},
		{
			name: "negative_pacing",
			configMod: func(c *config.Config) {
				c.LoopPacing = -1
			},
			errorContains: "pacing cannot be negative",
		},
		{
			name: "negative_loop_max",
			configMod: func(c *config.Config) {
				c.LoopMaxIterations = -5
			},
			errorContains: "loop max iterations cannot be negative",
		},
		{
			name: "zero_history_limit",
			configMod: func(c *config.Config) {
				c.HistoryLimit = 0
			},
			errorContains: "limit must be positive",
		},
		{
			name: "zero_run_retention",
			configMod: func(c *config.Config) {
				c.RunRetention = 0
			},
			errorContains: "limit must be positive",
		},
		{
			name: "unknown_vars_backend",
			configMod: func(c *config.Config) {
				c.Vars.Backend = "etcd"
			},
			errorContains: "invalid variable store backend",
		},
		{
			name: "redis_without_addr",
			configMod: func(c *config.Config) {
				c.Vars.Backend = config.VarsBackendRedis
				c.Vars.Addr = ""
			},
			errorContains: "redis address is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			tt.configMod(cfg)
			as.ConfigInvalid(cfg, tt.errorContains)
		})
	}
}

func TestDefaultConfigValues(t *testing.T) {
	as := assert.New(t)

	cfg := config.NewDefaultConfig()

	as.Equal(config.DefaultAPIPort, cfg.APIPort)
	as.Equal("0.0.0.0", cfg.APIHost)
	as.Equal(800*time.Millisecond, cfg.NodePacingDuration())
	as.Equal(500*time.Millisecond, cfg.LoopPacingDuration())
	as.Equal(0, cfg.LoopMaxIterations)
	as.Equal(config.DefaultRunRetention, cfg.RunRetention)
	as.Equal(config.VarsBackendMemory, cfg.Vars.Backend)
	as.Empty(cfg.HistoryBucketURL)
	as.Equal(config.DefaultShutdownTimeout, cfg.ShutdownTimeout)
	as.Equal("info", cfg.LogLevel)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_HOST", "127.0.0.1")
	t.Setenv("API_PORT", "9090")
	t.Setenv("GATEWAY_URL", "http://gateway:3001")
	t.Setenv("NODE_PACING_MS", "0")
	t.Setenv("LOOP_PACING_MS", "25")
	t.Setenv("LOOP_MAX_ITERATIONS", "100")
	t.Setenv("RUN_RETENTION", "7")
	t.Setenv("VARS_BACKEND", "redis")
	t.Setenv("VARS_REDIS_ADDR", "redis:6379")
	t.Setenv("VARS_REDIS_DB", "3")
	t.Setenv("HISTORY_BUCKET_URL", "mem://")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")

	cfg := config.NewDefaultConfig()
	err := cfg.LoadFromEnv()
	testify.NoError(t, err)

	testify.Equal(t, "127.0.0.1", cfg.APIHost)
	testify.Equal(t, 9090, cfg.APIPort)
	testify.Equal(t, "http://gateway:3001", cfg.GatewayURL)
	testify.Equal(t, time.Duration(0), cfg.NodePacingDuration())
	testify.Equal(t, 25*time.Millisecond, cfg.LoopPacingDuration())
	testify.Equal(t, 100, cfg.LoopMaxIterations)
	testify.Equal(t, 7, cfg.RunRetention)
	testify.Equal(t, config.VarsBackendRedis, cfg.Vars.Backend)
	testify.Equal(t, "redis:6379", cfg.Vars.Addr)
	testify.Equal(t, 3, cfg.Vars.DB)
	testify.Equal(t, "mem://", cfg.HistoryBucketURL)
	testify.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	testify.NoError(t, cfg.Validate())
}

func TestLoadFromEnvErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "port_not_number", key: "API_PORT", value: "http"},
		{name: "port_out_of_range", key: "API_PORT", value: "70000"},
		{name: "negative_pacing", key: "NODE_PACING_MS", value: "-1"},
		{name: "zero_gateway_timeout", key: "GATEWAY_TIMEOUT", value: "0"},
		{name: "bad_shutdown", key: "SHUTDOWN_TIMEOUT", value: "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg := config.NewDefaultConfig()
			err := cfg.LoadFromEnv()
			testify.Error(t, err)
			testify.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadVarsConfigFromEnv(t *testing.T) {
	t.Setenv("TEST_BACKEND", "redis")
	t.Setenv("TEST_REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("TEST_REDIS_PASSWORD", "secret123")
	t.Setenv("TEST_REDIS_PREFIX", "custom-prefix")

	vars := &config.VarsConfig{}
	config.LoadVarsConfigFromEnv(vars, "TEST")

	testify.Equal(t, "redis", vars.Backend)
	testify.Equal(t, "redis.example.com:6379", vars.Addr)
	testify.Equal(t, "secret123", vars.Password)
	testify.Equal(t, "custom-prefix", vars.Prefix)
}
