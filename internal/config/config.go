package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type (
	// Config holds configuration settings for the workflow engine
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		LogLevel string

		// Database Gateway & Script HTTP
		GatewayURL     string
		GatewayTimeout int64
		HTTPTimeout    int64

		// Execution
		NodePacing        int64
		LoopPacing        int64
		LoopMaxIterations int
		RunRetention      int

		// Variables
		Vars VarsConfig

		// History & Console
		HistoryBucketURL string
		HistoryPrefix    string
		HistoryLimit     int
		ConsoleLimit     int

		WorkflowFile    string
		ShutdownTimeout time.Duration
	}

	// VarsConfig selects and configures the variable store backend
	VarsConfig struct {
		Backend  string
		Addr     string
		Password string
		DB       int
		Prefix   string
	}
)

const (
	VarsBackendMemory = "memory"
	VarsBackendRedis  = "redis"
)

const (
	DefaultShutdownTimeout = 10 * time.Second

	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535

	DefaultGatewayURL     = "http://localhost:3001"
	DefaultGatewayTimeout = 30_000
	DefaultHTTPTimeout    = 30_000
	MaxTimeout            = 60 * 60 * 1000

	DefaultNodePacing = 800
	DefaultLoopPacing = 500
	MaxPacing         = 60_000
	MaxLoopIterations = 1_000_000

	DefaultRunRetention = 50
	MaxRunRetention     = 100_000

	DefaultRedisEndpoint = "localhost:6379"
	DefaultRedisDB       = 0
	DefaultRedisPrefix   = "tactical"
	MaxRedisDB           = 15

	DefaultHistoryPrefix = "history/"
	DefaultHistoryLimit  = 1000
	DefaultConsoleLimit  = 500
	MaxHistoryLimit      = 1_000_000
	MaxConsoleLimit      = 1_000_000
)

var (
	ErrInvalidAPIPort        = errors.New("invalid API port")
	ErrGatewayURLRequired    = errors.New("gateway URL is required")
	ErrInvalidGatewayTimeout = errors.New("gateway timeout must be positive")
	ErrInvalidHTTPTimeout    = errors.New("HTTP timeout must be positive")
	ErrInvalidPacing         = errors.New("pacing cannot be negative")
	ErrInvalidLoopMax        = errors.New(
		"loop max iterations cannot be negative",
	)
	ErrInvalidVarsBackend = errors.New("invalid variable store backend")
	ErrRedisAddrRequired  = errors.New("redis address is required")
	ErrInvalidLimit       = errors.New("limit must be positive")
)

// NewDefaultConfig creates a configuration with sensible defaults for the
// API server, gateway, pacing and stores
func NewDefaultConfig() *Config {
	return &Config{
		APIPort:        DefaultAPIPort,
		APIHost:        DefaultAPIHost,
		LogLevel:       "info",
		GatewayURL:     DefaultGatewayURL,
		GatewayTimeout: DefaultGatewayTimeout,
		HTTPTimeout:    DefaultHTTPTimeout,
		NodePacing:     DefaultNodePacing,
		LoopPacing:     DefaultLoopPacing,
		RunRetention:   DefaultRunRetention,
		Vars: VarsConfig{
			Backend: VarsBackendMemory,
			Addr:    DefaultRedisEndpoint,
			DB:      DefaultRedisDB,
			Prefix:  DefaultRedisPrefix,
		},
		HistoryPrefix:   DefaultHistoryPrefix,
		HistoryLimit:    DefaultHistoryLimit,
		ConsoleLimit:    DefaultConsoleLimit,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed.
func (c *Config) LoadFromEnv() error {
	LoadVarsConfigFromEnv(&c.Vars, "VARS")

	if apiHost := os.Getenv("API_HOST"); apiHost != "" {
		c.APIHost = apiHost
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if gatewayURL := os.Getenv("GATEWAY_URL"); gatewayURL != "" {
		c.GatewayURL = gatewayURL
	}
	if bucketURL := os.Getenv("HISTORY_BUCKET_URL"); bucketURL != "" {
		c.HistoryBucketURL = bucketURL
	}
	if prefix := os.Getenv("HISTORY_PREFIX"); prefix != "" {
		c.HistoryPrefix = prefix
	}
	if file := os.Getenv("WORKFLOW_FILE"); file != "" {
		c.WorkflowFile = file
	}
	if timeout := os.Getenv("SHUTDOWN_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %q", timeout)
		}
		c.ShutdownTimeout = d
	}

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}

	if err := loadEnvInt(
		"GATEWAY_TIMEOUT", &c.GatewayTimeout, 0, MaxTimeout,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"HTTP_TIMEOUT", &c.HTTPTimeout, 0, MaxTimeout,
	); err != nil {
		return err
	}

	if err := loadEnvInt(
		"NODE_PACING_MS", &c.NodePacing, -1, MaxPacing,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"LOOP_PACING_MS", &c.LoopPacing, -1, MaxPacing,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"LOOP_MAX_ITERATIONS", &c.LoopMaxIterations, -1, MaxLoopIterations,
	); err != nil {
		return err
	}

	if err := loadEnvInt(
		"RUN_RETENTION", &c.RunRetention, 0, MaxRunRetention,
	); err != nil {
		return err
	}

	if err := loadEnvInt(
		"HISTORY_LIMIT", &c.HistoryLimit, 0, MaxHistoryLimit,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"CONSOLE_LIMIT", &c.ConsoleLimit, 0, MaxConsoleLimit,
	); err != nil {
		return err
	}

	return loadEnvInt("VARS_REDIS_DB", &c.Vars.DB, -1, MaxRedisDB)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}

	if c.GatewayURL == "" {
		return ErrGatewayURLRequired
	}

	if c.GatewayTimeout <= 0 {
		return ErrInvalidGatewayTimeout
	}

	if c.HTTPTimeout <= 0 {
		return ErrInvalidHTTPTimeout
	}

	if c.NodePacing < 0 || c.LoopPacing < 0 {
		return ErrInvalidPacing
	}

	if c.LoopMaxIterations < 0 {
		return ErrInvalidLoopMax
	}

	if c.HistoryLimit <= 0 || c.ConsoleLimit <= 0 || c.RunRetention <= 0 {
		return ErrInvalidLimit
	}

	switch c.Vars.Backend {
	case VarsBackendMemory:
	case VarsBackendRedis:
		if c.Vars.Addr == "" {
			return ErrRedisAddrRequired
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidVarsBackend, c.Vars.Backend)
	}

	return nil
}

// NodePacingDuration returns the delay between node executions
func (c *Config) NodePacingDuration() time.Duration {
	return time.Duration(c.NodePacing) * time.Millisecond
}

// LoopPacingDuration returns the delay before a loop node re-enters
func (c *Config) LoopPacingDuration() time.Duration {
	return time.Duration(c.LoopPacing) * time.Millisecond
}

// GatewayTimeoutDuration returns the database gateway request timeout
func (c *Config) GatewayTimeoutDuration() time.Duration {
	return time.Duration(c.GatewayTimeout) * time.Millisecond
}

// HTTPTimeoutDuration returns the timeout for script HTTP requests
func (c *Config) HTTPTimeoutDuration() time.Duration {
	return time.Duration(c.HTTPTimeout) * time.Millisecond
}

// LoadVarsConfigFromEnv loads variable store configuration from environment
// variables with the given prefix (e.g., "VARS")
func LoadVarsConfigFromEnv(v *VarsConfig, prefix string) {
	if backend := os.Getenv(prefix + "_BACKEND"); backend != "" {
		v.Backend = backend
	}
	if addr := os.Getenv(prefix + "_REDIS_ADDR"); addr != "" {
		v.Addr = addr
	}
	if password := os.Getenv(prefix + "_REDIS_PASSWORD"); password != "" {
		v.Password = password
	}
	if envPrefix := os.Getenv(prefix + "_REDIS_PREFIX"); envPrefix != "" {
		v.Prefix = envPrefix
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. Returns an error if
// the value cannot be parsed or falls outside the valid range.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}
