package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// SandboxConfig holds execution limits applied to every request
type SandboxConfig struct {
	MaxTimeoutMs     int `mapstructure:"max_timeout_ms"`
	DefaultTimeoutMs int `mapstructure:"default_timeout_ms"`
	MaxOutputBytes   int `mapstructure:"max_output_bytes"`
	CPUTimeLimitSec  int `mapstructure:"cpu_time_limit_sec"`
	MemoryLimitMB    int `mapstructure:"memory_limit_mb"`
}

// RuntimeConfig holds the WASI runtime invocation settings
type RuntimeConfig struct {
	// Executable is the runtime CLI name or path (resolved via PATH when bare)
	Executable string `mapstructure:"executable"`
	// ModulePath points at the python.wasm interpreter module
	ModulePath string `mapstructure:"module_path"`
	// ExtraArgs is a shell-style string of additional runtime arguments
	ExtraArgs string `mapstructure:"extra_args"`
	// Isolated passes -I to the interpreter when true
	Isolated bool `mapstructure:"isolated"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("server.transport", "http")
	viper.SetDefault("server.http_port", 8000)
	viper.SetDefault("sandbox.max_timeout_ms", 5000)
	viper.SetDefault("sandbox.default_timeout_ms", 2000)
	viper.SetDefault("sandbox.max_output_bytes", 1_000_000)
	viper.SetDefault("sandbox.cpu_time_limit_sec", 2)
	viper.SetDefault("sandbox.memory_limit_mb", 256)
	viper.SetDefault("runtime.executable", "wasmtime")
	viper.SetDefault("runtime.module_path", "")
	viper.SetDefault("runtime.extra_args", "")
	viper.SetDefault("runtime.isolated", false)
	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")

	// Environment overrides, keeping the names the service has always used
	envBindings := map[string]string{
		"server.http_port":           "PORT",
		"sandbox.max_timeout_ms":     "MAX_EXEC_TIMEOUT_MS",
		"sandbox.max_output_bytes":   "MAX_OUTPUT_BYTES",
		"sandbox.cpu_time_limit_sec": "CPU_TIME_LIMIT_SEC",
		"sandbox.memory_limit_mb":    "MEMORY_LIMIT_MB",
		"runtime.executable":         "PYTHON_WASM_RUNTIME",
		"runtime.module_path":        "PYTHON_WASM_PATH",
		"runtime.extra_args":         "PYTHON_WASM_RUNTIME_ARGS",
		"runtime.isolated":           "PYTHON_WASM_FORCE_ISOLATED",
	}
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding env var %s: %w", env, err)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Sandbox.MaxTimeoutMs <= 0 {
		return fmt.Errorf("sandbox.max_timeout_ms must be positive, got: %d", c.Sandbox.MaxTimeoutMs)
	}

	if c.Sandbox.DefaultTimeoutMs <= 0 {
		return fmt.Errorf("sandbox.default_timeout_ms must be positive, got: %d", c.Sandbox.DefaultTimeoutMs)
	}

	if c.Sandbox.DefaultTimeoutMs > c.Sandbox.MaxTimeoutMs {
		return fmt.Errorf("sandbox.default_timeout_ms (%d) exceeds sandbox.max_timeout_ms (%d)",
			c.Sandbox.DefaultTimeoutMs, c.Sandbox.MaxTimeoutMs)
	}

	if c.Sandbox.MaxOutputBytes <= 0 {
		return fmt.Errorf("sandbox.max_output_bytes must be positive, got: %d", c.Sandbox.MaxOutputBytes)
	}

	if c.Sandbox.CPUTimeLimitSec <= 0 {
		return fmt.Errorf("sandbox.cpu_time_limit_sec must be positive, got: %d", c.Sandbox.CPUTimeLimitSec)
	}

	if c.Sandbox.MemoryLimitMB <= 0 {
		return fmt.Errorf("sandbox.memory_limit_mb must be positive, got: %d", c.Sandbox.MemoryLimitMB)
	}

	if c.Runtime.Executable == "" {
		return fmt.Errorf("runtime.executable must not be empty")
	}

	return nil
}

// GetMaxTimeout returns the per-request timeout ceiling as a duration
func (c *Config) GetMaxTimeout() time.Duration {
	return time.Duration(c.Sandbox.MaxTimeoutMs) * time.Millisecond
}

// GetDefaultTimeout returns the timeout used when a request does not specify one
func (c *Config) GetDefaultTimeout() time.Duration {
	return time.Duration(c.Sandbox.DefaultTimeoutMs) * time.Millisecond
}
