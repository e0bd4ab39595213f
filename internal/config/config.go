package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kulaginds/imaadpcm/internal/adpcm"
	"github.com/kulaginds/imaadpcm/internal/wav"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Codec   CodecConfig   `yaml:"codec"`
	Batch   BatchConfig   `yaml:"batch"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoadOptions holds command-line override options
type LoadOptions struct {
	Host       string
	Port       string
	LogLevel   string
	ConfigFile string
	Channels   int
	SampleRate int
	Workers    int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `yaml:"host" env:"SERVER_HOST" default:"0.0.0.0"`
	Port           string        `yaml:"port" env:"SERVER_PORT" default:"8080"`
	ReadTimeout    time.Duration `yaml:"readTimeout" env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout   time.Duration `yaml:"writeTimeout" env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout    time.Duration `yaml:"idleTimeout" env:"SERVER_IDLE_TIMEOUT" default:"120s"`
	AllowedOrigins []string      `yaml:"allowedOrigins" env:"ALLOWED_ORIGINS" default:""`
}

// CodecConfig holds defaults for headerless code streams, which carry no
// channel count or sample rate of their own.
type CodecConfig struct {
	Channels     int   `yaml:"channels" env:"CODEC_CHANNELS" default:"2"`
	SampleRate   int   `yaml:"sampleRate" env:"CODEC_SAMPLE_RATE" default:"22050"`
	MaxBodyBytes int64 `yaml:"maxBodyBytes" env:"CODEC_MAX_BODY_BYTES" default:"67108864"`
}

// BatchConfig holds batch conversion configuration
type BatchConfig struct {
	Workers int `yaml:"workers" env:"BATCH_WORKERS" default:"NumCPU"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" default:"text"`
	File   string `yaml:"file" env:"LOG_FILE" default:""`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           "8080",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    120 * time.Second,
			AllowedOrigins: []string{},
		},
		Codec: CodecConfig{
			Channels:     2,
			SampleRate:   22050,
			MaxBodyBytes: 64 << 20,
		},
		Batch: BatchConfig{
			Workers: runtime.NumCPU(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	return LoadWithOverrides(LoadOptions{})
}

// LoadWithOverrides loads configuration in increasing precedence: defaults,
// the YAML file named by opts.ConfigFile, environment variables, then
// command-line overrides.
func LoadWithOverrides(opts LoadOptions) (*Config, error) {
	config := Defaults()

	if opts.ConfigFile != "" {
		if err := config.loadFile(opts.ConfigFile); err != nil {
			return nil, err
		}
	}

	// Server config
	config.Server.Host = getOverrideOrEnv(opts.Host, "SERVER_HOST", config.Server.Host)
	config.Server.Port = getOverrideOrEnv(opts.Port, "SERVER_PORT", config.Server.Port)
	config.Server.ReadTimeout = getDurationWithDefault("SERVER_READ_TIMEOUT", config.Server.ReadTimeout)
	config.Server.WriteTimeout = getDurationWithDefault("SERVER_WRITE_TIMEOUT", config.Server.WriteTimeout)
	config.Server.IdleTimeout = getDurationWithDefault("SERVER_IDLE_TIMEOUT", config.Server.IdleTimeout)
	config.Server.AllowedOrigins = getStringSliceWithDefault("ALLOWED_ORIGINS", config.Server.AllowedOrigins)

	// Codec config
	config.Codec.Channels = getIntOverride(opts.Channels, "CODEC_CHANNELS", config.Codec.Channels)
	config.Codec.SampleRate = getIntOverride(opts.SampleRate, "CODEC_SAMPLE_RATE", config.Codec.SampleRate)
	config.Codec.MaxBodyBytes = getInt64WithDefault("CODEC_MAX_BODY_BYTES", config.Codec.MaxBodyBytes)

	// Batch config
	config.Batch.Workers = getIntOverride(opts.Workers, "BATCH_WORKERS", config.Batch.Workers)

	// Logging config
	config.Logging.Level = getOverrideOrEnv(opts.LogLevel, "LOG_LEVEL", config.Logging.Level)
	config.Logging.Format = getEnvWithDefault("LOG_FORMAT", config.Logging.Format)
	config.Logging.File = getEnvWithDefault("LOG_FILE", config.Logging.File)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}

	// Validate codec config
	if _, err := adpcm.LayoutFor(c.Codec.Channels); err != nil {
		return fmt.Errorf("codec channels: %w", err)
	}

	if c.Codec.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive")
	}
	if err := wav.CheckSampleRate(c.Codec.SampleRate, c.Codec.Channels); err != nil {
		return fmt.Errorf("codec sample rate: %w", err)
	}

	if c.Codec.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body size must be positive")
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("batch workers must be positive")
	}

	// Validate logging config
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}

	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceWithDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return splitString(value, ",")
	}
	return defaultValue
}

// getOverrideOrEnv returns command-line override value, env value, or default
func getOverrideOrEnv(override, envKey, defaultValue string) string {
	if override != "" {
		return override
	}
	return getEnvWithDefault(envKey, defaultValue)
}

// getIntOverride is getOverrideOrEnv for integers; zero means no override
func getIntOverride(override int, envKey string, defaultValue int) int {
	if override != 0 {
		return override
	}
	return getIntWithDefault(envKey, defaultValue)
}

func splitString(s, sep string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
