package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"SERVER_HOST", "SERVER_PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT", "SERVER_IDLE_TIMEOUT",
	"ALLOWED_ORIGINS", "CODEC_CHANNELS", "CODEC_SAMPLE_RATE", "CODEC_MAX_BODY_BYTES",
	"BATCH_WORKERS", "LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
}

// clearEnv blanks every variable the loader reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name:    "default configuration",
			envVars: map[string]string{},
			want:    Defaults(),
		},
		{
			name: "custom environment variables",
			envVars: map[string]string{
				"SERVER_HOST":       "127.0.0.1",
				"SERVER_PORT":       "9090",
				"LOG_LEVEL":         "debug",
				"CODEC_CHANNELS":    "4",
				"CODEC_SAMPLE_RATE": "44100",
				"BATCH_WORKERS":     "3",
				"ALLOWED_ORIGINS":   "https://a.example, https://b.example",
			},
			want: &Config{
				Server: ServerConfig{
					Host:           "127.0.0.1",
					Port:           "9090",
					ReadTimeout:    30 * time.Second,
					WriteTimeout:   30 * time.Second,
					IdleTimeout:    120 * time.Second,
					AllowedOrigins: []string{"https://a.example", "https://b.example"},
				},
				Codec: CodecConfig{
					Channels:     4,
					SampleRate:   44100,
					MaxBodyBytes: 64 << 20,
				},
				Batch: BatchConfig{Workers: 3},
				Logging: LoggingConfig{
					Level:  "debug",
					Format: "text",
				},
			},
		},
		{
			name:    "unsupported channel count",
			envVars: map[string]string{"CODEC_CHANNELS": "3"},
			wantErr: true,
		},
		{
			name:    "invalid log format",
			envVars: map[string]string{"LOG_FORMAT": "xml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg)
		})
	}
}

func TestLoadWithOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("CODEC_CHANNELS", "1")

	cfg, err := LoadWithOverrides(LoadOptions{
		Host:       "192.168.1.100",
		Port:       "443",
		LogLevel:   "warn",
		Channels:   4,
		SampleRate: 11025,
		Workers:    2,
	})

	require.NoError(t, err)
	assert.Equal(t, "192.168.1.100", cfg.Server.Host)
	assert.Equal(t, "443", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.Codec.Channels)
	assert.Equal(t, 11025, cfg.Codec.SampleRate)
	assert.Equal(t, 2, cfg.Batch.Workers)
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "imaadpcm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "7070"
  readTimeout: 5s
codec:
  channels: 4
  sampleRate: 48000
logging:
  format: json
`), 0o600))

	t.Run("file values", func(t *testing.T) {
		cfg, err := LoadWithOverrides(LoadOptions{ConfigFile: path})
		require.NoError(t, err)

		assert.Equal(t, "7070", cfg.Server.Port)
		assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 4, cfg.Codec.Channels)
		assert.Equal(t, 48000, cfg.Codec.SampleRate)
		assert.Equal(t, "json", cfg.Logging.Format)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, runtime.NumCPU(), cfg.Batch.Workers)
	})

	t.Run("environment beats file", func(t *testing.T) {
		t.Setenv("CODEC_SAMPLE_RATE", "8000")

		cfg, err := LoadWithOverrides(LoadOptions{ConfigFile: path})
		require.NoError(t, err)
		assert.Equal(t, 8000, cfg.Codec.SampleRate)
	})

	t.Run("flags beat environment", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "6060")

		cfg, err := LoadWithOverrides(LoadOptions{ConfigFile: path, Port: "5050"})
		require.NoError(t, err)
		assert.Equal(t, "5050", cfg.Server.Port)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadWithOverrides(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")})
		assert.ErrorContains(t, err, "read config file")
	})

	t.Run("malformed file", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("codec: [1, 2"), 0o600))

		_, err := LoadWithOverrides(LoadOptions{ConfigFile: bad})
		assert.ErrorContains(t, err, "parse config file")
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config { return Defaults() }

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid configuration", func(c *Config) {}, ""},
		{"missing server port", func(c *Config) { c.Server.Port = "" }, "server port cannot be empty"},
		{"invalid port range", func(c *Config) { c.Server.Port = "99999" }, "invalid server port"},
		{"unsupported channels", func(c *Config) { c.Codec.Channels = 3 }, "unsupported channel layout"},
		{"zero sample rate", func(c *Config) { c.Codec.SampleRate = 0 }, "sample rate must be positive"},
		{"sample rate beyond header range", func(c *Config) { c.Codec.SampleRate = 1 << 30 }, "sample rate out of range"},
		{"zero body limit", func(c *Config) { c.Codec.MaxBodyBytes = 0 }, "max body size must be positive"},
		{"zero workers", func(c *Config) { c.Batch.Workers = 0 }, "batch workers must be positive"},
		{"invalid log level", func(c *Config) { c.Logging.Level = "invalid" }, "invalid log level"},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSplitString(t *testing.T) {
	assert.Equal(t, []string{}, splitString("", ","))
	assert.Equal(t, []string{"a", "b"}, splitString(" a, ,b ", ","))
}
