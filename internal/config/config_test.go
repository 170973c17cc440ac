package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":6379", cfg.Addr)
	assert.Equal(t, 10000, cfg.MaxClients)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.RequirePass)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emberkv.yaml")
	content := "addr: 127.0.0.1:7000\nrequirepass: s3cret\ntimeout: 30\nratelimit: 100\nlog-level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
	assert.Equal(t, "s3cret", cfg.RequirePass)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 100, cfg.RateLimit)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10000, cfg.MaxClients)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("EMBERKV_MAX_CLIENTS", "5")
	t.Setenv("EMBERKV_REQUIREPASS", "fromenv")

	v := viper.New()
	BindEnv(v)
	cfg, err := Load(v, "")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.MaxClients)
	assert.Equal(t, "fromenv", cfg.RequirePass)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad addr", func(c *Config) { c.Addr = "nope" }},
		{"bad metrics addr", func(c *Config) { c.MetricsAddr = "9090" }},
		{"negative clients", func(c *Config) { c.MaxClients = -1 }},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"cert without key", func(c *Config) { c.TLSCert = "server.pem" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
