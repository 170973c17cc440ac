// Package config provides configuration management for EmberKV.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/emberkv/emberkv/internal/logging"
)

// EnvPrefix namespaces environment overrides, e.g. EMBERKV_MAX_CLIENTS.
const EnvPrefix = "emberkv"

// Configuration keys, shared by flags, env vars and config files.
const (
	KeyAddr        = "addr"
	KeyRequirePass = "requirepass"
	KeyMaxClients  = "max-clients"
	KeyTimeout     = "timeout"
	KeyRateLimit   = "ratelimit"
	KeyLogLevel    = "log-level"
	KeyLogJSON     = "log-json"
	KeyMetricsAddr = "metrics-addr"
	KeyTLSCert     = "tls-cert"
	KeyTLSKey      = "tls-key"
)

// Config holds the EmberKV server configuration.
type Config struct {
	// Server settings
	Addr        string
	RequirePass string

	// Limits
	MaxClients int
	Timeout    time.Duration // idle read deadline, 0 disables
	RateLimit  int           // commands per second per connection, 0 disables

	// Logging
	LogLevel string
	LogJSON  bool

	// MetricsAddr serves /metrics when non-empty.
	MetricsAddr string

	// TLS, enabled when both files are set
	TLSCert string
	TLSKey  string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:       ":6379",
		MaxClients: 10000,
		LogLevel:   "info",
	}
}

// SetDefaults seeds v with DefaultConfig so unset keys fall back to it.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault(KeyAddr, d.Addr)
	v.SetDefault(KeyRequirePass, d.RequirePass)
	v.SetDefault(KeyMaxClients, d.MaxClients)
	v.SetDefault(KeyTimeout, int(d.Timeout/time.Second))
	v.SetDefault(KeyRateLimit, d.RateLimit)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogJSON, d.LogJSON)
	v.SetDefault(KeyMetricsAddr, d.MetricsAddr)
	v.SetDefault(KeyTLSCert, d.TLSCert)
	v.SetDefault(KeyTLSKey, d.TLSKey)
}

// BindEnv makes every key readable from EMBERKV_<KEY> with dashes as
// underscores.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load reads path (if non-empty) into v and decodes the result. The
// file format follows the extension (yaml, json, toml).
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Addr:        v.GetString(KeyAddr),
		RequirePass: v.GetString(KeyRequirePass),
		MaxClients:  v.GetInt(KeyMaxClients),
		Timeout:     time.Duration(v.GetInt(KeyTimeout)) * time.Second,
		RateLimit:   v.GetInt(KeyRateLimit),
		LogLevel:    v.GetString(KeyLogLevel),
		LogJSON:     v.GetBool(KeyLogJSON),
		MetricsAddr: v.GetString(KeyMetricsAddr),
		TLSCert:     v.GetString(KeyTLSCert),
		TLSKey:      v.GetString(KeyTLSKey),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyAddr, err))
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", KeyMetricsAddr, err))
		}
	}
	if c.MaxClients < 0 {
		errs = append(errs, fmt.Errorf("%s must be >= 0", KeyMaxClients))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%s must be >= 0", KeyTimeout))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("%s must be >= 0", KeyRateLimit))
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		errs = append(errs, fmt.Errorf("%s and %s must be set together", KeyTLSCert, KeyTLSKey))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyLogLevel, err))
	}
	return errors.Join(errs...)
}
