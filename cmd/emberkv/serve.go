package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/emberkv/emberkv/internal/config"
	"github.com/emberkv/emberkv/internal/database"
	"github.com/emberkv/emberkv/internal/engine"
	"github.com/emberkv/emberkv/internal/logging"
	"github.com/emberkv/emberkv/internal/metrics"
	"github.com/emberkv/emberkv/internal/server"
	"github.com/emberkv/emberkv/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the EmberKV server",
	Long: `Start the EmberKV server. Settings come from flags, EMBERKV_<FLAG>
environment variables (e.g. EMBERKV_MAX_CLIENTS=100), .env files and the
optional --config file, in that order of precedence.`,
	RunE: runServe,
}

func init() {
	d := config.DefaultConfig()
	flags := serveCmd.Flags()
	flags.String("config", "", "config file (yaml, json or toml)")
	flags.String(config.KeyAddr, d.Addr, "address to listen on")
	flags.String(config.KeyRequirePass, d.RequirePass, "password clients must send with AUTH (empty disables auth)")
	flags.Int(config.KeyMaxClients, d.MaxClients, "maximum concurrent clients (0 = unlimited)")
	flags.Int(config.KeyTimeout, int(d.Timeout.Seconds()), "close idle clients after this many seconds (0 = never)")
	flags.Int(config.KeyRateLimit, d.RateLimit, "max commands per second per client (0 = unlimited)")
	flags.String(config.KeyLogLevel, d.LogLevel, "log level: trace, debug, info, warn, error")
	flags.Bool(config.KeyLogJSON, d.LogJSON, "log as JSON")
	flags.String(config.KeyMetricsAddr, d.MetricsAddr, "serve Prometheus metrics on this address (empty disables)")
	flags.String(config.KeyTLSCert, d.TLSCert, "TLS certificate PEM file")
	flags.String(config.KeyTLSKey, d.TLSKey, "TLS private key PEM file")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(viper.GetViper(), viper.GetString("config"))
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON, Output: os.Stderr})
	if err != nil {
		return err
	}
	logger.Info("starting", "version", version.Version, "addr", cfg.Addr,
		"max_clients", cfg.MaxClients, "auth", cfg.RequirePass != "")

	m := metrics.New()
	registryLog := logger.Named("registry")
	reg := database.NewRegistry(
		database.WithEngineOptions(engine.WithExpireHook(func(string, string) { m.KeyExpired() })),
		database.OnCreate(func(name string) {
			m.NamespaceCreated()
			registryLog.Debug("namespace created", "namespace", name)
		}),
	)

	srv := server.New(server.Config{
		Addr:        cfg.Addr,
		Password:    cfg.RequirePass,
		MaxClients:  cfg.MaxClients,
		Timeout:     cfg.Timeout,
		RateLimit:   cfg.RateLimit,
		TLSCertFile: cfg.TLSCert,
		TLSKeyFile:  cfg.TLSKey,
	}, reg, m, logger.Named("server"))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, logger.Named("metrics")); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := srv.Close(); err != nil {
		logger.Warn("shutdown", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}
