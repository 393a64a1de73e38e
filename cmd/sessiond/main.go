// Command sessiond serves the session rotation HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/httpapi"
	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/internal/users"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "sessiond",
		Short:         "Refresh-token rotation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional env file read before the process environment")

	cmd.AddCommand(newServeCommand(&envFile))
	cmd.AddCommand(newCheckConfigCommand(&envFile))
	return cmd
}

func newServeCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server until SIGINT or SIGTERM",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(*envFile)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return serve(ctx, cfg)
		},
	}
}

func newCheckConfigCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate configuration and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(*envFile)
			if err != nil {
				return err
			}
			engineCfg := cfg.EngineConfig()
			if err := engineCfg.Validate(); err != nil {
				return fmt.Errorf("engine config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config ok: store=%s rate_limit=%s addr=%s\n",
				cfg.StoreBackend, cfg.RateLimitBackend, cfg.HTTPAddr)
			report := engineCfg.SecurityReport()
			fmt.Fprintf(out, "signing: %s key=%s previous=%v access_ttl=%s refresh_ttl=%s\n",
				report.SigningAlgorithm, report.KeyVersion, report.PreviousKeyVersions, report.AccessTTL, report.RefreshTTL)
			for _, w := range report.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	engineCfg := cfg.EngineConfig()
	report := engineCfg.SecurityReport()
	logger.Info("security posture",
		zap.String("key_version", report.KeyVersion),
		zap.Duration("access_ttl", report.AccessTTL),
		zap.Duration("refresh_ttl", report.RefreshTTL),
		zap.Bool("rate_limiting", report.RateLimitingActive),
		zap.Bool("audit", report.AuditEnabled),
	)
	for _, w := range report.Warnings {
		logger.Warn("security warning", zap.String("detail", w))
	}

	builder := goSession.New().
		WithConfig(engineCfg).
		WithLogger(logger).
		WithUserDirectory(users.NewDirectory())

	var rdb *redis.Client
	switch cfg.StoreBackend {
	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		builder = builder.WithRedis(rdb)
	default:
		logger.Warn("using in-memory session store; sessions are lost on restart")
		builder = builder.WithStore(session.NewMemoryStore())
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsHandler = prometheus.NewExporter(engine).Handler()
	}

	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(engine, httpapi.Options{
			Logger:         logger,
			MetricsHandler: metricsHandler,
			TrustProxy:     cfg.TrustProxy,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("listening",
		zap.String("addr", server.Addr),
		zap.String("store", cfg.StoreBackend),
		zap.String("rate_limit_backend", cfg.RateLimitBackend),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
