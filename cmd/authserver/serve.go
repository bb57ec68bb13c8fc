package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/MrEthical07/cookieauth"
	"github.com/MrEthical07/cookieauth/httpapi"
	promexport "github.com/MrEthical07/cookieauth/metrics/export/prometheus"
	otelexport "github.com/MrEthical07/cookieauth/metrics/export/otel"
	"github.com/MrEthical07/cookieauth/middleware"
	"github.com/MrEthical07/cookieauth/transport"
	"github.com/MrEthical07/cookieauth/userstore"
	"github.com/MrEthical07/cookieauth/userstore/memory"
	"github.com/MrEthical07/cookieauth/userstore/postgres"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. Sessions and verification codes live in Redis;
accounts live in PostgreSQL, or in memory when no database URL is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Auth.Validate(); err != nil {
				return oops.Code("CONFIG_INVALID").With("section", "auth").Wrap(err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	registerConfigFlags(cmd.Flags())
	return cmd
}

func runServe(ctx context.Context, cfg serverConfig) error {
	logger := slog.Default()

	rdb, err := connectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	users, closeUsers, err := openUserStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeUsers()

	engine, err := cookieauth.New().
		WithConfig(cfg.Auth).
		WithRedis(rdb).
		WithUserStore(users).
		WithLogger(logger).
		WithTracer(otel.Tracer(cookieauth.TracerName)).
		Build()
	if err != nil {
		return oops.Code("ENGINE_BUILD_FAILED").Wrap(err)
	}
	defer engine.Close()

	// Counters are also published on the global meter provider for
	// deployments that install an OTel SDK.
	otelExporter, err := otelexport.NewExporter(otel.Meter(cookieauth.TracerName), engine)
	if err != nil {
		return oops.Code("METRICS_INIT_FAILED").Wrap(err)
	}
	defer otelExporter.Close()

	var limiter *middleware.IPRateLimiter
	if cfg.RateLimit.Enabled {
		rl := middleware.DefaultRateLimitConfig()
		rl.Rate = rate.Limit(cfg.RateLimit.RPS)
		rl.Burst = cfg.RateLimit.Burst
		rl.Logger = logger
		limiter = middleware.NewIPRateLimiter(rl)
		defer limiter.Stop()
	}

	handler := httpapi.NewRouter(httpapi.Config{
		Service:     engine,
		Cookies:     transport.NewCookies(cfg.Auth),
		Logger:      logger,
		CORSOrigin:  cfg.CORSOrigin,
		TrustProxy:  cfg.TrustProxy,
		RateLimiter: limiter,
		Metrics:     promhttp.HandlerFor(promexport.NewRegistry(engine), promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return oops.Code("HTTP_SERVE_FAILED").Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return oops.Code("HTTP_SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}

func backoff(cfg serverConfig) retry.Backoff {
	return retry.WithMaxRetries(cfg.ConnectRetries, retry.NewExponential(500*time.Millisecond))
}

func connectRedis(ctx context.Context, cfg serverConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("field", "redis_url").Wrap(err)
	}
	rdb := redis.NewClient(opts)

	err = retry.Do(ctx, backoff(cfg), func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis not ready", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = rdb.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("operation", "connect to redis").Wrap(err)
	}
	return rdb, nil
}

// openUserStore returns the Postgres store, or the in-memory store when no
// database URL is configured.
func openUserStore(ctx context.Context, cfg serverConfig, logger *slog.Logger) (userstore.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("no database_url configured, accounts are kept in memory")
		return memory.New(), func() {}, nil
	}

	if cfg.MigrateOnStart {
		if err := applyMigrations(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	err = retry.Do(ctx, backoff(cfg), func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("database not ready", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}

	return postgres.NewUserRepository(pool), pool.Close, nil
}
