// Command server runs the XP engine HTTP API.
//
//	@title			XP Engine API
//	@version		1.0
//	@description	Engagement XP, levels, leaderboards and milestone rewards driven by partner webhooks.
//	@BasePath		/api/v1
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

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-xp-engine/internal/cache"
	"github.com/tbourn/go-xp-engine/internal/config"
	httpapi "github.com/tbourn/go-xp-engine/internal/http"
	"github.com/tbourn/go-xp-engine/internal/observability"
	"github.com/tbourn/go-xp-engine/internal/repo"
	"github.com/tbourn/go-xp-engine/internal/services"
	"github.com/tbourn/go-xp-engine/internal/sysutil"
	"github.com/tbourn/go-xp-engine/internal/upstream"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	cfg := config.MustLoad()
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func setupLogging(cfg config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", cfg.OTEL.ServiceName).Logger()
	zerolog.DefaultContextLogger = &log.Logger
}

// run wires storage, cache and the partner client, serves HTTP until ctx is
// canceled, then drains in-flight requests and detached reward work.
func run(ctx context.Context, cfg config.Config) error {
	gin.SetMode(cfg.GinMode)

	appVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion)
	if err != nil {
		return fmt.Errorf("setup otel: %w", err)
	}

	db, err := repo.Open(cfg.DB.Driver, dataSource(cfg.DB))
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.DB.Driver, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if cfg.OTEL.Enabled {
		if err := repo.UseTracing(db); err != nil {
			return fmt.Errorf("gorm tracing: %w", err)
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	rds, err := cache.NewClient(ctx, cache.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rds.Close()

	id, err := sysutil.ParseNodeID(os.Getenv("NODE_ID"), 1)
	if err != nil {
		log.Warn().Err(err).Int64("node_id", id).Msg("invalid NODE_ID, using default")
	}
	node, err := snowflake.NewNode(id)
	if err != nil {
		return fmt.Errorf("snowflake node: %w", err)
	}

	partner := upstream.New(upstream.Options{
		BaseURL: cfg.Partner.BaseURL,
		APIKey:  cfg.Partner.APIKey,
		Timeout: cfg.Partner.Timeout,
		RPS:     cfg.Partner.RPS,
		Retry: upstream.RetryPolicy{
			MaxRetries: cfg.Partner.MaxRetries,
			Base:       cfg.Partner.BackoffBase,
			Max:        cfg.Partner.BackoffMax,
			Jitter:     cfg.Partner.Jitter,
			Notify: func(err error, next time.Duration) {
				log.Warn().Err(err).Dur("retry_in", next).Msg("partner call failed")
			},
		},
	})
	tasks := services.NewDetached(cfg.Partner.TaskTimeout)

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:      db,
		Redis:   rds,
		Partner: partner,
		IDs:     node,
		Tasks:   tasks,
	}, cfg)

	srv := newServer(cfg, r)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("version", appVersion).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		log.Info().Msg("server stopping")

		shCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := tasks.Wait(shCtx); err != nil {
			errs = append(errs, fmt.Errorf("drain detached tasks: %w", err))
		}
		if err := shutdownOTel(shCtx); err != nil {
			errs = append(errs, fmt.Errorf("otel shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	return eg.Wait()
}

func newServer(cfg config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

func dataSource(db config.DatabaseConfig) string {
	if db.Driver == "postgres" {
		return db.URL
	}
	return db.Path
}
