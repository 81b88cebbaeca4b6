// Command server runs the webhook ingestion service: it verifies and parses
// platform callbacks, routes message events through the idempotency gate and
// session store, and persists notes and images to cloud storage.
//
// Configuration comes from environment variables (see internal/config); a
// local .env file is loaded when present. The process exits non-zero when a
// hard dependency (database, storage credentials, messaging credentials)
// cannot be initialized.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-line-uploader/internal/config"
	"github.com/tbourn/go-line-uploader/internal/dedup"
	httpapi "github.com/tbourn/go-line-uploader/internal/http"
	"github.com/tbourn/go-line-uploader/internal/line"
	"github.com/tbourn/go-line-uploader/internal/observability"
	"github.com/tbourn/go-line-uploader/internal/repo"
	"github.com/tbourn/go-line-uploader/internal/router"
	"github.com/tbourn/go-line-uploader/internal/session"
	"github.com/tbourn/go-line-uploader/internal/storage"
	"github.com/tbourn/go-line-uploader/internal/sysutil"
)

const shutdownGrace = 10 * time.Second

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	version := sysutil.FirstNonEmpty(os.Getenv("SERVICE_VERSION"), "dev")
	lg := log.With().Str("service", cfg.OTEL.ServiceName).Str("version", version).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		lg.Fatal().Err(err).Msg("opentelemetry setup failed")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			lg.Error().Err(err).Msg("opentelemetry shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		lg.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		lg.Fatal().Err(err).Msg("database migration failed")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			lg.Error().Err(err).Msg("database tracing setup failed")
		}
	}

	// An empty REDIS_URL leaves the gate permanently fail-open; useful for
	// single-instance deployments and local runs.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			lg.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb = redis.NewClient(opt)
		defer func() { _ = rdb.Close() }()
	}
	gate := dedup.NewRedisGate(rdb, cfg.DedupTTL, lg)

	drv, err := storage.NewDrive(ctx, cfg.Drive, lg)
	if err != nil {
		lg.Fatal().Err(err).Msg("storage client setup failed")
	}

	msgr, err := line.NewClient(cfg.LINE, lg)
	if err != nil {
		lg.Fatal().Err(err).Msg("messaging client setup failed")
	}

	codes, err := config.LoadAppStore(cfg.CodeMapPath)
	if err != nil {
		lg.Fatal().Err(err).Str("path", cfg.CodeMapPath).Msg("code map load failed")
	}

	rt := router.New(router.Options{
		Gate:         gate,
		Sessions:     session.NewStore(cfg.SessionTTL),
		Codes:        codes,
		Storage:      drv,
		Messenger:    msgr,
		AuditDB:      db,
		RootFolderID: cfg.Drive.RootFolderID,
		Log:          lg,
	})

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, rt, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", srv.Addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		lg.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal().Err(err).Msg("server failed")
		}
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		lg.Error().Err(err).Msg("graceful shutdown failed")
	}
	lg.Info().Msg("server stopped")
}
