// Command server runs the EngiBriefs store API.
//
// @title                       EngiBriefs Store API
// @version                     1.0
// @description                 Catalog, checkout, payment verification and entitlement-gated downloads for engineering ebooks.
// @BasePath                    /api/v1
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the access token.
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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/engibriefs-store/internal/auth"
	"github.com/tbourn/engibriefs-store/internal/config"
	"github.com/tbourn/engibriefs-store/internal/events"
	httpapi "github.com/tbourn/engibriefs-store/internal/http"
	"github.com/tbourn/engibriefs-store/internal/observability"
	"github.com/tbourn/engibriefs-store/internal/payment"
	"github.com/tbourn/engibriefs-store/internal/repo"
	"github.com/tbourn/engibriefs-store/internal/services"
	"github.com/tbourn/engibriefs-store/internal/storage"
	"github.com/tbourn/engibriefs-store/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	shutdownTimeout = 15 * time.Second
	sweepTimeout    = 5 * time.Minute
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	logger := sysutil.NewLogger(os.Stdout, cfg.LogPretty, cfg.OTEL.ServiceName)
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	sysutil.SetLogLevel(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup tracing")
	}

	db, err := repo.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	store, err := storage.New(storage.Options{
		Root:       cfg.Storage.Dir,
		SigningKey: cfg.Storage.SigningKey,
		BaseURL:    cfg.Storage.PublicBaseURL,
		TTL:        cfg.Storage.URLTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Storage.Dir).Msg("open file store")
	}

	publisher, err := events.New(cfg.Events.KafkaBrokers, cfg.Events.PurchasePaidTopic)
	if err != nil {
		log.Fatal().Err(err).Msg("create event publisher")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:       db,
		Gateway:  payment.NewRazorpayGateway(cfg.Payment.KeyID, cfg.Payment.KeySecret, cfg.Payment.Timeout),
		Store:    store,
		Events:   publisher,
		Verifier: auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
	}, cfg)

	var stopSweep func() context.Context
	if cfg.Sweep.Enabled {
		sweeper := &services.Sweeper{DB: db, PendingTTL: cfg.Sweep.PendingTTL}
		sched, err := sweeper.Schedule(cfg.Sweep.Schedule, sweepTimeout)
		if err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.Sweep.Schedule).Msg("schedule sweep")
		}
		sched.Start()
		stopSweep = sched.Stop
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("db_driver", cfg.DB.Driver).
			Str("razorpay_key_id", sysutil.MaskSecret(cfg.Payment.KeyID)).
			Bool("kafka", len(cfg.Events.KafkaBrokers) > 0).
			Bool("sweep", cfg.Sweep.Enabled).
			Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if stopSweep != nil {
		select {
		case <-stopSweep().Done():
		case <-shutdownCtx.Done():
			log.Warn().Msg("sweep still running at shutdown")
		}
	}
	if err := publisher.Close(); err != nil {
		log.Error().Err(err).Msg("close event publisher")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
}
