package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/AuraReaper/voom/internal/config"
	"github.com/AuraReaper/voom/internal/drivers"
	"github.com/AuraReaper/voom/internal/geo"
	"github.com/AuraReaper/voom/internal/httpapi"
	"github.com/AuraReaper/voom/internal/ingest"
	"github.com/AuraReaper/voom/internal/location"
	"github.com/AuraReaper/voom/internal/logging"
	"github.com/AuraReaper/voom/internal/match"
	"github.com/AuraReaper/voom/internal/payments"
	"github.com/AuraReaper/voom/internal/registry"
	"github.com/AuraReaper/voom/internal/routing"
	"github.com/AuraReaper/voom/internal/storage"
	"github.com/AuraReaper/voom/internal/trip"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger("dispatch-server", cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var index geo.Index
	if cfg.RedisAddr != "" {
		ri := geo.NewRedisIndex(cfg.RedisAddr, cfg.RedisPassword, cfg.GeohashPrecision)
		defer ri.Close()
		index = ri
		logger.Info("using redis geohash index", "addr", cfg.RedisAddr)
	} else {
		index = geo.NewMemoryIndex(cfg.GeohashPrecision)
	}

	var store storage.TripStore
	if cfg.PGDSN != "" {
		if os.Getenv("MIGRATE") == "true" {
			if err := runMigrations(cfg.PGDSN, "migrations"); err != nil {
				logger.Error("migration failed", "error", err)
				os.Exit(1)
			}
			logger.Info("migration applied", "file", "001_create_trips.sql")
		}
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer ps.Close()
		store = ps
	} else {
		store = storage.NewMemoryStore()
	}

	var proc payments.Processor = payments.Noop{}
	if cfg.StripeAPIKey != "" {
		proc = payments.NewStripeProcessor(cfg.StripeAPIKey)
	}

	pool := drivers.NewDirectory()
	sessions := registry.New(logger, cfg.OutboundQueue)

	lifecycle := trip.NewLifecycle(sessions, pool, store, proc, logger, trip.Options{
		AutoStart: cfg.AutoStart,
		Currency:  cfg.Currency,
	})
	sessions.OnDisconnect = lifecycle.HandleDisconnect

	coordinator := match.NewCoordinator(index, pool, lifecycle, match.Config{
		Precision:   cfg.GeohashPrecision,
		MaxRings:    cfg.MatchMaxRings,
		MaxRetries:  cfg.MatchMaxRetries,
		OfferWindow: cfg.OfferWindow,
	}, logger)
	lifecycle.OnDriverResponse = coordinator.DriverResponded

	var publisher location.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
		logger.Info("publishing locations to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	locations := location.NewProcessor(index, pool, sessions, lifecycle, publisher, logger)

	fares := trip.NewFareStore(cfg.QuoteTTL)
	routes := routing.Resilient{
		Primary:  routing.NewOSRMClient(cfg.OSRMEndpoint),
		Fallback: routing.StraightLine{},
		Logger:   logger,
	}
	svc := trip.NewService(routes, fares, lifecycle, trip.DefaultPricingConfig(), logger)
	svc.OnTripRequested = coordinator.Dispatch

	api := httpapi.NewServer(svc, lifecycle, locations, sessions, pool, logger)

	// No blanket read/write timeouts: the websocket endpoints hold their
	// connections open indefinitely. Header reads still get a deadline.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api,
		ReadHeaderTimeout: cfg.ReadTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("dispatch server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
}

func runMigrations(dsn, dir string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join(dir, "001_create_trips.sql"))
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := db.Exec(string(b)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}
