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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"parking-service/internal/auth"
	"parking-service/internal/config"
	"parking-service/internal/db"
	httphandler "parking-service/internal/http"
	"parking-service/internal/http/middleware"
	"parking-service/internal/logger"
	"parking-service/internal/metrics"
	"parking-service/internal/notify"
	"parking-service/internal/rates"
	"parking-service/internal/repository"
	"parking-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	store := repository.NewStore(database)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	engineMetrics := metrics.New(registry)

	settingsSource, err := rates.NewSettingsSource(store.Settings, cfg.Facility)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid facility configuration")
	}
	var rateSource rates.Source = rates.NewMemoryCache(settingsSource, cfg.Rates.CacheTTL)
	if cfg.Redis.URL != "" {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.Rates.FetchTimeout)
		client, err := rates.NewRedisClient(pingCtx, cfg.Redis.URL)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		rateSource = rates.NewRedisCache(client, settingsSource, cfg.Rates.CacheTTL, log)
	}

	dispatcher := notify.NewDispatcher(store, notify.NewHTTPTransport(&http.Client{}), engineMetrics, log, cfg.Notify.SendTimeout)
	worker := notify.NewWorker(notify.WorkerParams{
		Outbox:       store.Outbox,
		Dispatcher:   dispatcher,
		Metrics:      engineMetrics,
		Logger:       log,
		PollInterval: cfg.Notify.PollInterval,
		BatchSize:    cfg.Notify.BatchSize,
		MaxAttempts:  cfg.Notify.MaxAttempts,
	})
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		_ = worker.Run(ctx)
	}()

	params := service.Params{
		Store:        store,
		Rates:        rateSource,
		Notifier:     worker,
		Metrics:      engineMetrics,
		Logger:       log,
		RatesTimeout: cfg.Rates.FetchTimeout,
		TicketPrefix: cfg.Facility.TicketPrefix,
	}
	handler := httphandler.NewHandler(
		service.NewTicketService(params),
		service.NewPaymentService(params),
		service.NewHistoryService(params),
		service.NewSubscriptionService(params),
		log,
	)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	router := httphandler.NewRouter(httphandler.RouterParams{
		Handler:        handler,
		AuthMiddleware: middleware.Auth(tokenParser),
		Health: func(ctx context.Context) error {
			return db.HealthCheck(ctx, database)
		},
		Gatherer:    registry,
		Logger:      log,
		Environment: cfg.Environment,
	})

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().Str("addr", addr).Msg("starting parking service")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}

	<-workerDone
	log.Info().Msg("parking service stopped")
}
