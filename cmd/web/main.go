package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"submita/internal/apiclient"
	"submita/internal/audit"
	"submita/internal/authz"
	"submita/internal/cache"
	"submita/internal/config"
	"submita/internal/handlers"
	"submita/internal/jobs"
	"submita/internal/log"
	"submita/internal/metrics"
	"submita/internal/middleware"
	"submita/internal/notify"
	"submita/internal/pages"
	"submita/internal/security"
	"submita/internal/server"
	"submita/internal/session"
	"submita/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)
	ctx := context.Background()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, flash toasts and profile cache disabled")
			redisClient = nil
		}
	}

	var objectStore *storage.ObjectStore
	if cfg.Storage.Endpoint != "" {
		objectStore, err = storage.NewObjectStore(cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object store")
		}
	}

	registry := metrics.New()

	client, err := apiclient.New(apiclient.Config{
		BaseURL:  cfg.API.BaseURL,
		Timeout:  cfg.API.Timeout,
		Retries:  cfg.API.Retries,
		Envelope: apiclient.ParseEnvelopeMode(cfg.API.Envelope),
	}, &http.Client{}, logger, apiclient.WithObserver(registry))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init backend client")
	}

	verifier, err := security.NewVerifier(cfg.Security.JWTSecret, cfg.Security.JWTPublicKey, cfg.Security.JWTIssuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init token verifier")
	}

	cookies := session.Cookies{Secure: cfg.Security.CookieSecure, Domain: cfg.Security.CookieDomain}
	auditor := audit.NewPublisher(redisClient, cfg.Audit.Stream, logger, registry)

	pipeline := &pages.Pipeline{
		AppName:  cfg.App.Name,
		Client:   client,
		Cookies:  cookies,
		Profiles: session.NewProvider(redisClient, cfg.Security.ProfileTTL, log.Component(logger, "profile")),
		Notify:   notify.NewStore(redisClient, cfg.Notify.TTL, cfg.Security.CookieSecure, log.Component(logger, "notify")),
		Audit:    auditor,
		Metrics:  registry,
		Log:      log.Component(logger, "pages"),
	}

	gate := middleware.Gate(authz.Routes, verifier, cookies, auditor, registry, log.Component(logger, "gate"))
	handlerSet := handlers.NewHandlerSet(logger, cfg, pipeline, redisClient, objectStore)
	httpServer, err := server.NewHTTPServer(cfg, logger, registry, gate, handlerSet)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build http server")
	}

	scheduler := jobs.NewScheduler(logger)
	if err := scheduler.Add("backend-health", "0 * * * * *", jobs.HealthProbe(client.Ping, registry, logger)); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule health probe")
	}
	scheduler.Start()

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	var metricsServer *server.HTTPServer
	if cfg.HTTP.MetricsPort != 0 {
		metricsServer = server.NewMetricsServer(cfg, logger, registry)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	waitForShutdown(logger, httpServer, metricsServer, scheduler, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv, metricsSrv *server.HTTPServer, scheduler *jobs.Scheduler, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("metrics server shutdown failed")
		}
	}

	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("scheduler jobs still running")
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
