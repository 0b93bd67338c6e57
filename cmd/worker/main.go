package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"submita/internal/audit"
	"submita/internal/cache"
	"submita/internal/config"
	"submita/internal/database"
	"submita/internal/jobs"
	"submita/internal/log"
	"submita/internal/metrics"
	"submita/internal/queue"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment).With().Str("process", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer pool.Close()

	repo := audit.NewRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("audit migration failed")
	}

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	registry := metrics.New()

	processor := audit.NewProcessor(repo, log.Component(logger, "audit"), registry)
	consumer := queue.NewConsumer(
		client,
		cfg.Audit.Stream,
		cfg.Audit.Group,
		cfg.Audit.Consumer,
		cfg.Audit.ClaimInterval,
		logger,
		processor,
	)
	if err := consumer.EnsureGroup(ctx); err != nil {
		logger.Fatal().Err(err).Msg("consumer group setup failed")
	}

	scheduler := jobs.NewScheduler(logger)
	if err := scheduler.Add("audit-retention", "0 30 3 * * *", audit.RetentionJob(repo, cfg.Audit.Retention, log.Component(logger, "retention"))); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule retention")
	}
	scheduler.Start()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/metrics", gin.WrapH(registry.Handler()))
	engine.GET("/healthz", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	srv := &http.Server{Addr: cfg.HTTPAddr(), Handler: engine, ReadTimeout: cfg.HTTP.ReadTimeout}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown failed")
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("scheduler jobs still running")
	}
	logger.Info().Msg("worker exited cleanly")
}
