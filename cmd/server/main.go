package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/config"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/handler"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/httpserver"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/progress"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/service/progression"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/logger"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/otel"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/outbox"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger(cfg.Logging.Level)
	defer log.Sync()

	log.Info("Starting progression server...",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("port", cfg.Server.Port),
	)

	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "jhub-progression"
	}
	shutdownOtel, err := otel.Init(cfg.OTEL, log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownOtel()

	catalog := progress.DefaultCatalog()
	if cfg.StageCatalogPath != "" {
		catalog, err = progress.LoadCatalogFile(cfg.StageCatalogPath)
		if err != nil {
			log.Fatal("Failed to load stage catalog", zap.String("path", cfg.StageCatalogPath), zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := newBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to init storage backend", zap.Error(err))
	}
	defer b.closer()

	engine := progression.NewEngine(b.tx, b.activity, log.Named("progression"))
	b.wireLocalConsumers(cfg, engine, catalog, log)
	if err := b.seedDemo(ctx, engine, log); err != nil {
		log.Fatal("Failed to seed demo data", zap.Error(err))
	}

	// Outbox dispatcher
	dispatcher := outbox.NewDispatcher(b.outbox, b.publisher, log.Named("outbox")).
		WithInterval(cfg.Outbox.PollInterval()).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries)
	go dispatcher.Start(ctx)

	replay := outbox.NewReplayService(b.outbox, b.publisher, log.Named("replay"))

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpserver.NewRouter(
		handler.NewProgressionHandler(engine, catalog, log),
		handler.NewAdminHandler(replay, log),
		httpserver.RouterConfig{
			JWTSecret:   cfg.JWT.Secret,
			CORSOrigins: cfg.Server.CORSOrigins,
			Readiness:   b.readiness,
		},
		log,
	)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down progression server gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}
	log.Info("Progression server shutdown complete")
}
