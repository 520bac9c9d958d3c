package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	mqcontracts "github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/contracts/mq"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/config"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/mqhandler"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/progress"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/repository"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/service/notify"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/service/progression"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/db"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/logger"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/mq"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/otel"
	redisclient "github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/redis"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/util"
)

const (
	dedupTTL = 24 * time.Hour
	retryTTL = time.Hour
)

type binding struct {
	queue      string
	routingKey string
	handler    mq.MessageHandler
}

func main() {
	cfg := config.Load()

	log := logger.NewLogger(cfg.Logging.Level)
	defer log.Sync()

	log.Info("Starting progression worker...",
		zap.String("mq_url", cfg.MQ.URL),
		zap.String("redis_addr", cfg.Redis.Addr),
	)

	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "jhub-progression-worker"
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

	// Redis
	rdb, err := redisclient.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal("Failed to init Redis", zap.Error(err))
	}
	defer rdb.Close()
	deduper := util.NewDeduper(rdb, dedupTTL, log)
	attempts := util.NewAttemptCounter(rdb, retryTTL)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()
	log.Info("Database connection established")

	store := repository.NewStore(dbConn, log)
	activityRepo := repository.NewActivityLogRepository(dbConn, log)
	engine := progression.NewEngine(store, activityRepo, log.Named("progression"))
	notifier := notify.NewNotifier(
		repository.NewNotificationRepository(dbConn, log),
		notify.NewEmailSink(cfg.SMTP, log),
		repository.NewMentorRepository(dbConn),
		catalog,
		log.Named("notify"),
	)

	bindings := []binding{
		{
			queue:      "progression.approval_recorded.notify.q",
			routingKey: mqcontracts.RoutingApprovalRecorded,
			handler:    mqhandler.NewApprovalRecordedHandler(notifier, deduper, log).Handle,
		},
		{
			queue:      "progression.stage_advanced.notify.q",
			routingKey: mqcontracts.RoutingStageAdvanced,
			handler:    mqhandler.NewStageAdvancedHandler(notifier, deduper, log).Handle,
		},
		{
			queue:      "progression.mentor_assigned.seed.q",
			routingKey: mqcontracts.RoutingMentorAssigned,
			handler:    mqhandler.NewMentorAssignedHandler(engine.Consensus, log).Handle,
		},
		{
			queue:      "progression.rating_recorded.audit.q",
			routingKey: mqcontracts.RoutingRatingRecorded,
			handler:    mqhandler.NewRatingRecordedHandler(activityRepo, deduper, log).Handle,
		},
	}

	consumers := make([]*mq.Consumer, 0, len(bindings))
	for _, b := range bindings {
		log.Info("Initializing MQ consumer...",
			zap.String("queue", b.queue),
			zap.String("routing_key", b.routingKey),
		)
		consumer, err := mq.NewConsumer(cfg.MQ.URL, cfg.MQ.Exchange, b.queue, b.routingKey, log)
		if err != nil {
			log.Fatal("Failed to init consumer", zap.String("queue", b.queue), zap.Error(err))
		}
		defer consumer.Close()

		consumer.SetHandler(b.handler)
		consumer.SetRetryPolicy(attempts, int64(cfg.MQ.RetryMax))
		consumers = append(consumers, consumer)

		go func(c *mq.Consumer, queue string) {
			if err := c.StartConsuming(); err != nil {
				log.Fatal("Consumer failed", zap.String("queue", queue), zap.Error(err))
			}
		}(consumer, b.queue)
	}
	log.Info("All consumers started, worker is ready to process messages")

	// health + metrics
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := dbConn.Ping(ctx); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		for _, consumer := range consumers {
			if !consumer.IsConnected() {
				c.JSON(http.StatusInternalServerError, gin.H{"status": "mq_not_ready"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{Addr: cfg.Server.WorkerPort, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Health server failed", zap.Error(err))
		}
	}()

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down worker gracefully...")
	for _, consumer := range consumers {
		consumer.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Health server shutdown error", zap.Error(err))
	}
	log.Info("Worker shutdown complete")
}
