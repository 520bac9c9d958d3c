package main

import (
	"context"
	"errors"

	"go.uber.org/zap"

	mqcontracts "github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/contracts/mq"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/config"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/httpserver"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/mqhandler"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/progress"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/repository"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/repository/memory"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/service/notify"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/service/progression"
	pkgconfig "github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/config"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/db"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/mq"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/outbox"
)

// backend 按 storage.driver 组装存储和事件投递
type backend struct {
	tx        progression.Transactor
	activity  progression.ActivityLogSink
	outbox    outbox.Store
	publisher outbox.Publisher
	readiness map[string]httpserver.ReadinessCheck
	// memory 驱动下需要在 engine 创建后挂载进程内订阅者
	bus    *mq.LocalBus
	mem    *memory.Store
	closer func()
}

func newBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend, error) {
	switch cfg.Storage.Driver {
	case pkgconfig.StorageDriverMemory:
		return newMemoryBackend(log), nil
	case pkgconfig.StorageDriverPostgres:
		return newPostgresBackend(ctx, cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Storage.Driver)
	}
}

func newPostgresBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend, error) {
	log.Info("Initializing database connection...")
	pool, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		return nil, err
	}
	if cfg.DB.ApplySchema {
		if err := db.ApplySchema(ctx, pool, log); err != nil {
			pool.Close()
			return nil, err
		}
	}

	log.Info("Initializing MQ publisher...", zap.String("exchange", cfg.MQ.Exchange))
	publisher, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange, log)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &backend{
		tx:        repository.NewStore(pool, log),
		activity:  repository.NewActivityLogRepository(pool, log),
		outbox:    outbox.NewRepository(pool),
		publisher: publisher,
		readiness: map[string]httpserver.ReadinessCheck{
			"db_not_ready": func(ctx context.Context) error { return pool.Ping(ctx) },
			"mq_not_ready": func(context.Context) error {
				if !publisher.IsConnected() {
					return errors.New("publisher disconnected")
				}
				return nil
			},
		},
		closer: func() {
			publisher.Close()
			pool.Close()
		},
	}, nil
}

func newMemoryBackend(log *zap.Logger) *backend {
	log.Warn("Using in-memory storage; data is lost on restart")
	store := memory.NewStore()
	bus := mq.NewLocalBus(log.Named("bus"))
	return &backend{
		tx:        store,
		activity:  store,
		outbox:    store,
		publisher: bus,
		bus:       bus,
		mem:       store,
		closer:    func() {},
	}
}

// wireLocalConsumers 进程内挂载与 worker 相同的处理器
func (b *backend) wireLocalConsumers(cfg *config.Config, engine *progression.Engine, catalog *progress.Catalog, log *zap.Logger) {
	if b.bus == nil {
		return
	}
	notifier := notify.NewNotifier(b.mem, notify.NewEmailSink(cfg.SMTP, log), b.mem, catalog, log.Named("notify"))

	b.bus.Subscribe(mqcontracts.RoutingApprovalRecorded, mqhandler.NewApprovalRecordedHandler(notifier, nil, log).Handle)
	b.bus.Subscribe(mqcontracts.RoutingStageAdvanced, mqhandler.NewStageAdvancedHandler(notifier, nil, log).Handle)
	b.bus.Subscribe(mqcontracts.RoutingMentorAssigned, mqhandler.NewMentorAssignedHandler(engine.Consensus, log).Handle)
	b.bus.Subscribe(mqcontracts.RoutingRatingRecorded, mqhandler.NewRatingRecordedHandler(b.mem, nil, log).Handle)
}

// seedDemo 为本地运行准备一个项目和三位导师
func (b *backend) seedDemo(ctx context.Context, engine *progression.Engine, log *zap.Logger) error {
	if b.mem == nil {
		return nil
	}
	p := b.mem.AddProject("Demo Project", "lead@example.org", 0)
	var ids []int64
	for _, name := range []string{"Mentor A", "Mentor B", "Mentor C"} {
		m := b.mem.AddMentor(name, "")
		if err := b.mem.AssignMentor(p.ID, m.ID); err != nil {
			return err
		}
		if err := engine.Consensus.OnMentorAssigned(ctx, p.ID, m.ID); err != nil {
			return err
		}
		ids = append(ids, m.ID)
	}
	log.Info("Seeded demo data", zap.Int64("project_id", p.ID), zap.Int64s("mentor_ids", ids))
	return nil
}
