package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"caredesk/internal/beneficiary/metrics"
	"caredesk/internal/beneficiary/reciprocal"
	"caredesk/internal/beneficiary/resolver"
	beneficiaryservice "caredesk/internal/beneficiary/service"
	beneficiarystore "caredesk/internal/beneficiary/store"
	branchmetrics "caredesk/internal/branch/metrics"
	branchservice "caredesk/internal/branch/service"
	branchstore "caredesk/internal/branch/store"
	"caredesk/internal/platform/config"
	"caredesk/internal/platform/kafka"
	"caredesk/internal/platform/postgres"
	platformredis "caredesk/internal/platform/redis"
	audit "caredesk/pkg/platform/audit"
	"caredesk/pkg/platform/audit/publisher"
	auditmemory "caredesk/pkg/platform/audit/store/memory"
	auditpostgres "caredesk/pkg/platform/audit/store/postgres"
)

// beneficiaryStore is everything the service, resolver and applier need.
type beneficiaryStore interface {
	beneficiaryservice.Store
	resolver.Finder
	reciprocal.EdgeStore
}

type dependencies struct {
	db       *sql.DB
	redis    *platformredis.Client
	kafka    *kafka.Clients
	consumer *reciprocal.Consumer

	branches      *branchservice.Service
	beneficiaries *beneficiaryservice.Service

	closers []func()
}

// close releases resources in reverse order of acquisition.
func (d *dependencies) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func wire(ctx context.Context, cfg config.Server, log *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}
	wired := false
	defer func() {
		if !wired {
			deps.close()
		}
	}()

	var (
		branchBackend branchstore.Backend
		records       beneficiaryStore
		auditStore    audit.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		deps.db = db
		deps.closers = append(deps.closers, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, err
		}
		branchBackend = branchstore.NewPostgres(db)
		records = beneficiarystore.NewPostgres(db)
		auditStore = auditpostgres.New(db)
		log.Info("using postgres stores")
	} else {
		branchBackend = branchstore.NewInMemory()
		records = beneficiarystore.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		deps.redis = rc
		deps.closers = append(deps.closers, func() { _ = rc.Close() })
		branchBackend = branchstore.NewCached(branchBackend, rc.Client,
			branchstore.WithTTL(cfg.BranchCacheTTL),
			branchstore.WithCacheLogger(log),
			branchstore.WithCacheMetrics(branchmetrics.New()),
		)
	}

	auditPublisher := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(cfg.AuditBuffer),
		publisher.WithLogger(log),
	)
	deps.closers = append(deps.closers, auditPublisher.Close)

	deps.branches = branchservice.New(branchBackend,
		branchservice.WithLogger(log),
		branchservice.WithAuditPublisher(auditPublisher),
		branchservice.WithMetrics(branchmetrics.New()),
	)

	m := metrics.New()
	applier := reciprocal.NewApplier(records,
		reciprocal.WithApplierLogger(log),
		reciprocal.WithApplierMetrics(m),
		reciprocal.WithAuditPublisher(auditPublisher),
	)
	dispatcher, err := newDispatcher(ctx, cfg, log, deps, applier, m)
	if err != nil {
		return nil, err
	}
	engine := reciprocal.NewEngine(dispatcher, reciprocal.WithEngineLogger(log))

	var locker beneficiaryservice.Locker = beneficiaryservice.NoopLocker{}
	if rc != nil {
		locker = beneficiaryservice.NewRedisLocker(rc.Client)
	}

	deps.beneficiaries = beneficiaryservice.New(records, deps.branches, resolver.New(records), engine,
		beneficiaryservice.WithLogger(log),
		beneficiaryservice.WithMetrics(m),
		beneficiaryservice.WithAuditPublisher(auditPublisher),
		beneficiaryservice.WithLocker(locker, cfg.ReplicationLockTTL),
		beneficiaryservice.WithReplicationConcurrency(cfg.ReplicationConcurrency),
	)
	wired = true
	return deps, nil
}

func newDispatcher(ctx context.Context, cfg config.Server, log *slog.Logger, deps *dependencies,
	applier *reciprocal.Applier, m *metrics.Metrics) (reciprocal.Dispatcher, error) {
	switch cfg.ReciprocalMode {
	case config.ReciprocalInline:
		return reciprocal.NewInlineDispatcher(applier, m), nil
	case config.ReciprocalKafka:
		clients, err := kafka.Connect(ctx, cfg.Kafka,
			reciprocal.ConsumerOpts(cfg.Kafka.ConsumerGroup, cfg.Kafka.Topic)...)
		if err != nil {
			return nil, err
		}
		deps.kafka = clients
		deps.closers = append(deps.closers, clients.Close)
		if err := reciprocal.EnsureTopic(ctx, clients.Admin, cfg.Kafka.Topic, cfg.Kafka.Partitions, 1); err != nil {
			return nil, err
		}
		deps.consumer = reciprocal.NewConsumer(clients.Consumer, applier,
			reciprocal.WithConsumerLogger(log),
			reciprocal.WithConsumerMetrics(m),
		)
		return reciprocal.NewKafkaDispatcher(clients.Producer, cfg.Kafka.Topic, m), nil
	case config.ReciprocalQueue:
		queue := reciprocal.NewQueueDispatcher(applier,
			reciprocal.WithWorkers(cfg.ReciprocalWorkers),
			reciprocal.WithQueueSize(cfg.ReciprocalQueueSize),
			reciprocal.WithQueueLogger(log),
			reciprocal.WithQueueMetrics(m),
		)
		deps.closers = append(deps.closers, queue.Close)
		return queue, nil
	default:
		return nil, fmt.Errorf("unknown reciprocal mode %q", cfg.ReciprocalMode)
	}
}
