package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/solshare/pipeline/internal/admin"
	"github.com/solshare/pipeline/internal/analysis"
	"github.com/solshare/pipeline/internal/db/migrations"
	"github.com/solshare/pipeline/internal/deadletter"
	"github.com/solshare/pipeline/internal/domain"
	"github.com/solshare/pipeline/internal/feedcache"
	"github.com/solshare/pipeline/internal/jobs"
	"github.com/solshare/pipeline/internal/realtime"
	"github.com/solshare/pipeline/internal/store"
	"github.com/solshare/pipeline/internal/vectorindex"
	"github.com/solshare/pipeline/pkg/broadcast"
	"github.com/solshare/pipeline/pkg/config"
	"github.com/solshare/pipeline/pkg/environment"
	"github.com/solshare/pipeline/pkg/httpserver"
	"github.com/solshare/pipeline/pkg/logger"
	"github.com/solshare/pipeline/pkg/mongo"
	"github.com/solshare/pipeline/pkg/opensearch"
	"github.com/solshare/pipeline/pkg/pg"
	"github.com/solshare/pipeline/pkg/queue"
	"github.com/solshare/pipeline/pkg/redis"
	"github.com/solshare/pipeline/pkg/requestid"
)

func main() {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		slog.Error("failed to load config", logger.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", logger.Error(err))
		os.Exit(1)
	}

	env := environment.Parse(cfg.Env)
	log := logger.New(
		logger.WithEnvironment(env.String(), cfg.Service),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = environment.WithContext(ctx, env)

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorContext(ctx, "worker stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.InfoContext(ctx, "worker stopped")
}

func run(ctx context.Context, cfg Config, log *slog.Logger) error {
	var (
		readiness []func(context.Context) error
		cleanup   []func()
	)
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	needRedis := cfg.QueueBackend == backendRedis || cfg.FeedCacheBackend == backendRedis
	var redisClient *goredis.Client
	if needRedis {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		redisClient = client
		cleanup = append(cleanup, func() { _ = client.Close() })
		readiness = append(readiness, redis.Healthcheck(client))
	}

	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	cleanup = append(cleanup, pool.Close)
	readiness = append(readiness, pg.Healthcheck(pool))

	if cfg.Postgres.AutoMigrate {
		if err := pg.Migrate(ctx, pool, cfg.Postgres, migrations.FS, log); err != nil {
			return err
		}
	}

	analyzer, err := analysis.New(cfg.Analysis, analysis.WithLogger(log))
	if err != nil {
		return err
	}

	index, err := newVectorIndex(ctx, cfg, log, &readiness)
	if err != nil {
		return err
	}

	var (
		storage jobs.Storage
		dlq     admin.DLQLister
	)
	switch cfg.QueueBackend {
	case backendRedis:
		s, err := queue.NewRedisStorage(redisClient, append(cfg.Queue.RedisOptions(), queue.WithRedisLogger(log))...)
		if err != nil {
			return err
		}
		storage, dlq = s, s
	case backendMemory:
		s := queue.NewMemoryStorage(cfg.Queue.MemoryOptions()...)
		storage, dlq = s, s
	default:
		return fmt.Errorf("unsupported QUEUE_BACKEND %q", cfg.QueueBackend)
	}

	var cache jobs.FeedCache
	switch cfg.FeedCacheBackend {
	case backendRedis:
		cache = feedcache.NewRedis(redisClient)
	case backendMemory:
		cache = feedcache.NewMemory(cfg.FeedCacheSize)
	default:
		return fmt.Errorf("unsupported FEED_CACHE_BACKEND %q", cfg.FeedCacheBackend)
	}

	var bc broadcast.Broadcaster[domain.Event]
	if redisClient != nil {
		bc = broadcast.NewRedisBroadcaster[domain.Event](redisClient, broadcast.WithRedisLogger(log))
	} else {
		bc = broadcast.NewMemoryBroadcaster[domain.Event](64)
	}
	cleanup = append(cleanup, func() { _ = bc.Close() })

	processors := jobs.NewProcessors(jobs.Dependencies{
		Analyzer: analyzer,
		Store:    store.New(pool, store.WithLogger(log)),
		Cache:    cache,
		Notifier: realtime.NewNotifier(bc, realtime.WithLogger(log)),
		Index:    index,
		Timeouts: cfg.Timeouts,
		Logger:   log,
	})

	opts := []jobs.RegistryOption{
		jobs.WithLogger(log),
		jobs.WithMaxAttempts(cfg.MaxAttempts),
		jobs.WithShutdownTimeout(cfg.Queue.ShutdownTimeout),
		jobs.WithWorkerOptions(
			queue.WithPullInterval(cfg.Queue.PollInterval),
			queue.WithLockTimeout(cfg.Queue.LockTimeout),
		),
	}
	for name, n := range cfg.concurrency() {
		opts = append(opts, jobs.WithConcurrency(name, n))
	}

	if cfg.DeadLetterMongo {
		db, err := mongo.NewWithDatabase(ctx, cfg.Mongo)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, func() { _ = db.Client().Disconnect(context.Background()) })
		readiness = append(readiness, mongo.Healthcheck(db.Client()))
		opts = append(opts, jobs.WithDeadLetterSink(
			deadletter.NewMongo(db.Collection(deadletter.DefaultCollection), log),
		))
	}

	registry, err := jobs.NewRegistry(storage, processors, opts...)
	if err != nil {
		return err
	}

	router := admin.Router(admin.Options{
		Environment: environment.FromContext(ctx),
		Enqueuer:    registry,
		DLQ:         dlq,
		Readiness:   readiness,
		Logger:      log,
	})
	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(registry.Run(gctx))
	g.Go(func() error { return srv.Run(gctx, router) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newVectorIndex(ctx context.Context, cfg Config, log *slog.Logger, readiness *[]func(context.Context) error) (jobs.VectorIndex, error) {
	if !cfg.OpenSearch.Enabled {
		return vectorindex.NewLog(log), nil
	}

	client, err := opensearch.New(ctx, cfg.OpenSearch)
	if err != nil {
		return nil, err
	}
	*readiness = append(*readiness, opensearch.Healthcheck(client))

	index := vectorindex.NewOpenSearch(client, cfg.OpenSearch.Index, vectorindex.WithLogger(log))
	if err := index.EnsureIndex(ctx, cfg.OpenSearch.VectorDimension); err != nil {
		return nil, err
	}
	return index, nil
}
