package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/solshare/pipeline/pkg/logger"
	"github.com/solshare/pipeline/pkg/queue"
)

// Storage is the broker behind the registry.
type Storage interface {
	queue.EnqueuerRepository
	queue.WorkerRepository
	Close() error
}

// Registry owns the fixed set of queues: it validates and enqueues jobs and
// runs one worker per queue.
type Registry struct {
	storage  Storage
	enqueuer *queue.Enqueuer
	workers  map[QueueName]*queue.Worker
	logger   *slog.Logger
	opts     registryOptions

	closed       atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
}

// NewRegistry builds the registry and a worker for every queue.
// Every field of processors must be set.
func NewRegistry(storage Storage, processors Processors, opts ...RegistryOption) (*Registry, error) {
	if storage == nil {
		return nil, queue.ErrRepositoryNil
	}

	options := registryOptions{
		logger:          slog.Default(),
		maxAttempts:     queue.DefaultMaxAttempts,
		concurrency:     make(map[QueueName]int),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}

	enqueuer, err := queue.NewEnqueuer(storage)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		storage:  storage,
		enqueuer: enqueuer,
		workers:  make(map[QueueName]*queue.Worker, len(queueNames)),
		logger:   options.logger.With(logger.Component("jobs")),
		opts:     options,
	}

	handlers, err := r.handlers(processors)
	if err != nil {
		return nil, err
	}

	for _, name := range queueNames {
		worker, err := r.newWorker(name, handlers[name])
		if err != nil {
			return nil, fmt.Errorf("create %s worker: %w", name, err)
		}
		r.workers[name] = worker
	}

	return r, nil
}

func (r *Registry) handlers(p Processors) (map[QueueName]queue.Handler, error) {
	var missing []error
	check := func(name QueueName, ok bool) {
		if !ok {
			missing = append(missing, fmt.Errorf("%w: %s", ErrMissingProcessor, name))
		}
	}
	check(QueueAIAnalysis, p.AIAnalysis != nil)
	check(QueueEmbedding, p.Embedding != nil)
	check(QueueNotification, p.Notification != nil)
	check(QueueFeedRefresh, p.FeedRefresh != nil)
	check(QueueSyncChain, p.SyncChain != nil)
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}

	return map[QueueName]queue.Handler{
		QueueAIAnalysis:   newJobHandler(QueueAIAnalysis, p.AIAnalysis, r.enqueueFollowUp, r.logger),
		QueueEmbedding:    newJobHandler(QueueEmbedding, p.Embedding, r.enqueueFollowUp, r.logger),
		QueueNotification: newJobHandler(QueueNotification, p.Notification, r.enqueueFollowUp, r.logger),
		QueueFeedRefresh:  newJobHandler(QueueFeedRefresh, p.FeedRefresh, r.enqueueFollowUp, r.logger),
		QueueSyncChain:    newJobHandler(QueueSyncChain, p.SyncChain, r.enqueueFollowUp, r.logger),
	}, nil
}

func (r *Registry) newWorker(name QueueName, handler queue.Handler) (*queue.Worker, error) {
	concurrency := DefaultConcurrency
	if n, ok := r.opts.concurrency[name]; ok {
		concurrency = n
	}

	opts := append([]queue.WorkerOption{}, r.opts.workerOptions...)
	opts = append(opts,
		queue.WithQueues(name.String()),
		queue.WithMaxConcurrentTasks(concurrency),
		queue.WithWorkerLogger(r.logger.With(logger.Queue(name.String()))),
		queue.WithDeadLetterHandler(r.onDeadLetter),
	)

	worker, err := queue.NewWorker(r.storage, opts...)
	if err != nil {
		return nil, err
	}
	if err := worker.RegisterHandler(handler); err != nil {
		return nil, err
	}
	return worker, nil
}

// Enqueue validates payload against the queue and stores a new job.
// Recognized options are queue.WithDelay, queue.WithDelayMillis,
// queue.WithPriority and queue.WithMaxRetries.
func (r *Registry) Enqueue(ctx context.Context, name QueueName, payload Payload, opts ...queue.EnqueueOption) (*JobHandle, error) {
	if r.closed.Load() {
		return nil, ErrRegistryClosed
	}
	return r.enqueue(ctx, name, payload, opts...)
}

// enqueueFollowUp is used by running jobs. It still works while the registry
// drains so in-flight chains are not cut off.
func (r *Registry) enqueueFollowUp(ctx context.Context, payload Payload) (*JobHandle, error) {
	return r.enqueue(ctx, payload.queueName(), payload)
}

func (r *Registry) enqueue(ctx context.Context, name QueueName, payload Payload, opts ...queue.EnqueueOption) (*JobHandle, error) {
	if !name.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownQueue, name)
	}
	if payload == nil {
		return nil, queue.ErrPayloadNil
	}
	if payload.queueName() != name {
		return nil, fmt.Errorf("%w: %T cannot be enqueued on %s", ErrPayloadMismatch, payload, name)
	}
	if err := payload.validate(); err != nil {
		return nil, err
	}

	options := make([]queue.EnqueueOption, 0, len(opts)+3)
	options = append(options, queue.WithMaxRetries(r.opts.maxAttempts))
	options = append(options, opts...)
	options = append(options, queue.WithQueue(name.String()), queue.WithTaskName(name.String()))

	task, err := r.enqueuer.Enqueue(ctx, payload, options...)
	if err != nil {
		return nil, err
	}

	r.logger.DebugContext(ctx, "job enqueued",
		logger.Queue(name.String()),
		logger.JobID(task.ID.String()),
		slog.Duration("delay", task.Delay))

	return newJobHandle(task), nil
}

// Start launches every queue worker. On failure the already started workers are stopped.
func (r *Registry) Start(ctx context.Context) error {
	if r.closed.Load() {
		return ErrRegistryClosed
	}

	var started []*queue.Worker
	for _, name := range queueNames {
		worker := r.workers[name]
		if err := worker.Start(ctx); err != nil {
			for _, w := range started {
				_ = w.Stop()
			}
			return fmt.Errorf("start %s worker: %w", name, err)
		}
		started = append(started, worker)
	}

	r.logger.InfoContext(ctx, "job registry started", slog.Int("queues", len(started)))
	return nil
}

// Shutdown stops accepting jobs, waits for in-flight jobs on every queue and
// then closes the storage. If ctx expires first it returns ErrShutdownTimeout
// and leaves the storage open for the jobs still running. Safe to call more than once.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.shutdownOnce.Do(func() {
		r.shutdownErr = r.shutdown(ctx)
	})
	return r.shutdownErr
}

func (r *Registry) shutdown(ctx context.Context) error {
	r.closed.Store(true)
	r.logger.InfoContext(ctx, "job registry shutting down")

	var wg sync.WaitGroup
	errs := make(chan error, len(r.workers))
	for name, worker := range r.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := worker.Stop(); err != nil && !errors.Is(err, queue.ErrWorkerNotStarted) {
				errs <- fmt.Errorf("stop %s worker: %w", name, err)
			}
		}()
	}

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		return errors.Join(ErrShutdownTimeout, ctx.Err())
	}

	close(errs)
	var stopErrs []error
	for err := range errs {
		stopErrs = append(stopErrs, err)
	}

	if err := r.storage.Close(); err != nil {
		stopErrs = append(stopErrs, fmt.Errorf("close storage: %w", err))
	}

	r.logger.InfoContext(ctx, "job registry stopped")
	return errors.Join(stopErrs...)
}

// Run starts the registry and returns a function suitable for errgroup.
// When ctx is cancelled it drains within the configured shutdown timeout.
func (r *Registry) Run(ctx context.Context) func() error {
	return func() error {
		if err := r.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.shutdownTimeout)
		defer cancel()
		return r.Shutdown(shutdownCtx)
	}
}

func (r *Registry) onDeadLetter(ctx context.Context, entry *queue.TasksDlq, cause error) {
	r.logger.ErrorContext(ctx, "job failed permanently",
		logger.JobID(entry.TaskID.String()),
		logger.Queue(entry.Queue),
		logger.Attempt(int(entry.RetryCount)),
		logger.Error(cause))

	if r.opts.deadLetters == nil {
		return
	}
	if err := r.opts.deadLetters.Record(ctx, *entry); err != nil {
		r.logger.ErrorContext(ctx, "failed to record dead-lettered job",
			logger.JobID(entry.TaskID.String()),
			logger.Queue(entry.Queue),
			logger.Error(err))
	}
}
