package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// bookkeepingTimeout bounds storage calls made after a handler returns.
const bookkeepingTimeout = 10 * time.Second

// maxLockMargin caps how long before its lock expires a handler is cancelled.
const maxLockMargin = 5 * time.Second

// WorkerRepository defines the interface for worker operations
type WorkerRepository interface {
	// ClaimTask atomically claims the next available task
	ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error)

	// CompleteTask marks task as completed.
	CompleteTask(ctx context.Context, taskID, workerID uuid.UUID) error

	// FailTask records the error, increments the retry count and either
	// reschedules the task with backoff or marks it failed. Returns the updated task.
	FailTask(ctx context.Context, taskID, workerID uuid.UUID, errorMsg string) (*Task, error)

	// MoveToDLQ removes the task from the queue and records it in the dead letter queue
	// with errorMsg as the final error.
	MoveToDLQ(ctx context.Context, taskID, workerID uuid.UUID, errorMsg string) (*TasksDlq, error)

	// ExtendLock pushes the lock deadline to now+duration.
	ExtendLock(ctx context.Context, taskID, workerID uuid.UUID, duration time.Duration) error
}

// Every WorkerRepository call that changes a claimed task fails with
// ErrLockLost when workerID no longer holds its lock.

// DeadLetterHandler is called after a task has been moved to the dead letter queue.
type DeadLetterHandler func(ctx context.Context, entry *TasksDlq, cause error)

// Worker processes tasks from the queue
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	queues   []string
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex // Protects stopping state and WaitGroup operations

	pullInterval      time.Duration
	lockTimeout       time.Duration
	heartbeatInterval time.Duration
	logger            *slog.Logger
	onDeadLetter DeadLetterHandler

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewWorker creates a new task worker
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		queues:             []string{DefaultQueueName},
		pullInterval:       time.Second,
		lockTimeout:        5 * time.Minute,
		maxConcurrentTasks: 1,
		logger:             slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	heartbeat := options.heartbeatInterval
	if heartbeat <= 0 || heartbeat >= options.lockTimeout {
		heartbeat = options.lockTimeout / 3
	}

	return &Worker{
		repo:              repo,
		handlers:          make(map[string]Handler),
		queues:            options.queues,
		workerID:          uuid.New(),
		sem:               make(chan struct{}, options.maxConcurrentTasks),
		pullInterval:      options.pullInterval,
		lockTimeout:       options.lockTimeout,
		heartbeatInterval: heartbeat,
		logger:            options.logger,
		onDeadLetter:      options.onDeadLetter,
	}, nil
}

// RegisterHandler registers a single task handler
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.handlers[handler.Name()] = handler
	return nil
}

// RegisterHandlers registers multiple task handlers
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	for _, h := range handlers {
		if err := w.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// Start begins processing tasks in the background
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrWorkerStarted
	}

	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)

	go w.run()

	w.logger.Info("worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Any("queues", w.queues),
		slog.Int("max_concurrent", cap(w.sem)))

	return nil
}

// Stop stops claiming new tasks and blocks until in-flight tasks finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerNotStarted
	}

	// Use stopMu to synchronize with the dispatch loop
	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.logger.Info("worker stopping, waiting for active tasks to complete",
		slog.String("worker_id", w.workerID.String()))

	w.wg.Wait()

	w.logger.Info("worker stopped",
		slog.String("worker_id", w.workerID.String()))

	return nil
}

// Run starts the worker and returns a function suitable for errgroup
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

// run is the main processing loop
func (w *Worker) run() {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.dispatch()
		}
	}
}

// dispatch claims tasks until every slot is busy or nothing is eligible.
func (w *Worker) dispatch() {
	for {
		select {
		case w.sem <- struct{}{}:
		default:
			w.logger.Debug("all worker slots busy, skipping tick",
				slog.String("worker_id", w.workerID.String()))
			return
		}

		// Claim under stopMu so Stop never races a WaitGroup.Add
		w.stopMu.Lock()
		if w.stopping.Load() {
			w.stopMu.Unlock()
			<-w.sem
			return
		}
		task, err := w.claim()
		if task != nil {
			w.wg.Add(1)
		}
		w.stopMu.Unlock()

		if task == nil {
			<-w.sem
			if err != nil && w.ctx.Err() == nil {
				w.logger.Error("failed to claim task",
					slog.String("worker_id", w.workerID.String()),
					slog.String("error", err.Error()))
			}
			return
		}

		go func(task *Task) {
			defer w.wg.Done()
			defer func() { <-w.sem }()

			err := w.processTask(task)
			switch {
			case err == nil, errors.Is(err, ErrHandlerNotFound):
			case errors.Is(err, ErrLockLost):
				w.logger.Warn("task lock lost, result discarded",
					slog.String("worker_id", w.workerID.String()),
					slog.String("task_id", task.ID.String()),
					slog.String("task_name", task.TaskName))
			default:
				w.logger.Error("failed to process task",
					slog.String("worker_id", w.workerID.String()),
					slog.String("task_id", task.ID.String()),
					slog.String("error", err.Error()))
			}
		}(task)
	}
}

func (w *Worker) claim() (*Task, error) {
	task, err := w.repo.ClaimTask(w.ctx, w.workerID, w.queues, w.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrNoTaskToClaim) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}

	if task != nil {
		w.logger.Debug("claimed task",
			slog.String("worker_id", w.workerID.String()),
			slog.String("task_id", task.ID.String()),
			slog.String("task_name", task.TaskName),
			slog.String("queue", task.Queue),
			slog.Int("attempt", task.Attempt()))
	}

	return task, nil
}

// processTask executes a task with its handler
func (w *Worker) processTask(task *Task) (retErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("handler panicked",
				slog.String("worker_id", w.workerID.String()),
				slog.String("task_id", task.ID.String()),
				slog.String("task_name", task.TaskName),
				slog.Any("panic", r))
			_ = w.handleTaskFailure(task, retErr, time.Since(start))
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[task.TaskName]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(task)
	}

	// Not tied to the worker lifecycle: Stop lets running tasks finish.
	// The deadline ends before the claim lock does, so a handler never runs
	// past its lock even when heartbeats fail.
	base, abort := context.WithCancelCause(withTask(context.Background(), task))
	defer abort(nil)
	ctx, cancel := context.WithDeadline(base, w.handlerDeadline(task))
	defer cancel()

	beating := make(chan struct{})
	go func() {
		defer close(beating)
		w.heartbeat(ctx, task, abort)
	}()

	err := handler.Handle(ctx, task.Payload)
	cancel()
	<-beating
	duration := time.Since(start)

	if cause := context.Cause(base); errors.Is(cause, ErrLockLost) {
		return cause
	}

	if err != nil {
		return w.handleTaskFailure(task, err, duration)
	}

	return w.handleTaskSuccess(task, duration)
}

// bookkeepingContext survives worker cancellation so results of drained tasks are recorded.
func (w *Worker) bookkeepingContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(w.ctx), bookkeepingTimeout)
}

// handleMissingHandler dead-letters tasks nobody can process; retries cannot help.
func (w *Worker) handleMissingHandler(task *Task) error {
	w.logger.Error("no handler registered for task type",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName))

	cause := fmt.Errorf("%w: %s", ErrHandlerNotFound, task.TaskName)
	if err := w.deadLetter(task, cause); err != nil {
		return err
	}

	return ErrHandlerNotFound
}

// handleTaskFailure records the failure and dead-letters the task when it is
// permanent or out of attempts. Otherwise storage has already rescheduled it.
func (w *Worker) handleTaskFailure(task *Task, execErr error, duration time.Duration) error {
	if IsPermanent(execErr) {
		w.logger.Error("task failed permanently",
			slog.String("worker_id", w.workerID.String()),
			slog.String("task_id", task.ID.String()),
			slog.String("task_name", task.TaskName),
			slog.Int("attempt", task.Attempt()),
			slog.Duration("duration", duration),
			slog.String("error", execErr.Error()))
		return w.deadLetter(task, execErr)
	}

	ctx, cancel := w.bookkeepingContext()
	defer cancel()

	updated, err := w.repo.FailTask(ctx, task.ID, w.workerID, execErr.Error())
	if err != nil {
		return fmt.Errorf("failed to update task %s status to failed: %w", task.ID, err)
	}

	if updated.Status != TaskStatusFailed {
		w.logger.Warn("task failed, retry scheduled",
			slog.String("worker_id", w.workerID.String()),
			slog.String("task_id", task.ID.String()),
			slog.String("task_name", task.TaskName),
			slog.Int("attempt", task.Attempt()),
			slog.Int("max_attempts", int(task.MaxRetries)),
			slog.Time("next_attempt_at", updated.ScheduledAt),
			slog.Duration("duration", duration),
			slog.String("error", execErr.Error()))
		return nil
	}

	w.logger.Error("task failed, attempts exhausted",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.Int("attempt", int(updated.RetryCount)),
		slog.Int("max_attempts", int(task.MaxRetries)),
		slog.Duration("duration", duration),
		slog.String("error", execErr.Error()))

	return w.moveToDLQ(ctx, task, execErr)
}

// deadLetter moves the task to the DLQ without retrying.
func (w *Worker) deadLetter(task *Task, cause error) error {
	ctx, cancel := w.bookkeepingContext()
	defer cancel()

	return w.moveToDLQ(ctx, task, cause)
}

func (w *Worker) moveToDLQ(ctx context.Context, task *Task, cause error) error {
	entry, err := w.repo.MoveToDLQ(ctx, task.ID, w.workerID, cause.Error())
	if err != nil {
		return fmt.Errorf("failed to move task %s to DLQ: %w", task.ID, err)
	}

	w.logger.Warn("task moved to dead letter queue",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.String("queue", task.Queue))

	if w.onDeadLetter != nil {
		w.onDeadLetter(ctx, entry, cause)
	}

	return nil
}

// handleTaskSuccess processes successful task completion
func (w *Worker) handleTaskSuccess(task *Task, duration time.Duration) error {
	ctx, cancel := w.bookkeepingContext()
	defer cancel()

	if err := w.repo.CompleteTask(ctx, task.ID, w.workerID); err != nil {
		return fmt.Errorf("failed to mark task %s as completed: %w", task.ID, err)
	}

	w.logger.Info("task completed successfully",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.String("queue", task.Queue),
		slog.Int("attempt", task.Attempt()),
		slog.Duration("duration", duration))

	return nil
}

// HandlerTimeout is how long a handler may run under a lock of lockTimeout.
// The handler is cancelled a margin of up to five seconds before the lock expires.
func HandlerTimeout(lockTimeout time.Duration) time.Duration {
	return lockTimeout - lockMargin(lockTimeout)
}

func lockMargin(lockTimeout time.Duration) time.Duration {
	return min(lockTimeout/10, maxLockMargin)
}

// handlerDeadline is the claim lock deadline minus the lock margin.
func (w *Worker) handlerDeadline(task *Task) time.Time {
	lockedUntil := time.Now().Add(w.lockTimeout)
	if task.LockedUntil != nil {
		lockedUntil = *task.LockedUntil
	}
	return lockedUntil.Add(-lockMargin(w.lockTimeout))
}

// heartbeat extends the task lock until ctx ends. Losing the lock to
// another worker aborts the handler with ErrLockLost.
func (w *Worker) heartbeat(ctx context.Context, task *Task, abort context.CancelCauseFunc) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := w.repo.ExtendLock(ctx, task.ID, w.workerID, w.lockTimeout)
		switch {
		case err == nil:
		case errors.Is(err, ErrLockLost), errors.Is(err, ErrTaskNotProcessing), errors.Is(err, ErrTaskNotFound):
			abort(fmt.Errorf("%w: %s", ErrLockLost, task.ID))
			return
		case ctx.Err() == nil:
			w.logger.Warn("failed to extend task lock",
				slog.String("worker_id", w.workerID.String()),
				slog.String("task_id", task.ID.String()),
				slog.String("error", err.Error()))
		}
	}
}
