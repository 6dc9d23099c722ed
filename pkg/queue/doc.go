// Package queue provides a storage-agnostic task queue with priorities,
// delayed execution, bounded retries and a dead letter queue.
//
// The package is organised around two components:
//
//   - Enqueuer - persists one-time tasks, optionally delayed
//   - Worker   - claims due tasks and dispatches them to a registered Handler
//
// Both talk to storage through small repository interfaces
// (EnqueuerRepository and WorkerRepository). Two implementations ship with
// the package: MemoryStorage for tests and local development, and
// RedisStorage for production.
//
// # Delivery
//
// Delivery is at-least-once. A claimed task is locked for the worker's lock
// timeout; if the worker dies the storage reaper returns the task to pending
// once the lock expires. Handlers must therefore be idempotent.
//
// A task lock belongs to the worker that claimed it. While a handler runs the
// worker extends the lock on a heartbeat, and the handler context expires
// shortly before the lock does (see HandlerTimeout). If the lock is reclaimed
// by another worker, storage rejects CompleteTask, FailTask and ExtendLock
// from the old owner with ErrLockLost, the handler context is cancelled with
// that cause and its result is discarded.
//
// A failing handler causes FailTask to increment RetryCount and reschedule
// the task with the configured BackoffStrategy (exponential by default). When
// MaxRetries attempts are used up, or the handler returns an error wrapped
// with Permanent, the task is moved to the dead letter queue and the optional
// DeadLetterHandler is invoked.
//
// # Usage
//
//	storage := queue.NewMemoryStorage()
//	defer storage.Close()
//
//	enqueuer, _ := queue.NewEnqueuer(storage)
//	_, _ = enqueuer.Enqueue(ctx, Refresh{Wallet: "w1"},
//		queue.WithQueue("feed-refresh"),
//		queue.WithDelay(time.Second),
//	)
//
//	worker, _ := queue.NewWorker(storage,
//		queue.WithQueues("feed-refresh"),
//		queue.WithMaxConcurrentTasks(5),
//	)
//	_ = worker.RegisterHandler(queue.NewTaskHandler("feed-refresh",
//		func(ctx context.Context, r Refresh) error { return refresh(ctx, r) },
//	))
//
//	g.Go(worker.Run(ctx))
//
// Stop (or cancelling the Run context) stops claiming and waits for
// in-flight handlers; their results are still recorded in storage.
//
// # Errors
//
// Sentinel errors such as ErrNoTaskToClaim, ErrTaskNotFound,
// ErrTaskNotProcessing and ErrLockLost are wrapped with fmt.Errorf and can be matched with
// errors.Is.
package queue
