package jobs

import (
	"log/slog"
	"time"

	"github.com/solshare/pipeline/pkg/queue"
)

// Default per-queue settings.
const (
	DefaultConcurrency     = 5
	DefaultShutdownTimeout = 30 * time.Second
)

// RegistryOption configures a Registry
type RegistryOption func(*registryOptions)

type registryOptions struct {
	logger          *slog.Logger
	maxAttempts     int8
	concurrency     map[QueueName]int
	workerOptions   []queue.WorkerOption
	deadLetters     DeadLetterSink
	shutdownTimeout time.Duration
}

// WithLogger sets the logger for the registry and its workers
func WithLogger(l *slog.Logger) RegistryOption {
	return func(o *registryOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxAttempts sets the default attempt limit for enqueued jobs (1-10).
func WithMaxAttempts(n int8) RegistryOption {
	return func(o *registryOptions) {
		if n >= 1 && n <= 10 {
			o.maxAttempts = n
		}
	}
}

// WithConcurrency sets how many jobs of one queue run at the same time.
func WithConcurrency(name QueueName, n int) RegistryOption {
	return func(o *registryOptions) {
		if n > 0 {
			o.concurrency[name] = n
		}
	}
}

// WithWorkerOptions passes extra options to every queue worker,
// e.g. queue.WithPullInterval or queue.WithLockTimeout.
func WithWorkerOptions(opts ...queue.WorkerOption) RegistryOption {
	return func(o *registryOptions) {
		o.workerOptions = append(o.workerOptions, opts...)
	}
}

// WithDeadLetterSink reports terminally failed jobs to sink.
func WithDeadLetterSink(sink DeadLetterSink) RegistryOption {
	return func(o *registryOptions) {
		o.deadLetters = sink
	}
}

// WithShutdownTimeout bounds the drain performed by Run.
func WithShutdownTimeout(d time.Duration) RegistryOption {
	return func(o *registryOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}
