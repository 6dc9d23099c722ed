package queue

import "time"

// Config holds the configuration for the task queue
type Config struct {
	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"100ms"`
	LockTimeout        time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"2m"`
	LockCheckInterval  time.Duration `env:"QUEUE_LOCK_CHECK_INTERVAL" envDefault:"5s"`
	ShutdownTimeout    time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"5"`
	KeyPrefix          string        `env:"QUEUE_KEY_PREFIX" envDefault:"solshare:queue"`
	CompletedTTL       time.Duration `env:"QUEUE_COMPLETED_TTL" envDefault:"1h"`
	DLQRetention       int           `env:"QUEUE_DLQ_RETENTION" envDefault:"1000"`

	// Retry backoff
	BackoffInitial    time.Duration `env:"QUEUE_BACKOFF_INITIAL" envDefault:"1s"`
	BackoffMax        time.Duration `env:"QUEUE_BACKOFF_MAX" envDefault:"5m"`
	BackoffMultiplier float64       `env:"QUEUE_BACKOFF_MULTIPLIER" envDefault:"2"`
	BackoffJitter     float64       `env:"QUEUE_BACKOFF_JITTER" envDefault:"0.1"`
}

// Backoff builds the retry strategy described by the config.
func (c Config) Backoff() BackoffStrategy {
	return ExponentialBackoff{
		InitialInterval: c.BackoffInitial,
		MaxInterval:     c.BackoffMax,
		Multiplier:      c.BackoffMultiplier,
		JitterFactor:    c.BackoffJitter,
	}
}

// RedisOptions maps the config onto RedisStorage options.
func (c Config) RedisOptions() []RedisStorageOption {
	return []RedisStorageOption{
		WithRedisKeyPrefix(c.KeyPrefix),
		WithRedisBackoff(c.Backoff()),
		WithRedisLockCheckInterval(c.LockCheckInterval),
		WithRedisCompletedTTL(c.CompletedTTL),
		WithRedisDLQRetention(c.DLQRetention),
	}
}

// MemoryOptions maps the config onto MemoryStorage options.
func (c Config) MemoryOptions() []MemoryStorageOption {
	return []MemoryStorageOption{
		WithMemoryBackoff(c.Backoff()),
		WithMemoryLockCheckInterval(c.LockCheckInterval),
		WithMemoryRetention(DefaultCompletedRetention, c.DLQRetention),
	}
}
