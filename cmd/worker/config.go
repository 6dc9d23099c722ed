package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/solshare/pipeline/internal/analysis"
	"github.com/solshare/pipeline/internal/jobs"
	"github.com/solshare/pipeline/pkg/httpserver"
	"github.com/solshare/pipeline/pkg/mongo"
	"github.com/solshare/pipeline/pkg/opensearch"
	"github.com/solshare/pipeline/pkg/pg"
	"github.com/solshare/pipeline/pkg/queue"
	"github.com/solshare/pipeline/pkg/redis"
)

const (
	backendRedis  = "redis"
	backendMemory = "memory"
)

type Config struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Service string `env:"SERVICE_NAME" envDefault:"solshare-worker"`

	QueueBackend     string `env:"QUEUE_BACKEND" envDefault:"redis"`
	FeedCacheBackend string `env:"FEED_CACHE_BACKEND" envDefault:"redis"`
	FeedCacheSize    int    `env:"FEED_CACHE_SIZE" envDefault:"10000"`
	MaxAttempts      int8   `env:"JOB_MAX_ATTEMPTS" envDefault:"3"`

	// Concurrency overrides QUEUE_MAX_CONCURRENT_TASKS per queue,
	// e.g. "ai-analysis:2,notification:10".
	Concurrency map[string]int `env:"QUEUE_CONCURRENCY"`

	DeadLetterMongo bool `env:"DEADLETTER_MONGO_ENABLED" envDefault:"false"`

	HTTP       httpserver.Config
	Redis      redis.Config
	Postgres   pg.Config
	Queue      queue.Config
	Analysis   analysis.Config
	OpenSearch opensearch.Config
	Mongo      mongo.Config
	Timeouts   jobs.Timeouts
}

// Validate checks settings that depend on each other.
func (c Config) Validate() error {
	var errs []error

	budget := queue.HandlerTimeout(c.Queue.LockTimeout)
	if total := c.Timeouts.Total(); budget < total {
		errs = append(errs, fmt.Errorf(
			"QUEUE_LOCK_TIMEOUT %s leaves handlers %s, less than the %s of JOB_*_TIMEOUT values combined",
			c.Queue.LockTimeout, budget, total))
	}

	for _, name := range slices.Sorted(maps.Keys(c.Concurrency)) {
		if !jobs.QueueName(name).Valid() {
			errs = append(errs, fmt.Errorf("QUEUE_CONCURRENCY: unknown queue %q", name))
		}
		if c.Concurrency[name] <= 0 {
			errs = append(errs, fmt.Errorf("QUEUE_CONCURRENCY: queue %q needs a positive limit", name))
		}
	}

	return errors.Join(errs...)
}

// concurrency returns the worker count for every queue.
func (c Config) concurrency() map[jobs.QueueName]int {
	out := make(map[jobs.QueueName]int, len(jobs.QueueNames()))
	for _, name := range jobs.QueueNames() {
		out[name] = c.Queue.MaxConcurrentTasks
		if n, ok := c.Concurrency[name.String()]; ok && n > 0 {
			out[name] = n
		}
	}
	return out
}
