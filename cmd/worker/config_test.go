package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solshare/pipeline/internal/jobs"
	"github.com/solshare/pipeline/pkg/config"
)

func TestConfigDefaults(t *testing.T) {
	t.Setenv("PG_CONN_URL", "postgres://localhost:5432/solshare")

	var cfg Config
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, backendRedis, cfg.QueueBackend)
	assert.Equal(t, backendRedis, cfg.FeedCacheBackend)
	assert.Equal(t, int8(3), cfg.MaxAttempts)
	assert.False(t, cfg.DeadLetterMongo)
	assert.Equal(t, ":8081", cfg.HTTP.Addr)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Analysis)
	assert.Equal(t, "solshare-posts", cfg.OpenSearch.Index)
	assert.Equal(t, "postgres://localhost:5432/solshare", cfg.Postgres.ConnectionString)
}

func TestConfigOverrides(t *testing.T) {
	t.Setenv("PG_CONN_URL", "postgres://db/solshare")
	t.Setenv("QUEUE_BACKEND", backendMemory)
	t.Setenv("JOB_MAX_ATTEMPTS", "5")
	t.Setenv("OPENSEARCH_ADDRESSES", "http://a:9200,http://b:9200")
	t.Setenv("JOB_INDEX_TIMEOUT", "3s")

	var cfg Config
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, backendMemory, cfg.QueueBackend)
	assert.Equal(t, int8(5), cfg.MaxAttempts)
	assert.Equal(t, []string{"http://a:9200", "http://b:9200"}, cfg.OpenSearch.Addresses)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Index)
}

func TestConfigRequiresPostgres(t *testing.T) {
	t.Setenv("PG_CONN_URL", "")

	var cfg Config
	assert.ErrorIs(t, config.Load(&cfg), config.ErrParsingConfig)
}

func TestConfigQueueConcurrency(t *testing.T) {
	t.Setenv("PG_CONN_URL", "postgres://db/solshare")
	t.Setenv("QUEUE_MAX_CONCURRENT_TASKS", "4")
	t.Setenv("QUEUE_CONCURRENCY", "ai-analysis:2,notification:10")

	var cfg Config
	require.NoError(t, config.Load(&cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, map[string]int{"ai-analysis": 2, "notification": 10}, cfg.Concurrency)

	got := cfg.concurrency()
	assert.Len(t, got, len(jobs.QueueNames()))
	assert.Equal(t, 2, got[jobs.QueueAIAnalysis])
	assert.Equal(t, 10, got[jobs.QueueNotification])
	assert.Equal(t, 4, got[jobs.QueueEmbedding])
	assert.Equal(t, 4, got[jobs.QueueFeedRefresh])
	assert.Equal(t, 4, got[jobs.QueueSyncChain])
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("PG_CONN_URL", "postgres://db/solshare")

	var defaults Config
	require.NoError(t, config.Load(&defaults))
	require.NoError(t, defaults.Validate())

	t.Run("lock shorter than job timeouts", func(t *testing.T) {
		cfg := defaults
		cfg.Queue.LockTimeout = 30 * time.Second
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "QUEUE_LOCK_TIMEOUT")
	})

	t.Run("lock margin is taken into account", func(t *testing.T) {
		cfg := defaults
		cfg.Queue.LockTimeout = cfg.Timeouts.Total() + time.Second
		assert.Error(t, cfg.Validate())

		cfg.Queue.LockTimeout = cfg.Timeouts.Total() + 5*time.Second
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown queue override", func(t *testing.T) {
		cfg := defaults
		cfg.Concurrency = map[string]int{"ai-analysis": 2, "emails": 3}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown queue "emails"`)
	})

	t.Run("non-positive override", func(t *testing.T) {
		cfg := defaults
		cfg.Concurrency = map[string]int{"embedding": 0}
		assert.Error(t, cfg.Validate())
	})
}
