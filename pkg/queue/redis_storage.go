package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// claimScript picks the best eligible task across the pending sets passed as
// KEYS[3..n]: highest priority first, earliest scheduled time on ties.
// KEYS[1] priority hash, KEYS[2] processing set.
// ARGV[1] now (ms), ARGV[2] scan limit per queue, ARGV[3] lock deadline (ms).
var claimScript = redis.NewScript(`
local best, bestKey, bestPriority, bestScore
for k = 3, #KEYS do
	local entries = redis.call('ZRANGEBYSCORE', KEYS[k], '-inf', ARGV[1], 'WITHSCORES', 'LIMIT', 0, tonumber(ARGV[2]))
	for i = 1, #entries, 2 do
		local id = entries[i]
		local score = tonumber(entries[i + 1])
		local priority = tonumber(redis.call('HGET', KEYS[1], id) or '0')
		if best == nil or priority > bestPriority or (priority == bestPriority and score < bestScore) then
			best, bestKey, bestPriority, bestScore = id, KEYS[k], priority, score
		end
	end
end
if best == nil then
	return false
end
redis.call('ZREM', bestKey, best)
redis.call('ZADD', KEYS[2], ARGV[3], best)
return best
`)

// releaseScript moves a task from the processing set back to its pending set
// if its lock deadline has passed. KEYS[1] processing, KEYS[2] pending.
// ARGV[1] task id, ARGV[2] now (ms), ARGV[3] pending score (ms).
var releaseScript = redis.NewScript(`
local deadline = redis.call('ZSCORE', KEYS[1], ARGV[1])
if not deadline or tonumber(deadline) > tonumber(ARGV[2]) then
	return 0
end
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
return 1
`)

// maxWatchRetries bounds optimistic transaction retries on concurrent writes.
const maxWatchRetries = 5

// RedisStorageOption configures a RedisStorage
type RedisStorageOption func(*RedisStorage)

// WithRedisKeyPrefix namespaces every key written by the storage.
func WithRedisKeyPrefix(prefix string) RedisStorageOption {
	return func(s *RedisStorage) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRedisBackoff sets the retry delay strategy applied by FailTask.
func WithRedisBackoff(b BackoffStrategy) RedisStorageOption {
	return func(s *RedisStorage) {
		if b != nil {
			s.backoff = b
		}
	}
}

// WithRedisLockCheckInterval sets how often expired locks are released.
func WithRedisLockCheckInterval(d time.Duration) RedisStorageOption {
	return func(s *RedisStorage) {
		if d > 0 {
			s.lockCheckInterval = d
		}
	}
}

// WithRedisCompletedTTL sets how long completed tasks stay readable.
func WithRedisCompletedTTL(d time.Duration) RedisStorageOption {
	return func(s *RedisStorage) {
		if d > 0 {
			s.completedTTL = d
		}
	}
}

// WithRedisDLQRetention caps the dead letter list length.
func WithRedisDLQRetention(n int) RedisStorageOption {
	return func(s *RedisStorage) {
		if n > 0 {
			s.dlqRetention = n
		}
	}
}

// WithRedisClaimScanLimit sets how many due tasks per queue are compared by priority on claim.
func WithRedisClaimScanLimit(n int) RedisStorageOption {
	return func(s *RedisStorage) {
		if n > 0 {
			s.claimScanLimit = n
		}
	}
}

// WithRedisLogger sets the logger used by the lock reaper.
func WithRedisLogger(logger *slog.Logger) RedisStorageOption {
	return func(s *RedisStorage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// RedisStorage implements the queue repository interfaces on top of Redis.
//
// Layout under the key prefix:
//
//	{p}:task:{id}        task JSON
//	{p}:pending:{queue}  ZSET id -> scheduled time (ms)
//	{p}:priority         HASH id -> priority
//	{p}:processing       ZSET id -> lock deadline (ms)
//	{p}:dlq              LIST of dead-lettered entries, newest first
type RedisStorage struct {
	client redis.UniversalClient
	logger *slog.Logger

	prefix            string
	backoff           BackoffStrategy
	completedTTL      time.Duration
	dlqRetention      int
	claimScanLimit    int
	lockCheckInterval time.Duration
	now               func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewRedisStorage creates a Redis backed storage and starts its lock reaper.
// The client is owned by the caller; Close does not close it.
func NewRedisStorage(client redis.UniversalClient, opts ...RedisStorageOption) (*RedisStorage, error) {
	if client == nil {
		return nil, ErrRepositoryNil
	}

	s := &RedisStorage{
		client:            client,
		logger:            slog.Default(),
		prefix:            "queue",
		backoff:           DefaultBackoff(),
		completedTTL:      time.Hour,
		dlqRetention:      DefaultDLQRetention,
		claimScanLimit:    100,
		lockCheckInterval: 5 * time.Second,
		now:               time.Now,
		done:              make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.lockExpirationManager()

	return s, nil
}

// Close stops the lock reaper. Safe to call more than once.
func (s *RedisStorage) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}

func (s *RedisStorage) taskKey(id uuid.UUID) string { return s.prefix + ":task:" + id.String() }
func (s *RedisStorage) pendingKey(queue string) string { return s.prefix + ":pending:" + queue }
func (s *RedisStorage) priorityKey() string { return s.prefix + ":priority" }
func (s *RedisStorage) processingKey() string { return s.prefix + ":processing" }
func (s *RedisStorage) dlqKey() string { return s.prefix + ":dlq" }

// CreateTask implements EnqueuerRepository
func (s *RedisStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrPayloadNil
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}

	ok, err := s.client.SetNX(ctx, s.taskKey(task.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to store task %s: %w", task.ID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskExists, task.ID)
	}

	id := task.ID.String()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, s.pendingKey(task.Queue), redis.Z{Score: millis(task.ScheduledAt), Member: id})
		pipe.HSet(ctx, s.priorityKey(), id, int(task.Priority))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to index task %s: %w", task.ID, err)
	}

	return nil
}

// ClaimTask implements WorkerRepository
func (s *RedisStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	if len(queues) == 0 {
		return nil, ErrNoTaskToClaim
	}

	now := s.now()
	lockUntil := now.Add(lockDuration)

	keys := make([]string, 0, len(queues)+2)
	keys = append(keys, s.priorityKey(), s.processingKey())
	for _, q := range queues {
		keys = append(keys, s.pendingKey(q))
	}

	id, err := claimScript.Run(ctx, s.client, keys,
		millis(now), s.claimScanLimit, millis(lockUntil)).Text()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoTaskToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("failed to run claim script: %w", err)
	}

	taskID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid task id %q in queue: %w", id, err)
	}

	var claimed *Task
	err = s.watch(ctx, func(tx *redis.Tx) error {
		task, err := s.load(ctx, tx, taskID)
		if err != nil {
			return err
		}

		task.Status = TaskStatusProcessing
		task.LockedUntil = &lockUntil
		task.LockedBy = &workerID

		if err := s.save(ctx, tx, task, 0); err != nil {
			return err
		}
		claimed = task
		return nil
	}, s.taskKey(taskID))
	if errors.Is(err, ErrTaskNotFound) {
		// Index pointed at a deleted task; drop it and report nothing to claim
		s.client.ZRem(ctx, s.processingKey(), id)
		return nil, ErrNoTaskToClaim
	}
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

// CompleteTask implements WorkerRepository
func (s *RedisStorage) CompleteTask(ctx context.Context, taskID, workerID uuid.UUID) error {
	return s.watch(ctx, func(tx *redis.Tx) error {
		task, err := s.loadLocked(ctx, tx, taskID, workerID)
		if err != nil {
			return err
		}

		now := s.now()
		task.Status = TaskStatusCompleted
		task.ProcessedAt = &now
		task.LockedUntil = nil
		task.LockedBy = nil

		data, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.taskKey(taskID), data, s.completedTTL)
			pipe.ZRem(ctx, s.processingKey(), taskID.String())
			pipe.HDel(ctx, s.priorityKey(), taskID.String())
			return nil
		})
		return err
	}, s.taskKey(taskID))
}

// FailTask implements WorkerRepository
func (s *RedisStorage) FailTask(ctx context.Context, taskID, workerID uuid.UUID, errorMsg string) (*Task, error) {
	var updated *Task
	err := s.watch(ctx, func(tx *redis.Tx) error {
		task, err := s.loadLocked(ctx, tx, taskID, workerID)
		if err != nil {
			return err
		}

		task.RetryCount++
		task.Error = &errorMsg
		task.LockedUntil = nil
		task.LockedBy = nil

		if task.Exhausted() {
			task.Status = TaskStatusFailed
		} else {
			task.Status = TaskStatusPending
			task.ScheduledAt = s.now().Add(s.backoff.NextInterval(int(task.RetryCount)))
		}

		data, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
		}

		id := taskID.String()
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.taskKey(taskID), data, 0)
			pipe.ZRem(ctx, s.processingKey(), id)
			if task.Status == TaskStatusPending {
				pipe.ZAdd(ctx, s.pendingKey(task.Queue), redis.Z{Score: millis(task.ScheduledAt), Member: id})
			}
			return nil
		})
		if err != nil {
			return err
		}

		updated = task
		return nil
	}, s.taskKey(taskID))
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// MoveToDLQ implements WorkerRepository. The task must be failed or
// claimed by workerID.
func (s *RedisStorage) MoveToDLQ(ctx context.Context, taskID, workerID uuid.UUID, errorMsg string) (*TasksDlq, error) {
	var entry *TasksDlq
	err := s.watch(ctx, func(tx *redis.Tx) error {
		task, err := s.load(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if task.Status != TaskStatusFailed {
			if task, err = s.loadLocked(ctx, tx, taskID, workerID); err != nil {
				return err
			}
		}

		if errorMsg != "" {
			task.Error = &errorMsg
		}

		entry = newDLQEntry(task, s.now())
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal dlq entry for task %s: %w", task.ID, err)
		}

		id := taskID.String()
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LPush(ctx, s.dlqKey(), data)
			pipe.LTrim(ctx, s.dlqKey(), 0, int64(s.dlqRetention-1))
			pipe.Del(ctx, s.taskKey(taskID))
			pipe.ZRem(ctx, s.pendingKey(task.Queue), id)
			pipe.ZRem(ctx, s.processingKey(), id)
			pipe.HDel(ctx, s.priorityKey(), id)
			return nil
		})
		return err
	}, s.taskKey(taskID))
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// ExtendLock implements WorkerRepository
func (s *RedisStorage) ExtendLock(ctx context.Context, taskID, workerID uuid.UUID, duration time.Duration) error {
	return s.watch(ctx, func(tx *redis.Tx) error {
		task, err := s.loadLocked(ctx, tx, taskID, workerID)
		if err != nil {
			return err
		}

		lockUntil := s.now().Add(duration)
		task.LockedUntil = &lockUntil

		data, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.taskKey(taskID), data, 0)
			pipe.ZAddXX(ctx, s.processingKey(), redis.Z{Score: millis(lockUntil), Member: taskID.String()})
			return nil
		})
		return err
	}, s.taskKey(taskID))
}

// GetTask returns a task that is still stored, including completed tasks
// within their retention window.
func (s *RedisStorage) GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	return s.load(ctx, s.client, taskID)
}

// ListDLQ returns up to limit dead-lettered tasks, newest first.
// A non-positive limit returns every entry.
func (s *RedisStorage) ListDLQ(ctx context.Context, limit int) ([]*TasksDlq, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	raw, err := s.client.LRange(ctx, s.dlqKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letter queue: %w", err)
	}

	entries := make([]*TasksDlq, 0, len(raw))
	for _, item := range raw {
		var entry TasksDlq
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode dlq entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, nil
}

// ReleaseExpiredLocks returns processing tasks with an expired lock to their
// pending set without touching the retry count. Returns the number released.
func (s *RedisStorage) ReleaseExpiredLocks(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.client.ZRangeByScore(ctx, s.processingKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan expired locks: %w", err)
	}

	released := 0
	var errs []error
	for _, id := range ids {
		taskID, err := uuid.Parse(id)
		if err != nil {
			s.client.ZRem(ctx, s.processingKey(), id)
			continue
		}

		ok, err := s.releaseLock(ctx, taskID, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			released++
		}
	}

	return released, errors.Join(errs...)
}

func (s *RedisStorage) releaseLock(ctx context.Context, taskID uuid.UUID, now time.Time) (bool, error) {
	released := false
	err := s.watch(ctx, func(tx *redis.Tx) error {
		task, err := s.load(ctx, tx, taskID)
		if errors.Is(err, ErrTaskNotFound) {
			return tx.ZRem(ctx, s.processingKey(), taskID.String()).Err()
		}
		if err != nil {
			return err
		}

		moved, err := releaseScript.Run(ctx, tx,
			[]string{s.processingKey(), s.pendingKey(task.Queue)},
			taskID.String(), millis(now), millis(task.ScheduledAt)).Int()
		if err != nil {
			return fmt.Errorf("failed to release lock of task %s: %w", taskID, err)
		}
		if moved == 0 {
			return nil
		}

		task.Status = TaskStatusPending
		task.LockedUntil = nil
		task.LockedBy = nil
		if err := s.save(ctx, tx, task, 0); err != nil {
			return err
		}

		released = true
		return nil
	}, s.taskKey(taskID))

	return released, err
}

func (s *RedisStorage) lockExpirationManager() {
	ticker := time.NewTicker(s.lockCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.ReleaseExpiredLocks(context.Background())
			if err != nil {
				s.logger.Error("failed to release expired task locks",
					slog.String("error", err.Error()))
			}
			if n > 0 {
				s.logger.Warn("released expired task locks",
					slog.Int("count", n))
			}
		case <-s.done:
			return
		}
	}
}

// watch runs fn in an optimistic transaction, retrying when a watched key changes.
func (s *RedisStorage) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	var err error
	for range maxWatchRetries {
		err = s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("task transaction kept conflicting: %w", err)
}

func (s *RedisStorage) load(ctx context.Context, c redis.Cmdable, taskID uuid.UUID) (*Task, error) {
	data, err := c.Get(ctx, s.taskKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}

	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to decode task %s: %w", taskID, err)
	}

	return &task, nil
}

// loadLocked loads a task and checks that it is claimed and that workerID
// holds its lock. It runs inside watch, so the check and the write that
// follows see the same task version.
func (s *RedisStorage) loadLocked(ctx context.Context, c redis.Cmdable, taskID, workerID uuid.UUID) (*Task, error) {
	task, err := s.load(ctx, c, taskID)
	if err != nil {
		return nil, err
	}

	if err := c.ZScore(ctx, s.processingKey(), taskID.String()).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
		}
		return nil, fmt.Errorf("failed to check task %s lock: %w", taskID, err)
	}
	if !task.HeldBy(workerID) {
		return nil, fmt.Errorf("%w: %s", ErrLockLost, taskID)
	}

	return task, nil
}

func (s *RedisStorage) save(ctx context.Context, c redis.Cmdable, task *Task, ttl time.Duration) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}

	if err := c.Set(ctx, s.taskKey(task.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store task %s: %w", task.ID, err)
	}

	return nil
}

func millis(t time.Time) float64 {
	return float64(t.UnixMilli())
}
