package queue

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default retention limits shared by the storage implementations.
const (
	DefaultCompletedRetention = 100
	DefaultDLQRetention       = 1000
)

// MemoryStorageOption configures a MemoryStorage
type MemoryStorageOption func(*MemoryStorage)

// WithMemoryBackoff sets the retry delay strategy applied by FailTask.
func WithMemoryBackoff(b BackoffStrategy) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if b != nil {
			ms.backoff = b
		}
	}
}

// WithMemoryLockCheckInterval sets how often expired locks are released.
func WithMemoryLockCheckInterval(d time.Duration) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if d > 0 {
			ms.lockCheckInterval = d
		}
	}
}

// WithMemoryRetention caps how many completed tasks and DLQ entries are kept.
func WithMemoryRetention(completed, dlq int) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if completed >= 0 {
			ms.completedRetention = completed
		}
		if dlq > 0 {
			ms.dlqRetention = dlq
		}
	}
}

// MemoryStorage implements all queue repository interfaces for testing and local development
type MemoryStorage struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*Task
	dlq   []*TasksDlq // newest first

	byStatus map[TaskStatus][]uuid.UUID

	backoff            BackoffStrategy
	completedRetention int
	dlqRetention       int
	now                func() time.Time

	lockCheckInterval time.Duration
	done              chan struct{}
	closeOnce         sync.Once
}

// NewMemoryStorage creates a new in-memory storage implementation
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	ms := &MemoryStorage{
		tasks:              make(map[uuid.UUID]*Task),
		byStatus:           make(map[TaskStatus][]uuid.UUID),
		backoff:            DefaultBackoff(),
		completedRetention: DefaultCompletedRetention,
		dlqRetention:       DefaultDLQRetention,
		now:                time.Now,
		lockCheckInterval:  time.Second,
		done:               make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ms)
	}

	go ms.lockExpirationManager()

	return ms
}

// Close stops the background goroutines. Safe to call more than once.
func (ms *MemoryStorage) Close() error {
	ms.closeOnce.Do(func() {
		close(ms.done)
	})
	return nil
}

// CreateTask implements EnqueuerRepository
func (ms *MemoryStorage) CreateTask(_ context.Context, task *Task) error {
	if task == nil {
		return ErrPayloadNil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %s", ErrTaskExists, task.ID)
	}

	// Clone task to prevent external modifications
	taskCopy := *task
	ms.tasks[task.ID] = &taskCopy
	ms.byStatus[task.Status] = append(ms.byStatus[task.Status], task.ID)

	return nil
}

// ClaimTask implements WorkerRepository
func (ms *MemoryStorage) ClaimTask(_ context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	var bestTask *Task

	// Higher priority wins, earlier ScheduledAt breaks ties
	for _, taskID := range ms.byStatus[TaskStatusPending] {
		task := ms.tasks[taskID]

		if !slices.Contains(queues, task.Queue) || task.ScheduledAt.After(now) {
			continue
		}

		if bestTask == nil ||
			task.Priority > bestTask.Priority ||
			(task.Priority == bestTask.Priority && task.ScheduledAt.Before(bestTask.ScheduledAt)) {
			bestTask = task
		}
	}

	if bestTask == nil {
		return nil, ErrNoTaskToClaim
	}

	lockUntil := now.Add(lockDuration)
	bestTask.Status = TaskStatusProcessing
	bestTask.LockedUntil = &lockUntil
	bestTask.LockedBy = &workerID
	ms.moveStatus(bestTask.ID, TaskStatusPending, TaskStatusProcessing)

	taskCopy := *bestTask
	return &taskCopy, nil
}

// CompleteTask implements WorkerRepository
func (ms *MemoryStorage) CompleteTask(_ context.Context, taskID, workerID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.lockedTask(taskID, workerID)
	if err != nil {
		return err
	}

	now := ms.now()
	task.Status = TaskStatusCompleted
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil
	ms.moveStatus(taskID, TaskStatusProcessing, TaskStatusCompleted)

	// Keep only the most recent completed tasks
	if completed := ms.byStatus[TaskStatusCompleted]; len(completed) > ms.completedRetention {
		excess := len(completed) - ms.completedRetention
		for _, id := range completed[:excess] {
			delete(ms.tasks, id)
		}
		ms.byStatus[TaskStatusCompleted] = slices.Clone(completed[excess:])
	}

	return nil
}

// FailTask implements WorkerRepository
func (ms *MemoryStorage) FailTask(_ context.Context, taskID, workerID uuid.UUID, errorMsg string) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.lockedTask(taskID, workerID)
	if err != nil {
		return nil, err
	}

	task.RetryCount++
	task.Error = &errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil

	if task.Exhausted() {
		task.Status = TaskStatusFailed
		ms.moveStatus(taskID, TaskStatusProcessing, TaskStatusFailed)
	} else {
		task.Status = TaskStatusPending
		task.ScheduledAt = ms.now().Add(ms.backoff.NextInterval(int(task.RetryCount)))
		ms.moveStatus(taskID, TaskStatusProcessing, TaskStatusPending)
	}

	taskCopy := *task
	return &taskCopy, nil
}

// MoveToDLQ implements WorkerRepository. The task must be failed or
// claimed by workerID.
func (ms *MemoryStorage) MoveToDLQ(_ context.Context, taskID, workerID uuid.UUID, errorMsg string) (*TasksDlq, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if task.Status != TaskStatusFailed {
		if _, err := ms.lockedTask(taskID, workerID); err != nil {
			return nil, err
		}
	}

	if errorMsg != "" {
		task.Error = &errorMsg
	}

	entry := newDLQEntry(task, ms.now())
	ms.dlq = slices.Insert(ms.dlq, 0, entry)
	if len(ms.dlq) > ms.dlqRetention {
		ms.dlq = ms.dlq[:ms.dlqRetention]
	}

	ms.removeFromStatusIndex(taskID, task.Status)
	delete(ms.tasks, taskID)

	entryCopy := *entry
	return &entryCopy, nil
}

// ExtendLock implements WorkerRepository
func (ms *MemoryStorage) ExtendLock(_ context.Context, taskID, workerID uuid.UUID, duration time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.lockedTask(taskID, workerID)
	if err != nil {
		return err
	}

	lockUntil := ms.now().Add(duration)
	task.LockedUntil = &lockUntil

	return nil
}

// GetTask returns a copy of a task that is still tracked by the storage.
func (ms *MemoryStorage) GetTask(_ context.Context, taskID uuid.UUID) (*Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	taskCopy := *task
	return &taskCopy, nil
}

// ListDLQ returns up to limit dead-lettered tasks, newest first.
// A non-positive limit returns every entry.
func (ms *MemoryStorage) ListDLQ(_ context.Context, limit int) ([]*TasksDlq, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	n := len(ms.dlq)
	if limit > 0 && limit < n {
		n = limit
	}

	entries := make([]*TasksDlq, 0, n)
	for _, e := range ms.dlq[:n] {
		entryCopy := *e
		entries = append(entries, &entryCopy)
	}

	return entries, nil
}

// lockedTask returns a processing task whose lock is held by workerID.
func (ms *MemoryStorage) lockedTask(taskID, workerID uuid.UUID) (*Task, error) {
	task, exists := ms.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	if task.Status != TaskStatusProcessing {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}
	if !task.HeldBy(workerID) {
		return nil, fmt.Errorf("%w: %s", ErrLockLost, taskID)
	}

	return task, nil
}

func (ms *MemoryStorage) moveStatus(taskID uuid.UUID, from, to TaskStatus) {
	ms.removeFromStatusIndex(taskID, from)
	ms.byStatus[to] = append(ms.byStatus[to], taskID)
}

func (ms *MemoryStorage) removeFromStatusIndex(taskID uuid.UUID, status TaskStatus) {
	ms.byStatus[status] = slices.DeleteFunc(ms.byStatus[status], func(id uuid.UUID) bool {
		return id == taskID
	})
}

// lockExpirationManager recovers tasks whose worker died while holding the lock.
func (ms *MemoryStorage) lockExpirationManager() {
	ticker := time.NewTicker(ms.lockCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.ReleaseExpiredLocks(context.Background())
		case <-ms.done:
			return
		}
	}
}

// ReleaseExpiredLocks returns processing tasks with an expired lock to pending
// without touching their retry count. Returns the number of released tasks.
func (ms *MemoryStorage) ReleaseExpiredLocks(_ context.Context) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	var expired []uuid.UUID
	for _, taskID := range ms.byStatus[TaskStatusProcessing] {
		task := ms.tasks[taskID]
		if task.LockedUntil != nil && task.LockedUntil.Before(now) {
			expired = append(expired, taskID)
		}
	}

	for _, taskID := range expired {
		task := ms.tasks[taskID]
		task.Status = TaskStatusPending
		task.LockedUntil = nil
		task.LockedBy = nil
		ms.moveStatus(taskID, TaskStatusProcessing, TaskStatusPending)
	}

	return len(expired), nil
}
