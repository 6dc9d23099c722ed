package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxAttemptsLimit caps the per-task attempt budget.
const MaxAttemptsLimit int8 = 10

// EnqueuerRepository persists new tasks.
type EnqueuerRepository interface {
	CreateTask(ctx context.Context, task *Task) error
}

// Enqueuer turns payloads into pending tasks.
type Enqueuer struct {
	repo     EnqueuerRepository
	defaults jobSpec
	clock    func() time.Time
}

// jobSpec is what a single Enqueue call resolves its options into.
type jobSpec struct {
	queue       string
	name        string
	priority    Priority
	maxAttempts int8
	delay       time.Duration
	runAt       time.Time
}

// EnqueuerOption configures an Enqueuer.
type EnqueuerOption func(*Enqueuer)

// WithDefaultQueue sets the queue used when Enqueue gets no WithQueue.
func WithDefaultQueue(queue string) EnqueuerOption {
	return func(e *Enqueuer) {
		if queue != "" {
			e.defaults.queue = queue
		}
	}
}

// WithDefaultPriority ignores out-of-range values.
func WithDefaultPriority(priority Priority) EnqueuerOption {
	return func(e *Enqueuer) {
		if priority.Valid() {
			e.defaults.priority = priority
		}
	}
}

// WithDefaultMaxAttempts ignores values outside 1..MaxAttemptsLimit.
func WithDefaultMaxAttempts(n int8) EnqueuerOption {
	return func(e *Enqueuer) {
		if validAttempts(n) {
			e.defaults.maxAttempts = n
		}
	}
}

// WithEnqueuerClock replaces time.Now for creation and scheduling timestamps.
func WithEnqueuerClock(clock func() time.Time) EnqueuerOption {
	return func(e *Enqueuer) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// EnqueueOption adjusts a single Enqueue call.
type EnqueueOption func(*jobSpec)

// WithQueue routes the task to queue. An empty name keeps the default queue.
func WithQueue(queue string) EnqueueOption {
	return func(s *jobSpec) {
		if queue != "" {
			s.queue = queue
		}
	}
}

// WithTaskName labels the task. The queue name is used when unset.
func WithTaskName(name string) EnqueueOption {
	return func(s *jobSpec) {
		if name != "" {
			s.name = name
		}
	}
}

// WithPriority sets the ordering hint. Out-of-range values make Enqueue
// fail with ErrInvalidPriority.
func WithPriority(priority Priority) EnqueueOption {
	return func(s *jobSpec) {
		s.priority = priority
	}
}

// WithMaxRetries sets the attempt budget. Values outside
// 1..MaxAttemptsLimit keep the default.
func WithMaxRetries(n int8) EnqueueOption {
	return func(s *jobSpec) {
		if validAttempts(n) {
			s.maxAttempts = n
		}
	}
}

// WithDelay postpones eligibility. Non-positive values are ignored.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(s *jobSpec) {
		if delay > 0 {
			s.delay = delay
		}
	}
}

// WithDelayMillis is WithDelay for delays given in milliseconds.
func WithDelayMillis(ms int64) EnqueueOption {
	return WithDelay(time.Duration(ms) * time.Millisecond)
}

// WithScheduledAt pins eligibility to t and takes precedence over WithDelay.
func WithScheduledAt(t time.Time) EnqueueOption {
	return func(s *jobSpec) {
		s.runAt = t
	}
}

func validAttempts(n int8) bool {
	return n >= 1 && n <= MaxAttemptsLimit
}

// NewEnqueuer returns an Enqueuer writing to repo. It fails with
// ErrRepositoryNil when repo is nil.
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	e := &Enqueuer{
		repo: repo,
		defaults: jobSpec{
			queue:       DefaultQueueName,
			priority:    PriorityDefault,
			maxAttempts: DefaultMaxAttempts,
		},
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Enqueue stores a new pending task and returns it.
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) (*Task, error) {
	if payload == nil {
		return nil, ErrPayloadNil
	}

	spec := e.defaults
	for _, opt := range opts {
		opt(&spec)
	}
	if !spec.priority.Valid() {
		return nil, ErrInvalidPriority
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload of type %T: %w", payload, err)
	}

	task := spec.task(raw, e.clock())
	if err := e.repo.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task %q in queue %q: %w", task.TaskName, task.Queue, err)
	}
	return task, nil
}

func (s jobSpec) task(payload []byte, now time.Time) *Task {
	name := s.name
	if name == "" {
		name = s.queue
	}

	runAt := s.runAt
	if runAt.IsZero() {
		runAt = now.Add(s.delay)
	}

	return &Task{
		ID:          uuid.New(),
		Queue:       s.queue,
		TaskName:    name,
		Payload:     payload,
		Status:      TaskStatusPending,
		Priority:    s.priority,
		MaxRetries:  s.maxAttempts,
		Delay:       s.delay,
		ScheduledAt: runAt,
		CreatedAt:   now,
	}
}
