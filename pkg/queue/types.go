package queue

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is the default queue name used when no queue is specified
const DefaultQueueName = "default"

// DefaultMaxAttempts is how many times a task runs before it is dead-lettered.
const DefaultMaxAttempts int8 = 3

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Priority represents task priority (0-100, higher is more important)
type Priority int8

// Priority constants
const (
	PriorityMin     Priority = 0
	PriorityLow     Priority = 25
	PriorityMedium  Priority = 50
	PriorityHigh    Priority = 75
	PriorityMax     Priority = 100
	PriorityDefault Priority = PriorityMedium
)

// Valid checks if the priority is within valid range
func (p Priority) Valid() bool {
	return p >= PriorityMin && p <= PriorityMax
}

// Task is the job envelope persisted by storage.
// Only storage mutates Status, RetryCount and the lock fields.
type Task struct {
	ID          uuid.UUID     `json:"id"`
	Queue       string        `json:"queue"`
	TaskName    string        `json:"task_name"`
	Payload     []byte        `json:"payload,omitempty"`
	Status      TaskStatus    `json:"status"`
	Priority    Priority      `json:"priority"`
	RetryCount  int8          `json:"retry_count"`
	MaxRetries  int8          `json:"max_retries"`
	Delay       time.Duration `json:"delay,omitempty"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	LockedUntil *time.Time    `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID    `json:"locked_by,omitempty"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
	Error       *string       `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Attempt returns the 1-based number of the current (or next) execution.
func (t *Task) Attempt() int {
	return int(t.RetryCount) + 1
}

// Exhausted reports whether no further attempts remain.
func (t *Task) Exhausted() bool {
	return t.RetryCount >= t.MaxRetries
}

// HeldBy reports whether workerID holds the lock on the task.
func (t *Task) HeldBy(workerID uuid.UUID) bool {
	return t.LockedBy != nil && *t.LockedBy == workerID
}

// TasksDlq represents a task in the dead letter queue
type TasksDlq struct {
	ID         uuid.UUID `json:"id"`
	TaskID     uuid.UUID `json:"task_id"`
	Queue      string    `json:"queue"`
	TaskName   string    `json:"task_name"`
	Payload    []byte    `json:"payload,omitempty"`
	Priority   Priority  `json:"priority"`
	Error      string    `json:"error"`
	RetryCount int8      `json:"retry_count"`
	FailedAt   time.Time `json:"failed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func newDLQEntry(task *Task, now time.Time) *TasksDlq {
	entry := &TasksDlq{
		ID:         uuid.New(),
		TaskID:     task.ID,
		Queue:      task.Queue,
		TaskName:   task.TaskName,
		Payload:    task.Payload,
		Priority:   task.Priority,
		RetryCount: task.RetryCount,
		FailedAt:   now,
		CreatedAt:  task.CreatedAt,
	}
	if task.Error != nil {
		entry.Error = *task.Error
	}
	return entry
}
