package jobs

import (
	"time"

	"github.com/google/uuid"

	"github.com/solshare/pipeline/pkg/queue"
)

// JobHandle is the producer's view of an enqueued job.
type JobHandle struct {
	ID          uuid.UUID
	Queue       QueueName
	Priority    queue.Priority
	MaxAttempts int
	Delay       time.Duration
	EnqueuedAt  time.Time
}

func newJobHandle(task *queue.Task) *JobHandle {
	return &JobHandle{
		ID:          task.ID,
		Queue:       QueueName(task.Queue),
		Priority:    task.Priority,
		MaxAttempts: int(task.MaxRetries),
		Delay:       task.Delay,
		EnqueuedAt:  task.CreatedAt,
	}
}
