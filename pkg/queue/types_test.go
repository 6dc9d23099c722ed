package queue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solshare/pipeline/pkg/queue"
)

func TestPriority_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		priority queue.Priority
		valid    bool
	}{
		{"min priority", queue.PriorityMin, true},
		{"medium priority", queue.PriorityMedium, true},
		{"max priority", queue.PriorityMax, true},
		{"custom valid priority", queue.Priority(37), true},
		{"below min", queue.Priority(-1), false},
		{"above max", queue.Priority(101), false},
		{"int8 max", queue.Priority(127), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.valid, tt.priority.Valid())
		})
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	t.Parallel()

	assert.False(t, queue.TaskStatusPending.Terminal())
	assert.False(t, queue.TaskStatusProcessing.Terminal())
	assert.True(t, queue.TaskStatusCompleted.Terminal())
	assert.True(t, queue.TaskStatusFailed.Terminal())
}

func TestTask_Attempts(t *testing.T) {
	t.Parallel()

	task := &queue.Task{MaxRetries: 3}
	assert.Equal(t, 1, task.Attempt())
	assert.False(t, task.Exhausted())

	task.RetryCount = 2
	assert.Equal(t, 3, task.Attempt())
	assert.False(t, task.Exhausted())

	task.RetryCount = 3
	assert.True(t, task.Exhausted())
}
