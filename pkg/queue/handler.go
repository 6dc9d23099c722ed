package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

type (
	// Handler executes the payload of every task whose TaskName equals Name().
	Handler interface {
		Name() string
		Handle(ctx context.Context, payload json.RawMessage) error
	}

	TaskHandlerFunc[T any] func(ctx context.Context, payload T) error
)

// NewTaskHandler decodes the JSON payload into T before calling handler.
// Decoding failures are permanent: a malformed payload never succeeds on retry.
func NewTaskHandler[T any](name string, handler TaskHandlerFunc[T]) Handler {
	return &typedTaskHandler[T]{
		name:    name,
		handler: handler,
	}
}

type typedTaskHandler[T any] struct {
	name    string
	handler TaskHandlerFunc[T]
}

func (h *typedTaskHandler[T]) Name() string {
	return h.name
}

func (h *typedTaskHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return Permanent(fmt.Errorf("decode %s payload: %w", h.name, err))
	}
	return h.handler(ctx, t)
}

type taskContextKey struct{}

// TaskFromContext returns the envelope of the task being handled.
// Handlers receive only the payload; this exposes the id and attempt for logging.
func TaskFromContext(ctx context.Context) (*Task, bool) {
	task, ok := ctx.Value(taskContextKey{}).(*Task)
	return task, ok && task != nil
}

func withTask(ctx context.Context, task *Task) context.Context {
	return context.WithValue(ctx, taskContextKey{}, task)
}
