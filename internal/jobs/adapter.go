package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solshare/pipeline/pkg/logger"
	"github.com/solshare/pipeline/pkg/queue"
)

type enqueueFunc func(ctx context.Context, payload Payload) (*JobHandle, error)

// newJobHandler adapts a processor to the queue worker. It maps results onto
// queue outcomes: transient errors are returned for retry, declared follow-ups
// are enqueued after the processor returns.
func newJobHandler[T Payload](name QueueName, processor Processor[T], enqueue enqueueFunc, log *slog.Logger) queue.Handler {
	h := &jobHandler[T]{
		name:      name,
		processor: processor,
		enqueue:   enqueue,
		logger:    log,
	}
	return queue.NewTaskHandler(name.String(), h.handle)
}

type jobHandler[T Payload] struct {
	name      QueueName
	processor Processor[T]
	enqueue   enqueueFunc
	logger    *slog.Logger
}

func (h *jobHandler[T]) handle(ctx context.Context, payload T) error {
	log := h.logger.With(logger.Queue(h.name.String()))
	if task, ok := queue.TaskFromContext(ctx); ok {
		log = log.With(logger.JobID(task.ID.String()), logger.Attempt(task.Attempt()))
	}

	res := h.processor.Process(ctx, payload)

	switch res.Outcome {
	case OutcomeApplied:
		for _, next := range res.FollowUps {
			handle, err := h.enqueue(ctx, next)
			if err != nil {
				return fmt.Errorf("enqueue %s follow-up: %w", next.queueName(), err)
			}
			log.InfoContext(ctx, "follow-up job enqueued",
				slog.String("follow_up_queue", handle.Queue.String()),
				slog.String("follow_up_id", handle.ID.String()))
		}
		log.InfoContext(ctx, "job applied")
		return nil

	case OutcomeNoOp:
		log.InfoContext(ctx, "job skipped", slog.String("reason", res.Reason))
		return nil

	case OutcomeTransient:
		err := res.Err
		if err == nil {
			err = fmt.Errorf("%s processor reported a transient failure", h.name)
		}
		log.WarnContext(ctx, "job failed", logger.Error(err))
		return err

	default:
		return queue.Permanent(fmt.Errorf("%s processor returned unclassified outcome %d", h.name, res.Outcome))
	}
}
