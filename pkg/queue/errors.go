package queue

import "errors"

// Common errors
var (
	// ErrRepositoryNil is returned when a nil repository is provided
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrInvalidPriority is returned when priority is outside valid range
	ErrInvalidPriority = errors.New("priority must be between 0 and 100")

	// ErrHandlerNotFound is returned when no handler is registered for a task
	ErrHandlerNotFound = errors.New("no handler registered for task type")

	// ErrNoHandlers is returned when worker has no handlers registered
	ErrNoHandlers = errors.New("no task handlers registered")

	// ErrNoTaskToClaim is returned by storage when nothing is eligible right now
	ErrNoTaskToClaim = errors.New("no task available to claim")

	// ErrTaskNotFound is returned when a task id is unknown to storage
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotProcessing is returned when a status transition requires a claimed task
	ErrTaskNotProcessing = errors.New("task is not in processing state")

	// ErrLockLost is returned when another worker holds the lock on a task
	ErrLockLost = errors.New("task lock is held by another worker")

	// ErrTaskExists is returned when a task with the same id is already stored
	ErrTaskExists = errors.New("task already exists")

	// ErrWorkerStarted is returned when Start is called twice
	ErrWorkerStarted = errors.New("worker already started")

	// ErrWorkerNotStarted is returned when Stop is called before Start
	ErrWorkerNotStarted = errors.New("worker not started")

	// ErrPermanent marks handler errors that must not be retried
	ErrPermanent = errors.New("permanent task failure")
)
