package jobs

import "errors"

var (
	ErrUnknownQueue     = errors.New("unknown queue")
	ErrPayloadMismatch  = errors.New("payload does not belong to queue")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrRegistryClosed   = errors.New("registry is shut down")
	ErrShutdownTimeout  = errors.New("registry shutdown timed out")
	ErrMissingProcessor = errors.New("missing processor")
)
