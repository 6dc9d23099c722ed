package queue

import (
	"errors"
	"fmt"
)

// Permanent wraps err so the worker dead-letters the task without retrying it.
// Use it for failures that cannot succeed on another attempt, such as an
// undecodable payload.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsPermanent reports whether err was produced by Permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
