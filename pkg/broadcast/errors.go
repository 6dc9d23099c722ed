package broadcast

import "errors"

var (
	ErrClosed     = errors.New("broadcast: broadcaster is closed")
	ErrNoChannels = errors.New("broadcast: at least one channel is required")
)
