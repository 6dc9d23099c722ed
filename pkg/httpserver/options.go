package httpserver

import (
	"log/slog"
	"time"
)

// Option configures the HTTP server.
type Option func(*config)

// Timeouts groups the http.Server deadlines. Zero fields keep the defaults.
type Timeouts struct {
	Read     time.Duration
	Write    time.Duration
	Idle     time.Duration
	Shutdown time.Duration
}

// WithAddr sets the listen address. It panics on an empty address.
func WithAddr(addr string) Option {
	if addr == "" {
		panic("httpserver: empty listen address")
	}
	return func(c *config) { c.addr = addr }
}

// WithTimeouts overrides the positive fields of t.
func WithTimeouts(t Timeouts) Option {
	return func(c *config) {
		set := func(dst *time.Duration, v time.Duration) {
			if v > 0 {
				*dst = v
			}
		}
		set(&c.readTimeout, t.Read)
		set(&c.writeTimeout, t.Write)
		set(&c.idleTimeout, t.Idle)
		set(&c.shutdownTimeout, t.Shutdown)
	}
}

// WithShutdownTimeout bounds the graceful shutdown after the run context ends.
func WithShutdownTimeout(d time.Duration) Option {
	return WithTimeouts(Timeouts{Shutdown: d})
}

// WithLogger sets the logger for lifecycle messages. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
