package jobs

import (
	"context"
	"time"
)

// Timeouts bound every collaborator call. An expired call is a transient failure.
type Timeouts struct {
	Analysis  time.Duration `env:"JOB_ANALYSIS_TIMEOUT" envDefault:"30s"`
	Store     time.Duration `env:"JOB_STORE_TIMEOUT" envDefault:"5s"`
	Cache     time.Duration `env:"JOB_CACHE_TIMEOUT" envDefault:"2s"`
	Broadcast time.Duration `env:"JOB_BROADCAST_TIMEOUT" envDefault:"2s"`
	Index     time.Duration `env:"JOB_INDEX_TIMEOUT" envDefault:"10s"`
}

// DefaultTimeouts returns the timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Analysis:  30 * time.Second,
		Store:     5 * time.Second,
		Cache:     2 * time.Second,
		Broadcast: 2 * time.Second,
		Index:     10 * time.Second,
	}
}

// Total is the sum of all collaborator timeouts, the longest a single job
// can spend waiting on collaborators.
func (t Timeouts) Total() time.Duration {
	t = t.withDefaults()
	return t.Analysis + t.Store + t.Cache + t.Broadcast + t.Index
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Analysis <= 0 {
		t.Analysis = d.Analysis
	}
	if t.Store <= 0 {
		t.Store = d.Store
	}
	if t.Cache <= 0 {
		t.Cache = d.Cache
	}
	if t.Broadcast <= 0 {
		t.Broadcast = d.Broadcast
	}
	if t.Index <= 0 {
		t.Index = d.Index
	}
	return t
}

// call runs fn with a deadline of d.
func call(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

// fetch runs fn with a deadline of d and returns its value.
func fetch[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}
