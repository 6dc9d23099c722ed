// Package admin serves the worker's operational HTTP surface: health probes,
// job submission and the dead-letter listing.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/solshare/pipeline/internal/jobs"
	"github.com/solshare/pipeline/pkg/environment"
	"github.com/solshare/pipeline/pkg/httpserver"
	"github.com/solshare/pipeline/pkg/logger"
	"github.com/solshare/pipeline/pkg/queue"
	"github.com/solshare/pipeline/pkg/requestid"
)

const (
	defaultDLQLimit = 50
	maxDLQLimit     = 1000
	maxBodyBytes    = 1 << 20
)

type (
	// Enqueuer accepts jobs posted to the enqueue endpoint.
	Enqueuer interface {
		Enqueue(ctx context.Context, name jobs.QueueName, payload jobs.Payload, opts ...queue.EnqueueOption) (*jobs.JobHandle, error)
	}

	// DLQLister returns the newest dead-lettered tasks first.
	DLQLister interface {
		ListDLQ(ctx context.Context, limit int) ([]*queue.TasksDlq, error)
	}
)

// Options wires the router. Nil collaborators leave their routes unmounted.
type Options struct {
	Environment environment.Environment
	Enqueuer    Enqueuer
	DLQ         DLQLister
	Readiness   []func(context.Context) error
	Logger      *slog.Logger
}

type server struct {
	enqueuer Enqueuer
	dlq      DLQLister
	logger   *slog.Logger
}

// Router builds the admin HTTP handler.
func Router(opts Options) chi.Router {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &server{
		enqueuer: opts.Enqueuer,
		dlq:      opts.DLQ,
		logger:   log.With(logger.Component("admin")),
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware, middleware.Recoverer)
	if opts.Environment != "" {
		r.Use(environment.Middleware(opts.Environment))
	}

	r.Get("/livez", httpserver.HealthCheckHandler(s.logger))
	r.Get("/readyz", httpserver.HealthCheckHandler(s.logger, opts.Readiness...))

	if s.enqueuer != nil {
		r.Post("/jobs/{queue}", s.submitJob)
	}
	if s.dlq != nil {
		r.Get("/dlq", s.listDLQ)
	}

	return r
}

type submitRequest struct {
	Payload     json.RawMessage `json:"payload"`
	Priority    *int            `json:"priority,omitempty"`
	MaxAttempts int             `json:"maxAttempts,omitempty"`
	DelayMillis int64           `json:"delayMs,omitempty"`
}

type submitResponse struct {
	ID          string    `json:"id"`
	Queue       string    `json:"queue"`
	Priority    int       `json:"priority"`
	MaxAttempts int       `json:"maxAttempts"`
	DelayMillis int64     `json:"delayMs"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`
}

func (s *server) submitJob(w http.ResponseWriter, r *http.Request) {
	name := jobs.QueueName(chi.URLParam(r, "queue"))
	if !name.Valid() {
		writeError(w, http.StatusNotFound, "unknown queue")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Payload) == 0 {
		writeError(w, http.StatusBadRequest, "payload is required")
		return
	}
	if req.MaxAttempts < 0 || req.MaxAttempts > int(queue.MaxAttemptsLimit) {
		writeError(w, http.StatusBadRequest, "maxAttempts out of range")
		return
	}

	payload, err := jobs.DecodePayload(name, req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var opts []queue.EnqueueOption
	if req.Priority != nil {
		if *req.Priority < int(queue.PriorityMin) || *req.Priority > int(queue.PriorityMax) {
			writeError(w, http.StatusBadRequest, queue.ErrInvalidPriority.Error())
			return
		}
		opts = append(opts, queue.WithPriority(queue.Priority(*req.Priority)))
	}
	if req.MaxAttempts > 0 {
		opts = append(opts, queue.WithMaxRetries(int8(req.MaxAttempts)))
	}
	if req.DelayMillis > 0 {
		opts = append(opts, queue.WithDelayMillis(req.DelayMillis))
	}

	handle, err := s.enqueuer.Enqueue(r.Context(), name, payload, opts...)
	switch {
	case errors.Is(err, jobs.ErrInvalidPayload), errors.Is(err, queue.ErrInvalidPriority):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, jobs.ErrRegistryClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "enqueue failed", logger.Queue(name.String()), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{
		ID:          handle.ID.String(),
		Queue:       handle.Queue.String(),
		Priority:    int(handle.Priority),
		MaxAttempts: handle.MaxAttempts,
		DelayMillis: handle.Delay.Milliseconds(),
		EnqueuedAt:  handle.EnqueuedAt,
	})
}

type dlqEntry struct {
	ID         string          `json:"id"`
	TaskID     string          `json:"taskId"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Error      string          `json:"error"`
	RetryCount int             `json:"retryCount"`
	FailedAt   time.Time       `json:"failedAt"`
}

func (s *server) listDLQ(w http.ResponseWriter, r *http.Request) {
	limit := defaultDLQLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxDLQLimit)
	}

	entries, err := s.dlq.ListDLQ(r.Context(), limit)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list dead letters failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}

	out := make([]dlqEntry, 0, len(entries))
	for _, e := range entries {
		entry := dlqEntry{
			ID:         e.ID.String(),
			TaskID:     e.TaskID.String(),
			Queue:      e.Queue,
			Error:      e.Error,
			RetryCount: int(e.RetryCount),
			FailedAt:   e.FailedAt,
		}
		if json.Valid(e.Payload) {
			entry.Payload = e.Payload
		}
		out = append(out, entry)
	}

	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
