package admin_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solshare/pipeline/internal/admin"
	"github.com/solshare/pipeline/internal/jobs"
	"github.com/solshare/pipeline/pkg/queue"
)

type recordingEnqueuer struct {
	name    jobs.QueueName
	payload jobs.Payload
	opts    []queue.EnqueueOption
	err     error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, name jobs.QueueName, payload jobs.Payload, opts ...queue.EnqueueOption) (*jobs.JobHandle, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.name, e.payload, e.opts = name, payload, opts
	return &jobs.JobHandle{
		ID:          uuid.MustParse("33333333-3333-3333-3333-333333333333"),
		Queue:       name,
		Priority:    queue.PriorityDefault,
		MaxAttempts: 3,
		Delay:       1500 * time.Millisecond,
		EnqueuedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

type staticDLQ struct {
	entries []*queue.TasksDlq
	limit   int
	err     error
}

func (d *staticDLQ) ListDLQ(_ context.Context, limit int) ([]*queue.TasksDlq, error) {
	d.limit = limit
	return d.entries, d.err
}

func newRouter(enq admin.Enqueuer, dlq admin.DLQLister, ready ...func(context.Context) error) http.Handler {
	return admin.Router(admin.Options{
		Environment: "development",
		Enqueuer:    enq,
		DLQ:         dlq,
		Readiness:   ready,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestProbes(t *testing.T) {
	t.Parallel()

	h := newRouter(nil, nil, func(context.Context) error { return errors.New("pg down") })

	live := do(h, http.MethodGet, "/livez", "")
	assert.Equal(t, http.StatusOK, live.Code)
	assert.Equal(t, "ALIVE", live.Body.String())
	assert.NotEmpty(t, live.Header().Get("X-Request-ID"))

	ready := do(h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, ready.Code)
}

func TestSubmitJob(t *testing.T) {
	t.Parallel()

	enq := &recordingEnqueuer{}
	h := newRouter(enq, nil)

	rec := do(h, http.MethodPost, "/jobs/feed-refresh",
		`{"payload":{"wallet":"W","reason":"new_follow"},"priority":75,"maxAttempts":5,"delayMs":1500}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	assert.Equal(t, jobs.QueueFeedRefresh, enq.name)
	assert.Equal(t, jobs.FeedRefreshPayload{Wallet: "W", Reason: jobs.FeedRefreshNewFollow}, enq.payload)
	assert.Len(t, enq.opts, 3)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "33333333-3333-3333-3333-333333333333", resp["id"])
	assert.Equal(t, "feed-refresh", resp["queue"])
	assert.InDelta(t, 1500, resp["delayMs"], 0)
}

func TestSubmitJob_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"unknown queue", "/jobs/video", `{"payload":{}}`, http.StatusNotFound},
		{"bad json", "/jobs/feed-refresh", `{`, http.StatusBadRequest},
		{"missing payload", "/jobs/feed-refresh", `{}`, http.StatusBadRequest},
		{"payload shape", "/jobs/embedding", `{"payload":{"embedding":"x"}}`, http.StatusBadRequest},
		{"priority range", "/jobs/feed-refresh", `{"payload":{"wallet":"W","reason":"scheduled"},"priority":101}`, http.StatusBadRequest},
		{"attempts range", "/jobs/feed-refresh", `{"payload":{"wallet":"W","reason":"scheduled"},"maxAttempts":500}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			enq := &recordingEnqueuer{}
			rec := do(newRouter(enq, nil), http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Nil(t, enq.payload)
		})
	}
}

func TestSubmitJob_EnqueueErrors(t *testing.T) {
	t.Parallel()

	body := `{"payload":{"type":"bogus"}}`

	invalid := do(newRouter(&recordingEnqueuer{err: jobs.ErrInvalidPayload}, nil), http.MethodPost, "/jobs/sync-chain", body)
	assert.Equal(t, http.StatusBadRequest, invalid.Code)

	closed := do(newRouter(&recordingEnqueuer{err: jobs.ErrRegistryClosed}, nil), http.MethodPost, "/jobs/sync-chain", body)
	assert.Equal(t, http.StatusServiceUnavailable, closed.Code)

	broken := do(newRouter(&recordingEnqueuer{err: errors.New("redis down")}, nil), http.MethodPost, "/jobs/sync-chain", body)
	assert.Equal(t, http.StatusInternalServerError, broken.Code)
}

func TestListDLQ(t *testing.T) {
	t.Parallel()

	dlq := &staticDLQ{entries: []*queue.TasksDlq{{
		ID:         uuid.New(),
		TaskID:     uuid.New(),
		Queue:      "ai-analysis",
		Payload:    []byte(`{"postId":"p1"}`),
		Error:      "boom",
		RetryCount: 3,
	}}}
	h := newRouter(nil, dlq)

	rec := do(h, http.MethodGet, "/dlq?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, dlq.limit)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "ai-analysis", out[0]["queue"])
	assert.Equal(t, map[string]any{"postId": "p1"}, out[0]["payload"])
	assert.InDelta(t, 3, out[0]["retryCount"], 0)

	do(h, http.MethodGet, "/dlq", "")
	assert.Equal(t, 50, dlq.limit)

	do(h, http.MethodGet, "/dlq?limit=100000", "")
	assert.Equal(t, 1000, dlq.limit)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/dlq?limit=-1", "").Code)
}

func TestUnmountedRoutes(t *testing.T) {
	t.Parallel()

	h := newRouter(nil, nil)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/dlq", "").Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodPost, "/jobs/feed-refresh", `{}`).Code)
}
