package analysis_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solshare/pipeline/internal/analysis"
	"github.com/solshare/pipeline/internal/domain"
)

func newClient(t *testing.T, url string, opts ...analysis.Option) *analysis.Client {
	t.Helper()
	opts = append([]analysis.Option{analysis.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	c, err := analysis.New(analysis.Config{URL: url, APIKey: "secret", Timeout: time.Second}, opts...)
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "localhost:8000", "ftp://example.com", "http://"} {
		_, err := analysis.New(analysis.Config{URL: raw})
		assert.ErrorIs(t, err, analysis.ErrInvalidConfig, "url %q", raw)
	}

	_, err := analysis.New(analysis.Config{URL: "https://ai.internal/"})
	assert.NoError(t, err)
}

func TestClient_AnalyzeContent(t *testing.T) {
	t.Parallel()

	t.Run("sends request and decodes analysis", func(t *testing.T) {
		t.Parallel()

		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/analyze/content", r.URL.Path)
			assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{
				"description": "a cat",
				"tags": ["cat", "cozy"],
				"sceneType": "indoor",
				"objects": ["cat", "couch"],
				"mood": "calm",
				"colors": ["orange"],
				"safetyScore": 0.9,
				"altText": "a cat on a couch",
				"embedding": [0.1, 0.2]
			}`)
		}))
		t.Cleanup(srv.Close)

		res, err := newClient(t, srv.URL+"/").AnalyzeContent(context.Background(), domain.AnalyzeRequest{
			ContentURI:    "ipfs://abc",
			Caption:       "hello",
			PostID:        "p1",
			CreatorWallet: "W1",
		})
		require.NoError(t, err)

		assert.Equal(t, map[string]any{
			"content_uri":    "ipfs://abc",
			"caption":        "hello",
			"post_id":        "p1",
			"creator_wallet": "W1",
		}, got)
		assert.Equal(t, &domain.Analysis{
			Description: "a cat",
			Tags:        []string{"cat", "cozy"},
			SceneType:   "indoor",
			Objects:     []string{"cat", "couch"},
			Mood:        "calm",
			Colors:      []string{"orange"},
			SafetyScore: 0.9,
			AltText:     "a cat on a couch",
			Embedding:   []float64{0.1, 0.2},
		}, res)
	})

	t.Run("non-2xx returns service error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model overloaded", http.StatusServiceUnavailable)
		}))
		t.Cleanup(srv.Close)

		_, err := newClient(t, srv.URL).AnalyzeContent(context.Background(), domain.AnalyzeRequest{ContentURI: "ipfs://abc", PostID: "p1"})

		var svcErr *analysis.ServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.Equal(t, http.StatusServiceUnavailable, svcErr.StatusCode)
		assert.Equal(t, "model overloaded", svcErr.Body)
		assert.True(t, svcErr.Temporary())
	})

	t.Run("long error body is cut on a rune boundary", func(t *testing.T) {
		t.Parallel()

		body := strings.Repeat("a", 199) + strings.Repeat("é", 10)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, body)
		}))
		t.Cleanup(srv.Close)

		_, err := newClient(t, srv.URL).AnalyzeContent(context.Background(), domain.AnalyzeRequest{ContentURI: "ipfs://abc", PostID: "p1"})

		var svcErr *analysis.ServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.True(t, utf8.ValidString(svcErr.Body))
		assert.Equal(t, strings.Repeat("a", 199)+"...", svcErr.Body)
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "<html>")
		}))
		t.Cleanup(srv.Close)

		_, err := newClient(t, srv.URL).AnalyzeContent(context.Background(), domain.AnalyzeRequest{ContentURI: "ipfs://abc", PostID: "p1"})
		assert.ErrorIs(t, err, analysis.ErrInvalidResponse)
	})

	t.Run("context deadline", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		t.Cleanup(srv.Close)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := newClient(t, srv.URL).AnalyzeContent(ctx, domain.AnalyzeRequest{ContentURI: "ipfs://abc", PostID: "p1"})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestClient_CircuitBreaker(t *testing.T) {
	t.Parallel()

	t.Run("opens after repeated server failures", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(srv.Close)

		breaker := analysis.NewCircuitBreaker(2, 1, time.Hour)
		c := newClient(t, srv.URL, analysis.WithCircuitBreaker(breaker))
		req := domain.AnalyzeRequest{ContentURI: "ipfs://abc", PostID: "p1"}

		for range 2 {
			_, err := c.AnalyzeContent(context.Background(), req)
			require.Error(t, err)
		}
		_, err := c.AnalyzeContent(context.Background(), req)

		assert.ErrorIs(t, err, analysis.ErrCircuitOpen)
		assert.Equal(t, int32(2), hits.Load())
		assert.Equal(t, analysis.CircuitOpen, breaker.State())
	})

	t.Run("rejected requests do not trip the breaker", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}))
		t.Cleanup(srv.Close)

		breaker := analysis.NewCircuitBreaker(1, 1, time.Hour)
		c := newClient(t, srv.URL, analysis.WithCircuitBreaker(breaker))

		for range 3 {
			_, err := c.AnalyzeContent(context.Background(), domain.AnalyzeRequest{ContentURI: "ipfs://abc", PostID: "p1"})
			var svcErr *analysis.ServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.False(t, svcErr.Temporary())
		}
		assert.Equal(t, analysis.CircuitClosed, breaker.State())
	})
}

func TestCircuitBreaker(t *testing.T) {
	t.Parallel()

	t.Run("half-open trial calls close the breaker", func(t *testing.T) {
		t.Parallel()

		cb := analysis.NewCircuitBreaker(1, 2, 20*time.Millisecond)
		cb.RecordFailure()
		assert.False(t, cb.Allow())

		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, analysis.CircuitHalfOpen, cb.State())
		require.True(t, cb.Allow())

		cb.RecordSuccess()
		assert.Equal(t, analysis.CircuitHalfOpen, cb.State())
		cb.RecordSuccess()
		assert.Equal(t, analysis.CircuitClosed, cb.State())
	})

	t.Run("half-open allows one call at a time", func(t *testing.T) {
		t.Parallel()

		cb := analysis.NewCircuitBreaker(1, 2, 20*time.Millisecond)
		cb.RecordFailure()
		time.Sleep(30 * time.Millisecond)

		require.True(t, cb.Allow())
		assert.False(t, cb.Allow(), "second call while the first is in flight")
		assert.False(t, cb.Allow())

		cb.RecordSuccess()
		require.True(t, cb.Allow())
		assert.False(t, cb.Allow())

		cb.RecordSuccess()
		assert.Equal(t, analysis.CircuitClosed, cb.State())
		assert.True(t, cb.Allow())
		assert.True(t, cb.Allow(), "closed breaker allows concurrent calls")
	})

	t.Run("released call frees the half-open slot", func(t *testing.T) {
		t.Parallel()

		cb := analysis.NewCircuitBreaker(1, 1, 20*time.Millisecond)
		cb.RecordFailure()
		time.Sleep(30 * time.Millisecond)

		require.True(t, cb.Allow())
		assert.False(t, cb.Allow())
		cb.Release()
		assert.Equal(t, analysis.CircuitHalfOpen, cb.State())
		assert.True(t, cb.Allow())
	})

	t.Run("failed trial call reopens", func(t *testing.T) {
		t.Parallel()

		cb := analysis.NewCircuitBreaker(1, 1, 20*time.Millisecond)
		cb.RecordFailure()
		time.Sleep(30 * time.Millisecond)
		require.True(t, cb.Allow())

		cb.RecordFailure()
		assert.Equal(t, analysis.CircuitOpen, cb.State())
		assert.False(t, cb.Allow())
	})

	t.Run("success resets failure count", func(t *testing.T) {
		t.Parallel()

		cb := analysis.NewCircuitBreaker(2, 1, time.Hour)
		cb.RecordFailure()
		cb.RecordSuccess()
		cb.RecordFailure()
		assert.Equal(t, analysis.CircuitClosed, cb.State())
	})
}

func TestServiceError_Temporary(t *testing.T) {
	t.Parallel()

	tests := map[int]bool{
		http.StatusBadRequest:          false,
		http.StatusUnauthorized:        false,
		http.StatusNotFound:            false,
		http.StatusRequestTimeout:      true,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
	}
	for code, want := range tests {
		err := error(&analysis.ServiceError{StatusCode: code})
		var svcErr *analysis.ServiceError
		require.True(t, errors.As(err, &svcErr))
		assert.Equal(t, want, svcErr.Temporary(), "status %d", code)
	}
}
