package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/solshare/pipeline/internal/domain"
	"github.com/solshare/pipeline/pkg/logger"
)

const (
	analyzePath  = "/api/analyze/content"
	maxErrorBody = 200
	maxBody      = 1 << 20
)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithCircuitBreaker replaces the breaker built from Config.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(cl *Client) {
		if cb != nil {
			cl.breaker = cb
		}
	}
}

// WithLogger sets the logger for the client
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// Client calls the content analysis service.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	breaker  *CircuitBreaker
	logger   *slog.Logger
}

// New creates a client for the service at cfg.URL.
func New(cfg Config, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: service url must be an absolute http(s) url", ErrInvalidConfig)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		endpoint: u.String() + analyzePath,
		apiKey:   cfg.APIKey,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breaker: NewCircuitBreaker(cfg.BreakerFailureThreshold, cfg.BreakerSuccessThreshold, cfg.BreakerRecoveryTimeout),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("analysis"))

	return c, nil
}

type analyzeRequest struct {
	ContentURI    string `json:"content_uri"`
	Caption       string `json:"caption,omitempty"`
	PostID        string `json:"post_id"`
	CreatorWallet string `json:"creator_wallet,omitempty"`
}

// AnalyzeContent asks the service to describe the content at req.ContentURI.
func (c *Client) AnalyzeContent(ctx context.Context, req domain.AnalyzeRequest) (*domain.Analysis, error) {
	if !c.breaker.Allow() {
		return nil, ErrCircuitOpen
	}

	analysis, err := c.analyze(ctx, req)
	switch {
	case errors.Is(err, context.Canceled):
		c.breaker.Release()
	case isServiceFailure(err):
		c.breaker.RecordFailure()
		if c.breaker.State() == CircuitOpen {
			c.logger.WarnContext(ctx, "analysis service circuit opened", logger.Error(err))
		}
	default:
		c.breaker.RecordSuccess()
	}

	return analysis, err
}

func (c *Client) analyze(ctx context.Context, req domain.AnalyzeRequest) (*domain.Analysis, error) {
	body, err := json.Marshal(analyzeRequest{
		ContentURI:    req.ContentURI,
		Caption:       req.Caption,
		PostID:        req.PostID,
		CreatorWallet: req.CreatorWallet,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal analyze request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create analyze request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call analysis service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read analysis response: %w", err)
	}

	c.logger.DebugContext(ctx, "analysis service responded",
		logger.PostID(req.PostID),
		slog.Int("status", resp.StatusCode),
		logger.Duration(time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: sanitize(data)}
	}

	var analysis domain.Analysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return nil, errors.Join(ErrInvalidResponse, err)
	}

	return &analysis, nil
}

// isServiceFailure reports errors that say the service is unhealthy.
// Rejected requests and caller cancellation do not count.
func isServiceFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Temporary()
	}
	return true
}

// sanitize flattens an error body to one line of at most maxErrorBody bytes,
// cut on a rune boundary.
func sanitize(body []byte) string {
	s := strings.ReplaceAll(strings.TrimSpace(string(body)), "\n", " ")
	if len(s) <= maxErrorBody {
		return s
	}
	cut := maxErrorBody
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
