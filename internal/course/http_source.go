package course

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/workshop/internal/domain"
)

// maxDocumentSize bounds a fetched course document.
const maxDocumentSize = 8 << 20

// HTTPSourceConfig holds configuration for the HTTP course source.
type HTTPSourceConfig struct {
	// BaseURL is the location course documents are resolved against.
	BaseURL string

	// Timeout bounds a single request (default: 15s)
	Timeout time.Duration

	// MaxAttempts for retryable failures (default: 3)
	MaxAttempts int

	// InitialDelay before the first retry (default: 200ms)
	InitialDelay time.Duration

	// FailureThreshold of consecutive failures that opens the breaker (default: 5)
	FailureThreshold int

	// Client overrides the default tuned client.
	Client *http.Client

	Logger *slog.Logger
}

// HTTPSource fetches course documents over HTTP with retry and a circuit
// breaker around the transport.
type HTTPSource struct {
	base           *url.URL
	client         *http.Client
	circuitBreaker circuitbreaker.CircuitBreaker[[]byte]
	retrier        retry.Retry[[]byte]
	logger         *slog.Logger
}

// NewHTTPSource creates a source resolving paths against cfg.BaseURL.
func NewHTTPSource(cfg HTTPSourceConfig) (*HTTPSource, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 200 * time.Millisecond
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := cfg.Client
	if client == nil {
		client = newCourseHTTPClient(cfg.Timeout)
	}

	s := &HTTPSource{
		base:   base,
		client: client,
		logger: logger,
	}

	threshold := cfg.FailureThreshold
	s.circuitBreaker = circuitbreaker.New[[]byte](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= threshold
		},
		// Only an unhealthy remote opens the breaker. A 404 for one course
		// says nothing about the others.
		IsSuccessful: func(err error) bool {
			return !isRetryable(err)
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			s.logger.Warn("course source circuit breaker state change",
				"base_url", s.base.String(),
				"from", from.String(),
				"to", to.String())
		},
	})

	s.retrier = retry.New[[]byte](retry.Config{
		MaxAttempts:   cfg.MaxAttempts,
		InitialDelay:  cfg.InitialDelay,
		MaxDelay:      5 * time.Second,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable:   isRetryable,
	})

	return s, nil
}

// newCourseHTTPClient creates a client tuned for small JSON documents.
func newCourseHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// Fetch GETs path relative to the base URL.
func (s *HTTPSource) Fetch(ctx context.Context, path string) ([]byte, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}
	target := s.base.ResolveReference(ref).String()

	return s.circuitBreaker.Execute(ctx, func(ctx context.Context) ([]byte, error) {
		return s.retrier.Do(ctx, func(ctx context.Context) ([]byte, error) {
			return s.get(ctx, target)
		})
	})
}

func (s *HTTPSource) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		statusErr := &domain.StatusError{StatusCode: resp.StatusCode, URL: target}
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", statusErr, ErrResourceNotFound)
		}
		return nil, statusErr
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("GET %s: document exceeds %d bytes", target, maxDocumentSize)
	}
	return data, nil
}

// String describes the source for logs.
func (s *HTTPSource) String() string {
	return "http:" + s.base.String()
}

// isRetryable retries server errors, throttling and transport failures.
// Client errors are final.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *domain.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
