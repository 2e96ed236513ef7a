package course

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/workshop/internal/domain"
)

func newTestHTTPSource(t *testing.T, url string) *HTTPSource {
	t.Helper()
	src, err := NewHTTPSource(HTTPSourceConfig{
		BaseURL:      url,
		Timeout:      5 * time.Second,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		Logger:       testLogger(),
	})
	if err != nil {
		t.Fatalf("NewHTTPSource() error = %v", err)
	}
	return src
}

func TestHTTPSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/courses/basics.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(twoExerciseCourse))
	}))
	defer srv.Close()

	src := newTestHTTPSource(t, srv.URL+"/courses")

	data, err := src.Fetch(context.Background(), "basics.json")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(data) != twoExerciseCourse {
		t.Errorf("Fetch() body mismatch")
	}
}

func TestHTTPSource_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	src := newTestHTTPSource(t, srv.URL)

	_, err := src.Fetch(context.Background(), "missing.json")
	if err == nil {
		t.Fatal("Fetch() error = nil, want 404")
	}

	var statusErr *domain.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("Fetch() error = %v, want StatusError 404", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
}

func TestHTTPSource_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	src := newTestHTTPSource(t, srv.URL)

	data, err := src.Fetch(context.Background(), "index.json")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("Fetch() = %q, want []", data)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server calls = %d, want 2", got)
	}
}

func TestHTTPSource_ClientErrorsKeepBreakerClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/good.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(twoExerciseCourse))
	}))
	defer srv.Close()

	loader := NewLoader(newTestHTTPSource(t, srv.URL), testLogger())
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		if _, err := loader.Load(ctx, "missing"); !errors.Is(err, domain.ErrFetch) {
			t.Fatalf("Load(missing) #%d error = %v, want fetch error", i, err)
		}
	}

	c, err := loader.Load(ctx, "good")
	if err != nil {
		t.Fatalf("Load(good) after repeated 404s error = %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("Load(good) exercises = %d, want 2", c.Len())
	}
}

func TestHTTPSource_ServerErrorsOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src, err := NewHTTPSource(HTTPSourceConfig{
		BaseURL:          srv.URL,
		MaxAttempts:      1,
		InitialDelay:     time.Millisecond,
		FailureThreshold: 2,
		Logger:           testLogger(),
	})
	if err != nil {
		t.Fatalf("NewHTTPSource() error = %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := src.Fetch(ctx, "index.json"); err == nil {
			t.Fatalf("Fetch() #%d error = nil, want 502", i)
		}
	}

	before := calls.Load()
	if _, err := src.Fetch(ctx, "index.json"); err == nil {
		t.Fatal("Fetch() with open breaker error = nil")
	}
	if got := calls.Load(); got != before {
		t.Errorf("server calls with open breaker = %d, want %d", got, before)
	}
}

func TestHTTPSource_LoaderReportsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	loader := NewLoader(newTestHTTPSource(t, srv.URL), testLogger())

	_, err := loader.Load(context.Background(), "basics")
	if !errors.Is(err, domain.ErrFetch) {
		t.Errorf("Load() error = %v, want fetch error", err)
	}
}

func TestNewHTTPSource_InvalidURL(t *testing.T) {
	for _, raw := range []string{"ftp://example.com", "://bad", ""} {
		if _, err := NewHTTPSource(HTTPSourceConfig{BaseURL: raw}); err == nil {
			t.Errorf("NewHTTPSource(%q) error = nil", raw)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"503", &domain.StatusError{StatusCode: 503}, true},
		{"429", &domain.StatusError{StatusCode: 429}, true},
		{"404", &domain.StatusError{StatusCode: 404}, false},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
