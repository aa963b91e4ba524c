package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/docingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, opts ...Option) *Fetcher {
	t.Helper()
	base := []Option{WithRetryDelay(time.Millisecond)}
	f, err := New(append(base, opts...)...)
	require.NoError(t, err)
	return f
}

func TestFetchOne_SendsHeaders(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	stamp := time.UnixMilli(1700000000123)
	f := newTestFetcher(t, WithClock(func() time.Time { return stamp }))

	body, err := f.FetchOne(context.Background(), srv.URL+"/docs?page=2")
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", body)

	require.NotNil(t, got)
	assert.Equal(t, DefaultUserAgent, got.Header.Get("User-Agent"))
	assert.Equal(t, DefaultAccept, got.Header.Get("Accept"))
	assert.Equal(t, "no-cache, no-store", got.Header.Get("Cache-Control"))
	assert.Equal(t, "no-cache", got.Header.Get("Pragma"))
	assert.Equal(t, "1700000000123", got.URL.Query().Get("_t"))
	assert.Equal(t, "2", got.URL.Query().Get("page"))
	assert.Equal(t, "/docs", got.URL.Path)
}

func TestFetchOne_RequestOptions(t *testing.T) {
	var accept, custom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		custom = r.Header.Get("X-Test")
		w.Write([]byte("<urlset/>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	_, err := f.FetchOne(context.Background(), srv.URL, WithAccept(XMLAccept), WithHeader("X-Test", "yes"))
	require.NoError(t, err)
	assert.Equal(t, XMLAccept, accept)
	assert.Equal(t, "yes", custom)
}

func TestFetchOne_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("finally"))
	}))
	defer srv.Close()

	var attempts, failures atomic.Int32
	f := newTestFetcher(t, WithAttemptObserver(func(ok bool) {
		attempts.Add(1)
		if !ok {
			failures.Add(1)
		}
	}))

	body, err := f.FetchOne(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "finally", body)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, int32(2), failures.Load())
}

func TestFetchOne_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(t, WithRetries(2))
	_, err := f.FetchOne(context.Background(), srv.URL+"/missing")
	require.Error(t, err)

	var fe *core.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 3, fe.Attempts)
	assert.Equal(t, srv.URL+"/missing", fe.URL)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchOne_NoRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFetcher(t, WithRetries(0))
	_, err := f.FetchOne(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchOne_PerRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := newTestFetcher(t, WithTimeout(20*time.Millisecond), WithRetries(1))

	start := time.Now()
	_, err := f.FetchOne(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	var fe *core.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 2, fe.Attempts)
}

func TestFetchOne_MaxElapsedCapsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f, err := New(WithRetries(10), WithRetryDelay(50*time.Millisecond), WithMaxElapsed(80*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	_, err = f.FetchOne(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchOne_InvalidURL(t *testing.T) {
	f := newTestFetcher(t, WithRetries(0))
	_, err := f.FetchOne(context.Background(), "not a url")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{name: "negative retries", opt: WithRetries(-1)},
		{name: "negative delay", opt: WithRetryDelay(-time.Second)},
		{name: "zero timeout", opt: WithTimeout(0)},
		{name: "empty user agent", opt: WithUserAgent("")},
		{name: "nil client", opt: WithHTTPClient(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			assert.Error(t, err)
		})
	}
}
