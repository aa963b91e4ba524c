// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/poiesic/docingest/core"
	"github.com/poiesic/docingest/retry"
	"golang.org/x/time/rate"
)

const (
	// DefaultUserAgent is sent with every request unless overridden.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"

	// DefaultAccept is the Accept header for HTML pages.
	DefaultAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	// XMLAccept is the Accept header for sitemaps.
	XMLAccept = "application/xml,text/xml"

	DefaultRetries    = 2
	DefaultRetryDelay = time.Second
	DefaultTimeout    = 30 * time.Second
	DefaultMaxElapsed = 2 * time.Minute

	// maxBodyBytes bounds a single response body.
	maxBodyBytes = 32 << 20
)

// Fetcher performs single HTTP GETs with retry.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	retries    int
	retryDelay time.Duration
	timeout    time.Duration
	maxElapsed time.Duration
	limiter    *rate.Limiter
	clock      func() time.Time
	onAttempt  func(ok bool)
	logger     *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher) error

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) error {
		if ua == "" {
			return fmt.Errorf("user agent cannot be empty")
		}
		f.userAgent = ua
		return nil
	}
}

// WithRetries sets the number of retries after the first attempt.
// Default is 2 (three attempts in total).
func WithRetries(n int) Option {
	return func(f *Fetcher) error {
		if n < 0 {
			return fmt.Errorf("retries must be >= 0, got %d", n)
		}
		f.retries = n
		return nil
	}
}

// WithRetryDelay sets the linear backoff unit. The wait after attempt k is
// delay × k. Default is 1s.
func WithRetryDelay(d time.Duration) Option {
	return func(f *Fetcher) error {
		if d < 0 {
			return fmt.Errorf("retry delay must be >= 0, got %s", d)
		}
		f.retryDelay = d
		return nil
	}
}

// WithTimeout sets the per-request timeout. Default is 30s.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		f.timeout = d
		return nil
	}
}

// WithMaxElapsed caps the whole retry sequence of one fetch. Default is 2m.
func WithMaxElapsed(d time.Duration) Option {
	return func(f *Fetcher) error {
		if d < 0 {
			return fmt.Errorf("max elapsed must be >= 0, got %s", d)
		}
		f.maxElapsed = d
		return nil
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) error {
		if c == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		f.client = c
		return nil
	}
}

// WithRateLimit adds a token bucket in front of every attempt, on top of the
// pool's pacing delay.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(f *Fetcher) error {
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(limit, burst)
		return nil
	}
}

// WithClock overrides the time source of the cache-busting stamp.
func WithClock(clock func() time.Time) Option {
	return func(f *Fetcher) error {
		if clock != nil {
			f.clock = clock
		}
		return nil
	}
}

// WithAttemptObserver registers a callback invoked after every attempt.
func WithAttemptObserver(fn func(ok bool)) Option {
	return func(f *Fetcher) error {
		f.onAttempt = fn
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger
		return nil
	}
}

// New creates a Fetcher.
func New(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		client:     &http.Client{},
		userAgent:  DefaultUserAgent,
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
		timeout:    DefaultTimeout,
		maxElapsed: DefaultMaxElapsed,
		clock:      time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	f.logger = f.logger.With("component", "fetcher")
	return f, nil
}

type requestOptions struct {
	accept  string
	headers map[string]string
}

// RequestOption adjusts a single request.
type RequestOption func(*requestOptions)

// WithAccept overrides the Accept header.
func WithAccept(accept string) RequestOption {
	return func(o *requestOptions) {
		o.accept = accept
	}
}

// WithHeader adds a header to the request.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = map[string]string{}
		}
		o.headers[key] = value
	}
}

// FetchOne GETs rawURL and returns the body. Any transport error or non-2xx
// status is retried with linear backoff. When attempts run out the result is
// a *core.FetchError carrying the last error.
func (f *Fetcher) FetchOne(ctx context.Context, rawURL string, opts ...RequestOption) (string, error) {
	ro := requestOptions{accept: DefaultAccept}
	for _, opt := range opts {
		opt(&ro)
	}

	policy := retry.Policy{
		MaxAttempts: f.retries + 1,
		BaseDelay:   f.retryDelay,
		Backoff:     retry.Linear,
		MaxElapsed:  f.maxElapsed,
	}

	var body string
	attempts, err := retry.Do(ctx, policy, func(ctx context.Context) error {
		b, err := f.get(ctx, rawURL, ro)
		if f.onAttempt != nil {
			f.onAttempt(err == nil)
		}
		if err != nil {
			f.logger.Debug("fetch attempt failed", "url", rawURL, "err", err)
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return "", &core.FetchError{URL: rawURL, Attempts: attempts, Err: err}
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string, ro requestOptions) (string, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	target, err := f.bustCache(rawURL)
	if err != nil {
		return "", err
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", ro.accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")
	for k, v := range ro.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(data), nil
}

// bustCache appends _t=<unix-ms> so intermediaries do not serve a stale copy.
func (f *Fetcher) bustCache(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	q := u.Query()
	q.Set("_t", strconv.FormatInt(f.clock().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
