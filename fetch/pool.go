package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

const (
	DefaultConcurrency = 5
	DefaultDelay       = 300 * time.Millisecond
)

// ProgressFunc is called after every completed task. Calls are serialized.
type ProgressFunc func(completed, total int, id string, ok bool)

// LimitOptions bounds a batch of tasks.
type LimitOptions struct {
	// Concurrency is the pool size. Zero means DefaultConcurrency.
	Concurrency int

	// Delay is slept by the worker after each task completes. It paces
	// the pool at roughly Concurrency/Delay tasks per second. A negative
	// value disables pacing; zero means DefaultDelay.
	Delay time.Duration

	// OnProgress is optional.
	OnProgress ProgressFunc

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (o LimitOptions) normalized() LimitOptions {
	if o.Concurrency < 1 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Delay == 0 {
		o.Delay = DefaultDelay
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Outcome is the result slot of one item.
type Outcome[R any] struct {
	Value R
	Err   error
}

// ProcessMany maps fn over items with bounded concurrency. The returned slice
// has one outcome per item in input order. fn receives the item index.
func ProcessMany[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T, index int) (R, error), opts LimitOptions) []Outcome[R] {
	opts = opts.normalized()
	outcomes := make([]Outcome[R], len(items))
	if len(items) == 0 {
		return outcomes
	}

	pool, err := ants.NewPool(min(opts.Concurrency, len(items)), ants.WithLogger(antsLogger{opts.Logger}))
	if err != nil {
		for i := range outcomes {
			outcomes[i].Err = fmt.Errorf("failed to create worker pool: %w", err)
		}
		return outcomes
	}
	defer pool.Release()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	total := len(items)

	report := func(i int, ok bool) {
		mu.Lock()
		defer mu.Unlock()
		completed++
		if opts.OnProgress != nil {
			opts.OnProgress(completed, total, identify(items[i], i), ok)
		}
	}

	for i := range items {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = err
				report(i, false)
				return
			}

			outcomes[i].Value, outcomes[i].Err = runGuarded(ctx, fn, items[i], i)
			report(i, outcomes[i].Err == nil)
			pace(ctx, opts.Delay)
		}
		if err := pool.Submit(task); err != nil {
			outcomes[i].Err = fmt.Errorf("failed to submit task: %w", err)
			report(i, false)
			wg.Done()
		}
	}
	wg.Wait()
	return outcomes
}

func runGuarded[T, R any](ctx context.Context, fn func(context.Context, T, int) (R, error), item T, i int) (value R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return fn(ctx, item, i)
}

func pace(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func identify(item any, i int) string {
	switch v := item.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("#%d", i)
	}
}

// Task is one URL to fetch. Meta travels through to the result untouched.
type Task struct {
	URL  string
	Meta any
}

func (t Task) String() string {
	return t.URL
}

// Result is the outcome of one Task. Exactly one of Content and Err is set.
type Result struct {
	URL     string
	Content string
	Err     error
	Meta    any
}

// OK reports whether the fetch succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// FetchMany fetches every task with f under the given limits.
func FetchMany(ctx context.Context, f *Fetcher, tasks []Task, opts LimitOptions, reqOpts ...RequestOption) []Result {
	outcomes := ProcessMany(ctx, tasks, func(ctx context.Context, t Task, _ int) (string, error) {
		return f.FetchOne(ctx, t.URL, reqOpts...)
	}, opts)

	results := make([]Result, len(tasks))
	for i, o := range outcomes {
		results[i] = Result{URL: tasks[i].URL, Content: o.Value, Err: o.Err, Meta: tasks[i].Meta}
		if o.Err != nil {
			results[i].Content = ""
		}
	}
	return results
}

// antsLogger forwards pool diagnostics to slog at debug level.
type antsLogger struct {
	logger *slog.Logger
}

func (l antsLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "worker-pool")
}
