package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Tracker reports progress of a long-running batch of work to a writer,
// overwriting the same terminal line on every report.
type Tracker struct {
	writer         io.Writer
	label          string
	unit           string
	total          int
	current        int
	failed         int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLabel sets the prefix printed before the counters. Default "Progress".
func WithLabel(label string) Option {
	return func(t *Tracker) {
		t.label = label
	}
}

// WithUnit sets the unit used in the rate. Default "items".
func WithUnit(unit string) Option {
	return func(t *Tracker) {
		t.unit = unit
	}
}

// NewTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr)
// total: total number of items to process
// reportInterval: report progress every N items
func NewTracker(writer io.Writer, total, reportInterval int, opts ...Option) *Tracker {
	if reportInterval < 1 {
		reportInterval = 1
	}
	t := &Tracker{
		writer:         writer,
		label:          "Progress",
		unit:           "items",
		total:          total,
		reportInterval: reportInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins tracking progress.
func (p *Tracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.failed = 0
	p.lastReported = 0
}

// Update sets the current progress to the specified value.
func (p *Tracker) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.current = min(current, p.total)
	p.maybeReport()
}

// Increment increases the current progress by the specified amount.
func (p *Tracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.current = min(p.current+delta, p.total)
	p.maybeReport()
}

// Observe matches the completion callback of the fetch and shard pools.
// Each call counts one finished item and records whether it failed.
func (p *Tracker) Observe(completed, total int, id string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	if total > p.total {
		p.total = total
	}
	if !ok {
		p.failed++
	}
	p.current = min(completed, p.total)
	p.maybeReport()
}

// Failed returns the number of failed items seen by Observe.
func (p *Tracker) Failed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// Total returns the number of items expected.
func (p *Tracker) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Finish marks the operation as complete and prints final progress.
func (p *Tracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.current = p.total
	p.report()
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time elapsed since Start was called.
func (p *Tracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}

	return time.Since(p.startTime)
}

// maybeReport must be called with lock held.
func (p *Tracker) maybeReport() {
	if p.current-p.lastReported >= p.reportInterval || (p.current == p.total && p.current != p.lastReported) {
		p.report()
		p.lastReported = p.current
	}
}

// report prints the current progress. Must be called with lock held.
func (p *Tracker) report() {
	elapsed := time.Since(p.startTime)
	rate := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(p.current) / secs
	}

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\r%s: %d/%d (%.1f%%) - %.1f %s/s",
		p.label, p.current, p.total, percentage, rate, p.unit)
	if p.failed > 0 {
		fmt.Fprintf(p.writer, " - %d failed", p.failed)
	}
}
