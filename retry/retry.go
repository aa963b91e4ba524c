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


package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Backoff selects how the delay between attempts grows.
type Backoff int

const (
	// Exponential doubles the delay after every failed attempt.
	Exponential Backoff = iota
	// Linear waits BaseDelay × attempt after every failed attempt.
	Linear
)

// Policy describes a retry sequence.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first (must be > 0).
	MaxAttempts int

	// BaseDelay is the unit of the backoff schedule.
	BaseDelay time.Duration

	// Backoff selects the growth of the delay.
	Backoff Backoff

	// MaxElapsed caps the whole sequence, attempts and sleeps included.
	// Zero means no cap beyond the caller's context.
	MaxElapsed time.Duration
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	switch p.Backoff {
	case Linear:
		return p.BaseDelay * time.Duration(attempt)
	default:
		delay := p.BaseDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
		}
		return delay
	}
}

// Do runs operation until it succeeds, the attempts are exhausted or the
// context ends. It returns the number of attempts made and the last error.
// The context passed to operation carries the MaxElapsed deadline, if any.
func Do(ctx context.Context, p Policy, operation func(ctx context.Context) error) (int, error) {
	if p.MaxAttempts <= 0 {
		return 0, ErrInvalidMaxAttempts
	}

	if p.MaxElapsed > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.MaxElapsed)
		defer cancel()
	}

	var lastErr error
	attempt := 0
	for attempt < p.MaxAttempts {
		// Check context before attempting
		if err := ctx.Err(); err != nil {
			return attempt, contextError(err, lastErr)
		}

		attempt++
		lastErr = operation(ctx)
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return attempt, nil
		}

		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", p.MaxAttempts, "error", lastErr)

		// Don't sleep after the last attempt
		if attempt == p.MaxAttempts {
			break
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, contextError(ctx.Err(), lastErr)
		case <-timer.C:
		}
	}

	return attempt, lastErr
}

func contextError(ctxErr, lastErr error) error {
	if lastErr == nil {
		return ctxErr
	}
	return fmt.Errorf("%w (last error: %v)", ctxErr, lastErr)
}
