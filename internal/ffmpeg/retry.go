package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// errTransient marks a download failure worth another attempt: a network error,
// an interrupted body, HTTP 429 or a 5xx status.
var errTransient = errors.New("temporary failure")

// RetryPolicy bounds download retries with exponential backoff.
//
// Invalid values are normalized:
//   - Retries < 0 becomes 0 (single attempt)
//   - BaseDelay <= 0 becomes 1ms
//   - MaxDelay <= 0 becomes BaseDelay
type RetryPolicy struct {
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy retries twice, waiting 1s then 2s.
var DefaultRetryPolicy = RetryPolicy{Retries: 2, BaseDelay: time.Second, MaxDelay: 8 * time.Second}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Retries < 0 {
		p.Retries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// retry runs attempt until it succeeds, fails permanently or the policy is spent.
// Only errors wrapping errTransient are retried. The context is checked between
// attempts; its error wins over the last attempt's.
func retry(ctx context.Context, p RetryPolicy, attempt func() error) error {
	p = p.normalized()
	delay := p.BaseDelay

	var lastErr error
	for i := 0; i <= p.Retries; i++ {
		if i > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay = min(delay*2, p.MaxDelay)
		}

		lastErr = attempt()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if !errors.Is(lastErr, errTransient) {
			return lastErr
		}
	}
	if p.Retries == 0 {
		return lastErr
	}
	return fmt.Errorf("gave up after %d attempts: %w", p.Retries+1, lastErr)
}
