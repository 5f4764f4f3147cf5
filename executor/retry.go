package executor

import (
	"time"

	"github.com/rolemesh/rolemesh/fncall"
)

// RetryPolicy bounds the retry loop for a single request. Delays double per
// attempt from BaseDelay up to MaxDelay.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget including the first try.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the standard budget: three attempts with
// 500ms base backoff capped at 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
	}
}

// NextDelay returns the backoff after the given 1-based attempt number.
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// ShouldRetry reports whether another attempt is warranted after attempt
// failed with err.
func (p RetryPolicy) ShouldRetry(attempt int, err error) bool {
	return attempt < p.MaxAttempts && fncall.IsTransient(err)
}
