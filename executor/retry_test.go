package executor

import (
	"errors"
	"testing"
	"time"

	"github.com/rolemesh/rolemesh/fncall"
	"github.com/stretchr/testify/assert"
)

func TestNextDelayDoubles(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}

	assert.Equal(t, 500*time.Millisecond, p.NextDelay(1))
	assert.Equal(t, time.Second, p.NextDelay(2))
	assert.Equal(t, 2*time.Second, p.NextDelay(3))
	assert.Equal(t, 4*time.Second, p.NextDelay(4))
	assert.Equal(t, 8*time.Second, p.NextDelay(5))
	assert.Equal(t, 8*time.Second, p.NextDelay(20), "delay must stay capped")
	assert.Equal(t, 500*time.Millisecond, p.NextDelay(0))
}

func TestShouldRetry(t *testing.T) {
	p := DefaultRetryPolicy()

	transient := fncall.NewTransient("f", "TIMEOUT", "t")
	permanent := fncall.NewPermanent("f", "BAD", "p")

	assert.True(t, p.ShouldRetry(1, transient))
	assert.True(t, p.ShouldRetry(2, transient))
	assert.False(t, p.ShouldRetry(3, transient), "attempt budget includes the first try")
	assert.False(t, p.ShouldRetry(1, permanent))
	assert.True(t, p.ShouldRetry(1, errors.New("unclassified")))
}
