package executor

import (
	"context"
	"fmt"

	"github.com/rolemesh/rolemesh/core"
)

// DefaultQueueCapacity bounds the number of pending function-call requests
// before enqueueing callers experience backpressure.
const DefaultQueueCapacity = 100

// Queue is a bounded FIFO of pending function-call requests. Enqueue blocks
// while the queue is full, which is the backpressure signal: the runtime
// bounds the wait with a context deadline and surfaces saturation to the
// caller instead of dropping work.
type Queue struct {
	ch chan core.FunctionCallRequest
}

// NewQueue creates a queue with the given capacity. Non-positive capacities
// fall back to DefaultQueueCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{ch: make(chan core.FunctionCallRequest, capacity)}
}

// Enqueue adds a request, blocking while the queue is full. When ctx expires
// first the request is rejected with core.ErrQueueSaturated and nothing is
// enqueued.
func (q *Queue) Enqueue(ctx context.Context, req core.FunctionCallRequest) error {
	select {
	case q.ch <- req:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", req.Name, core.ErrQueueSaturated)
	}
}

// Requests exposes the consumer side of the queue. Receiving transfers
// ownership of the request to the consumer.
func (q *Queue) Requests() <-chan core.FunctionCallRequest { return q.ch }

// Len reports the number of requests currently waiting.
func (q *Queue) Len() int { return len(q.ch) }

// Cap reports the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }
