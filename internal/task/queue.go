package task

import (
	"context"
	"fmt"
	"time"

	"github.com/rileyhilliard/netpilot/internal/errors"
	"github.com/rileyhilliard/netpilot/internal/logger"
)

// DefaultQueueCapacity comfortably exceeds the number of requests that can
// be in flight at once (one per key).
const DefaultQueueCapacity = 256

// Queue is a bounded FIFO from workers (many producers) to the consumer
// (single drainer). Producers block briefly when it is full instead of
// dropping results.
type Queue struct {
	ch             chan Result
	enqueueTimeout time.Duration
	log            logger.Logger
}

// NewQueue creates a queue. A non-positive capacity uses the default.
func NewQueue(capacity int, enqueueTimeout time.Duration, log logger.Logger) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Queue{
		ch:             make(chan Result, capacity),
		enqueueTimeout: enqueueTimeout,
		log:            log,
	}
}

// Enqueue adds r. When the queue is full it waits up to the enqueue timeout
// (or until ctx is done) and then fails with QUEUE_FULL.
func (q *Queue) Enqueue(ctx context.Context, r Result) error {
	select {
	case q.ch <- r:
		return nil
	default:
	}

	q.log.Warn("result queue full (%d), waiting up to %s for %s", cap(q.ch), q.enqueueTimeout, r.Key)
	timer := time.NewTimer(q.enqueueTimeout)
	defer timer.Stop()

	select {
	case q.ch <- r:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	q.log.Error("result for %s lost: queue stayed full for %s", r.Key, q.enqueueTimeout)
	return errors.New(errors.ErrQueueFull,
		fmt.Sprintf("Result queue is full (%d results waiting)", cap(q.ch)),
		"The display isn't keeping up. Raise queue.capacity in netpilot.yaml")
}

// DrainAll returns every result currently queued, in arrival order, without
// blocking.
func (q *Queue) DrainAll() []Result {
	var out []Result
	for {
		select {
		case r := <-q.ch:
			out = append(out, r)
		default:
			return out
		}
	}
}

// Len returns the number of queued results.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
