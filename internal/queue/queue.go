// Package queue provides the in-memory work queue feeding the worker pool.
package queue

import (
	"context"
	"fmt"
	"sync"
)

// URLQueue is a bounded queue of source URLs with context-aware operations.
// The channel gives at-most-once dequeue across concurrent workers for free.
type URLQueue struct {
	ch      chan string
	closeMu sync.Mutex
	closed  bool
}

// New constructs a queue with the provided capacity.
func New(capacity int) *URLQueue {
	return &URLQueue{
		ch: make(chan string, capacity),
	}
}

// Enqueue pushes a URL into the queue or returns if the context ends.
func (q *URLQueue) Enqueue(ctx context.Context, url string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- url:
		return nil
	}
}

// Dequeue pops the next URL, respecting context cancellation. ok is false
// once the queue is closed and drained; workers treat that as end of input.
func (q *URLQueue) Dequeue(ctx context.Context) (url string, ok bool, err error) {
	select {
	case <-ctx.Done():
		return "", false, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case url, open := <-q.ch:
		if !open {
			return "", false, nil
		}
		return url, true, nil
	}
}

// Close marks the end of input. Queued URLs remain dequeueable.
func (q *URLQueue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
