package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// queue is a bounded in-memory queue of job IDs with context-aware
// operations.
type queue struct {
	ch      chan string
	closeMu sync.Mutex
	closed  bool
}

func newQueue(capacity int) *queue {
	if capacity <= 0 {
		capacity = 64
	}
	return &queue{ch: make(chan string, capacity)}
}

func (q *queue) Enqueue(ctx context.Context, jobID string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- jobID:
		return nil
	}
}

func (q *queue) Dequeue(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case jobID, ok := <-q.ch:
		if !ok {
			return "", errors.New("queue closed")
		}
		return jobID, nil
	}
}

func (q *queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
