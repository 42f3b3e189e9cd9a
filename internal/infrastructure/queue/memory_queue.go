package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryQueue is an in-process TaskQueue with the same idempotency semantics
// as the Redis implementation. Used in tests and single-node development.
type MemoryQueue struct {
	mu      sync.Mutex
	tasks   []Task
	pending map[string]struct{}
}

// NewMemoryQueue creates an in-memory task queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{pending: make(map[string]struct{})}
}

// Enqueue schedules a task after the given delay, collapsing duplicates by
// unique key.
func (q *MemoryQueue) Enqueue(_ context.Context, task string, args map[string]string, delay time.Duration, uniqueKey string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if uniqueKey != "" {
		if _, exists := q.pending[uniqueKey]; exists {
			return false, nil
		}
		q.pending[uniqueKey] = struct{}{}
	}

	q.tasks = append(q.tasks, Task{
		Name:      task,
		Args:      args,
		UniqueKey: uniqueKey,
		DueAt:     time.Now().Add(delay),
	})
	return true, nil
}

// Lease removes and returns up to limit due tasks. Unique keys stay held
// until Release.
func (q *MemoryQueue) Lease(_ context.Context, limit int) ([]Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	sort.Slice(q.tasks, func(i, j int) bool {
		return q.tasks[i].DueAt.Before(q.tasks[j].DueAt)
	})

	var leased []Task
	var remaining []Task
	for _, task := range q.tasks {
		if len(leased) < limit && !task.DueAt.After(now) {
			leased = append(leased, task)
			continue
		}
		remaining = append(remaining, task)
	}
	q.tasks = remaining
	return leased, nil
}

// Release frees a unique key after its task finished.
func (q *MemoryQueue) Release(_ context.Context, uniqueKey string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, uniqueKey)
	return nil
}

// Len returns the number of scheduled tasks, due or not.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

var _ TaskQueue = (*MemoryQueue)(nil)
