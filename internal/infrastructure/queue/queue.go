package queue

import (
	"context"
	"time"
)

// Task names dispatched through the queue.
const (
	TaskImportOrder = "order.import"
	TaskSyncOrder   = "order.sync"
	TaskSyncAll     = "order.sync_all"
)

// Task is one unit of deferred work. Args carry string parameters only so
// tasks survive serialization unchanged.
type Task struct {
	Name      string            `json:"name"`
	Args      map[string]string `json:"args"`
	UniqueKey string            `json:"unique_key"`
	DueAt     time.Time         `json:"due_at"`
}

// TaskQueue is the durable delayed-task port the sync core enqueues into.
//
// Enqueue is idempotent by unique key: while a task with the same key is
// pending or executing, further enqueues collapse into it. A burst of
// duplicate webhook deliveries for one provider order therefore schedules
// exactly one task, and at most one task per key is ever in flight. The
// queue, not the caller, guarantees that.
type TaskQueue interface {
	// Enqueue schedules a task after the given delay. Returns true when a
	// new task was scheduled, false when it collapsed into a pending one.
	Enqueue(ctx context.Context, task string, args map[string]string, delay time.Duration, uniqueKey string) (bool, error)

	// Lease removes and returns up to limit tasks that are due. A leased
	// task's unique key stays held until Release, so a duplicate enqueue
	// during execution collapses instead of running concurrently.
	Lease(ctx context.Context, limit int) ([]Task, error)

	// Release frees a unique key after its task finished, letting later
	// enqueues schedule fresh work. Releasing an unheld key is a no-op.
	Release(ctx context.Context, uniqueKey string) error
}
