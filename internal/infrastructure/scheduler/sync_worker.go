package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/printsync/backend/internal/infrastructure/queue"
)

// ---------------------------------------------------------------------------
// Executor interface
// ---------------------------------------------------------------------------

// SyncExecutor is the slice of the sync engine the worker dispatches into.
type SyncExecutor interface {
	ImportOrder(ctx context.Context, providerOrderID string) error
	SyncExistingOrder(ctx context.Context, providerOrderID string, localOrderID uuid.UUID) error
	SyncAll(ctx context.Context) (int, error)
}

// LogPruner trims the sync audit trail to its retention limit.
type LogPruner interface {
	Prune(ctx context.Context, keep int) error
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config holds sync worker settings.
type Config struct {
	// WorkerCount is the number of concurrent task processors.
	WorkerCount int
	// PollInterval is how often the dispatcher leases due tasks.
	PollInterval time.Duration
	// LeaseBatch is the maximum tasks leased per poll.
	LeaseBatch int
	// TaskTimeout bounds one task's execution.
	TaskTimeout time.Duration
	// SyncInterval is the period of the full reconciliation sweep. Zero
	// disables the sweep.
	SyncInterval time.Duration
	// LogRetention is the number of sync log entries to keep. Zero disables
	// pruning.
	LogRetention int
	// PruneInterval is how often the log retention limit is enforced.
	PruneInterval time.Duration
}

// DefaultConfig returns default worker settings.
func DefaultConfig() Config {
	return Config{
		WorkerCount:   3,
		PollInterval:  2 * time.Second,
		LeaseBatch:    20,
		TaskTimeout:   2 * time.Minute,
		SyncInterval:  15 * time.Minute,
		LogRetention:  10000,
		PruneInterval: 1 * time.Hour,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.WorkerCount <= 0 {
		return ErrInvalidConfig
	}
	if c.PollInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.LeaseBatch <= 0 {
		return ErrInvalidConfig
	}
	if c.TaskTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// SyncWorker
// ---------------------------------------------------------------------------

// SyncWorker drains the task queue and dispatches each task to the sync
// engine. It also drives the periodic full reconciliation sweep and sync log
// pruning.
type SyncWorker struct {
	config   Config
	tasks    queue.TaskQueue
	executor SyncExecutor
	pruner   LogPruner
	logger   *zap.Logger

	work      chan queue.Task
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSyncWorker creates a sync worker. pruner may be nil when log retention
// is disabled.
func NewSyncWorker(config Config, tasks queue.TaskQueue, executor SyncExecutor, pruner LogPruner, logger *zap.Logger) (*SyncWorker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &SyncWorker{
		config:   config,
		tasks:    tasks,
		executor: executor,
		pruner:   pruner,
		logger:   logger,
		work:     make(chan queue.Task, config.LeaseBatch*2),
	}, nil
}

// Start starts the dispatcher, the worker pool and the periodic tickers.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = true
	w.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.dispatch(ctx)

	for i := 0; i < w.config.WorkerCount; i++ {
		w.wg.Add(1)
		go w.worker(ctx, i)
	}

	if w.config.SyncInterval > 0 {
		w.wg.Add(1)
		go w.sweepLoop(ctx)
	}
	if w.config.LogRetention > 0 && w.pruner != nil {
		w.wg.Add(1)
		go w.pruneLoop(ctx)
	}

	w.logger.Info("sync worker started",
		zap.Int("workers", w.config.WorkerCount),
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Duration("sync_interval", w.config.SyncInterval),
	)
	return nil
}

// Stop gracefully stops the worker, waiting for in-flight tasks up to the
// context deadline.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("sync worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.Warn("sync worker stop timed out")
		return ctx.Err()
	}
}

// ---------------------------------------------------------------------------
// Loops
// ---------------------------------------------------------------------------

// dispatch polls the queue and feeds due tasks to the worker pool.
func (w *SyncWorker) dispatch(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			leased, err := w.tasks.Lease(ctx, w.config.LeaseBatch)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Error("failed to lease tasks", zap.Error(err))
				continue
			}
			for _, task := range leased {
				select {
				case w.work <- task:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// worker processes tasks from the pool channel.
func (w *SyncWorker) worker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	w.logger.Debug("sync worker goroutine started", zap.Int("worker_id", workerID))
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.work:
			w.process(ctx, task, workerID)
		}
	}
}

// process executes a single task with a bounded timeout. The unique key is
// held for the whole execution, so duplicate enqueues keep collapsing until
// the task finishes. Failures are logged only; once the key is released, a
// later enqueue or sweep retries the order.
func (w *SyncWorker) process(ctx context.Context, task queue.Task, workerID int) {
	taskCtx, cancel := context.WithTimeout(ctx, w.config.TaskTimeout)
	defer cancel()

	start := time.Now()
	err := w.execute(taskCtx, task)
	if task.UniqueKey != "" {
		// Release with a fresh context; the task context may be done.
		if relErr := w.tasks.Release(context.WithoutCancel(ctx), task.UniqueKey); relErr != nil {
			w.logger.Error("failed to release task key",
				zap.String("unique_key", task.UniqueKey),
				zap.Error(relErr),
			)
		}
	}
	if err != nil {
		w.logger.Error("task failed",
			zap.Int("worker_id", workerID),
			zap.String("task", task.Name),
			zap.String("unique_key", task.UniqueKey),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}

	w.logger.Debug("task completed",
		zap.Int("worker_id", workerID),
		zap.String("task", task.Name),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (w *SyncWorker) execute(ctx context.Context, task queue.Task) error {
	switch task.Name {
	case queue.TaskImportOrder:
		return w.executor.ImportOrder(ctx, task.Args["provider_order_id"])
	case queue.TaskSyncOrder:
		localOrderID, err := uuid.Parse(task.Args["local_order_id"])
		if err != nil {
			// The link may have been created after enqueue; import resolves
			// either way.
			return w.executor.ImportOrder(ctx, task.Args["provider_order_id"])
		}
		return w.executor.SyncExistingOrder(ctx, task.Args["provider_order_id"], localOrderID)
	case queue.TaskSyncAll:
		_, err := w.executor.SyncAll(ctx)
		return err
	default:
		w.logger.Warn("unknown task name, dropping", zap.String("task", task.Name))
		return nil
	}
}

// sweepLoop enqueues the periodic full reconciliation sweep. The sweep runs
// through the queue so it shares the idempotency key with manual triggers.
func (w *SyncWorker) sweepLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			scheduled, err := w.tasks.Enqueue(ctx, queue.TaskSyncAll, nil, 0, queue.TaskSyncAll)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Error("failed to enqueue reconciliation sweep", zap.Error(err))
				continue
			}
			if !scheduled {
				w.logger.Debug("reconciliation sweep already pending")
			}
		}
	}
}

// pruneLoop enforces the sync log retention limit.
func (w *SyncWorker) pruneLoop(ctx context.Context) {
	defer w.wg.Done()

	interval := w.config.PruneInterval
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.pruner.Prune(ctx, w.config.LogRetention); err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Error("failed to prune sync logs", zap.Error(err))
			}
		}
	}
}
