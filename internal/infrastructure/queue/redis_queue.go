package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	scheduleKey      = "printsync:tasks"
	pendingKeyPrefix = "printsync:tasks:pending:"

	// pendingKeyTTL bounds how long an idempotency marker can outlive its
	// task if a crash loses the scheduled entry.
	pendingKeyTTL = 24 * time.Hour
)

// RedisQueue is a Redis-backed TaskQueue. Scheduled tasks live in a sorted
// set scored by due time; a SETNX marker per unique key collapses duplicate
// enqueues while a task is pending.
type RedisQueue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisQueue creates a Redis-backed task queue.
func NewRedisQueue(client *redis.Client, logger *zap.Logger) *RedisQueue {
	return &RedisQueue{client: client, logger: logger}
}

// Enqueue schedules a task after the given delay, collapsing duplicates by
// unique key.
func (q *RedisQueue) Enqueue(ctx context.Context, task string, args map[string]string, delay time.Duration, uniqueKey string) (bool, error) {
	if uniqueKey != "" {
		acquired, err := q.client.SetNX(ctx, pendingKeyPrefix+uniqueKey, 1, pendingKeyTTL).Result()
		if err != nil {
			return false, fmt.Errorf("queue: acquire pending key: %w", err)
		}
		if !acquired {
			q.logger.Debug("task collapsed into pending duplicate",
				zap.String("task", task),
				zap.String("unique_key", uniqueKey),
			)
			return false, nil
		}
	}

	entry := Task{
		Name:      task,
		Args:      args,
		UniqueKey: uniqueKey,
		DueAt:     time.Now().Add(delay),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("queue: encode task: %w", err)
	}

	if err := q.client.ZAdd(ctx, scheduleKey, redis.Z{
		Score:  float64(entry.DueAt.UnixMilli()),
		Member: payload,
	}).Err(); err != nil {
		// Release the marker so the task can be rescheduled.
		if uniqueKey != "" {
			q.client.Del(ctx, pendingKeyPrefix+uniqueKey)
		}
		return false, fmt.Errorf("queue: schedule task: %w", err)
	}
	return true, nil
}

// Lease removes and returns up to limit due tasks. Unique keys stay held
// until Release so duplicates keep collapsing while a task executes.
func (q *RedisQueue) Lease(ctx context.Context, limit int) ([]Task, error) {
	now := time.Now().UnixMilli()
	members, err := q.client.ZRangeByScore(ctx, scheduleKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: range due tasks: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	tasks := make([]Task, 0, len(members))
	for _, member := range members {
		// Only the caller that removes the member owns the task.
		removed, err := q.client.ZRem(ctx, scheduleKey, member).Result()
		if err != nil {
			return tasks, fmt.Errorf("queue: remove leased task: %w", err)
		}
		if removed == 0 {
			continue
		}

		var task Task
		if err := json.Unmarshal([]byte(member), &task); err != nil {
			q.logger.Error("dropping undecodable task", zap.Error(err))
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Release frees a unique key after its task finished.
func (q *RedisQueue) Release(ctx context.Context, uniqueKey string) error {
	if uniqueKey == "" {
		return nil
	}
	if err := q.client.Del(ctx, pendingKeyPrefix+uniqueKey).Err(); err != nil {
		return fmt.Errorf("queue: release pending key: %w", err)
	}
	return nil
}

var _ TaskQueue = (*RedisQueue)(nil)
