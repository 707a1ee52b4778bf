// Package queue implements a Redis-backed reliable task queue standing in
// for the Celery/broker contract the original implementation relied on
// (C10). Each queue name maps to a list pair: the queue list itself and a
// processing list that holds in-flight tasks until they are acknowledged.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "storectl:queue:"

// Task is a unit of provisioning work. Kind selects the handler; StoreID
// identifies the store the task operates on; Attempt is incremented on
// each Requeue so the worker can give up after its configured maximum
// number of retries, replacing Celery's built-in retry counter.
type Task struct {
	ID      uuid.UUID `json:"id"`
	Kind    string    `json:"kind"`
	StoreID uuid.UUID `json:"store_id"`
	Attempt int       `json:"attempt"`
}

// Queue wraps a Redis client bound to a single named queue.
type Queue struct {
	rdb  *redis.Client
	name string
}

// New creates a Queue named name.
func New(rdb *redis.Client, name string) *Queue {
	return &Queue{rdb: rdb, name: name}
}

func (q *Queue) mainKey() string {
	return keyPrefix + q.name
}

func (q *Queue) processingKey() string {
	return keyPrefix + q.name + ":processing"
}

// delayedKey returns the sorted-set key holding tasks awaiting retry.
// Members are scored by the unix timestamp at which they become eligible
// to be promoted back onto the main queue, since Redis lists have no
// native per-item visibility delay.
func (q *Queue) delayedKey() string {
	return keyPrefix + q.name + ":delayed"
}

// Enqueue pushes a new task onto the queue.
func (q *Queue) Enqueue(ctx context.Context, kind string, storeID uuid.UUID) error {
	task := Task{ID: uuid.New(), Kind: kind, StoreID: storeID, Attempt: 0}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshaling task: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.mainKey(), data).Err(); err != nil {
		return fmt.Errorf("enqueueing task: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout waiting for a task, atomically moving it
// into the processing list. The caller must Ack (or Requeue) the returned
// task once handled; a task left in the processing list after a crash can
// be recovered by Requeue.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	result, err := q.rdb.BRPopLPush(ctx, q.mainKey(), q.processingKey(), timeout).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeueing task: %w", err)
	}

	var task Task
	if err := json.Unmarshal([]byte(result), &task); err != nil {
		// Drop the unparseable entry so it doesn't jam the processing list.
		_ = q.rdb.LRem(ctx, q.processingKey(), 1, result).Err()
		return nil, fmt.Errorf("unmarshaling task: %w", err)
	}

	return &task, nil
}

// Ack removes a successfully processed task from the processing list.
func (q *Queue) Ack(ctx context.Context, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshaling task for ack: %w", err)
	}
	if err := q.rdb.LRem(ctx, q.processingKey(), 1, data).Err(); err != nil {
		return fmt.Errorf("acking task: %w", err)
	}
	return nil
}

// Requeue moves a task back from the processing list into the delayed set
// with its attempt counter incremented, for retry after a handler failure
// or a crash-recovery sweep. The task becomes visible to Dequeue again
// only after delay elapses and PromoteDelayed has moved it onto the main
// queue; a zero delay still requires a PromoteDelayed call to surface it.
func (q *Queue) Requeue(ctx context.Context, task *Task, delay time.Duration) error {
	old, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshaling task: %w", err)
	}
	if err := q.rdb.LRem(ctx, q.processingKey(), 1, old).Err(); err != nil {
		return fmt.Errorf("removing task from processing list: %w", err)
	}

	task.Attempt++
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshaling requeued task: %w", err)
	}

	readyAt := float64(time.Now().Add(delay).Unix())
	if err := q.rdb.ZAdd(ctx, q.delayedKey(), redis.Z{Score: readyAt, Member: data}).Err(); err != nil {
		return fmt.Errorf("scheduling delayed retry: %w", err)
	}
	return nil
}

// PromoteDelayed moves every delayed task whose ready-at time has passed
// onto the main queue, making it eligible for Dequeue again. Callers poll
// this alongside Dequeue since Redis has no built-in delayed-visibility
// primitive for list-based queues.
func (q *Queue) PromoteDelayed(ctx context.Context) error {
	now := fmt.Sprintf("%d", time.Now().Unix())
	due, err := q.rdb.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return fmt.Errorf("listing due delayed tasks: %w", err)
	}

	for _, data := range due {
		removed, err := q.rdb.ZRem(ctx, q.delayedKey(), data).Result()
		if err != nil {
			return fmt.Errorf("removing delayed task: %w", err)
		}
		if removed == 0 {
			// Another worker already promoted this entry.
			continue
		}
		if err := q.rdb.LPush(ctx, q.mainKey(), data).Err(); err != nil {
			return fmt.Errorf("promoting delayed task: %w", err)
		}
	}
	return nil
}

// Depth returns the number of tasks currently waiting in the main queue.
// It does not update the telemetry QueueDepth gauge.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.mainKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("measuring queue depth: %w", err)
	}
	return n, nil
}

// DelayedDepth returns the number of tasks currently waiting out their
// retry delay, not yet eligible for Dequeue.
func (q *Queue) DelayedDepth(ctx context.Context) (int64, error) {
	n, err := q.rdb.ZCard(ctx, q.delayedKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("measuring delayed queue depth: %w", err)
	}
	return n, nil
}
