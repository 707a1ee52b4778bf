package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	server := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
	return New(rdb, "provision")
}

func TestEnqueueDequeueAck(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	storeID := uuid.New()

	if err := q.Enqueue(ctx, "provision_store", storeID); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	task, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("Dequeue() error: %v", err)
	}
	if task == nil {
		t.Fatal("Dequeue() = nil, want a task")
	}
	if task.Kind != "provision_store" || task.StoreID != storeID {
		t.Errorf("Dequeue() = %+v, want kind=provision_store store_id=%s", task, storeID)
	}

	depthBeforeAck, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Depth() error: %v", err)
	}
	if depthBeforeAck != 0 {
		t.Errorf("Depth() = %d after dequeue, want 0", depthBeforeAck)
	}

	if err := q.Ack(ctx, task); err != nil {
		t.Fatalf("Ack() error: %v", err)
	}
}

func TestDequeueTimesOutWhenEmpty(t *testing.T) {
	q := newTestQueue(t)

	task, err := q.Dequeue(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue() error: %v", err)
	}
	if task != nil {
		t.Errorf("Dequeue() = %+v, want nil on empty queue", task)
	}
}

func TestRequeueDelaysVisibilityUntilPromoted(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	storeID := uuid.New()

	if err := q.Enqueue(ctx, "delete_store", storeID); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	task, err := q.Dequeue(ctx, time.Second)
	if err != nil || task == nil {
		t.Fatalf("Dequeue() = %+v, %v", task, err)
	}

	if err := q.Requeue(ctx, task, time.Minute); err != nil {
		t.Fatalf("Requeue() error: %v", err)
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Depth() error: %v", err)
	}
	if depth != 0 {
		t.Errorf("Depth() = %d right after requeue, want 0 (task should be delayed, not visible)", depth)
	}

	delayedDepth, err := q.DelayedDepth(ctx)
	if err != nil {
		t.Fatalf("DelayedDepth() error: %v", err)
	}
	if delayedDepth != 1 {
		t.Errorf("DelayedDepth() = %d after requeue, want 1", delayedDepth)
	}

	if err := q.PromoteDelayed(ctx); err != nil {
		t.Fatalf("PromoteDelayed() error: %v", err)
	}
	depth, err = q.Depth(ctx)
	if err != nil {
		t.Fatalf("Depth() error: %v", err)
	}
	if depth != 0 {
		t.Errorf("Depth() = %d after premature PromoteDelayed(), want 0 (delay has not elapsed)", depth)
	}

	redelivered, err := q.Dequeue(ctx, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue() error: %v", err)
	}
	if redelivered != nil {
		t.Fatalf("Dequeue() = %+v, want nil before the retry delay elapses", redelivered)
	}
}

func TestRequeueIncrementsAttemptAndBecomesVisibleAfterDelay(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	storeID := uuid.New()

	if err := q.Enqueue(ctx, "delete_store", storeID); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	task, err := q.Dequeue(ctx, time.Second)
	if err != nil || task == nil {
		t.Fatalf("Dequeue() = %+v, %v", task, err)
	}

	if err := q.Requeue(ctx, task, 0); err != nil {
		t.Fatalf("Requeue() error: %v", err)
	}

	if err := q.PromoteDelayed(ctx); err != nil {
		t.Fatalf("PromoteDelayed() error: %v", err)
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Depth() error: %v", err)
	}
	if depth != 1 {
		t.Errorf("Depth() = %d after promoting a zero-delay requeue, want 1", depth)
	}

	redelivered, err := q.Dequeue(ctx, time.Second)
	if err != nil || redelivered == nil {
		t.Fatalf("Dequeue() after requeue = %+v, %v", redelivered, err)
	}
	if redelivered.Attempt != 1 {
		t.Errorf("Requeue() attempt = %d, want 1", redelivered.Attempt)
	}
}
