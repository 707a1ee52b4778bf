package provisioner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sujalmh/storectl/internal/queue"
)

// TaskKind values recognized by the Worker.
const (
	TaskProvisionStore = "provision_store"
	TaskDeleteStore    = "delete_store"
)

// baseRetryDelay is how long a failed task waits before it becomes
// eligible for redelivery.
const baseRetryDelay = 60 * time.Second

// Worker pulls tasks off a queue and dispatches them to a Provisioner,
// replacing Celery's task dispatch loop with an explicit poll/dequeue/ack
// cycle.
type Worker struct {
	queue       *queue.Queue
	provisioner *Provisioner
	maxRetries  int
	pollDelay   time.Duration
	logger      *slog.Logger
}

// NewWorker creates a Worker.
func NewWorker(q *queue.Queue, p *Provisioner, maxRetries int, pollDelay time.Duration, logger *slog.Logger) *Worker {
	return &Worker{queue: q, provisioner: p, maxRetries: maxRetries, pollDelay: pollDelay, logger: logger}
}

// Run polls the queue until ctx is cancelled, dispatching each task it
// receives.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := w.queue.PromoteDelayed(ctx); err != nil {
			w.logger.Error("promoting delayed tasks failed", "error", err)
		}

		task, err := w.queue.Dequeue(ctx, w.pollDelay)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			w.logger.Error("dequeueing task failed", "error", err)
			continue
		}
		if task == nil {
			continue
		}

		w.dispatch(ctx, task)
	}
}

// dispatch runs one task and acks or requeues it depending on the
// outcome. Once maxRetries is exceeded, it records the store's terminal
// error itself before acking, since that is the only point at which the
// failure is known to be final.
func (w *Worker) dispatch(ctx context.Context, task *queue.Task) {
	log := w.logger.With("task_id", task.ID, "kind", task.Kind, "store_id", task.StoreID, "attempt", task.Attempt)

	var err error
	switch task.Kind {
	case TaskProvisionStore:
		err = w.provisioner.Provision(ctx, task.StoreID)
	case TaskDeleteStore:
		err = w.provisioner.Deprovision(ctx, task.StoreID)
	default:
		log.Error("unknown task kind")
		if ackErr := w.queue.Ack(ctx, task); ackErr != nil {
			log.Error("acking unknown task failed", "error", ackErr)
		}
		return
	}

	if err == nil {
		if ackErr := w.queue.Ack(ctx, task); ackErr != nil {
			log.Error("acking completed task failed", "error", ackErr)
		}
		return
	}

	if task.Attempt >= w.maxRetries {
		log.Error("task exceeded max retries, giving up", "error", err)
		if markErr := w.provisioner.MarkFailed(ctx, task.StoreID, err); markErr != nil {
			log.Error("recording terminal store error failed", "error", markErr)
		}
		if ackErr := w.queue.Ack(ctx, task); ackErr != nil {
			log.Error("acking exhausted task failed", "error", ackErr)
		}
		return
	}

	log.Warn("task failed, requeueing for retry", "error", err, "delay", baseRetryDelay)
	if requeueErr := w.queue.Requeue(ctx, task, baseRetryDelay); requeueErr != nil {
		log.Error("requeueing task failed", "error", requeueErr)
	}
}
