package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"claim-service/internal/utils"
)

// TaskHandler processes one claim. It must be idempotent: a task can run again
// after a crash or a retry.
type TaskHandler func(ctx context.Context, claimID int64) error

// TaskQueue persists claim tasks before handing them to a worker pool, and
// replays unfinished ones after a restart.
type TaskQueue struct {
	pool       Pool
	persistor  TaskPersistor
	maxRetries int
	backoff    time.Duration
	jobTimeout time.Duration

	mu       sync.RWMutex
	handlers map[TaskType]TaskHandler
	inflight sync.Map
}

func NewTaskQueue(pool Pool, persistor TaskPersistor, maxRetries int, backoff, jobTimeout time.Duration) *TaskQueue {
	return &TaskQueue{
		pool:       pool,
		persistor:  persistor,
		maxRetries: maxRetries,
		backoff:    backoff,
		jobTimeout: jobTimeout,
		handlers:   make(map[TaskType]TaskHandler),
	}
}

func (q *TaskQueue) Register(taskType TaskType, handler TaskHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskType] = handler
}

// Enqueue records a task for the claim and submits it. An already open task of
// the same type makes this a no-op.
func (q *TaskQueue) Enqueue(ctx context.Context, taskType TaskType, claimID int64) error {
	task := &WorkflowTask{
		ClaimID:    claimID,
		TaskType:   taskType,
		Status:     TaskStatusPending,
		MaxRetries: q.maxRetries,
	}

	if err := q.persistor.CreateTask(ctx, task); err != nil {
		if errors.Is(err, ErrTaskAlreadyOpen) {
			slog.Info("task already open, skipping enqueue", "task_type", taskType, "claim_id", claimID)
			return nil
		}
		return fmt.Errorf("failed to persist %s task: %w", taskType, err)
	}

	if err := q.submit(task); err != nil {
		if errors.Is(err, ErrQueueFull) {
			// the row stays pending and the recovery sweep picks it up
			slog.Warn("worker queue full, task deferred to recovery",
				"task_id", task.ID, "task_type", taskType, "claim_id", claimID)
			return nil
		}
		return err
	}
	return nil
}

// HasOpenTask reports whether the claim has a pending, running or retrying task of the type.
func (q *TaskQueue) HasOpenTask(ctx context.Context, taskType TaskType, claimID int64) (bool, error) {
	return q.persistor.HasOpenTask(ctx, claimID, taskType)
}

// Recover resubmits unfinished tasks created before the cutoff. It returns how many were resubmitted.
func (q *TaskQueue) Recover(ctx context.Context, createdBefore time.Time, limit int) (int, error) {
	tasks, err := q.persistor.LoadUnfinished(ctx, createdBefore, limit)
	if err != nil {
		return 0, err
	}

	submitted := 0
	for _, task := range tasks {
		if _, running := q.inflight.Load(task.ID); running {
			continue
		}
		if err := q.submit(task); err != nil {
			if errors.Is(err, ErrQueueFull) {
				slog.Warn("worker queue full, stopping recovery for this round", "resubmitted", submitted)
				break
			}
			slog.Error("failed to resubmit task", "task_id", task.ID, "claim_id", task.ClaimID, "error", err)
			continue
		}
		submitted++
	}

	if submitted > 0 {
		slog.Info("recovered unfinished tasks", "count", submitted)
	}
	return submitted, nil
}

// submit never waits for queue space. Callers include HTTP handlers and the
// pool's own workers.
func (q *TaskQueue) submit(task *WorkflowTask) error {
	if _, loaded := q.inflight.LoadOrStore(task.ID, struct{}{}); loaded {
		return nil
	}
	if err := q.pool.TrySubmitJob(q.job(task)); err != nil {
		q.inflight.Delete(task.ID)
		return err
	}
	return nil
}

func (q *TaskQueue) handler(taskType TaskType) (TaskHandler, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	h, ok := q.handlers[taskType]
	return h, ok
}

func (q *TaskQueue) job(task *WorkflowTask) Job {
	return func(ctx context.Context) error {
		handler, ok := q.handler(task.TaskType)
		if !ok {
			msg := fmt.Sprintf("no handler registered for %s", task.TaskType)
			q.recordFailure(task, msg, true)
			q.inflight.Delete(task.ID)
			return errors.New(msg)
		}

		if err := q.persistor.MarkRunning(ctx, task.ID, time.Now()); err != nil {
			slog.Error("failed to mark task running", "task_id", task.ID, "error", err)
		}

		err := q.run(ctx, handler, task.ClaimID)
		// the retry below resubmits under the same id, so release it first
		q.inflight.Delete(task.ID)
		if err == nil {
			if err := q.persistor.MarkCompleted(ctx, task.ID, time.Now(), utils.JSONMap{
				"claim_id": task.ClaimID,
				"attempts": task.RetryCount + 1,
			}); err != nil {
				slog.Error("failed to mark task completed", "task_id", task.ID, "error", err)
			}
			return nil
		}

		if ctx.Err() != nil {
			// shutting down; the task stays open and is recovered on the next start
			q.recordFailure(task, err.Error(), false)
			return err
		}

		task.RetryCount++
		if task.RetryCount > task.MaxRetries {
			slog.Error("task exhausted retries",
				"task_id", task.ID,
				"task_type", task.TaskType,
				"claim_id", task.ClaimID,
				"error", err)
			q.recordFailure(task, err.Error(), true)
			return err
		}

		q.recordFailure(task, err.Error(), false)
		delay := q.backoff * time.Duration(task.RetryCount)
		slog.Warn("task failed, scheduling retry",
			"task_id", task.ID,
			"task_type", task.TaskType,
			"claim_id", task.ClaimID,
			"attempt", task.RetryCount,
			"delay", delay,
			"error", err)

		time.AfterFunc(delay, func() {
			if err := q.submit(task); err != nil {
				slog.Warn("retry submit failed, task left for recovery", "task_id", task.ID, "error", err)
			}
		})
		return err
	}
}

func (q *TaskQueue) run(ctx context.Context, handler TaskHandler, claimID int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task handler panicked: %v", r)
		}
	}()

	runCtx := ctx
	if q.jobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, q.jobTimeout)
		defer cancel()
	}
	return handler(runCtx, claimID)
}

func (q *TaskQueue) recordFailure(task *WorkflowTask, msg string, final bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.persistor.MarkFailed(ctx, task.ID, task.RetryCount, msg, final); err != nil {
		slog.Error("failed to record task failure", "task_id", task.ID, "error", err)
	}
}
