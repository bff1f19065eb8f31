package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"claim-service/internal/utils"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const taskColumns = `
	id, claim_id, task_type, status, retry_count, max_retries, error_message,
	result_summary, created_at, started_at, completed_at`

// PostgresPersistor implements TaskPersistor for PostgreSQL
type PostgresPersistor struct {
	db *sqlx.DB
}

// NewPostgresPersistor creates a new PostgreSQL persistor
func NewPostgresPersistor(db *sqlx.DB) *PostgresPersistor {
	return &PostgresPersistor{db: db}
}

// CreateTask inserts a pending task and fills in its id
func (p *PostgresPersistor) CreateTask(ctx context.Context, task *WorkflowTask) error {
	query := `
		INSERT INTO workflow_tasks (claim_id, task_type, status, retry_count, max_retries)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := p.db.QueryRowxContext(ctx, query,
		task.ClaimID,
		task.TaskType,
		task.Status,
		task.RetryCount,
		task.MaxRetries,
	).Scan(&task.ID, &task.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return fmt.Errorf("%s for claim %d: %w", task.TaskType, task.ClaimID, ErrTaskAlreadyOpen)
		}
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

func (p *PostgresPersistor) MarkRunning(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE workflow_tasks SET status = $2, started_at = $3 WHERE id = $1`
	if err := utils.ExecWithCheck(ctx, p.db, query, utils.ExecUpdate, id, TaskStatusRunning, at); err != nil {
		return fmt.Errorf("failed to mark task %d running: %w", id, err)
	}
	return nil
}

func (p *PostgresPersistor) MarkCompleted(ctx context.Context, id int64, at time.Time, summary utils.JSONMap) error {
	query := `
		UPDATE workflow_tasks SET status = $2, completed_at = $3, result_summary = $4, error_message = NULL
		WHERE id = $1
	`
	if err := utils.ExecWithCheck(ctx, p.db, query, utils.ExecUpdate, id, TaskStatusCompleted, at, summary); err != nil {
		return fmt.Errorf("failed to mark task %d completed: %w", id, err)
	}
	return nil
}

func (p *PostgresPersistor) MarkFailed(ctx context.Context, id int64, retryCount int, errMsg string, final bool) error {
	status := TaskStatusRetrying
	var completedAt *time.Time
	if final {
		status = TaskStatusFailed
		now := time.Now()
		completedAt = &now
	}

	query := `
		UPDATE workflow_tasks SET status = $2, retry_count = $3, error_message = $4, completed_at = $5
		WHERE id = $1
	`
	if err := utils.ExecWithCheck(ctx, p.db, query, utils.ExecUpdate, id, status, retryCount, errMsg, completedAt); err != nil {
		return fmt.Errorf("failed to mark task %d failed: %w", id, err)
	}
	return nil
}

// LoadUnfinished returns pending, running and retrying tasks created before the cutoff, oldest first
func (p *PostgresPersistor) LoadUnfinished(ctx context.Context, createdBefore time.Time, limit int) ([]*WorkflowTask, error) {
	tasks := []*WorkflowTask{}
	query := `SELECT ` + taskColumns + ` FROM workflow_tasks
		WHERE status IN ($1, $2, $3) AND created_at < $4
		ORDER BY created_at
		LIMIT $5`

	err := p.db.SelectContext(ctx, &tasks, query,
		TaskStatusPending, TaskStatusRunning, TaskStatusRetrying, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load unfinished tasks: %w", err)
	}
	return tasks, nil
}

func (p *PostgresPersistor) HasOpenTask(ctx context.Context, claimID int64, taskType TaskType) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(
		SELECT 1 FROM workflow_tasks
		WHERE claim_id = $1 AND task_type = $2 AND status IN ($3, $4, $5))`

	err := p.db.GetContext(ctx, &exists, query,
		claimID, taskType, TaskStatusPending, TaskStatusRunning, TaskStatusRetrying)
	if err != nil {
		return false, fmt.Errorf("failed to check open tasks: %w", err)
	}
	return exists, nil
}
