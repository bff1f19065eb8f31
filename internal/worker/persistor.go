package worker

import (
	"context"
	"errors"
	"time"

	"claim-service/internal/utils"
)

// ErrTaskAlreadyOpen is returned when a claim already has an unfinished task of the same type.
var ErrTaskAlreadyOpen = errors.New("task already open for claim")

// TaskPersistor handles persistence of workflow tasks
type TaskPersistor interface {
	CreateTask(ctx context.Context, task *WorkflowTask) error
	MarkRunning(ctx context.Context, id int64, at time.Time) error
	MarkCompleted(ctx context.Context, id int64, at time.Time, summary utils.JSONMap) error
	// MarkFailed records an attempt failure. final=false leaves the task retrying.
	MarkFailed(ctx context.Context, id int64, retryCount int, errMsg string, final bool) error

	// Disaster Recovery
	LoadUnfinished(ctx context.Context, createdBefore time.Time, limit int) ([]*WorkflowTask, error)
	HasOpenTask(ctx context.Context, claimID int64, taskType TaskType) (bool, error)
}
