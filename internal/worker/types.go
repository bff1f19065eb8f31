package worker

import (
	"time"

	"claim-service/internal/utils"
)

// TaskType names a unit of claim workflow work.
type TaskType string

const (
	TaskAdjudicateClaim TaskType = "adjudicate_claim"
	TaskSettleClaim     TaskType = "settle_claim"
)

// TaskStatus represents the execution state of a task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusRetrying  TaskStatus = "retrying"
)

// WorkflowTask is the durable record of one background task for a claim.
type WorkflowTask struct {
	ID            int64         `db:"id" json:"id"`
	ClaimID       int64         `db:"claim_id" json:"claim_id"`
	TaskType      TaskType      `db:"task_type" json:"task_type"`
	Status        TaskStatus    `db:"status" json:"status"`
	RetryCount    int           `db:"retry_count" json:"retry_count"`
	MaxRetries    int           `db:"max_retries" json:"max_retries"`
	ErrorMessage  *string       `db:"error_message" json:"error_message,omitempty"`
	ResultSummary utils.JSONMap `db:"result_summary" json:"result_summary,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	StartedAt     *time.Time    `db:"started_at" json:"started_at,omitempty"`
	CompletedAt   *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
}
