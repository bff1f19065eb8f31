package services

import (
	"context"
	"time"

	"claim-service/internal/models"
	"claim-service/internal/repository"
	"claim-service/internal/worker"
)

type ClaimStore interface {
	Create(ctx context.Context, claim *models.Claim) error
	GetByID(ctx context.Context, id int64) (*models.Claim, error)
	List(ctx context.Context, filter repository.ClaimFilter) ([]models.Claim, error)
	ListByFarmer(ctx context.Context, farmerID int64) ([]models.Claim, error)
	MarkProcessing(ctx context.Context, id int64, at time.Time) (bool, error)
	Approve(ctx context.Context, id int64, approval models.ClaimApproval, at time.Time) (bool, error)
	Reject(ctx context.Context, id int64, rejection models.ClaimRejection, at time.Time) (bool, error)
	MarkSettled(ctx context.Context, id int64, at time.Time) (bool, error)
	ListApprovedWithoutPayment(ctx context.Context, before time.Time, limit int) ([]models.Claim, error)
}

type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id int64) (*models.Payment, error)
	ListByClaim(ctx context.Context, claimID int64) ([]models.Payment, error)
	MarkProcessing(ctx context.Context, id int64) (bool, error)
	Complete(ctx context.Context, id int64, transactionID string, at time.Time) (bool, error)
	Fail(ctx context.Context, id int64, reason string) (bool, error)
	SetReceipt(ctx context.Context, id int64, receiptNumber, objectName string) error
	ListStale(ctx context.Context, status models.PaymentStatus, before time.Time, limit int) ([]models.Payment, error)
}

type PolicyStore interface {
	GetPolicy(ctx context.Context, id int64) (*models.Policy, error)
	GetFarmer(ctx context.Context, id int64) (*models.Farmer, error)
	GetDetails(ctx context.Context, policyID int64) (*models.PolicyDetails, error)
}

type DashboardStore interface {
	FarmerStats(ctx context.Context, farmerID int64) (*models.FarmerDashboard, error)
	ClaimStatusCounts(ctx context.Context) (*models.ClaimStatusCounts, error)
}

// TaskEnqueuer hands claim work to the durable task queue.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, taskType worker.TaskType, claimID int64) error
	HasOpenTask(ctx context.Context, taskType worker.TaskType, claimID int64) (bool, error)
}

// ClaimLocker takes a non-blocking exclusive lock. release is nil when ok is false.
type ClaimLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// ReceiptStore is the object storage receipts are written to.
type ReceiptStore interface {
	UploadBytes(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error
	GetPresignedURL(ctx context.Context, bucketName, objectName string, expiry time.Duration) (string, error)
	FileExists(ctx context.Context, bucketName, objectName string) (bool, error)
}
