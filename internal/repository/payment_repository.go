package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"claim-service/internal/models"
	"claim-service/internal/utils"

	"github.com/jmoiron/sqlx"
)

const paymentColumns = `
	id, claim_id, amount, bank_account, ifsc_code, transaction_id, status,
	payment_method, failure_reason, receipt_number, receipt_object, created_at, completed_at`

type PaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts an initiated payment. The partial unique index on claim_id
// rejects a second in-flight or completed payment with ErrDuplicate.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (claim_id, amount, bank_account, ifsc_code, transaction_id, status, payment_method)
		VALUES (:claim_id, :amount, :bank_account, :ifsc_code, :transaction_id, :status, :payment_method)
		RETURNING id, created_at
	`

	rows, err := r.db.NamedQueryContext(ctx, query, payment)
	if err != nil {
		if uniqueViolation(err, "uq_payments_claim_active") {
			return fmt.Errorf("claim %d already has an active payment: %w", payment.ClaimID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&payment.ID, &payment.CreatedAt); err != nil {
			return fmt.Errorf("failed to read created payment: %w", err)
		}
	}
	return rows.Err()
}

// GetByID retrieves a payment by its ID
func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	var payment models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment by id: %w", err)
	}

	return &payment, nil
}

// ListByClaim retrieves every payment attempt for a claim, newest first
func (r *PaymentRepository) ListByClaim(ctx context.Context, claimID int64) ([]models.Payment, error) {
	payments := []models.Payment{}
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE claim_id = $1 ORDER BY created_at DESC, id DESC`

	if err := r.db.SelectContext(ctx, &payments, query, claimID); err != nil {
		return nil, fmt.Errorf("failed to list payments for claim: %w", err)
	}

	return payments, nil
}

// MarkProcessing moves an initiated payment to processing.
func (r *PaymentRepository) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE payments SET status = $2 WHERE id = $1 AND status = $3`
	return r.transition(ctx, "processing", query, id, models.PaymentProcessing, models.PaymentInitiated)
}

// Complete records a successful payout on a processing payment.
func (r *PaymentRepository) Complete(ctx context.Context, id int64, transactionID string, at time.Time) (bool, error) {
	query := `
		UPDATE payments SET status = $2, transaction_id = $3, completed_at = $4, failure_reason = NULL
		WHERE id = $1 AND status = $5
	`
	return r.transition(ctx, "completed", query, id, models.PaymentCompleted, transactionID, at, models.PaymentProcessing)
}

// Fail marks an initiated or processing payment as failed.
func (r *PaymentRepository) Fail(ctx context.Context, id int64, reason string) (bool, error) {
	query := `
		UPDATE payments SET status = $2, failure_reason = $3
		WHERE id = $1 AND status IN ($4, $5)
	`
	return r.transition(ctx, "failed", query, id, models.PaymentFailed, reason, models.PaymentInitiated, models.PaymentProcessing)
}

// SetReceipt stores the receipt reference of a completed payment.
func (r *PaymentRepository) SetReceipt(ctx context.Context, id int64, receiptNumber, objectName string) error {
	query := `UPDATE payments SET receipt_number = $2, receipt_object = $3 WHERE id = $1`
	if err := utils.ExecWithCheck(ctx, r.db, query, utils.ExecUpdate, id, receiptNumber, objectName); err != nil {
		if errors.Is(err, utils.ErrNoRowsAffected) {
			return fmt.Errorf("payment %d: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to set payment receipt: %w", err)
	}
	return nil
}

// ListStale returns payments left in the given status since before.
func (r *PaymentRepository) ListStale(ctx context.Context, status models.PaymentStatus, before time.Time, limit int) ([]models.Payment, error) {
	payments := []models.Payment{}
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE status = $1 AND created_at < $2 ORDER BY created_at LIMIT $3`

	if err := r.db.SelectContext(ctx, &payments, query, status, before, limit); err != nil {
		return nil, fmt.Errorf("failed to list stale payments: %w", err)
	}
	return payments, nil
}

func (r *PaymentRepository) transition(ctx context.Context, to, query string, args ...any) (bool, error) {
	err := utils.ExecWithCheck(ctx, r.db, query, utils.ExecUpdate, args...)
	if errors.Is(err, utils.ErrNoRowsAffected) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to move payment to %s: %w", to, err)
	}
	return true, nil
}
