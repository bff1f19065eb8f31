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
	"github.com/lib/pq"
)

const claimColumns = `
	id, claim_number, farmer_id, policy_id, requested_amount, claim_amount,
	actual_rainfall, status, reason_code, decision, settlement_time, description,
	created_at, processed_at, settled_at, updated_at`

type ClaimRepository struct {
	db *sqlx.DB
}

func NewClaimRepository(db *sqlx.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// ClaimFilter narrows List. Zero values are ignored.
type ClaimFilter struct {
	FarmerID      int64
	Statuses      []models.ClaimStatus
	UpdatedBefore time.Time
	Limit         int
}

// Create inserts a submitted claim and fills in its generated id and timestamps.
// A clash on claim_number is reported as ErrDuplicate.
func (r *ClaimRepository) Create(ctx context.Context, claim *models.Claim) error {
	query := `
		INSERT INTO claims (claim_number, farmer_id, policy_id, requested_amount, claim_amount, status, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		claim.ClaimNumber,
		claim.FarmerID,
		claim.PolicyID,
		claim.RequestedAmount,
		claim.ClaimAmount,
		claim.Status,
		claim.Description,
	).Scan(&claim.ID, &claim.CreatedAt, &claim.UpdatedAt)
	if err != nil {
		if uniqueViolation(err, "claims_claim_number_key") {
			return fmt.Errorf("claim number %s already taken: %w", claim.ClaimNumber, ErrDuplicate)
		}
		return fmt.Errorf("failed to create claim: %w", err)
	}

	return nil
}

// GetByID retrieves a claim by its ID
func (r *ClaimRepository) GetByID(ctx context.Context, id int64) (*models.Claim, error) {
	var claim models.Claim
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = $1`

	if err := r.db.GetContext(ctx, &claim, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("claim %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get claim by id: %w", err)
	}

	return &claim, nil
}

// List retrieves claims newest first
func (r *ClaimRepository) List(ctx context.Context, filter ClaimFilter) ([]models.Claim, error) {
	claims := []models.Claim{}
	query := `SELECT ` + claimColumns + ` FROM claims WHERE 1=1`

	args := []any{}
	argCount := 1

	if filter.FarmerID > 0 {
		query += fmt.Sprintf(" AND farmer_id = $%d", argCount)
		args = append(args, filter.FarmerID)
		argCount++
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query += fmt.Sprintf(" AND status = ANY($%d)", argCount)
		args = append(args, pq.Array(statuses))
		argCount++
	}

	if !filter.UpdatedBefore.IsZero() {
		query += fmt.Sprintf(" AND updated_at < $%d", argCount)
		args = append(args, filter.UpdatedBefore)
		argCount++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
	}

	if err := r.db.SelectContext(ctx, &claims, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}

	return claims, nil
}

// ListByFarmer retrieves a farmer's claims, most recent first
func (r *ClaimRepository) ListByFarmer(ctx context.Context, farmerID int64) ([]models.Claim, error) {
	return r.List(ctx, ClaimFilter{FarmerID: farmerID})
}

// MarkProcessing moves a submitted claim to processing. It reports false when the
// claim was not in submitted state, which means another run already owns it.
func (r *ClaimRepository) MarkProcessing(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `
		UPDATE claims SET status = $2, processed_at = $3, updated_at = $3
		WHERE id = $1 AND status = $4
	`
	return r.transition(ctx, "processing", query, id, models.ClaimProcessing, at, models.ClaimSubmitted)
}

// Approve records the adjudication outcome on a processing claim.
func (r *ClaimRepository) Approve(ctx context.Context, id int64, approval models.ClaimApproval, at time.Time) (bool, error) {
	query := `
		UPDATE claims SET
			status = $2,
			claim_amount = $3,
			actual_rainfall = COALESCE(actual_rainfall, $4),
			decision = $5,
			settlement_time = $6,
			processed_at = $7,
			updated_at = $7
		WHERE id = $1 AND status = $8
	`
	return r.transition(ctx, "approved", query,
		id, models.ClaimApproved, approval.ClaimAmount, approval.ActualRainfall,
		approval.Decision, approval.SettlementTime, at, models.ClaimProcessing)
}

// Reject closes a processing claim with a reason code. The claim amount is zeroed.
func (r *ClaimRepository) Reject(ctx context.Context, id int64, rejection models.ClaimRejection, at time.Time) (bool, error) {
	query := `
		UPDATE claims SET
			status = $2,
			reason_code = $3,
			claim_amount = 0,
			actual_rainfall = COALESCE(actual_rainfall, $4),
			decision = COALESCE($5, decision),
			processed_at = $6,
			updated_at = $6
		WHERE id = $1 AND status = $7
	`
	return r.transition(ctx, "rejected", query,
		id, models.ClaimRejected, rejection.Reason, rejection.ActualRainfall,
		rejection.Decision, at, models.ClaimProcessing)
}

// MarkSettled moves an approved claim to settled.
func (r *ClaimRepository) MarkSettled(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `
		UPDATE claims SET status = $2, settled_at = $3, updated_at = $3
		WHERE id = $1 AND status = $4
	`
	return r.transition(ctx, "settled", query, id, models.ClaimSettled, at, models.ClaimApproved)
}

func (r *ClaimRepository) transition(ctx context.Context, to, query string, args ...any) (bool, error) {
	err := utils.ExecWithCheck(ctx, r.db, query, utils.ExecUpdate, args...)
	if errors.Is(err, utils.ErrNoRowsAffected) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to move claim to %s: %w", to, err)
	}
	return true, nil
}

// ListApprovedWithoutPayment finds approved claims that never got a payment row.
func (r *ClaimRepository) ListApprovedWithoutPayment(ctx context.Context, before time.Time, limit int) ([]models.Claim, error) {
	claims := []models.Claim{}
	query := `SELECT ` + claimColumns + ` FROM claims c
		WHERE c.status = $1 AND c.updated_at < $2
		  AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.claim_id = c.id)
		ORDER BY c.updated_at
		LIMIT $3`

	if err := r.db.SelectContext(ctx, &claims, query, models.ClaimApproved, before, limit); err != nil {
		return nil, fmt.Errorf("failed to list approved claims without payment: %w", err)
	}
	return claims, nil
}
