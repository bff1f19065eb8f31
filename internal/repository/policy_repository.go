package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"claim-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// PolicyRepository reads the coverage side of the schema: policies, farmers and
// land holdings. The claim workflow never writes to these tables.
type PolicyRepository struct {
	db *sqlx.DB
}

func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

func (r *PolicyRepository) GetPolicy(ctx context.Context, id int64) (*models.Policy, error) {
	var policy models.Policy
	query := `
		SELECT id, policy_number, farmer_id, land_holding_id, crop_type, season,
		       coverage_amount, premium, rainfall_threshold, valid_from, valid_to, status, created_at
		FROM policies
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &policy, query, id); err != nil {
		return nil, notFoundOr(err, "policy", id)
	}
	return &policy, nil
}

func (r *PolicyRepository) GetFarmer(ctx context.Context, id int64) (*models.Farmer, error) {
	var farmer models.Farmer
	query := `
		SELECT id, name, phone, district, state, bank_account, ifsc_code, created_at
		FROM farmers
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &farmer, query, id); err != nil {
		return nil, notFoundOr(err, "farmer", id)
	}
	return &farmer, nil
}

func (r *PolicyRepository) GetLandHolding(ctx context.Context, id int64) (*models.LandHolding, error) {
	var holding models.LandHolding
	query := `
		SELECT id, farmer_id, survey_number, area_acres, is_verified, created_at
		FROM land_holdings
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &holding, query, id); err != nil {
		return nil, notFoundOr(err, "land holding", id)
	}
	return &holding, nil
}

// GetDetails loads a policy with its farmer and land holding.
func (r *PolicyRepository) GetDetails(ctx context.Context, policyID int64) (*models.PolicyDetails, error) {
	policy, err := r.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}

	farmer, err := r.GetFarmer(ctx, policy.FarmerID)
	if err != nil {
		return nil, err
	}

	holding, err := r.GetLandHolding(ctx, policy.LandHoldingID)
	if err != nil {
		return nil, err
	}

	return &models.PolicyDetails{Policy: *policy, Farmer: *farmer, LandHolding: *holding}, nil
}

func notFoundOr(err error, entity string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", entity, err)
}
