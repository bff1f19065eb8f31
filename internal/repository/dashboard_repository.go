package repository

import (
	"context"
	"fmt"

	"claim-service/internal/models"

	"github.com/jmoiron/sqlx"
)

type DashboardRepository struct {
	db *sqlx.DB
}

func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

func (r *DashboardRepository) FarmerStats(ctx context.Context, farmerID int64) (*models.FarmerDashboard, error) {
	stats := models.FarmerDashboard{FarmerID: farmerID}
	query := `
		SELECT
			(SELECT COUNT(*) FROM policies WHERE farmer_id = $1 AND status = 'active') AS active_policies,
			COUNT(c.id) AS total_claims,
			COUNT(c.id) FILTER (WHERE c.status = 'settled') AS settled_claims,
			COALESCE(SUM(c.claim_amount) FILTER (WHERE c.status = 'settled'), 0) AS total_settlement_amount
		FROM claims c
		WHERE c.farmer_id = $1
	`
	if err := r.db.GetContext(ctx, &stats, query, farmerID); err != nil {
		return nil, fmt.Errorf("failed to load farmer dashboard: %w", err)
	}
	return &stats, nil
}

func (r *DashboardRepository) ClaimStatusCounts(ctx context.Context) (*models.ClaimStatusCounts, error) {
	var counts models.ClaimStatusCounts
	query := `
		SELECT
			(SELECT COUNT(*) FROM policies) AS total_policies,
			COUNT(*) FILTER (WHERE status = 'processing') AS processing,
			COUNT(*) FILTER (WHERE status = 'approved') AS approved,
			COUNT(*) FILTER (WHERE status = 'settled') AS settled,
			COUNT(*) FILTER (WHERE status = 'rejected') AS rejected,
			AVG(EXTRACT(EPOCH FROM (settled_at - created_at)) / 3600.0)
				FILTER (WHERE status = 'settled' AND settled_at IS NOT NULL) AS avg_settlement_hours
		FROM claims
	`
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("failed to load claim status counts: %w", err)
	}
	return &counts, nil
}
