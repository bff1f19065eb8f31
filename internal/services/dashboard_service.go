package services

import (
	"context"
	"log/slog"
	"math"

	"claim-service/internal/models"
	"claim-service/internal/repository"
)

const recentClaimsLimit = 10

type DashboardService struct {
	dashboardRepo DashboardStore
	claims        ClaimStore
}

func NewDashboardService(dashboardRepo DashboardStore, claims ClaimStore) *DashboardService {
	return &DashboardService{
		dashboardRepo: dashboardRepo,
		claims:        claims,
	}
}

func (s *DashboardService) FarmerDashboard(ctx context.Context, farmerID int64) (*models.FarmerDashboard, error) {
	stats, err := s.dashboardRepo.FarmerStats(ctx, farmerID)
	if err != nil {
		slog.Error("failed to get farmer dashboard", "farmer_id", farmerID, "error", err)
		return nil, err
	}
	return stats, nil
}

// InsurerDashboard summarizes the portfolio. The auto-approval rate is the share of
// decided claims that were approved, as a percentage.
func (s *DashboardService) InsurerDashboard(ctx context.Context) (*models.InsurerDashboard, error) {
	counts, err := s.dashboardRepo.ClaimStatusCounts(ctx)
	if err != nil {
		slog.Error("failed to get claim status counts", "error", err)
		return nil, err
	}

	recent, err := s.claims.List(ctx, repository.ClaimFilter{Limit: recentClaimsLimit})
	if err != nil {
		slog.Error("failed to get recent claims", "error", err)
		return nil, err
	}

	dashboard := &models.InsurerDashboard{
		TotalPolicies: counts.TotalPolicies,
		ActiveClaims:  counts.Processing,
		RecentClaims:  recent,
	}

	approved := counts.Approved + counts.Settled
	decided := approved + counts.Rejected
	if decided > 0 {
		dashboard.AutoApprovalRate = math.Round(float64(approved)/float64(decided)*10000) / 100
	}
	if counts.AvgSettlementHour != nil {
		dashboard.AvgSettlementHours = math.Round(*counts.AvgSettlementHour*100) / 100
	}

	return dashboard, nil
}
