package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"claim-service/internal/models"
	"claim-service/internal/ports"
	"claim-service/internal/repository"
	"claim-service/internal/worker"

	"github.com/shopspring/decimal"
)

type ClaimService struct {
	claims   ClaimStore
	payments PaymentStore
	policies PolicyStore
	numbers  *ClaimNumberGenerator
	tasks    TaskEnqueuer
	clock    ports.Clock
}

func NewClaimService(
	claims ClaimStore,
	payments PaymentStore,
	policies PolicyStore,
	numbers *ClaimNumberGenerator,
	tasks TaskEnqueuer,
	clock ports.Clock,
) *ClaimService {
	return &ClaimService{
		claims:   claims,
		payments: payments,
		policies: policies,
		numbers:  numbers,
		tasks:    tasks,
		clock:    clock,
	}
}

// SubmitClaim files a claim against an active policy and schedules adjudication.
// The returned claim is always in submitted state.
func (s *ClaimService) SubmitClaim(ctx context.Context, req models.SubmitClaimRequest) (*models.Claim, error) {
	if req.FarmerID <= 0 {
		return nil, fmt.Errorf("%w: farmerId must be positive", ErrValidation)
	}
	if req.PolicyID <= 0 {
		return nil, fmt.Errorf("%w: policyId must be positive", ErrValidation)
	}
	requested := decimal.Zero
	if req.RequestedAmount != nil {
		if req.RequestedAmount.IsNegative() {
			return nil, fmt.Errorf("%w: requestedAmount must not be negative", ErrValidation)
		}
		requested = *req.RequestedAmount
	}

	if _, err := s.policies.GetFarmer(ctx, req.FarmerID); err != nil {
		return nil, fmt.Errorf("farmer lookup failed: %w", err)
	}
	policy, err := s.policies.GetPolicy(ctx, req.PolicyID)
	if err != nil {
		return nil, fmt.Errorf("policy lookup failed: %w", err)
	}
	if policy.FarmerID != req.FarmerID {
		return nil, fmt.Errorf("policy %d, farmer %d: %w", policy.ID, req.FarmerID, ErrPolicyFarmerMismatch)
	}
	if policy.Status != models.PolicyActive {
		return nil, fmt.Errorf("policy %d is %s: %w", policy.ID, policy.Status, ErrPolicyNotActive)
	}

	claim := &models.Claim{
		FarmerID:        req.FarmerID,
		PolicyID:        req.PolicyID,
		RequestedAmount: requested,
		ClaimAmount:     decimal.Zero,
		Status:          models.ClaimSubmitted,
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		claim.Description = &desc
	}

	if err := s.create(ctx, claim); err != nil {
		return nil, err
	}

	slog.Info("claim submitted",
		"claim_id", claim.ID,
		"claim_number", claim.ClaimNumber,
		"farmer_id", claim.FarmerID,
		"policy_id", claim.PolicyID)

	if err := s.tasks.Enqueue(ctx, worker.TaskAdjudicateClaim, claim.ID); err != nil {
		// the recovery sweep re-enqueues submitted claims without an open task
		slog.Error("failed to enqueue adjudication", "claim_id", claim.ID, "error", err)
	}

	return claim, nil
}

func (s *ClaimService) create(ctx context.Context, claim *models.Claim) error {
	var err error
	for attempt := 1; attempt <= claimNumberAttempts; attempt++ {
		claim.ClaimNumber = s.numbers.Next()
		err = s.claims.Create(ctx, claim)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("failed to create claim: %w", err)
		}
		slog.Warn("claim number collision, regenerating", "claim_number", claim.ClaimNumber, "attempt", attempt)
	}
	return fmt.Errorf("failed to allocate a unique claim number: %w", err)
}

func (s *ClaimService) GetClaim(ctx context.Context, id int64) (*models.Claim, error) {
	claim, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("claim not found: %w", err)
	}
	return claim, nil
}

// ListClaimsByFarmer returns the farmer's claims, most recent first
func (s *ClaimService) ListClaimsByFarmer(ctx context.Context, farmerID int64) ([]models.Claim, error) {
	if farmerID <= 0 {
		return nil, fmt.Errorf("%w: farmerId must be positive", ErrValidation)
	}
	claims, err := s.claims.ListByFarmer(ctx, farmerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get farmer claims: %w", err)
	}
	return claims, nil
}

// ListPaymentsByClaim returns every payment attempt for the claim, newest first
func (s *ClaimService) ListPaymentsByClaim(ctx context.Context, claimID int64) ([]models.Payment, error) {
	if _, err := s.claims.GetByID(ctx, claimID); err != nil {
		return nil, fmt.Errorf("claim not found: %w", err)
	}
	payments, err := s.payments.ListByClaim(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to get claim payments: %w", err)
	}
	return payments, nil
}
