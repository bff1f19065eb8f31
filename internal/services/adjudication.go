package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"claim-service/internal/models"
	"claim-service/internal/ports"
	"claim-service/internal/worker"
)

// Adjudicator decides submitted claims: land verification, rainfall evaluation,
// payout computation and the approve/reject write. Each claim enters processing
// exactly once; a second run for the same claim is a no-op.
type Adjudicator struct {
	claims   ClaimStore
	policies PolicyStore
	verifier ports.LandVerifier
	weather  ports.WeatherProvider
	notifier ports.Notifier
	tasks    TaskEnqueuer
	random   ports.RandomSource
	clock    ports.Clock

	requireWeather bool
}

func NewAdjudicator(
	claims ClaimStore,
	policies PolicyStore,
	verifier ports.LandVerifier,
	weather ports.WeatherProvider,
	notifier ports.Notifier,
	tasks TaskEnqueuer,
	random ports.RandomSource,
	clock ports.Clock,
) *Adjudicator {
	return &Adjudicator{
		claims:   claims,
		policies: policies,
		verifier: verifier,
		weather:  weather,
		notifier: notifier,
		tasks:    tasks,
		random:   random,
		clock:    clock,
	}
}

// RequireWeatherData makes a period without any rainfall readings a processing
// error instead of zero rainfall. With it off, a weather outage pays full coverage.
func (a *Adjudicator) RequireWeatherData(require bool) *Adjudicator {
	a.requireWeather = require
	return a
}

// Adjudicate runs the workflow for one claim. Errors returned here are
// infrastructure failures before the claim was claimed for processing.
func (a *Adjudicator) Adjudicate(ctx context.Context, claimID int64) error {
	claim, err := a.claims.GetByID(ctx, claimID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.Warn("claim vanished before adjudication", "claim_id", claimID)
			return nil
		}
		return fmt.Errorf("failed to load claim for adjudication: %w", err)
	}

	if !claim.Status.CanTransition(models.ClaimProcessing) {
		slog.Info("claim already past intake, skipping adjudication", "claim_id", claimID, "status", claim.Status)
		return nil
	}

	owned, err := a.claims.MarkProcessing(ctx, claimID, a.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to start adjudication: %w", err)
	}
	if !owned {
		slog.Info("claim taken by another adjudication run", "claim_id", claimID)
		return nil
	}
	claim.Status = models.ClaimProcessing

	if err := a.evaluate(ctx, claim); err != nil {
		slog.Error("adjudication failed", "claim_id", claimID, "claim_number", claim.ClaimNumber, "error", err)
		return a.rejectForProcessingError(ctx, claim)
	}
	return nil
}

// evaluate runs everything after the processing transition. A panic is reported as an error.
func (a *Adjudicator) evaluate(ctx context.Context, claim *models.Claim) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adjudication panicked: %v", r)
		}
	}()

	details, err := a.policies.GetDetails(ctx, claim.PolicyID)
	if err != nil {
		return fmt.Errorf("failed to load policy details: %w", err)
	}

	survey := ""
	if details.LandHolding.SurveyNumber != nil {
		survey = *details.LandHolding.SurveyNumber
	}
	verification := a.verifier.VerifyLand(ctx, claim.FarmerID, survey)
	if !verification.Verified {
		return a.reject(ctx, claim, models.ClaimRejection{
			Reason: models.ReasonLandNotVerified,
			Decision: &models.AdjudicationDecision{
				LandVerified:      false,
				RainfallThreshold: details.Policy.RainfallThreshold,
				ConfidenceScore:   baseConfidence,
				Rationale:         "Land holding could not be verified on the ledger; rainfall was not evaluated.",
				DecidedAt:         a.clock.Now(),
			},
		})
	}

	readings := a.weather.Rainfall(ctx, details.Farmer.District, details.Farmer.State,
		details.Policy.ValidFrom, details.Policy.ValidTo)
	total := ports.TotalRainfall(readings)
	if len(readings) == 0 {
		if a.requireWeather {
			return fmt.Errorf("no rainfall data for %s, %s", details.Farmer.District, details.Farmer.State)
		}
		// an unreachable weather port lands here too, and pays the full coverage amount
		slog.Warn("no rainfall data for policy period, treating as zero",
			"claim_id", claim.ID,
			"district", details.Farmer.District,
			"state", details.Farmer.State)
	}

	decision := BuildDecision(details.Policy, total, true, verification.ProofToken, a.clock.Now())

	if total >= details.Policy.RainfallThreshold {
		return a.reject(ctx, claim, models.ClaimRejection{
			Reason:         models.ReasonRainfallAboveThreshold,
			ActualRainfall: &total,
			Decision:       &decision,
		})
	}

	approval := models.ClaimApproval{
		ClaimAmount:    decision.RecommendedAmount,
		ActualRainfall: total,
		Decision:       decision,
		SettlementTime: DrawSettlementHours(a.random),
	}
	return a.approve(ctx, claim, approval)
}

func (a *Adjudicator) approve(ctx context.Context, claim *models.Claim, approval models.ClaimApproval) error {
	ok, err := a.claims.Approve(ctx, claim.ID, approval, a.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to approve claim: %w", err)
	}
	if !ok {
		return fmt.Errorf("claim %d left processing during adjudication", claim.ID)
	}

	slog.Info("claim approved",
		"claim_id", claim.ID,
		"claim_number", claim.ClaimNumber,
		"amount", approval.ClaimAmount.String(),
		"rainfall_mm", approval.ActualRainfall,
		"confidence", approval.Decision.ConfidenceScore,
		"settlement_hours", approval.SettlementTime)

	a.notifier.Notify(ctx, claim.FarmerID, ports.NotifyClaimApproved, map[string]any{
		"claimId":        claim.ID,
		"claimNumber":    claim.ClaimNumber,
		"amount":         approval.ClaimAmount.StringFixed(0),
		"settlementTime": approval.SettlementTime,
	})

	if err := a.tasks.Enqueue(ctx, worker.TaskSettleClaim, claim.ID); err != nil {
		// approved claims without a payment are picked up by the recovery sweep
		slog.Error("failed to enqueue settlement", "claim_id", claim.ID, "error", err)
	}
	return nil
}

func (a *Adjudicator) reject(ctx context.Context, claim *models.Claim, rejection models.ClaimRejection) error {
	ok, err := a.claims.Reject(ctx, claim.ID, rejection, a.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to reject claim: %w", err)
	}
	if !ok {
		return fmt.Errorf("claim %d left processing during adjudication", claim.ID)
	}

	slog.Info("claim rejected", "claim_id", claim.ID, "claim_number", claim.ClaimNumber, "reason", rejection.Reason)
	notifyRejected(ctx, a.notifier, claim, rejection.Reason)
	return nil
}

// rejectForProcessingError closes a processing claim after an unexpected failure.
// It runs on a fresh context so a cancelled task still leaves a final outcome.
func (a *Adjudicator) rejectForProcessingError(ctx context.Context, claim *models.Claim) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return closeAsProcessingError(writeCtx, a.claims, a.notifier, claim, a.clock.Now())
}

func closeAsProcessingError(ctx context.Context, claims ClaimStore, notifier ports.Notifier, claim *models.Claim, at time.Time) error {
	ok, err := claims.Reject(ctx, claim.ID, models.ClaimRejection{Reason: models.ReasonProcessingError}, at)
	if err != nil {
		return fmt.Errorf("failed to record processing error on claim %d: %w", claim.ID, err)
	}
	if !ok {
		return nil
	}
	slog.Warn("claim rejected with processing error", "claim_id", claim.ID, "claim_number", claim.ClaimNumber)
	notifyRejected(ctx, notifier, claim, models.ReasonProcessingError)
	return nil
}

func notifyRejected(ctx context.Context, notifier ports.Notifier, claim *models.Claim, reason models.RejectionReason) {
	notifier.Notify(ctx, claim.FarmerID, ports.NotifyClaimRejected, map[string]any{
		"claimId":     claim.ID,
		"claimNumber": claim.ClaimNumber,
		"reason":      string(reason),
		"explanation": reason.Explanation(),
	})
}
