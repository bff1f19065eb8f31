package services

import (
	"fmt"
	"math"
	"time"

	"claim-service/internal/models"
	"claim-service/internal/ports"

	"github.com/shopspring/decimal"
)

const (
	baseConfidence        = 0.80
	maxConfidence         = 0.98
	minSettlementHours    = 1
	maxSettlementHours    = 12
	highDeviationBoundary = 0.30
	lowDeviationBoundary  = 0.10
)

var hundred = decimal.NewFromInt(100)

// Shortfall is the fraction of the threshold that did not fall, in [0, 1].
func Shortfall(threshold, observed float64) decimal.Decimal {
	if threshold <= 0 || observed >= threshold {
		return decimal.Zero
	}
	t := decimal.NewFromFloat(threshold)
	deficit := t.Sub(decimal.NewFromFloat(math.Max(observed, 0)))
	return deficit.Div(t)
}

// ComputePayout returns round(coverage * (threshold - observed) / threshold) in whole
// currency units, half away from zero. Any positive shortfall on a positive
// coverage pays at least one unit.
func ComputePayout(coverage decimal.Decimal, threshold, observed float64) decimal.Decimal {
	shortfall := Shortfall(threshold, observed)
	if shortfall.IsZero() || !coverage.IsPositive() {
		return decimal.Zero
	}

	amount := coverage.Mul(shortfall).Round(0)
	if amount.IsZero() {
		return decimal.NewFromInt(1)
	}
	return amount
}

// ConfidenceScore grades how clear-cut the rainfall evidence is. The result is
// always within [0.80, 0.98].
func ConfidenceScore(threshold, observed float64, landVerified bool) float64 {
	score := baseConfidence
	if threshold > 0 {
		deviation := math.Abs(observed-threshold) / threshold
		switch {
		case deviation > highDeviationBoundary:
			score += 0.15
		case deviation > lowDeviationBoundary:
			score += 0.05
		}
	}
	if landVerified {
		score += 0.05
	}
	return math.Round(math.Min(score, maxConfidence)*100) / 100
}

// DrawSettlementHours picks the estimated payout delay, uniform over 1..12 hours.
func DrawSettlementHours(random ports.RandomSource) int {
	return minSettlementHours + random.IntN(maxSettlementHours-minSettlementHours+1)
}

// BuildDecision assembles the audit record for an adjudicated claim.
func BuildDecision(policy models.Policy, observed float64, verified bool, proofToken string, decidedAt time.Time) models.AdjudicationDecision {
	shortfall := Shortfall(policy.RainfallThreshold, observed)
	amount := ComputePayout(policy.CoverageAmount, policy.RainfallThreshold, observed)
	percent := int(shortfall.Mul(hundred).Round(0).IntPart())

	decision := models.AdjudicationDecision{
		LandVerified:        verified,
		ProofToken:          proofToken,
		RainfallObserved:    observed,
		RainfallThreshold:   policy.RainfallThreshold,
		ShortfallPercentage: percent,
		RecommendedAmount:   amount,
		ConfidenceScore:     ConfidenceScore(policy.RainfallThreshold, observed, verified),
		DecidedAt:           decidedAt,
	}

	if amount.IsZero() {
		decision.Rationale = fmt.Sprintf(
			"Rainfall of %.1fmm met the %.1fmm threshold for policy %s; no payout is due.",
			observed, policy.RainfallThreshold, policy.PolicyNumber)
		return decision
	}

	decision.Rationale = fmt.Sprintf(
		"Rainfall of %.1fmm was %d%% below the %.1fmm threshold for policy %s. "+
			"Land holding verified on the ledger. Recommended payout ₹%s of ₹%s coverage.",
		observed, percent, policy.RainfallThreshold, policy.PolicyNumber,
		amount.StringFixed(0), policy.CoverageAmount.StringFixed(0))
	return decision
}
