package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Claim struct {
	ID              int64                 `json:"id" db:"id"`
	ClaimNumber     string                `json:"claimNumber" db:"claim_number"`
	FarmerID        int64                 `json:"farmerId" db:"farmer_id"`
	PolicyID        int64                 `json:"policyId" db:"policy_id"`
	RequestedAmount decimal.Decimal       `json:"requestedAmount" db:"requested_amount"`
	ClaimAmount     decimal.Decimal       `json:"claimAmount" db:"claim_amount"`
	ActualRainfall  *float64              `json:"actualRainfall" db:"actual_rainfall"`
	Status          ClaimStatus           `json:"status" db:"status"`
	ReasonCode      *RejectionReason      `json:"reasonCode,omitempty" db:"reason_code"`
	Decision        *AdjudicationDecision `json:"decision,omitempty" db:"decision"`
	SettlementTime  *int                  `json:"settlementTime,omitempty" db:"settlement_time"`
	Description     *string               `json:"description,omitempty" db:"description"`
	CreatedAt       time.Time             `json:"createdAt" db:"created_at"`
	ProcessedAt     *time.Time            `json:"processedAt,omitempty" db:"processed_at"`
	SettledAt       *time.Time            `json:"settledAt,omitempty" db:"settled_at"`
	UpdatedAt       time.Time             `json:"updatedAt" db:"updated_at"`
}

// ClaimRejection carries the fields written when a claim leaves processing as rejected.
type ClaimRejection struct {
	Reason         RejectionReason
	ActualRainfall *float64
	Decision       *AdjudicationDecision
}

// ClaimApproval carries the fields written on processing -> approved.
type ClaimApproval struct {
	ClaimAmount    decimal.Decimal
	ActualRainfall float64
	Decision       AdjudicationDecision
	SettlementTime int
}
