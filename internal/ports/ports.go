// Package ports declares the external boundaries the claim workflow depends on.
// Every port reports failure through its result value; none of them return errors.
package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type LandVerification struct {
	Verified   bool
	ProofToken string
}

type LandVerifier interface {
	VerifyLand(ctx context.Context, farmerID int64, surveyNumber string) LandVerification
}

type RainfallReading struct {
	Date       time.Time `json:"date"`
	RainfallMM float64   `json:"rainfallMm"`
}

type WeatherProvider interface {
	// Rainfall returns daily readings ordered by date, or an empty slice on failure.
	Rainfall(ctx context.Context, district, state string, from, to time.Time) []RainfallReading
}

// TotalRainfall sums the readings in millimetres.
func TotalRainfall(readings []RainfallReading) float64 {
	var total float64
	for _, r := range readings {
		total += r.RainfallMM
	}
	return total
}

type PaymentInstruction struct {
	PaymentID   int64
	ClaimID     int64
	Amount      decimal.Decimal
	BankAccount string
	IFSCCode    string
}

type PaymentResult struct {
	Success       bool
	TransactionID string
	FailureReason string
}

type PaymentGateway interface {
	Pay(ctx context.Context, instruction PaymentInstruction) PaymentResult
}

type NotificationKind string

const (
	NotifyClaimApproved NotificationKind = "claim_approved"
	NotifyClaimRejected NotificationKind = "claim_rejected"
	NotifyClaimSettled  NotificationKind = "claim_settled"
)

type Notifier interface {
	Notify(ctx context.Context, userID int64, kind NotificationKind, payload map[string]any)
}
