// Package gateway provides a simulated payout gateway.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"claim-service/internal/ports"
)

type SimulatedGateway struct {
	random      ports.RandomSource
	clock       ports.Clock
	successRate float64
	latency     time.Duration
}

func NewSimulatedGateway(random ports.RandomSource, clock ports.Clock, successRate float64, latency time.Duration) *SimulatedGateway {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &SimulatedGateway{
		random:      random,
		clock:       clock,
		successRate: successRate,
		latency:     latency,
	}
}

// Pay succeeds with the configured probability after the simulated bank latency.
func (g *SimulatedGateway) Pay(ctx context.Context, instruction ports.PaymentInstruction) ports.PaymentResult {
	if g.latency > 0 {
		timer := time.NewTimer(g.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ports.PaymentResult{FailureReason: "payment cancelled: " + ctx.Err().Error()}
		}
	}

	if !instruction.Amount.IsPositive() {
		return ports.PaymentResult{FailureReason: "payment amount must be positive"}
	}

	if g.random.Float64() >= g.successRate {
		slog.Warn("simulated payout declined",
			"payment_id", instruction.PaymentID,
			"claim_id", instruction.ClaimID)
		return ports.PaymentResult{FailureReason: "bank declined the transfer"}
	}

	txnID := fmt.Sprintf("TXN%d-%d", g.clock.Now().UnixMilli(), g.random.IntN(1000))
	slog.Info("simulated payout completed",
		"payment_id", instruction.PaymentID,
		"claim_id", instruction.ClaimID,
		"amount", instruction.Amount.String(),
		"transaction_id", txnID)

	return ports.PaymentResult{Success: true, TransactionID: txnID}
}
