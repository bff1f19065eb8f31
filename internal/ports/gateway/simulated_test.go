package gateway

import (
	"context"
	"testing"
	"time"

	"claim-service/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type scriptedRandom struct {
	floats []float64
	ints   []int
}

func (s *scriptedRandom) Float64() float64 {
	f := s.floats[0]
	s.floats = s.floats[1:]
	return f
}

func (s *scriptedRandom) IntN(n int) int {
	i := s.ints[0]
	s.ints = s.ints[1:]
	return i % n
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func instruction(amount int64) ports.PaymentInstruction {
	return ports.PaymentInstruction{PaymentID: 5, ClaimID: 9, Amount: decimal.NewFromInt(amount), BankAccount: "****7890", IFSCCode: "SBIN0001234"}
}

func TestPay_Success(t *testing.T) {
	now := time.UnixMilli(1751328000123)
	g := NewSimulatedGateway(&scriptedRandom{floats: []float64{0.10}, ints: []int{417}}, fixedClock{t: now}, 0.98, 0)

	result := g.Pay(context.Background(), instruction(30000))

	assert.True(t, result.Success)
	assert.Equal(t, "TXN1751328000123-417", result.TransactionID)
}

func TestPay_Declined(t *testing.T) {
	g := NewSimulatedGateway(&scriptedRandom{floats: []float64{0.99}}, nil, 0.98, 0)

	result := g.Pay(context.Background(), instruction(30000))

	assert.False(t, result.Success)
	assert.Empty(t, result.TransactionID)
	assert.NotEmpty(t, result.FailureReason)
}

func TestPay_ZeroAmountFails(t *testing.T) {
	g := NewSimulatedGateway(&scriptedRandom{}, nil, 1, 0)

	result := g.Pay(context.Background(), instruction(0))

	assert.False(t, result.Success)
}

func TestPay_CancelledDuringLatency(t *testing.T) {
	g := NewSimulatedGateway(&scriptedRandom{}, nil, 1, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := g.Pay(ctx, instruction(100))

	assert.False(t, result.Success)
	assert.Contains(t, result.FailureReason, "cancelled")
}
