package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaimStatus_Transitions(t *testing.T) {
	assert.True(t, ClaimSubmitted.CanTransition(ClaimProcessing))
	assert.True(t, ClaimProcessing.CanTransition(ClaimApproved))
	assert.True(t, ClaimProcessing.CanTransition(ClaimRejected))
	assert.True(t, ClaimApproved.CanTransition(ClaimSettled))

	assert.False(t, ClaimSubmitted.CanTransition(ClaimApproved))
	assert.False(t, ClaimApproved.CanTransition(ClaimRejected))
	assert.False(t, ClaimProcessing.CanTransition(ClaimSubmitted))

	for _, terminal := range []ClaimStatus{ClaimRejected, ClaimSettled} {
		assert.True(t, terminal.IsTerminal())
		for _, to := range []ClaimStatus{ClaimSubmitted, ClaimProcessing, ClaimApproved, ClaimRejected, ClaimSettled} {
			assert.False(t, terminal.CanTransition(to), "%s -> %s", terminal, to)
		}
	}
	assert.False(t, ClaimApproved.IsTerminal())
}

func TestPaymentStatus_IsActive(t *testing.T) {
	assert.True(t, PaymentInitiated.IsActive())
	assert.True(t, PaymentProcessing.IsActive())
	assert.False(t, PaymentCompleted.IsActive())
	assert.False(t, PaymentFailed.IsActive())
}

func TestRejectionReason_Explanation(t *testing.T) {
	assert.Contains(t, ReasonRainfallAboveThreshold.Explanation(), "threshold")
	assert.NotEqual(t, ReasonLandNotVerified.Explanation(), ReasonProcessingError.Explanation())
	assert.Equal(t, "Your claim was rejected.", RejectionReason("other").Explanation())
}
