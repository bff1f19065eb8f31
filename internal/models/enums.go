package models

type ClaimStatus string

const (
	ClaimSubmitted  ClaimStatus = "submitted"
	ClaimProcessing ClaimStatus = "processing"
	ClaimApproved   ClaimStatus = "approved"
	ClaimRejected   ClaimStatus = "rejected"
	ClaimSettled    ClaimStatus = "settled"
)

// claimTransitions lists the legal next states. Terminal states have no entry.
var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimSubmitted:  {ClaimProcessing},
	ClaimProcessing: {ClaimApproved, ClaimRejected},
	ClaimApproved:   {ClaimSettled},
}

// CanTransition reports whether a claim may move from one status to another.
func (s ClaimStatus) CanTransition(to ClaimStatus) bool {
	for _, next := range claimTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimRejected || s == ClaimSettled
}

type RejectionReason string

const (
	ReasonLandNotVerified        RejectionReason = "land_not_verified"
	ReasonRainfallAboveThreshold RejectionReason = "rainfall_above_threshold"
	ReasonProcessingError        RejectionReason = "processing_error"
)

// Explanation is the farmer-facing text for a rejection reason.
func (r RejectionReason) Explanation() string {
	switch r {
	case ReasonLandNotVerified:
		return "Your land holding could not be verified against the land records."
	case ReasonRainfallAboveThreshold:
		return "Recorded rainfall for the policy period met or exceeded the policy threshold."
	case ReasonProcessingError:
		return "We could not complete the automated review of your claim. Please contact support."
	default:
		return "Your claim was rejected."
	}
}

type PaymentStatus string

const (
	PaymentInitiated  PaymentStatus = "initiated"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
)

// IsActive reports whether the payment still blocks a new settlement attempt.
func (s PaymentStatus) IsActive() bool {
	return s == PaymentInitiated || s == PaymentProcessing
}

type PolicyStatus string

const (
	PolicyActive    PolicyStatus = "active"
	PolicyExpired   PolicyStatus = "expired"
	PolicyCancelled PolicyStatus = "cancelled"
)

const PaymentMethodBankTransfer = "bank_transfer"
