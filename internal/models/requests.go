package models

import "github.com/shopspring/decimal"

type SubmitClaimRequest struct {
	FarmerID        int64            `json:"farmerId"`
	PolicyID        int64            `json:"policyId"`
	RequestedAmount *decimal.Decimal `json:"requestedAmount,omitempty"`
	Description     string           `json:"description,omitempty"`
}

type RetrySettlementResponse struct {
	ClaimID int64  `json:"claimId"`
	Status  string `json:"status"`
}

type ReceiptLinkResponse struct {
	PaymentID     int64  `json:"paymentId"`
	ReceiptNumber string `json:"receiptNumber"`
	URL           string `json:"url"`
	ExpiresIn     int    `json:"expiresInSeconds"`
}
