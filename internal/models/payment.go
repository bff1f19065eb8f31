package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Payment struct {
	ID            int64           `json:"id" db:"id"`
	ClaimID       int64           `json:"claimId" db:"claim_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	BankAccount   string          `json:"bankAccount" db:"bank_account"`
	IFSCCode      string          `json:"ifscCode" db:"ifsc_code"`
	TransactionID *string         `json:"transactionId" db:"transaction_id"`
	Status        PaymentStatus   `json:"status" db:"status"`
	PaymentMethod string          `json:"paymentMethod" db:"payment_method"`
	FailureReason *string         `json:"failureReason,omitempty" db:"failure_reason"`
	ReceiptNumber *string         `json:"receiptNumber,omitempty" db:"receipt_number"`
	ReceiptObject *string         `json:"-" db:"receipt_object"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty" db:"completed_at"`
}

// PaymentReceipt is the document stored in object storage after a payout completes.
type PaymentReceipt struct {
	ReceiptNumber string          `json:"receiptNumber"`
	PaymentID     int64           `json:"paymentId"`
	ClaimID       int64           `json:"claimId"`
	ClaimNumber   string          `json:"claimNumber"`
	FarmerID      int64           `json:"farmerId"`
	Amount        decimal.Decimal `json:"amount"`
	BankAccount   string          `json:"bankAccount"`
	IFSCCode      string          `json:"ifscCode"`
	TransactionID string          `json:"transactionId"`
	PaymentMethod string          `json:"paymentMethod"`
	CompletedAt   time.Time       `json:"completedAt"`
	IssuedAt      time.Time       `json:"issuedAt"`
}
