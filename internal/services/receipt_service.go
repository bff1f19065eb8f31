package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"claim-service/internal/database/minio"
	"claim-service/internal/models"
	"claim-service/internal/ports"

	"github.com/google/uuid"
)

// ReceiptService writes payout receipts to object storage and hands out
// short-lived download links for them.
type ReceiptService struct {
	store    ReceiptStore
	payments PaymentStore
	clock    ports.Clock
	expiry   time.Duration
}

func NewReceiptService(store ReceiptStore, payments PaymentStore, clock ports.Clock, expiry time.Duration) *ReceiptService {
	return &ReceiptService{
		store:    store,
		payments: payments,
		clock:    clock,
		expiry:   expiry,
	}
}

func receiptNumber(at time.Time, paymentID int64) string {
	return fmt.Sprintf("RCP%d-%d", at.UnixMilli(), paymentID)
}

// Issue stores the receipt of a completed payment and records it on the payment.
func (r *ReceiptService) Issue(ctx context.Context, claim *models.Claim, payment *models.Payment) (*models.PaymentReceipt, error) {
	if payment.Status != models.PaymentCompleted || payment.TransactionID == nil {
		return nil, fmt.Errorf("payment %d is not completed", payment.ID)
	}

	now := r.clock.Now()
	completedAt := now
	if payment.CompletedAt != nil {
		completedAt = *payment.CompletedAt
	}

	receipt := &models.PaymentReceipt{
		ReceiptNumber: receiptNumber(now, payment.ID),
		PaymentID:     payment.ID,
		ClaimID:       claim.ID,
		ClaimNumber:   claim.ClaimNumber,
		FarmerID:      claim.FarmerID,
		Amount:        payment.Amount,
		BankAccount:   payment.BankAccount,
		IFSCCode:      payment.IFSCCode,
		TransactionID: *payment.TransactionID,
		PaymentMethod: payment.PaymentMethod,
		CompletedAt:   completedAt,
		IssuedAt:      now,
	}

	body, err := json.Marshal(receipt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt: %w", err)
	}

	objectName := fmt.Sprintf("%s/%s-%s.json", claim.ClaimNumber, receipt.ReceiptNumber, uuid.NewString()[:8])
	if err := r.store.UploadBytes(ctx, minio.Storage.ClaimReceipts, objectName, body, "application/json"); err != nil {
		return nil, fmt.Errorf("failed to store receipt: %w", err)
	}

	if err := r.payments.SetReceipt(ctx, payment.ID, receipt.ReceiptNumber, objectName); err != nil {
		return nil, err
	}
	payment.ReceiptNumber = &receipt.ReceiptNumber
	payment.ReceiptObject = &objectName

	slog.Info("payment receipt issued", "payment_id", payment.ID, "receipt_number", receipt.ReceiptNumber)
	return receipt, nil
}

// ReceiptLink returns a presigned download URL for a payment's receipt.
func (r *ReceiptService) ReceiptLink(ctx context.Context, paymentID int64) (*models.ReceiptLinkResponse, error) {
	payment, err := r.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("payment not found: %w", err)
	}
	if payment.ReceiptObject == nil || payment.ReceiptNumber == nil {
		return nil, fmt.Errorf("receipt for payment %d: %w", paymentID, ErrNotFound)
	}

	exists, err := r.store.FileExists(ctx, minio.Storage.ClaimReceipts, *payment.ReceiptObject)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("receipt object %s: %w", *payment.ReceiptObject, ErrNotFound)
	}

	url, err := r.store.GetPresignedURL(ctx, minio.Storage.ClaimReceipts, *payment.ReceiptObject, r.expiry)
	if err != nil {
		return nil, err
	}

	return &models.ReceiptLinkResponse{
		PaymentID:     payment.ID,
		ReceiptNumber: *payment.ReceiptNumber,
		URL:           url,
		ExpiresIn:     int(r.expiry.Seconds()),
	}, nil
}
