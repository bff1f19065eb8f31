package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"claim-service/internal/event"
	"claim-service/internal/models"
	"claim-service/internal/ports"
	"claim-service/internal/repository"
	"claim-service/internal/utils"
	"claim-service/internal/worker"

	"github.com/google/uuid"
)

type SettlementConfig struct {
	ProcessingDelay    time.Duration
	LockTTL            time.Duration
	DefaultBankAccount string
	DefaultIFSC        string
}

// SettlementService pays out approved claims. At most one payment attempt per
// claim is active at a time: a claim-scoped lock serializes attempts, and the
// partial unique index on payments rejects anything that slips past it.
type SettlementService struct {
	claims   ClaimStore
	payments PaymentStore
	policies PolicyStore
	gateway  ports.PaymentGateway
	notifier ports.Notifier
	receipts *ReceiptService
	locker   ClaimLocker
	tasks    TaskEnqueuer
	clock    ports.Clock
	cfg      SettlementConfig
}

func NewSettlementService(
	claims ClaimStore,
	payments PaymentStore,
	policies PolicyStore,
	gateway ports.PaymentGateway,
	notifier ports.Notifier,
	receipts *ReceiptService,
	locker ClaimLocker,
	tasks TaskEnqueuer,
	clock ports.Clock,
	cfg SettlementConfig,
) *SettlementService {
	return &SettlementService{
		claims:   claims,
		payments: payments,
		policies: policies,
		gateway:  gateway,
		notifier: notifier,
		receipts: receipts,
		locker:   locker,
		tasks:    tasks,
		clock:    clock,
		cfg:      cfg,
	}
}

// SettleTask is the task queue entry point. Losing the race to another
// settlement, or finding the claim already settled, completes the task.
func (s *SettlementService) SettleTask(ctx context.Context, claimID int64) error {
	_, err := s.Settle(ctx, claimID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSettlementInProgress), errors.Is(err, ErrClaimNotSettleable), errors.Is(err, ErrNotFound):
		slog.Info("settlement task skipped", "claim_id", claimID, "reason", err.Error())
		return nil
	default:
		return err
	}
}

// Settle makes one payment attempt for an approved claim. It returns the
// payment it created or reconciled; a declined payout is not an error and
// leaves the claim approved. A claim that is already settled returns (nil, nil).
func (s *SettlementService) Settle(ctx context.Context, claimID int64) (*models.Payment, error) {
	release, ok, err := s.locker.TryLock(ctx, claimLockKey(claimID), s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to lock claim %d for settlement: %w", claimID, err)
	}
	if !ok {
		return nil, fmt.Errorf("claim %d: %w", claimID, ErrSettlementInProgress)
	}
	defer release()

	claim, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to load claim for settlement: %w", err)
	}
	if claim.Status == models.ClaimSettled {
		return nil, nil
	}
	if !claim.Status.CanTransition(models.ClaimSettled) {
		return nil, fmt.Errorf("claim %d is %s: %w", claimID, claim.Status, ErrClaimNotSettleable)
	}

	existing, err := s.payments.ListByClaim(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments for claim: %w", err)
	}
	for i := range existing {
		p := &existing[i]
		switch {
		case p.Status == models.PaymentCompleted:
			// paid earlier but the claim write was lost
			at := s.clock.Now()
			if p.CompletedAt != nil {
				at = *p.CompletedAt
			}
			if err := s.markClaimSettled(ctx, claim, at); err != nil {
				return nil, err
			}
			return p, nil
		case p.Status.IsActive():
			return nil, fmt.Errorf("claim %d has payment %d %s: %w", claimID, p.ID, p.Status, ErrSettlementInProgress)
		}
	}

	account, ifsc, err := s.payoutAccount(ctx, claim.FarmerID)
	if err != nil {
		return nil, err
	}

	placeholder := "PENDING-" + uuid.NewString()
	payment := &models.Payment{
		ClaimID:       claim.ID,
		Amount:        claim.ClaimAmount,
		BankAccount:   utils.MaskAccount(account),
		IFSCCode:      ifsc,
		TransactionID: &placeholder,
		Status:        models.PaymentInitiated,
		PaymentMethod: models.PaymentMethodBankTransfer,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("claim %d: %w", claimID, ErrSettlementInProgress)
		}
		return nil, fmt.Errorf("failed to initiate payment: %w", err)
	}

	slog.Info("payment initiated",
		"claim_id", claim.ID,
		"payment_id", payment.ID,
		"amount", payment.Amount.String(),
		"account", payment.BankAccount)

	if err := s.wait(ctx); err != nil {
		s.abandon(ctx, payment, "settlement interrupted before payout")
		return payment, err
	}

	moved, err := s.payments.MarkProcessing(ctx, payment.ID)
	if err != nil {
		s.abandon(ctx, payment, "could not mark payment processing")
		return payment, fmt.Errorf("failed to mark payment processing: %w", err)
	}
	if !moved {
		return payment, fmt.Errorf("payment %d left initiated state before payout: %w", payment.ID, ErrSettlementInProgress)
	}
	payment.Status = models.PaymentProcessing

	result := s.gateway.Pay(ctx, ports.PaymentInstruction{
		PaymentID:   payment.ID,
		ClaimID:     claim.ID,
		Amount:      payment.Amount,
		BankAccount: account,
		IFSCCode:    ifsc,
	})

	if !result.Success {
		reason := result.FailureReason
		if reason == "" {
			reason = "payment declined"
		}
		if _, err := s.payments.Fail(context.WithoutCancel(ctx), payment.ID, reason); err != nil {
			return payment, fmt.Errorf("failed to record payment failure: %w", err)
		}
		payment.Status = models.PaymentFailed
		payment.FailureReason = &reason
		slog.Warn("payment failed, claim stays approved",
			"claim_id", claim.ID,
			"payment_id", payment.ID,
			"reason", reason)
		return payment, nil
	}

	if err := s.complete(context.WithoutCancel(ctx), claim, payment, result.TransactionID); err != nil {
		return payment, err
	}
	return payment, nil
}

// RetrySettlement schedules a new settlement attempt for an approved claim
// whose previous payment failed.
func (s *SettlementService) RetrySettlement(ctx context.Context, claimID int64) error {
	claim, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		return fmt.Errorf("claim not found: %w", err)
	}
	if !claim.Status.CanTransition(models.ClaimSettled) {
		return fmt.Errorf("claim %d is %s: %w", claimID, claim.Status, ErrClaimNotSettleable)
	}

	payments, err := s.payments.ListByClaim(ctx, claimID)
	if err != nil {
		return fmt.Errorf("failed to load payments for claim: %w", err)
	}
	for _, p := range payments {
		if p.Status.IsActive() || p.Status == models.PaymentCompleted {
			return fmt.Errorf("claim %d has payment %d %s: %w", claimID, p.ID, p.Status, ErrSettlementInProgress)
		}
	}

	if err := s.tasks.Enqueue(ctx, worker.TaskSettleClaim, claimID); err != nil {
		return fmt.Errorf("failed to schedule settlement retry: %w", err)
	}
	slog.Info("settlement retry scheduled", "claim_id", claimID)
	return nil
}

// HandlePaymentCallback applies an asynchronous gateway result to a payment
// that is still awaiting one.
func (s *SettlementService) HandlePaymentCallback(ctx context.Context, callback event.PaymentCallback) error {
	payment, err := s.payments.GetByID(ctx, callback.PaymentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.Warn("callback for unknown payment, dropping", "payment_id", callback.PaymentID)
			return nil
		}
		return err
	}
	if !payment.Status.IsActive() {
		slog.Info("payment already resolved, ignoring callback", "payment_id", payment.ID, "status", payment.Status)
		return nil
	}

	release, ok, err := s.locker.TryLock(ctx, claimLockKey(payment.ClaimID), s.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("failed to lock claim %d for callback: %w", payment.ClaimID, err)
	}
	if !ok {
		return fmt.Errorf("claim %d: %w: %w", payment.ClaimID, ErrSettlementInProgress, event.ErrRetryLater)
	}
	defer release()

	// the settlement that held the lock may have resolved the payment already
	payment, err = s.payments.GetByID(ctx, callback.PaymentID)
	if err != nil {
		return err
	}
	if !payment.Status.IsActive() {
		slog.Info("payment resolved while callback waited, ignoring", "payment_id", payment.ID, "status", payment.Status)
		return nil
	}

	if !callback.Success {
		reason := callback.FailureReason
		if reason == "" {
			reason = "payment declined by gateway"
		}
		if _, err := s.payments.Fail(ctx, payment.ID, reason); err != nil {
			return fmt.Errorf("failed to record payment failure: %w", err)
		}
		slog.Warn("payment failed by callback", "payment_id", payment.ID, "claim_id", payment.ClaimID, "reason", reason)
		return nil
	}

	if payment.Status == models.PaymentInitiated {
		if _, err := s.payments.MarkProcessing(ctx, payment.ID); err != nil {
			return fmt.Errorf("failed to mark payment processing: %w", err)
		}
	}

	claim, err := s.claims.GetByID(ctx, payment.ClaimID)
	if err != nil {
		return fmt.Errorf("failed to load claim for callback: %w", err)
	}
	return s.complete(ctx, claim, payment, callback.TransactionID)
}

func (s *SettlementService) complete(ctx context.Context, claim *models.Claim, payment *models.Payment, transactionID string) error {
	now := s.clock.Now()
	done, err := s.payments.Complete(ctx, payment.ID, transactionID, now)
	if err != nil {
		return fmt.Errorf("failed to complete payment: %w", err)
	}
	if !done {
		return fmt.Errorf("payment %d was not processing at completion", payment.ID)
	}
	payment.Status = models.PaymentCompleted
	payment.TransactionID = &transactionID
	payment.CompletedAt = &now

	if err := s.markClaimSettled(ctx, claim, now); err != nil {
		return err
	}

	slog.Info("claim settled",
		"claim_id", claim.ID,
		"claim_number", claim.ClaimNumber,
		"payment_id", payment.ID,
		"transaction_id", transactionID)

	if s.receipts != nil {
		if _, err := s.receipts.Issue(ctx, claim, payment); err != nil {
			slog.Error("failed to issue payment receipt", "payment_id", payment.ID, "error", err)
		}
	}

	s.notifier.Notify(ctx, claim.FarmerID, ports.NotifyClaimSettled, map[string]any{
		"claimId":       claim.ID,
		"claimNumber":   claim.ClaimNumber,
		"amount":        payment.Amount.StringFixed(0),
		"transactionId": transactionID,
	})
	return nil
}

func (s *SettlementService) markClaimSettled(ctx context.Context, claim *models.Claim, at time.Time) error {
	ok, err := s.claims.MarkSettled(ctx, claim.ID, at)
	if err != nil {
		return fmt.Errorf("failed to settle claim: %w", err)
	}
	if !ok {
		slog.Warn("claim was not approved at settlement", "claim_id", claim.ID)
		return nil
	}
	claim.Status = models.ClaimSettled
	claim.SettledAt = &at
	return nil
}

func (s *SettlementService) payoutAccount(ctx context.Context, farmerID int64) (string, string, error) {
	farmer, err := s.policies.GetFarmer(ctx, farmerID)
	if err != nil {
		return "", "", fmt.Errorf("failed to load farmer bank details: %w", err)
	}
	account, ifsc := s.cfg.DefaultBankAccount, s.cfg.DefaultIFSC
	if farmer.BankAccount != nil && *farmer.BankAccount != "" {
		account = *farmer.BankAccount
	}
	if farmer.IFSCCode != nil && *farmer.IFSCCode != "" {
		ifsc = *farmer.IFSCCode
	}
	return account, ifsc, nil
}

func (s *SettlementService) wait(ctx context.Context) error {
	if s.cfg.ProcessingDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.cfg.ProcessingDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// abandon fails a payment that was never sent to the gateway so a retry can start.
func (s *SettlementService) abandon(ctx context.Context, payment *models.Payment, reason string) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := s.payments.Fail(writeCtx, payment.ID, reason); err != nil {
		slog.Error("failed to abandon payment", "payment_id", payment.ID, "error", err)
		return
	}
	payment.Status = models.PaymentFailed
	payment.FailureReason = &reason
}
