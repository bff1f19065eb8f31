package services

import (
	"context"
	"log/slog"
	"time"

	"claim-service/internal/models"
	"claim-service/internal/ports"
	"claim-service/internal/repository"
	"claim-service/internal/worker"
)

const sweepBatchSize = 100

// TaskRecoverer replays unfinished durable tasks.
type TaskRecoverer interface {
	Recover(ctx context.Context, createdBefore time.Time, limit int) (int, error)
}

type RecoveryConfig struct {
	StaleAfter        time.Duration
	ProcessingTimeout time.Duration
}

// RecoveryService finds claims and payments abandoned by a crash or a lost
// task and moves them forward again.
type RecoveryService struct {
	claims    ClaimStore
	payments  PaymentStore
	tasks     TaskEnqueuer
	recoverer TaskRecoverer
	notifier  ports.Notifier
	clock     ports.Clock
	cfg       RecoveryConfig
}

func NewRecoveryService(
	claims ClaimStore,
	payments PaymentStore,
	tasks TaskEnqueuer,
	recoverer TaskRecoverer,
	notifier ports.Notifier,
	clock ports.Clock,
	cfg RecoveryConfig,
) *RecoveryService {
	return &RecoveryService{
		claims:    claims,
		payments:  payments,
		tasks:     tasks,
		recoverer: recoverer,
		notifier:  notifier,
		clock:     clock,
		cfg:       cfg,
	}
}

// Jobs returns the sweeps in the order they should run on each tick.
func (s *RecoveryService) Jobs() []worker.ScheduledJob {
	return []worker.ScheduledJob{
		{Name: "recover-tasks", Run: s.RecoverTasks},
		{Name: "requeue-submitted", Run: s.RequeueSubmitted},
		{Name: "expire-processing", Run: s.ExpireProcessing},
		{Name: "requeue-approved", Run: s.RequeueApproved},
		{Name: "fail-stale-payments", Run: s.FailStalePayments},
	}
}

func (s *RecoveryService) cutoff(d time.Duration) time.Time {
	return s.clock.Now().Add(-d)
}

func (s *RecoveryService) RecoverTasks(ctx context.Context) error {
	_, err := s.recoverer.Recover(ctx, s.cutoff(s.cfg.StaleAfter), sweepBatchSize)
	return err
}

// RequeueSubmitted schedules adjudication for submitted claims nobody picked up.
func (s *RecoveryService) RequeueSubmitted(ctx context.Context) error {
	claims, err := s.claims.List(ctx, repository.ClaimFilter{
		Statuses:      []models.ClaimStatus{models.ClaimSubmitted},
		UpdatedBefore: s.cutoff(s.cfg.StaleAfter),
		Limit:         sweepBatchSize,
	})
	if err != nil {
		return err
	}

	for _, c := range claims {
		s.requeue(ctx, worker.TaskAdjudicateClaim, c.ID)
	}
	return nil
}

// requeue enqueues a task unless one is already open; an open task is left to RecoverTasks.
func (s *RecoveryService) requeue(ctx context.Context, taskType worker.TaskType, claimID int64) {
	open, err := s.tasks.HasOpenTask(ctx, taskType, claimID)
	if err != nil {
		slog.Error("failed to check open tasks", "task_type", taskType, "claim_id", claimID, "error", err)
		return
	}
	if open {
		return
	}
	if err := s.tasks.Enqueue(ctx, taskType, claimID); err != nil {
		slog.Error("failed to requeue claim", "task_type", taskType, "claim_id", claimID, "error", err)
	}
}

// ExpireProcessing closes claims stuck in processing past the timeout.
func (s *RecoveryService) ExpireProcessing(ctx context.Context) error {
	claims, err := s.claims.List(ctx, repository.ClaimFilter{
		Statuses:      []models.ClaimStatus{models.ClaimProcessing},
		UpdatedBefore: s.cutoff(s.cfg.ProcessingTimeout),
		Limit:         sweepBatchSize,
	})
	if err != nil {
		return err
	}

	for i := range claims {
		if err := closeAsProcessingError(ctx, s.claims, s.notifier, &claims[i], s.clock.Now()); err != nil {
			slog.Error("failed to expire processing claim", "claim_id", claims[i].ID, "error", err)
		}
	}
	return nil
}

// RequeueApproved schedules settlement for approved claims that never got a payment.
func (s *RecoveryService) RequeueApproved(ctx context.Context) error {
	claims, err := s.claims.ListApprovedWithoutPayment(ctx, s.cutoff(s.cfg.StaleAfter), sweepBatchSize)
	if err != nil {
		return err
	}

	for _, c := range claims {
		s.requeue(ctx, worker.TaskSettleClaim, c.ID)
	}
	return nil
}

// FailStalePayments fails payments that never reached the gateway and schedules a
// fresh attempt. Payments stuck
// in processing may have been paid out, so they are only reported.
func (s *RecoveryService) FailStalePayments(ctx context.Context) error {
	cutoff := s.cutoff(s.cfg.StaleAfter)

	initiated, err := s.payments.ListStale(ctx, models.PaymentInitiated, cutoff, sweepBatchSize)
	if err != nil {
		return err
	}
	for _, p := range initiated {
		if _, err := s.payments.Fail(ctx, p.ID, "payment was never sent to the gateway"); err != nil {
			slog.Error("failed to fail stale payment", "payment_id", p.ID, "error", err)
			continue
		}
		slog.Warn("stale initiated payment failed", "payment_id", p.ID, "claim_id", p.ClaimID)
		// nothing was paid, so the claim can go straight back to settlement
		if err := s.tasks.Enqueue(ctx, worker.TaskSettleClaim, p.ClaimID); err != nil {
			slog.Error("failed to requeue settlement", "claim_id", p.ClaimID, "error", err)
		}
	}

	processing, err := s.payments.ListStale(ctx, models.PaymentProcessing, cutoff, sweepBatchSize)
	if err != nil {
		return err
	}
	for _, p := range processing {
		slog.Warn("payment awaiting gateway result, needs reconciliation",
			"payment_id", p.ID,
			"claim_id", p.ClaimID,
			"created_at", p.CreatedAt)
	}
	return nil
}
