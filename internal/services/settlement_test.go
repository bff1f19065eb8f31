package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"claim-service/internal/database/minio"
	redisdb "claim-service/internal/database/redis"
	"claim-service/internal/event"
	"claim-service/internal/models"
	"claim-service/internal/ports"
	"claim-service/internal/worker"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settlementFixture struct {
	store    *memStore
	gateway  *stubGateway
	notifier *recordingNotifier
	tasks    *recordingEnqueuer
	objects  *memObjects
	svc      *SettlementService
}

func newSettlementFixture(t *testing.T, success bool, locker ClaimLocker) *settlementFixture {
	t.Helper()
	f := &settlementFixture{
		store:    newMemStore(),
		gateway:  &stubGateway{success: success},
		notifier: &recordingNotifier{},
		tasks:    &recordingEnqueuer{},
		objects:  newMemObjects(),
	}
	f.store.seedPolicy(strPtr("SY-114/2B"))
	clock := fixedClock{t: testNow}
	receipts := NewReceiptService(f.objects, paymentView{f.store}, clock, 15*time.Minute)
	if locker == nil {
		locker = NewLocalLocker()
	}
	f.svc = NewSettlementService(f.store, paymentView{f.store}, f.store, f.gateway, f.notifier, receipts,
		locker, f.tasks, clock, SettlementConfig{
			LockTTL:            time.Minute,
			DefaultBankAccount: "XXXXXX7890",
			DefaultIFSC:        "SBIN0001234",
		})
	return f
}

func TestSettle_Success(t *testing.T) {
	f := newSettlementFixture(t, true, nil)
	claim := f.store.addClaim(models.ClaimApproved, 30000)

	payment, err := f.svc.Settle(context.Background(), claim.ID)
	require.NoError(t, err)
	require.NotNil(t, payment)

	assert.Equal(t, models.PaymentCompleted, payment.Status)
	assert.Equal(t, "30000", payment.Amount.String())
	assert.Equal(t, "****9012", payment.BankAccount)
	assert.Equal(t, "SBIN0004321", payment.IFSCCode)
	assert.Equal(t, models.PaymentMethodBankTransfer, payment.PaymentMethod)

	stored := f.store.paymentsFor(claim.ID)
	require.Len(t, stored, 1)
	assert.Equal(t, models.PaymentCompleted, stored[0].Status)
	require.NotNil(t, stored[0].TransactionID)
	assert.Equal(t, "TXN-1", *stored[0].TransactionID)
	require.NotNil(t, stored[0].CompletedAt)
	require.NotNil(t, stored[0].ReceiptNumber)
	assert.Regexp(t, `^RCP\d+-1$`, *stored[0].ReceiptNumber)
	assert.Len(t, f.objects.objects, 1)

	got := f.store.claim(claim.ID)
	assert.Equal(t, models.ClaimSettled, got.Status)
	require.NotNil(t, got.SettledAt)
	assert.Equal(t, testNow, *got.SettledAt)

	assert.Equal(t, []ports.NotificationKind{ports.NotifyClaimSettled}, f.notifier.kinds())
	assert.Equal(t, "TXN-1", f.notifier.sent[0].Payload["transactionId"])
}

func TestSettle_ScenarioD_PaymentFailureLeavesClaimApproved(t *testing.T) {
	f := newSettlementFixture(t, false, nil)
	claim := f.store.addClaim(models.ClaimApproved, 30000)

	payment, err := f.svc.Settle(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, payment.Status)
	require.NotNil(t, payment.FailureReason)
	assert.Equal(t, "bank declined transfer", *payment.FailureReason)

	assert.Equal(t, models.ClaimApproved, f.store.claim(claim.ID).Status)
	assert.Empty(t, f.notifier.kinds())

	// the retry path stays open
	require.NoError(t, f.svc.RetrySettlement(context.Background(), claim.ID))
	assert.Equal(t, []enqueued{{TaskType: worker.TaskSettleClaim, ClaimID: claim.ID}}, f.tasks.all())

	f.gateway.success = true
	retried, err := f.svc.Settle(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, retried.Status)
	assert.Equal(t, models.ClaimSettled, f.store.claim(claim.ID).Status)
	assert.Len(t, f.store.paymentsFor(claim.ID), 2)
}

func TestSettle_DefaultsBankDetails(t *testing.T) {
	f := newSettlementFixture(t, true, nil)
	f.store.mu.Lock()
	f.store.farmers[1].BankAccount = nil
	f.store.farmers[1].IFSCCode = nil
	f.store.mu.Unlock()
	claim := f.store.addClaim(models.ClaimApproved, 100)

	payment, err := f.svc.Settle(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.Equal(t, "****7890", payment.BankAccount)
	assert.Equal(t, "SBIN0001234", payment.IFSCCode)
}

func TestSettle_RejectsClaimsNotApproved(t *testing.T) {
	f := newSettlementFixture(t, true, nil)
	for _, status := range []models.ClaimStatus{models.ClaimSubmitted, models.ClaimProcessing, models.ClaimRejected} {
		claim := f.store.addClaim(status, 100)
		_, err := f.svc.Settle(context.Background(), claim.ID)
		assert.ErrorIs(t, err, ErrClaimNotSettleable, "status %s", status)
	}
	assert.Equal(t, int32(0), f.gateway.calls.Load())
}

func TestSettle_AlreadySettledIsNoop(t *testing.T) {
	f := newSettlementFixture(t, true, nil)
	claim := f.store.addClaim(models.ClaimSettled, 100)

	payment, err := f.svc.Settle(context.Background(), claim.ID)
	assert.NoError(t, err)
	assert.Nil(t, payment)
	assert.Equal(t, int32(0), f.gateway.calls.Load())
}

func TestSettle_ReconcilesCompletedPayment(t *testing.T) {
	f := newSettlementFixture(t, true, nil)
	claim := f.store.addClaim(models.ClaimApproved, 100)
	paid := &models.Payment{ClaimID: claim.ID, Amount: claim.ClaimAmount, Status: models.PaymentProcessing}
	require.NoError(t, paymentView{f.store}.Create(context.Background(), paid))
	completedAt := testNow.Add(-time.Hour)
	_, err := paymentView{f.store}.Complete(context.Background(), paid.ID, "TXN-OLD", completedAt)
	require.NoError(t, err)

	payment, err := f.svc.Settle(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.Equal(t, paid.ID, payment.ID)

	got := f.store.claim(claim.ID)
	assert.Equal(t, models.ClaimSettled, got.Status)
	assert.Equal(t, completedAt, *got.SettledAt)
	assert.Equal(t, int32(0), f.gateway.calls.Load())
}

func TestSettle_ActivePaymentBlocksNewAttempt(t *testing.T) {
	f := newSettlementFixture(t, true, nil)
	claim := f.store.addClaim(models.ClaimApproved, 100)
	require.NoError(t, paymentView{f.store}.Create(context.Background(),
		&models.Payment{ClaimID: claim.ID, Amount: claim.ClaimAmount, Status: models.PaymentProcessing}))

	_, err := f.svc.Settle(context.Background(), claim.ID)
	assert.ErrorIs(t, err, ErrSettlementInProgress)
	assert.ErrorIs(t, f.svc.RetrySettlement(context.Background(), claim.ID), ErrSettlementInProgress)
	assert.NoError(t, f.svc.SettleTask(context.Background(), claim.ID))
}

func TestSettle_CancelledDuringDelayFailsPayment(t *testing.T) {
	f := newSettlementFixture(t, true, nil)
	f.svc.cfg.ProcessingDelay = time.Hour
	claim := f.store.addClaim(models.ClaimApproved, 100)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	payment, err := f.svc.Settle(ctx, claim.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.PaymentFailed, payment.Status)
	assert.Equal(t, int32(0), f.gateway.calls.Load())
	assert.Equal(t, models.ClaimApproved, f.store.claim(claim.ID).Status)
}

func TestRetrySettlement_Errors(t *testing.T) {
	f := newSettlementFixture(t, true, nil)

	assert.ErrorIs(t, f.svc.RetrySettlement(context.Background(), 999), ErrNotFound)

	settled := f.store.addClaim(models.ClaimSettled, 100)
	assert.ErrorIs(t, f.svc.RetrySettlement(context.Background(), settled.ID), ErrClaimNotSettleable)

	f.tasks.err = errors.New("queue down")
	approved := f.store.addClaim(models.ClaimApproved, 100)
	assert.Error(t, f.svc.RetrySettlement(context.Background(), approved.ID))
}

func runConcurrentSettlements(t *testing.T, f *settlementFixture, claimID int64, n int) (succeeded int32) {
	t.Helper()
	f.gateway.gate = make(chan struct{})

	var wg sync.WaitGroup
	var ok atomic.Int32
	start := make(chan struct{})
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			payment, err := f.svc.Settle(context.Background(), claimID)
			if err == nil && payment != nil {
				ok.Add(1)
				return
			}
			if err != nil {
				assert.ErrorIs(t, err, ErrSettlementInProgress)
			}
		}()
	}
	close(start)
	// let every contender reach the lock before the winner pays
	time.Sleep(50 * time.Millisecond)
	close(f.gateway.gate)
	wg.Wait()
	return ok.Load()
}

func TestSettle_AtMostOneSettlementUnderConcurrency(t *testing.T) {
	f := newSettlementFixture(t, true, nil)
	claim := f.store.addClaim(models.ClaimApproved, 30000)

	succeeded := runConcurrentSettlements(t, f, claim.ID, 25)

	assert.Equal(t, int32(1), succeeded)
	assert.Equal(t, int32(1), f.gateway.calls.Load())
	assert.Len(t, f.store.paymentsFor(claim.ID), 1)
	assert.Equal(t, models.ClaimSettled, f.store.claim(claim.ID).Status)
}

func TestSettle_AtMostOneSettlementWithRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redisdb.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	f := newSettlementFixture(t, true, redisdb.NewLocker(client, "claim:settle:"))
	claim := f.store.addClaim(models.ClaimApproved, 30000)

	succeeded := runConcurrentSettlements(t, f, claim.ID, 10)

	assert.Equal(t, int32(1), succeeded)
	assert.Equal(t, int32(1), f.gateway.calls.Load())
	assert.Len(t, f.store.paymentsFor(claim.ID), 1)
	assert.False(t, mr.Exists("claim:settle:1"), "lock must be released")
}

func TestHandlePaymentCallback(t *testing.T) {
	f := newSettlementFixture(t, true, nil)
	claim := f.store.addClaim(models.ClaimApproved, 500)
	payment := &models.Payment{ClaimID: claim.ID, Amount: claim.ClaimAmount, Status: models.PaymentInitiated}
	require.NoError(t, paymentView{f.store}.Create(context.Background(), payment))
	_, _ = paymentView{f.store}.MarkProcessing(context.Background(), payment.ID)

	err := f.svc.HandlePaymentCallback(context.Background(), event.PaymentCallback{
		PaymentID: payment.ID, Success: true, TransactionID: "TXN-CB",
	})
	require.NoError(t, err)

	stored := f.store.paymentsFor(claim.ID)[0]
	assert.Equal(t, models.PaymentCompleted, stored.Status)
	assert.Equal(t, "TXN-CB", *stored.TransactionID)
	assert.Equal(t, models.ClaimSettled, f.store.claim(claim.ID).Status)
	assert.Contains(t, f.objects.objects, minio.Storage.ClaimReceipts+"/"+*stored.ReceiptObject)

	// a duplicate delivery changes nothing
	require.NoError(t, f.svc.HandlePaymentCallback(context.Background(), event.PaymentCallback{
		PaymentID: payment.ID, Success: false, FailureReason: "late",
	}))
	assert.Equal(t, models.PaymentCompleted, f.store.paymentsFor(claim.ID)[0].Status)
}

func TestHandlePaymentCallback_Failure(t *testing.T) {
	f := newSettlementFixture(t, true, nil)
	claim := f.store.addClaim(models.ClaimApproved, 500)
	payment := &models.Payment{ClaimID: claim.ID, Amount: claim.ClaimAmount, Status: models.PaymentProcessing}
	require.NoError(t, paymentView{f.store}.Create(context.Background(), payment))

	require.NoError(t, f.svc.HandlePaymentCallback(context.Background(), event.PaymentCallback{
		PaymentID: payment.ID, Success: false,
	}))

	stored := f.store.paymentsFor(claim.ID)[0]
	assert.Equal(t, models.PaymentFailed, stored.Status)
	assert.Equal(t, "payment declined by gateway", *stored.FailureReason)
	assert.Equal(t, models.ClaimApproved, f.store.claim(claim.ID).Status)
}

func TestHandlePaymentCallback_DeferredWhileSettling(t *testing.T) {
	locker := NewLocalLocker()
	f := newSettlementFixture(t, true, locker)
	claim := f.store.addClaim(models.ClaimApproved, 500)
	payment := &models.Payment{ClaimID: claim.ID, Amount: claim.ClaimAmount, Status: models.PaymentProcessing}
	require.NoError(t, paymentView{f.store}.Create(context.Background(), payment))

	release, ok, err := locker.TryLock(context.Background(), claimLockKey(claim.ID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	err = f.svc.HandlePaymentCallback(context.Background(), event.PaymentCallback{
		PaymentID: payment.ID, Success: true, TransactionID: "TXN-CB",
	})
	assert.ErrorIs(t, err, ErrSettlementInProgress)
	assert.ErrorIs(t, err, event.ErrRetryLater)
	assert.Equal(t, models.PaymentProcessing, f.store.paymentsFor(claim.ID)[0].Status)

	// the settlement resolved the payment before the redelivery
	_, _ = paymentView{f.store}.Fail(context.Background(), payment.ID, "declined")
	release()

	require.NoError(t, f.svc.HandlePaymentCallback(context.Background(), event.PaymentCallback{
		PaymentID: payment.ID, Success: true, TransactionID: "TXN-CB",
	}))
	assert.Equal(t, models.PaymentFailed, f.store.paymentsFor(claim.ID)[0].Status)
	assert.Equal(t, models.ClaimApproved, f.store.claim(claim.ID).Status)
}

func TestHandlePaymentCallback_UnknownPaymentDropped(t *testing.T) {
	f := newSettlementFixture(t, true, nil)
	assert.NoError(t, f.svc.HandlePaymentCallback(context.Background(), event.PaymentCallback{PaymentID: 77, Success: true}))
}
