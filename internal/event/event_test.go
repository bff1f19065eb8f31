package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"claim-service/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST DOUBLES
// ============================================================================

type recordingPublisher struct {
	events []NotificationEventPushModel
	err    error
}

func (r *recordingPublisher) PublishNotification(ctx context.Context, event NotificationEventPushModel) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

type recordingAcker struct {
	mu      sync.Mutex
	acked   int
	nacked  int
	requeue bool
}

func (a *recordingAcker) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked++
	return nil
}

func (a *recordingAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *recordingAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *recordingAcker) nacks() (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nacked, a.requeue
}

type stubCallbackHandler struct {
	got []PaymentCallback
	err error
}

func (s *stubCallbackHandler) HandlePaymentCallback(ctx context.Context, callback PaymentCallback) error {
	s.got = append(s.got, callback)
	return s.err
}

// ============================================================================
// NOTIFIER
// ============================================================================

func TestClaimNotifier_Approved(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewClaimNotifier(pub)

	n.Notify(context.Background(), 42, ports.NotifyClaimApproved, map[string]any{
		"claimNumber":    "CR-2025-123456",
		"amount":         "30000",
		"settlementTime": 6,
	})

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, []string{"42"}, ev.LstUserIds)
	assert.Equal(t, "Claim Approved!", ev.Title)
	assert.Contains(t, ev.Body, "CR-2025-123456")
	assert.Contains(t, ev.Body, "₹30000")
	assert.Contains(t, ev.Body, "within 6 hours")
	assert.Equal(t, "claim_approved", ev.Data["type"])
}

func TestClaimNotifier_RejectedCarriesExplanation(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewClaimNotifier(pub)

	n.Notify(context.Background(), 42, ports.NotifyClaimRejected, map[string]any{
		"claimNumber": "CR-2025-000001",
		"reason":      "rainfall_above_threshold",
		"explanation": "Recorded rainfall met the threshold.",
	})

	require.Len(t, pub.events, 1)
	assert.Equal(t, "Claim Rejected", pub.events[0].Title)
	assert.Contains(t, pub.events[0].Body, "Recorded rainfall met the threshold.")
}

func TestClaimNotifier_PublishErrorIsSwallowed(t *testing.T) {
	n := NewClaimNotifier(&recordingPublisher{err: errors.New("channel closed")})

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), 1, ports.NotifyClaimSettled, map[string]any{"transactionId": "TXN1-1"})
	})
}

func TestClaimNotifier_UnknownKindDropped(t *testing.T) {
	pub := &recordingPublisher{}
	NewClaimNotifier(pub).Notify(context.Background(), 1, ports.NotificationKind("mystery"), nil)

	assert.Empty(t, pub.events)
}

func TestClaimNotifier_NilPublisher(t *testing.T) {
	assert.NotPanics(t, func() {
		NewClaimNotifier(nil).Notify(context.Background(), 1, ports.NotifyClaimApproved, nil)
	})
}

// ============================================================================
// PAYMENT CALLBACK CONSUMER
// ============================================================================

func TestProcessMessage_AcksHandledCallback(t *testing.T) {
	handler := &stubCallbackHandler{}
	consumer := NewPaymentConsumer(nil, handler)
	acker := &recordingAcker{}

	consumer.processMessage(context.Background(), amqp.Delivery{
		Acknowledger: acker,
		Body:         []byte(`{"paymentId":7,"success":true,"transactionId":"TXN1-2"}`),
	})

	require.Len(t, handler.got, 1)
	assert.Equal(t, int64(7), handler.got[0].PaymentID)
	assert.Equal(t, 1, acker.acked)
	assert.Equal(t, 0, acker.nacked)
}

func TestProcessMessage_MalformedIsDropped(t *testing.T) {
	handler := &stubCallbackHandler{}
	consumer := NewPaymentConsumer(nil, handler)
	acker := &recordingAcker{}

	consumer.processMessage(context.Background(), amqp.Delivery{Acknowledger: acker, Body: []byte(`not json`)})

	assert.Empty(t, handler.got)
	assert.Equal(t, 1, acker.nacked)
	assert.False(t, acker.requeue)
}

func TestProcessMessage_HandlerErrorRequeues(t *testing.T) {
	handler := &stubCallbackHandler{err: errors.New("db down")}
	consumer := NewPaymentConsumer(nil, handler)
	acker := &recordingAcker{}

	consumer.processMessage(context.Background(), amqp.Delivery{Acknowledger: acker, Body: []byte(`{"paymentId":3}`)})

	assert.Equal(t, 1, acker.nacked)
	assert.True(t, acker.requeue)
}

func TestProcessMessage_DeferredCallbackRequeuesAfterDelay(t *testing.T) {
	handler := &stubCallbackHandler{err: fmt.Errorf("claim 3 locked: %w", ErrRetryLater)}
	consumer := NewPaymentConsumer(nil, handler)
	consumer.retryDelay = 50 * time.Millisecond
	acker := &recordingAcker{}

	consumer.processMessage(context.Background(), amqp.Delivery{Acknowledger: acker, Body: []byte(`{"paymentId":3,"success":true}`)})

	nacked, _ := acker.nacks()
	assert.Equal(t, 0, nacked, "deferred callback must not be redelivered immediately")

	assert.Eventually(t, func() bool {
		n, requeue := acker.nacks()
		return n == 1 && requeue
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, acker.acked)
}
