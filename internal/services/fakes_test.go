package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"claim-service/internal/models"
	"claim-service/internal/ports"
	"claim-service/internal/repository"
	"claim-service/internal/worker"

	"github.com/shopspring/decimal"
)

// memStore keeps claims, payments and policy data in memory. Status changes are
// conditional like the SQL they stand in for, and payments honour the one
// active-or-completed payment per claim rule.
type memStore struct {
	mu        sync.Mutex
	claims    map[int64]*models.Claim
	payments  map[int64]*models.Payment
	policies  map[int64]*models.Policy
	farmers   map[int64]*models.Farmer
	holdings  map[int64]*models.LandHolding
	nextClaim int64
	nextPay   int64
	usedNums  map[string]bool

	createErr error
	failNext  atomic.Int32 // Create calls that return ErrDuplicate
}

func newMemStore() *memStore {
	return &memStore{
		claims:   make(map[int64]*models.Claim),
		payments: make(map[int64]*models.Payment),
		policies: make(map[int64]*models.Policy),
		farmers:  make(map[int64]*models.Farmer),
		holdings: make(map[int64]*models.LandHolding),
		usedNums: make(map[string]bool),
	}
}

func strPtr(s string) *string { return &s }

// seedPolicy stores farmer 1, land holding 1 and policy 1 with a 100mm threshold
// and ₹50,000 coverage.
func (m *memStore) seedPolicy(survey *string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.farmers[1] = &models.Farmer{
		ID: 1, Name: "Ramesh", Phone: "9876543210", District: "Anantapur", State: "Andhra Pradesh",
		BankAccount: strPtr("123456789012"), IFSCCode: strPtr("SBIN0004321"),
	}
	m.holdings[1] = &models.LandHolding{ID: 1, FarmerID: 1, SurveyNumber: survey}
	m.policies[1] = &models.Policy{
		ID: 1, PolicyNumber: "POL-2024-0001", FarmerID: 1, LandHoldingID: 1,
		CropType: "groundnut", Season: "kharif",
		CoverageAmount:    decimal.NewFromInt(50000),
		Premium:           decimal.NewFromInt(1500),
		RainfallThreshold: 100,
		ValidFrom:         time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:           time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC),
		Status:            models.PolicyActive,
	}
}

func (m *memStore) addClaim(status models.ClaimStatus, amount int64) *models.Claim {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextClaim++
	c := &models.Claim{
		ID:          m.nextClaim,
		ClaimNumber: fmt.Sprintf("CR-2024-%06d", m.nextClaim),
		FarmerID:    1,
		PolicyID:    1,
		ClaimAmount: decimal.NewFromInt(amount),
		Status:      status,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.claims[c.ID] = c
	m.usedNums[c.ClaimNumber] = true
	return c
}

func (m *memStore) claim(id int64) models.Claim {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.claims[id]
}

func (m *memStore) paymentsFor(claimID int64) []models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Payment
	for _, p := range m.payments {
		if p.ClaimID == claimID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// ClaimStore

func (m *memStore) Create(ctx context.Context, claim *models.Claim) error {
	if m.failNext.Load() > 0 {
		m.failNext.Add(-1)
		return repository.ErrDuplicate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if m.usedNums[claim.ClaimNumber] {
		return repository.ErrDuplicate
	}
	m.nextClaim++
	claim.ID = m.nextClaim
	claim.CreatedAt = time.Now()
	claim.UpdatedAt = claim.CreatedAt
	cp := *claim
	m.claims[claim.ID] = &cp
	m.usedNums[claim.ClaimNumber] = true
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id int64) (*models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return nil, fmt.Errorf("claim %d: %w", id, repository.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) List(ctx context.Context, filter repository.ClaimFilter) ([]models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Claim{}
	for _, c := range m.claims {
		if filter.FarmerID > 0 && c.FarmerID != filter.FarmerID {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, s := range filter.Statuses {
				match = match || c.Status == s
			}
			if !match {
				continue
			}
		}
		if !filter.UpdatedBefore.IsZero() && !c.UpdatedAt.Before(filter.UpdatedBefore) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memStore) ListByFarmer(ctx context.Context, farmerID int64) ([]models.Claim, error) {
	return m.List(ctx, repository.ClaimFilter{FarmerID: farmerID})
}

func (m *memStore) transitionClaim(id int64, from models.ClaimStatus, fn func(c *models.Claim)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok || c.Status != from {
		return false, nil
	}
	fn(c)
	return true, nil
}

func (m *memStore) MarkProcessing(ctx context.Context, id int64, at time.Time) (bool, error) {
	return m.transitionClaim(id, models.ClaimSubmitted, func(c *models.Claim) {
		c.Status = models.ClaimProcessing
		c.ProcessedAt = &at
		c.UpdatedAt = at
	})
}

func (m *memStore) Approve(ctx context.Context, id int64, approval models.ClaimApproval, at time.Time) (bool, error) {
	return m.transitionClaim(id, models.ClaimProcessing, func(c *models.Claim) {
		c.Status = models.ClaimApproved
		c.ClaimAmount = approval.ClaimAmount
		if c.ActualRainfall == nil {
			r := approval.ActualRainfall
			c.ActualRainfall = &r
		}
		d := approval.Decision
		c.Decision = &d
		st := approval.SettlementTime
		c.SettlementTime = &st
		c.ProcessedAt = &at
		c.UpdatedAt = at
	})
}

func (m *memStore) Reject(ctx context.Context, id int64, rejection models.ClaimRejection, at time.Time) (bool, error) {
	return m.transitionClaim(id, models.ClaimProcessing, func(c *models.Claim) {
		c.Status = models.ClaimRejected
		reason := rejection.Reason
		c.ReasonCode = &reason
		c.ClaimAmount = decimal.Zero
		if c.ActualRainfall == nil && rejection.ActualRainfall != nil {
			r := *rejection.ActualRainfall
			c.ActualRainfall = &r
		}
		if rejection.Decision != nil {
			c.Decision = rejection.Decision
		}
		c.ProcessedAt = &at
		c.UpdatedAt = at
	})
}

func (m *memStore) MarkSettled(ctx context.Context, id int64, at time.Time) (bool, error) {
	return m.transitionClaim(id, models.ClaimApproved, func(c *models.Claim) {
		c.Status = models.ClaimSettled
		c.SettledAt = &at
		c.UpdatedAt = at
	})
}

func (m *memStore) ListApprovedWithoutPayment(ctx context.Context, before time.Time, limit int) ([]models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Claim{}
	for _, c := range m.claims {
		if c.Status != models.ClaimApproved || !c.UpdatedAt.Before(before) {
			continue
		}
		paid := false
		for _, p := range m.payments {
			paid = paid || p.ClaimID == c.ID
		}
		if !paid {
			out = append(out, *c)
		}
	}
	return out, nil
}

// PaymentStore, reached through paymentView to avoid method clashes with ClaimStore

type paymentView struct{ *memStore }

func (v paymentView) Create(ctx context.Context, p *models.Payment) error {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.payments {
		if existing.ClaimID == p.ClaimID && (existing.Status.IsActive() || existing.Status == models.PaymentCompleted) {
			return repository.ErrDuplicate
		}
	}
	m.nextPay++
	p.ID = m.nextPay
	p.CreatedAt = time.Now()
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (v paymentView) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %d: %w", id, repository.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (v paymentView) ListByClaim(ctx context.Context, claimID int64) ([]models.Payment, error) {
	out := v.memStore.paymentsFor(claimID)
	if out == nil {
		out = []models.Payment{}
	}
	return out, nil
}

func (v paymentView) transition(id int64, allowed []models.PaymentStatus, fn func(p *models.Payment)) (bool, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return false, nil
	}
	for _, s := range allowed {
		if p.Status == s {
			fn(p)
			return true, nil
		}
	}
	return false, nil
}

func (v paymentView) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	return v.transition(id, []models.PaymentStatus{models.PaymentInitiated}, func(p *models.Payment) {
		p.Status = models.PaymentProcessing
	})
}

func (v paymentView) Complete(ctx context.Context, id int64, transactionID string, at time.Time) (bool, error) {
	return v.transition(id, []models.PaymentStatus{models.PaymentProcessing}, func(p *models.Payment) {
		p.Status = models.PaymentCompleted
		p.TransactionID = &transactionID
		p.CompletedAt = &at
	})
}

func (v paymentView) Fail(ctx context.Context, id int64, reason string) (bool, error) {
	return v.transition(id, []models.PaymentStatus{models.PaymentInitiated, models.PaymentProcessing}, func(p *models.Payment) {
		p.Status = models.PaymentFailed
		p.FailureReason = &reason
	})
}

func (v paymentView) SetReceipt(ctx context.Context, id int64, receiptNumber, objectName string) error {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.ReceiptNumber = &receiptNumber
	p.ReceiptObject = &objectName
	return nil
}

func (v paymentView) ListStale(ctx context.Context, status models.PaymentStatus, before time.Time, limit int) ([]models.Payment, error) {
	m := v.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Payment{}
	for _, p := range m.payments {
		if p.Status == status && p.CreatedAt.Before(before) {
			out = append(out, *p)
		}
	}
	return out, nil
}

// PolicyStore

func (m *memStore) GetPolicy(ctx context.Context, id int64) (*models.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[id]
	if !ok {
		return nil, fmt.Errorf("policy %d: %w", id, repository.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetFarmer(ctx context.Context, id int64) (*models.Farmer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.farmers[id]
	if !ok {
		return nil, fmt.Errorf("farmer %d: %w", id, repository.ErrNotFound)
	}
	cp := *f
	return &cp, nil
}

func (m *memStore) GetDetails(ctx context.Context, policyID int64) (*models.PolicyDetails, error) {
	policy, err := m.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}
	farmer, err := m.GetFarmer(ctx, policy.FarmerID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	holding, ok := m.holdings[policy.LandHoldingID]
	if !ok {
		return nil, fmt.Errorf("land holding %d: %w", policy.LandHoldingID, repository.ErrNotFound)
	}
	return &models.PolicyDetails{Policy: *policy, Farmer: *farmer, LandHolding: *holding}, nil
}

// ports

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2024, 10, 15, 9, 30, 0, 0, time.UTC)

type fixedRandom struct {
	n int
	f float64
}

func (r fixedRandom) IntN(n int) int {
	if r.n >= n {
		return n - 1
	}
	return r.n
}

func (r fixedRandom) Float64() float64 { return r.f }

type stubVerifier struct {
	verified bool
	calls    atomic.Int32
}

func (v *stubVerifier) VerifyLand(ctx context.Context, farmerID int64, surveyNumber string) ports.LandVerification {
	v.calls.Add(1)
	if !v.verified {
		return ports.LandVerification{}
	}
	return ports.LandVerification{Verified: true, ProofToken: "0xabc"}
}

type stubWeather struct {
	readings []ports.RainfallReading
	calls    atomic.Int32
	panics   bool
}

func (w *stubWeather) Rainfall(ctx context.Context, district, state string, from, to time.Time) []ports.RainfallReading {
	w.calls.Add(1)
	if w.panics {
		panic("weather exploded")
	}
	return w.readings
}

func rainfall(mm ...float64) []ports.RainfallReading {
	out := make([]ports.RainfallReading, len(mm))
	for i, v := range mm {
		out[i] = ports.RainfallReading{Date: time.Date(2024, 7, i+1, 0, 0, 0, 0, time.UTC), RainfallMM: v}
	}
	return out
}

type stubGateway struct {
	success bool
	calls   atomic.Int32
	gate    chan struct{}
}

func (g *stubGateway) Pay(ctx context.Context, instruction ports.PaymentInstruction) ports.PaymentResult {
	g.calls.Add(1)
	if g.gate != nil {
		<-g.gate
	}
	if !g.success {
		return ports.PaymentResult{FailureReason: "bank declined transfer"}
	}
	return ports.PaymentResult{Success: true, TransactionID: fmt.Sprintf("TXN-%d", instruction.PaymentID)}
}

type sentNotification struct {
	UserID  int64
	Kind    ports.NotificationKind
	Payload map[string]any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(ctx context.Context, userID int64, kind ports.NotificationKind, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Kind: kind, Payload: payload})
}

func (n *recordingNotifier) kinds() []ports.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]ports.NotificationKind, len(n.sent))
	for i, s := range n.sent {
		out[i] = s.Kind
	}
	return out
}

type enqueued struct {
	TaskType worker.TaskType
	ClaimID  int64
}

type recordingEnqueuer struct {
	mu    sync.Mutex
	tasks []enqueued
	open  map[enqueued]bool
	err   error
}

func (e *recordingEnqueuer) HasOpenTask(ctx context.Context, taskType worker.TaskType, claimID int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open[enqueued{TaskType: taskType, ClaimID: claimID}], nil
}

func (e *recordingEnqueuer) Enqueue(ctx context.Context, taskType worker.TaskType, claimID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.tasks = append(e.tasks, enqueued{TaskType: taskType, ClaimID: claimID})
	return nil
}

func (e *recordingEnqueuer) all() []enqueued {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]enqueued(nil), e.tasks...)
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (o *memObjects) UploadBytes(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[bucketName+"/"+objectName] = data
	return nil
}

func (o *memObjects) GetPresignedURL(ctx context.Context, bucketName, objectName string, expiry time.Duration) (string, error) {
	return "https://objects.local/" + bucketName + "/" + objectName, nil
}

func (o *memObjects) FileExists(ctx context.Context, bucketName, objectName string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.objects[bucketName+"/"+objectName]
	return ok, nil
}
