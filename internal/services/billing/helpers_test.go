package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bizflow/backend/internal/models"
	"github.com/bizflow/backend/internal/repository"
	"github.com/bizflow/backend/internal/testutil"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// MockGateway is a mock implementation of Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ChargeResult), args.Error(1)
}

type sentNotification struct {
	kind           NotificationKind
	subscriptionID string
	data           map[string]interface{}
}

// recordingNotifier keeps every notification for assertions
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, kind NotificationKind, sub *models.Subscription, data map[string]interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{kind: kind, subscriptionID: sub.ID.String(), data: data})
	return nil
}

func (n *recordingNotifier) kinds() []NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]NotificationKind, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.kind)
	}
	return out
}

type testEnv struct {
	db       *gorm.DB
	repo     *repository.GormRepository
	gateway  *MockGateway
	notifier *recordingNotifier
	ledger   *PaymentLedger
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	db := testutil.NewTestDB(t)
	return &testEnv{
		db:       db,
		repo:     repository.NewGormRepository(db),
		gateway:  &MockGateway{},
		notifier: &recordingNotifier{},
		ledger:   NewPaymentLedger(),
		now:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func (e *testEnv) clock() time.Time { return e.now }

func (e *testEnv) orchestrator() *RenewalOrchestrator {
	return NewRenewalOrchestrator(e.repo, e.gateway, e.notifier, e.ledger, RenewalConfig{
		Window:        24 * time.Hour,
		Concurrency:   2,
		ChargeTimeout: time.Second,
		Now:           e.clock,
	})
}

func (e *testEnv) reconciler(secret string) *WebhookReconciler {
	return NewWebhookReconciler(e.repo, NewSignatureVerifier(secret), e.notifier, e.ledger, e.clock)
}

func (e *testEnv) reload(t *testing.T, sub *models.Subscription) *models.Subscription {
	t.Helper()
	fresh, err := e.repo.LoadSubscription(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("reload subscription: %v", err)
	}
	return fresh
}

func (e *testEnv) latestPayment(t *testing.T, sub *models.Subscription) *models.Payment {
	t.Helper()
	p, err := e.repo.LatestPayment(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("latest payment: %v", err)
	}
	return p
}

func (e *testEnv) ledgerEntries(t *testing.T, sub *models.Subscription) []models.FinancialMovement {
	t.Helper()
	entries, err := e.repo.ListLedgerEntries(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	return entries
}
