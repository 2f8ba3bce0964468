package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bizflow/backend/internal/models"
	"github.com/bizflow/backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindDueRenewalsFiltersByClassAndWindow(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGormRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	due := testutil.SeedSubscription(t, db, now.Add(-time.Hour))
	testutil.SeedSubscription(t, db, now.AddDate(0, 0, 10))
	testutil.SeedSubscription(t, db, now.Add(-time.Hour), testutil.WithSubscription(func(s *models.Subscription) {
		s.PaymentMethod = models.PaymentMethodTypeCash
	}))
	testutil.SeedSubscription(t, db, now.Add(-time.Hour), testutil.WithSubscription(func(s *models.Subscription) {
		s.BillingCycle = models.BillingCycleLifetime
	}))
	testutil.SeedSubscription(t, db, now.Add(-time.Hour), testutil.WithSubscription(func(s *models.Subscription) {
		s.Status = models.SubscriptionStatusSuspended
	}))

	subs, err := repo.FindDueRenewals(ctx, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, due.Subscription.ID, subs[0].ID)
	assert.Equal(t, due.Plan.ID, subs[0].Plan.ID)
}

func TestFindOverdueRetries(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGormRepository(db)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	ready := testutil.SeedSubscription(t, db, now, testutil.WithSubscription(func(s *models.Subscription) {
		s.Status = models.SubscriptionStatusOverdue
		s.NextRetryDate = &past
	}))
	testutil.SeedSubscription(t, db, now, testutil.WithSubscription(func(s *models.Subscription) {
		s.Status = models.SubscriptionStatusOverdue
		s.NextRetryDate = &future
	}))

	subs, err := repo.FindOverdueRetries(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, ready.Subscription.ID, subs[0].ID)
}

func TestPaymentLookups(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGormRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()
	f := testutil.SeedSubscription(t, db, now)

	latest, err := repo.LatestPayment(ctx, f.Subscription.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	first := models.NewPayment(f.Subscription, 49.90, "COP", "SUB-A", now)
	first.Status = models.PaymentStatusCompleted
	require.NoError(t, repo.SavePayment(ctx, first))
	second := models.NewPayment(f.Subscription, 49.90, "COP", "SUB-B", now)
	require.NoError(t, repo.SavePayment(ctx, second))

	found, err := repo.FindPaymentByReference(ctx, "SUB-B")
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)

	_, err = repo.FindPaymentByReference(ctx, "SUB-missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	pending, err := repo.HasPendingPayment(ctx, f.Subscription.ID)
	require.NoError(t, err)
	assert.True(t, pending)

	completed, err := repo.LatestPayment(ctx, f.Subscription.ID, models.PaymentStatusCompleted)
	require.NoError(t, err)
	require.NotNil(t, completed)
	assert.Equal(t, "SUB-A", completed.ExternalReference)

	refs, err := repo.RecentPaymentReferences(ctx, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"SUB-A", "SUB-B"}, refs)
}

func TestAppendLedgerEntryIsOncePerPayment(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGormRepository(db)
	ctx := context.Background()
	f := testutil.SeedSubscription(t, db, time.Now().UTC())

	paymentID := uuid.New()
	entry := func() *models.FinancialMovement {
		return &models.FinancialMovement{
			BusinessID:     f.Business.ID,
			SubscriptionID: f.Subscription.ID,
			PaymentID:      paymentID,
			Type:           models.MovementTypeSubscriptionRenewal,
			Amount:         49.90,
			Currency:       "COP",
			Status:         models.MovementStatusCompleted,
		}
	}

	require.NoError(t, repo.AppendLedgerEntry(ctx, entry()))
	assert.ErrorIs(t, repo.AppendLedgerEntry(ctx, entry()), ErrLedgerEntryExists)

	entries, err := repo.ListLedgerEntries(ctx, f.Subscription.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	err = db.Model(&entries[0]).Update("amount", 1).Error
	assert.ErrorIs(t, err, models.ErrLedgerImmutable)
	err = db.Delete(&entries[0]).Error
	assert.ErrorIs(t, err, models.ErrLedgerImmutable)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGormRepository(db)
	ctx := context.Background()
	f := testutil.SeedSubscription(t, db, time.Now().UTC())

	boom := errors.New("boom")
	err := repo.Transaction(ctx, func(tx Repository) error {
		sub, err := tx.LoadSubscription(ctx, f.Subscription.ID)
		require.NoError(t, err)
		sub.Status = models.SubscriptionStatusCanceled
		require.NoError(t, tx.SaveSubscription(ctx, sub))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	reloaded, err := repo.LoadSubscription(ctx, f.Subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusTrial, reloaded.Status)
	assert.Equal(t, f.Plan.Name, reloaded.Plan.Name)
}

func TestFindTrialsEndingBefore(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGormRepository(db)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	soon := testutil.SeedSubscription(t, db, now.AddDate(0, 0, 2))
	testutil.SeedSubscription(t, db, now.AddDate(0, 0, 5))
	reminded := now.Add(-time.Hour)
	testutil.SeedSubscription(t, db, now.AddDate(0, 0, 1), testutil.WithSubscription(func(s *models.Subscription) {
		s.TrialReminderSentAt = &reminded
	}))

	subs, err := repo.FindTrialsEndingBefore(context.Background(), now, now.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, soon.Subscription.ID, subs[0].ID)
}
