package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgdb "github.com/angelmondragon/payflow-backend/pkg/db"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	"github.com/angelmondragon/payflow-backend/pkg/pagination"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  gateway_intent_id TEXT NOT NULL,
  failure_reason TEXT,
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_gateway_intent_id ON payments (gateway_intent_id);`
	require.NoError(t, db.Exec(schema).Error)
	require.NoError(t, db.Exec("DELETE FROM payments").Error)

	return db
}

func newPayment(intentID string) *models.Payment {
	return &models.Payment{
		ID:              uuid.New(),
		OrderID:         uuid.New(),
		UserID:          uuid.New(),
		AmountCents:     2500,
		Currency:        enums.CurrencyUSD,
		Status:          enums.PaymentStatusPending,
		GatewayIntentID: intentID,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
}

func TestRepoInsertAndFind(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	payment := newPayment("pi_find")
	require.NoError(t, repo.Insert(ctx, payment))

	byID, err := repo.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.GatewayIntentID, byID.GatewayIntentID)
	assert.Equal(t, enums.PaymentStatusPending, byID.Status)

	byIntent, err := repo.FindByGatewayIntentID(ctx, "pi_find")
	require.NoError(t, err)
	assert.Equal(t, payment.ID, byIntent.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepoRejectsDuplicateGatewayIntent(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newPayment("pi_dup")))

	err := repo.Insert(ctx, newPayment("pi_dup"))
	require.Error(t, err)
	assert.True(t, pkgdb.IsUniqueViolation(err, "ux_payments_gateway_intent_id"))
}

func TestRepoConditionalUpdateAppliesOnce(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	payment := newPayment("pi_once")
	require.NoError(t, repo.Insert(ctx, payment))

	updated, applied, err := repo.UpdateStatusConditional(ctx, payment.ID, enums.PaymentStatusCompleted, StatusUpdate{})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, enums.PaymentStatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)

	// The row is terminal now; a competing transition must lose and observe
	// the winner's status.
	observed, applied, err := repo.UpdateStatusConditional(ctx, payment.ID, enums.PaymentStatusCancelled, StatusUpdate{})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, enums.PaymentStatusCompleted, observed.Status)
}

func TestRepoConditionalUpdateRecordsFailureReason(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	payment := newPayment("pi_fail")
	require.NoError(t, repo.Insert(ctx, payment))

	reason := "card declined"
	updated, applied, err := repo.UpdateStatusConditional(ctx, payment.ID, enums.PaymentStatusFailed, StatusUpdate{FailureReason: &reason})
	require.NoError(t, err)
	assert.True(t, applied)
	require.NotNil(t, updated.FailureReason)
	assert.Equal(t, reason, *updated.FailureReason)
	assert.Nil(t, updated.CompletedAt)
}

func TestRepoConditionalUpdateMissingRow(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)

	_, _, err := repo.UpdateStatusConditional(context.Background(), uuid.New(), enums.PaymentStatusCompleted, StatusUpdate{})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepoListByOrderAndUser(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	userID := uuid.New()

	first := newPayment("pi_list_1")
	first.OrderID = orderID
	first.UserID = userID
	first.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, repo.Insert(ctx, first))

	second := newPayment("pi_list_2")
	second.OrderID = orderID
	second.UserID = userID
	second.CreatedAt = time.Now().UTC().Add(-1 * time.Hour)
	require.NoError(t, repo.Insert(ctx, second))

	require.NoError(t, repo.Insert(ctx, newPayment("pi_list_other")))

	byOrder, err := repo.ListByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, byOrder, 2)
	assert.Equal(t, first.ID, byOrder[0].ID, "order attempts should be oldest first")

	byUser, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, byUser, 2)
	assert.Equal(t, second.ID, byUser[0].ID, "user payments should be newest first")

	count, err := repo.CountByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestRepoListPendingBefore(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	stale := newPayment("pi_stale")
	stale.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Insert(ctx, stale))

	fresh := newPayment("pi_fresh")
	fresh.CreatedAt = time.Now().UTC()
	require.NoError(t, repo.Insert(ctx, fresh))

	settled := newPayment("pi_settled")
	settled.Status = enums.PaymentStatusCompleted
	settled.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Insert(ctx, settled))

	pending, err := repo.ListPendingBefore(ctx, time.Now().UTC().Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, stale.ID, pending[0].ID)
}

func TestRepoListPage(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		payment := newPayment(uuid.NewString())
		payment.CreatedAt = time.Now().UTC().Add(time.Duration(-i) * time.Minute)
		require.NoError(t, repo.Insert(ctx, payment))
	}
	settled := newPayment("pi_page_settled")
	settled.Status = enums.PaymentStatusCancelled
	require.NoError(t, repo.Insert(ctx, settled))

	page, total, err := repo.ListPage(ctx, pagination.Params{Page: 1, Limit: 2}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, page, 2)

	status := enums.PaymentStatusCancelled
	filtered, total, err := repo.ListPage(ctx, pagination.Params{Page: 1, Limit: 10}, &status)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, filtered, 1)
	assert.Equal(t, settled.ID, filtered[0].ID)
}
