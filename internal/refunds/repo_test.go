package refunds

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketpay-backend/pkg/db/models"
	"github.com/angelmondragon/marketpay-backend/pkg/enums"
)

func setupRefundsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	refunds := `
CREATE TABLE IF NOT EXISTS refunds (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  payment_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'processing',
  reason TEXT NOT NULL,
  amount_minor INTEGER NOT NULL,
  gateway_refund_ref TEXT,
  split_refund_details TEXT,
  gateway_response TEXT,
  notes TEXT,
  failure_reason TEXT,
  processed_at DATETIME,
  failed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(refunds).Error)
	return db
}

func seedRefund(t *testing.T, db *gorm.DB, paymentID uuid.UUID, status enums.RefundStatus, amountMinor int64) *models.Refund {
	t.Helper()

	ref := "rfnd_" + uuid.NewString()[:8]
	refund := &models.Refund{
		ID:               uuid.New(),
		OrderID:          uuid.New(),
		PaymentID:        paymentID,
		Status:           status,
		Reason:           enums.RefundReasonCustomerRequest,
		AmountMinor:      amountMinor,
		GatewayRefundRef: &ref,
	}
	require.NoError(t, db.Create(refund).Error)
	return refund
}

func TestRepositoryFindPaymentForUpdate(t *testing.T) {
	db := setupRefundsTestDB(t)
	payments := `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'initiated',
  amount_minor INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'INR',
  gateway_order_ref TEXT NOT NULL,
  gateway_payment_ref TEXT,
  method TEXT,
  bank TEXT,
  wallet TEXT,
  vpa TEXT,
  card_ref TEXT,
  failure_reason TEXT,
  split_details TEXT,
  gateway_response TEXT,
  captured_at DATETIME,
  failed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(payments).Error)
	repo := NewRepository(db)

	payment := &models.Payment{
		ID:              uuid.New(),
		OrderID:         uuid.New(),
		Status:          enums.PaymentStatusCaptured,
		AmountMinor:     10000,
		Currency:        enums.CurrencyINR,
		GatewayOrderRef: "order_gw1",
	}
	require.NoError(t, db.Create(payment).Error)

	found, err := repo.FindPaymentForUpdate(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, found.ID)
	assert.Equal(t, int64(10000), found.AmountMinor)

	_, err = repo.FindPaymentForUpdate(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositorySumActiveByPayment(t *testing.T) {
	db := setupRefundsTestDB(t)
	repo := NewRepository(db)
	paymentID := uuid.New()

	seedRefund(t, db, paymentID, enums.RefundStatusCompleted, 3000)
	seedRefund(t, db, paymentID, enums.RefundStatusProcessing, 2000)
	// Failed refunds release their amount.
	seedRefund(t, db, paymentID, enums.RefundStatusFailed, 4000)
	// Other payments never count.
	seedRefund(t, db, uuid.New(), enums.RefundStatusCompleted, 9000)

	total, err := repo.SumActiveByPayment(context.Background(), paymentID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), total)

	total, err = repo.SumActiveByPayment(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRepositoryTransitionFromProcessingFirstWriteWins(t *testing.T) {
	db := setupRefundsTestDB(t)
	repo := NewRepository(db)

	refund := seedRefund(t, db, uuid.New(), enums.RefundStatusProcessing, 5000)

	applied, err := repo.TransitionFromProcessing(context.Background(), refund.ID, map[string]any{
		"status": enums.RefundStatusCompleted,
	})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.TransitionFromProcessing(context.Background(), refund.ID, map[string]any{
		"status": enums.RefundStatusFailed,
	})
	require.NoError(t, err)
	assert.False(t, applied)

	found, err := repo.FindByID(context.Background(), refund.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RefundStatusCompleted, found.Status)
}

func TestRepositoryFindByGatewayRefundRef(t *testing.T) {
	db := setupRefundsTestDB(t)
	repo := NewRepository(db)

	refund := seedRefund(t, db, uuid.New(), enums.RefundStatusProcessing, 5000)

	found, err := repo.FindByGatewayRefundRef(context.Background(), *refund.GatewayRefundRef)
	require.NoError(t, err)
	assert.Equal(t, refund.ID, found.ID)

	_, err = repo.FindByGatewayRefundRef(context.Background(), "rfnd_missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListByOrderID(t *testing.T) {
	db := setupRefundsTestDB(t)
	repo := NewRepository(db)

	refund := seedRefund(t, db, uuid.New(), enums.RefundStatusProcessing, 5000)

	list, err := repo.ListByOrderID(context.Background(), refund.OrderID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, refund.ID, list[0].ID)
}
