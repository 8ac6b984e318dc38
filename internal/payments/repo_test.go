package payments

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
	"github.com/angelmondragon/marketpay-backend/pkg/types"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	payments := `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
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
	return db
}

func seedPayment(t *testing.T, db *gorm.DB, status enums.PaymentStatus) *models.Payment {
	t.Helper()

	payment := &models.Payment{
		ID:              uuid.New(),
		OrderID:         uuid.New(),
		Status:          status,
		AmountMinor:     10000,
		Currency:        enums.CurrencyINR,
		GatewayOrderRef: "order_" + uuid.NewString()[:8],
		SplitDetails: types.SplitDetails{
			PlatformAmountMinor: 1000,
			Transfers: []types.SplitLine{
				{ManufacturerID: uuid.New(), AmountMinor: 9000},
			},
		},
	}
	require.NoError(t, db.Create(payment).Error)
	return payment
}

func TestRepositoryFindByGatewayRefs(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)

	payment := seedPayment(t, db, enums.PaymentStatusInitiated)
	ref := "pay_123"
	require.NoError(t, db.Model(&models.Payment{}).Where("id = ?", payment.ID).Update("gateway_payment_ref", ref).Error)

	byOrder, err := repo.FindByGatewayOrderRef(context.Background(), payment.GatewayOrderRef)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, byOrder.ID)

	byPayment, err := repo.FindByGatewayPaymentRef(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, byPayment.ID)

	_, err = repo.FindByGatewayPaymentRef(context.Background(), "pay_missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryFindByOrderID(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)

	payment := seedPayment(t, db, enums.PaymentStatusInitiated)

	found, err := repo.FindByOrderID(context.Background(), payment.OrderID)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, found.ID)
	assert.Equal(t, int64(1000), found.SplitDetails.PlatformAmountMinor)
}

func TestRepositoryTransitionFromInitiatedFirstWriteWins(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)

	payment := seedPayment(t, db, enums.PaymentStatusInitiated)

	applied, err := repo.TransitionFromInitiated(context.Background(), payment.ID, map[string]any{
		"status":              enums.PaymentStatusCaptured,
		"gateway_payment_ref": "pay_abc",
	})
	require.NoError(t, err)
	assert.True(t, applied)

	// Replays and late failure webhooks must see zero rows.
	applied, err = repo.TransitionFromInitiated(context.Background(), payment.ID, map[string]any{
		"status": enums.PaymentStatusFailed,
	})
	require.NoError(t, err)
	assert.False(t, applied)

	found, err := repo.FindByID(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCaptured, found.Status)
	require.NotNil(t, found.GatewayPaymentRef)
	assert.Equal(t, "pay_abc", *found.GatewayPaymentRef)
}
