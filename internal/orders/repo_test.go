package orders

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

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  currency TEXT NOT NULL DEFAULT 'INR',
  total_amount_minor INTEGER NOT NULL,
  platform_fee_minor INTEGER NOT NULL,
  gateway_order_ref TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	lineItems := `
CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  manufacturer_id TEXT NOT NULL,
  name TEXT NOT NULL,
  qty INTEGER NOT NULL,
  unit_price_minor INTEGER NOT NULL,
  commission_minor INTEGER NOT NULL DEFAULT 0,
  total_minor INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(lineItems).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus, totalMinor int64) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:               uuid.New(),
		BuyerID:          uuid.New(),
		Status:           status,
		Currency:         enums.CurrencyINR,
		TotalAmountMinor: totalMinor,
		PlatformFeeMinor: totalMinor / 10,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func seedLineItem(t *testing.T, db *gorm.DB, orderID uuid.UUID, totalMinor, commissionMinor int64) *models.OrderLineItem {
	t.Helper()

	item := &models.OrderLineItem{
		ID:              uuid.New(),
		OrderID:         orderID,
		ManufacturerID:  uuid.New(),
		Name:            "Widget",
		Qty:             1,
		UnitPriceMinor:  totalMinor,
		CommissionMinor: commissionMinor,
		TotalMinor:      totalMinor,
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func TestRepositoryFindByIDWithItems(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := seedOrder(t, db, enums.OrderStatusPending, 10000)
	seedLineItem(t, db, order.ID, 7000, 700)
	seedLineItem(t, db, order.ID, 3000, 300)

	found, err := repo.FindByIDWithItems(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	assert.Len(t, found.Items, 2)
	assert.Equal(t, enums.OrderStatusPending, found.Status)

	_, err = repo.FindByIDWithItems(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryUpdateStatusConditional(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := seedOrder(t, db, enums.OrderStatusPending, 5000)

	updated, err := repo.UpdateStatus(context.Background(), order.ID, enums.OrderStatusPending, enums.OrderStatusPaymentPending)
	require.NoError(t, err)
	assert.True(t, updated)

	// The source status no longer matches, so a replay must not win.
	updated, err = repo.UpdateStatus(context.Background(), order.ID, enums.OrderStatusPending, enums.OrderStatusPaymentPending)
	require.NoError(t, err)
	assert.False(t, updated)

	found, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentPending, found.Status)
}

func TestRepositoryUpdateFields(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := seedOrder(t, db, enums.OrderStatusPending, 5000)
	ref := "order_R1"
	require.NoError(t, repo.Update(context.Background(), order.ID, map[string]any{"gateway_order_ref": ref}))

	found, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, found.GatewayOrderRef)
	assert.Equal(t, ref, *found.GatewayOrderRef)
}
