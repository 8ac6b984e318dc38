package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketpay-backend/pkg/enums"
)

// Order is the buyer-facing marketplace order that payments and refunds
// reconcile against. Rows are never deleted; terminal states are retained
// for audit.
type Order struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID          uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	Status           enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	Currency         enums.Currency    `gorm:"column:currency;type:text;not null;default:'INR'"`
	TotalAmountMinor int64             `gorm:"column:total_amount_minor;not null"`
	PlatformFeeMinor int64             `gorm:"column:platform_fee_minor;not null"`
	GatewayOrderRef  *string           `gorm:"column:gateway_order_ref"`
	Items            []OrderLineItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment          *Payment          `gorm:"foreignKey:OrderID"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
