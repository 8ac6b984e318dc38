package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketpay-backend/pkg/enums"
	"github.com/angelmondragon/marketpay-backend/pkg/types"
)

// Payment tracks one payment attempt against an order. One payment per
// order; a failed payment is never reused.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Status            enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'initiated'"`
	AmountMinor       int64               `gorm:"column:amount_minor;not null"`
	Currency          enums.Currency      `gorm:"column:currency;type:text;not null;default:'INR'"`
	GatewayOrderRef   string              `gorm:"column:gateway_order_ref;not null"`
	GatewayPaymentRef *string             `gorm:"column:gateway_payment_ref"`
	Method            *string             `gorm:"column:method"`
	Bank              *string             `gorm:"column:bank"`
	Wallet            *string             `gorm:"column:wallet"`
	VPA               *string             `gorm:"column:vpa"`
	CardRef           *string             `gorm:"column:card_ref"`
	FailureReason     *string             `gorm:"column:failure_reason"`
	SplitDetails      types.SplitDetails  `gorm:"column:split_details;type:jsonb;serializer:json"`
	GatewayResponse   json.RawMessage     `gorm:"column:gateway_response;type:jsonb"`
	CapturedAt        *time.Time          `gorm:"column:captured_at"`
	FailedAt          *time.Time          `gorm:"column:failed_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
