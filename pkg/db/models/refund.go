package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketpay-backend/pkg/enums"
	"github.com/angelmondragon/marketpay-backend/pkg/types"
)

// Refund is one reimbursement against a captured payment.
type Refund struct {
	ID                 uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID            uuid.UUID          `gorm:"column:order_id;type:uuid;not null"`
	PaymentID          uuid.UUID          `gorm:"column:payment_id;type:uuid;not null"`
	Status             enums.RefundStatus `gorm:"column:status;type:refund_status;not null;default:'processing'"`
	Reason             enums.RefundReason `gorm:"column:reason;type:refund_reason;not null"`
	AmountMinor        int64              `gorm:"column:amount_minor;not null"`
	GatewayRefundRef   *string            `gorm:"column:gateway_refund_ref"`
	SplitRefundDetails types.SplitDetails `gorm:"column:split_refund_details;type:jsonb;serializer:json"`
	GatewayResponse    json.RawMessage    `gorm:"column:gateway_response;type:jsonb"`
	Notes              *string            `gorm:"column:notes"`
	FailureReason      *string            `gorm:"column:failure_reason"`
	ProcessedAt        *time.Time         `gorm:"column:processed_at"`
	FailedAt           *time.Time         `gorm:"column:failed_at"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
