package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketpay-backend/pkg/types"
)

// InvoiceRequestedEvent asks the billing pipeline to generate an invoice for
// a captured payment. Emitted after the capture transaction commits.
type InvoiceRequestedEvent struct {
	OrderID      uuid.UUID          `json:"order_id"`
	PaymentID    uuid.UUID          `json:"payment_id"`
	BuyerID      uuid.UUID          `json:"buyer_id"`
	AmountMinor  int64              `json:"amount_minor"`
	Currency     string             `json:"currency"`
	SplitDetails types.SplitDetails `json:"split_details"`
	CapturedAt   time.Time          `json:"captured_at"`
}

// PaymentStatusEvent reports a payment reaching a terminal status.
type PaymentStatusEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	PaymentID   uuid.UUID `json:"payment_id"`
	Status      string    `json:"status"`
	AmountMinor int64     `json:"amount_minor"`
	Reason      string    `json:"reason,omitempty"`
}

// RefundStatusEvent reports a refund reaching a terminal status.
type RefundStatusEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	PaymentID   uuid.UUID `json:"payment_id"`
	RefundID    uuid.UUID `json:"refund_id"`
	Status      string    `json:"status"`
	AmountMinor int64     `json:"amount_minor"`
	Reason      string    `json:"reason,omitempty"`
}
