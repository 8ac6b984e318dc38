package enums

import "fmt"

// OrderStatus tracks the lifecycle of a marketplace order.
type OrderStatus string

const (
	OrderStatusPending            OrderStatus = "pending"
	OrderStatusPaymentPending     OrderStatus = "payment_pending"
	OrderStatusConfirmed          OrderStatus = "confirmed"
	OrderStatusPaymentFailed      OrderStatus = "payment_failed"
	OrderStatusRefunded           OrderStatus = "refunded"
	OrderStatusPartiallyFulfilled OrderStatus = "partially_fulfilled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaymentPending,
	OrderStatusConfirmed,
	OrderStatusPaymentFailed,
	OrderStatusRefunded,
	OrderStatusPartiallyFulfilled,
}

// orderTransitions is the full legal transition table. Anything absent is a
// state conflict.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusPaymentPending},
	OrderStatusPaymentPending: {OrderStatusConfirmed, OrderStatusPaymentFailed},
	OrderStatusConfirmed:      {OrderStatusRefunded, OrderStatusPartiallyFulfilled},
	// A compensating recompute may walk a refund-derived status back to
	// confirmed when the refund that caused it later fails.
	OrderStatusPartiallyFulfilled: {OrderStatusConfirmed, OrderStatusRefunded},
	OrderStatusRefunded:           {OrderStatusConfirmed, OrderStatusPartiallyFulfilled},
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the transition o → next is legal.
func (o OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderTransitions[o] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsPayable reports whether payment initiation is allowed from this status.
func (o OrderStatus) IsPayable() bool {
	return o == OrderStatusPending || o == OrderStatusPaymentPending
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
