package razorpay

import "encoding/json"

// Transfer routes a sub-amount of a payment to a linked account at capture
// time, distinct from the platform's retained portion.
type Transfer struct {
	Account     string `json:"account"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
}

// OrderCreateParams is the request surface for registering a gateway order.
type OrderCreateParams struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
	Transfers   []Transfer
}

func (p OrderCreateParams) toRequestBody() map[string]any {
	body := map[string]any{
		"amount":   p.AmountMinor,
		"currency": p.Currency,
		"receipt":  p.Receipt,
	}
	if len(p.Notes) > 0 {
		body["notes"] = p.Notes
	}
	if len(p.Transfers) > 0 {
		transfers := make([]map[string]any, 0, len(p.Transfers))
		for _, t := range p.Transfers {
			transfers = append(transfers, map[string]any{
				"account":  t.Account,
				"amount":   t.AmountMinor,
				"currency": t.Currency,
			})
		}
		body["transfers"] = transfers
	}
	return body
}

// Order is the gateway's order representation.
type Order struct {
	ID          string          `json:"id"`
	AmountMinor int64           `json:"amount"`
	Currency    string          `json:"currency"`
	Receipt     string          `json:"receipt"`
	Status      string          `json:"status"`
	Raw         json.RawMessage `json:"-"`
}

// Payment carries only the fields the reconciliation core reads. The full
// gateway body lives in Raw and is persisted verbatim, never re-parsed.
type Payment struct {
	ID               string          `json:"id"`
	OrderRef         string          `json:"order_id"`
	Status           string          `json:"status"`
	AmountMinor      int64           `json:"amount"`
	Currency         string          `json:"currency"`
	Method           string          `json:"method"`
	Bank             string          `json:"bank"`
	Wallet           string          `json:"wallet"`
	VPA              string          `json:"vpa"`
	CardRef          string          `json:"card_id"`
	ErrorDescription string          `json:"error_description"`
	Raw              json.RawMessage `json:"-"`
}

// Gateway payment statuses the core branches on. Anything else is an
// intermediate state and is absorbed without local effect.
const (
	PaymentStatusCaptured = "captured"
	PaymentStatusFailed   = "failed"
)

// RefundCreateParams is the request surface for creating a refund. A nil
// AmountMinor refunds the full captured amount.
type RefundCreateParams struct {
	AmountMinor *int64
	Notes       map[string]string
}

func (p RefundCreateParams) toRequestBody() map[string]any {
	body := map[string]any{}
	if p.AmountMinor != nil {
		body["amount"] = *p.AmountMinor
	}
	if len(p.Notes) > 0 {
		body["notes"] = p.Notes
	}
	return body
}

// Refund is the gateway's refund representation.
type Refund struct {
	ID          string          `json:"id"`
	PaymentRef  string          `json:"payment_id"`
	AmountMinor int64           `json:"amount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	Raw         json.RawMessage `json:"-"`
}

// Gateway refund statuses delivered on the webhook channel.
const (
	RefundStatusProcessed = "processed"
	RefundStatusFailed    = "failed"
)
