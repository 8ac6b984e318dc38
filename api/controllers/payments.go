package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/marketpay-backend/api/responses"
	"github.com/angelmondragon/marketpay-backend/internal/payments"
	"github.com/angelmondragon/marketpay-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketpay-backend/pkg/errors"
	"github.com/angelmondragon/marketpay-backend/pkg/logger"
	"github.com/angelmondragon/marketpay-backend/pkg/types"
)

// PaymentResponse is the client-facing view of a payment row.
type PaymentResponse struct {
	ID                uuid.UUID          `json:"id"`
	OrderID           uuid.UUID          `json:"order_id"`
	Status            string             `json:"status"`
	AmountMinor       int64              `json:"amount_minor"`
	Currency          string             `json:"currency"`
	GatewayOrderRef   string             `json:"gateway_order_ref"`
	GatewayPaymentRef *string            `json:"gateway_payment_ref,omitempty"`
	Method            *string            `json:"method,omitempty"`
	FailureReason     *string            `json:"failure_reason,omitempty"`
	SplitDetails      types.SplitDetails `json:"split_details"`
	CapturedAt        *string            `json:"captured_at,omitempty"`
}

func paymentResponse(payment *models.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:                payment.ID,
		OrderID:           payment.OrderID,
		Status:            payment.Status.String(),
		AmountMinor:       payment.AmountMinor,
		Currency:          payment.Currency.String(),
		GatewayOrderRef:   payment.GatewayOrderRef,
		GatewayPaymentRef: payment.GatewayPaymentRef,
		Method:            payment.Method,
		FailureReason:     payment.FailureReason,
		SplitDetails:      payment.SplitDetails,
	}
	if payment.CapturedAt != nil {
		formatted := payment.CapturedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		resp.CapturedAt = &formatted
	}
	return resp
}

// InitiatePayment registers the order with the gateway and returns the
// initiated payment.
func InitiatePayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id"))
			return
		}

		payment, err := svc.Initiate(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, paymentResponse(payment))
	}
}

// PaymentByOrder returns the payment attached to an order.
func PaymentByOrder(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id"))
			return
		}

		payment, err := svc.GetByOrder(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, paymentResponse(payment))
	}
}

// PaymentByID returns one payment.
func PaymentByID(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		paymentID, err := uuid.Parse(chi.URLParam(r, "paymentId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment id"))
			return
		}

		payment, err := svc.Get(ctx, paymentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, paymentResponse(payment))
	}
}
