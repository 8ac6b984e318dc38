package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/marketpay-backend/api/responses"
	"github.com/angelmondragon/marketpay-backend/api/validators"
	"github.com/angelmondragon/marketpay-backend/internal/refunds"
	"github.com/angelmondragon/marketpay-backend/pkg/db/models"
	"github.com/angelmondragon/marketpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketpay-backend/pkg/errors"
	"github.com/angelmondragon/marketpay-backend/pkg/logger"
	"github.com/angelmondragon/marketpay-backend/pkg/types"
)

// CreateRefundRequest is the request body for refund creation. A missing
// amount refunds whatever remains refundable.
type CreateRefundRequest struct {
	Reason      string  `json:"reason" validate:"required"`
	AmountMinor *int64  `json:"amount_minor,omitempty" validate:"omitempty,gt=0"`
	Notes       *string `json:"notes,omitempty" validate:"omitempty,max=512"`
}

// RefundResponse is the client-facing view of a refund row.
type RefundResponse struct {
	ID                 uuid.UUID          `json:"id"`
	OrderID            uuid.UUID          `json:"order_id"`
	PaymentID          uuid.UUID          `json:"payment_id"`
	Status             string             `json:"status"`
	Reason             string             `json:"reason"`
	AmountMinor        int64              `json:"amount_minor"`
	GatewayRefundRef   *string            `json:"gateway_refund_ref,omitempty"`
	SplitRefundDetails types.SplitDetails `json:"split_refund_details"`
	Notes              *string            `json:"notes,omitempty"`
	FailureReason      *string            `json:"failure_reason,omitempty"`
}

func refundResponse(refund *models.Refund) RefundResponse {
	return RefundResponse{
		ID:                 refund.ID,
		OrderID:            refund.OrderID,
		PaymentID:          refund.PaymentID,
		Status:             refund.Status.String(),
		Reason:             refund.Reason.String(),
		AmountMinor:        refund.AmountMinor,
		GatewayRefundRef:   refund.GatewayRefundRef,
		SplitRefundDetails: refund.SplitRefundDetails,
		Notes:              refund.Notes,
		FailureReason:      refund.FailureReason,
	}
}

// RefundCreate opens a refund against the order's captured payment.
func RefundCreate(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id"))
			return
		}

		var req CreateRefundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		reason, err := enums.ParseRefundReason(req.Reason)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid refund reason"))
			return
		}
		if req.Notes != nil {
			cleaned := validators.SanitizeString(*req.Notes, 512)
			req.Notes = &cleaned
		}

		refund, err := svc.Create(ctx, refunds.CreateParams{
			OrderID:     orderID,
			Reason:      reason,
			AmountMinor: req.AmountMinor,
			Notes:       req.Notes,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, refundResponse(refund))
	}
}

// RefundsByOrder lists all refunds opened against an order.
func RefundsByOrder(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id"))
			return
		}

		list, err := svc.ListByOrder(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out := make([]RefundResponse, 0, len(list))
		for i := range list {
			out = append(out, refundResponse(&list[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// RefundByID returns one refund.
func RefundByID(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		refundID, err := uuid.Parse(chi.URLParam(r, "refundId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid refund id"))
			return
		}

		refund, err := svc.Get(ctx, refundID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, refundResponse(refund))
	}
}
