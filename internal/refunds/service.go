package refunds

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketpay-backend/internal/orders"
	"github.com/angelmondragon/marketpay-backend/internal/payments"
	"github.com/angelmondragon/marketpay-backend/internal/split"
	"github.com/angelmondragon/marketpay-backend/pkg/db/models"
	"github.com/angelmondragon/marketpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketpay-backend/pkg/errors"
	"github.com/angelmondragon/marketpay-backend/pkg/logger"
	"github.com/angelmondragon/marketpay-backend/pkg/outbox"
	"github.com/angelmondragon/marketpay-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketpay-backend/pkg/razorpay"
)

const eventSource = "refunds"

type gatewayClient interface {
	CreateRefund(ctx context.Context, paymentRef string, params razorpay.RefundCreateParams) (*razorpay.Refund, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CreateParams describes one refund request. A nil AmountMinor refunds
// whatever remains refundable on the payment.
type CreateParams struct {
	OrderID     uuid.UUID
	Reason      enums.RefundReason
	AmountMinor *int64
	Notes       *string
}

// Service coordinates refund creation and webhook-driven settlement. The
// gateway is written first; the processing row and the order's refund-derived
// status land together once the remote call succeeded.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.Refund, error)
	ApplyResult(ctx context.Context, refund *models.Refund, succeeded bool, gw *razorpay.Refund) (bool, error)
	Get(ctx context.Context, refundID uuid.UUID) (*models.Refund, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Refund, error)
	LocateByGatewayRef(ctx context.Context, refundRef string) (*models.Refund, error)
}

// ServiceParams groups dependencies for the refund coordinator.
type ServiceParams struct {
	Repo              Repository
	Payments          payments.Service
	Orders            orders.Service
	Gateway           gatewayClient
	TransactionRunner txRunner
	Outbox            outboxPublisher
	Logger            *logger.Logger
}

type service struct {
	repo     Repository
	payments payments.Service
	orders   orders.Service
	gateway  gatewayClient
	tx       txRunner
	outbox   outboxPublisher
	logg     *logger.Logger
}

// NewService builds the refund coordinator.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refunds repo required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &service{
		repo:     params.Repo,
		payments: params.Payments,
		orders:   params.Orders,
		gateway:  params.Gateway,
		tx:       params.TransactionRunner,
		outbox:   params.Outbox,
		logg:     params.Logger,
	}, nil
}

// Create validates the refundable amount, registers the refund with the
// gateway, then persists the processing row and the order's new status in
// one transaction.
func (s *service) Create(ctx context.Context, params CreateParams) (*models.Refund, error) {
	if params.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !params.Reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid refund reason")
	}

	payment, err := s.payments.GetByOrder(ctx, params.OrderID)
	if err != nil {
		return nil, err
	}
	if payment.Status != enums.PaymentStatusCaptured {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment is not captured").
			WithDetails(map[string]any{"status": payment.Status.String()})
	}
	if payment.GatewayPaymentRef == nil || *payment.GatewayPaymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "captured payment missing gateway payment ref")
	}

	activeSum, err := s.repo.SumActiveByPayment(ctx, payment.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum active refunds")
	}
	remaining := payment.AmountMinor - activeSum

	amount := remaining
	if params.AmountMinor != nil {
		amount = *params.AmountMinor
	}
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	if amount > remaining {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "refund exceeds refundable amount").
			WithDetails(map[string]any{
				"requested_minor": amount,
				"remaining_minor": remaining,
			})
	}

	details, err := split.ForRefund(amount, payment.AmountMinor, payment.SplitDetails)
	if err != nil {
		return nil, err
	}

	refundParams := razorpay.RefundCreateParams{}
	if amount != payment.AmountMinor || activeSum != 0 {
		refundParams.AmountMinor = &amount
	}
	if params.Notes != nil && *params.Notes != "" {
		refundParams.Notes = map[string]string{"notes": *params.Notes}
	}
	gwRefund, err := s.gateway.CreateRefund(ctx, *payment.GatewayPaymentRef, refundParams)
	if err != nil {
		return nil, err
	}

	refund := &models.Refund{
		OrderID:            params.OrderID,
		PaymentID:          payment.ID,
		Status:             enums.RefundStatusProcessing,
		Reason:             params.Reason,
		AmountMinor:        amount,
		GatewayRefundRef:   &gwRefund.ID,
		SplitRefundDetails: details,
		GatewayResponse:    gwRefund.Raw,
		Notes:              params.Notes,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		// Re-derive the remaining amount under the payment row lock; the
		// pre-gateway check raced any concurrent create for this payment.
		locked, err := txRepo.FindPaymentForUpdate(ctx, payment.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payment")
		}
		txSum, err := txRepo.SumActiveByPayment(ctx, payment.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum active refunds")
		}
		if amount > locked.AmountMinor-txSum {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund exceeds refundable amount").
				WithDetails(map[string]any{
					"requested_minor": amount,
					"remaining_minor": locked.AmountMinor - txSum,
				})
		}
		if _, err := txRepo.Create(ctx, refund); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist refund")
		}
		targetStatus := enums.OrderStatusPartiallyFulfilled
		if txSum+amount == locked.AmountMinor {
			targetStatus = enums.OrderStatusRefunded
		}
		_, err = s.orders.Advance(ctx, tx, params.OrderID, targetStatus)
		return err
	})
	if err != nil {
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"order_id":           params.OrderID.String(),
			"gateway_refund_ref": gwRefund.ID,
		}), "refund created remotely but not locally", err)
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":           params.OrderID.String(),
		"payment_id":         payment.ID.String(),
		"refund_id":          refund.ID.String(),
		"gateway_refund_ref": gwRefund.ID,
		"amount_minor":       amount,
	}), "refund initiated")
	return refund, nil
}

// ApplyResult settles a gateway-reported refund outcome. Returns false when
// the refund already left processing, absorbing webhook replays. A failed
// refund releases its amount, so the order status is recomputed from the
// refunds that survive.
func (s *service) ApplyResult(ctx context.Context, refund *models.Refund, succeeded bool, gw *razorpay.Refund) (bool, error) {
	if refund == nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "refund required")
	}

	now := time.Now().UTC()
	updates := map[string]any{}
	if gw != nil && len(gw.Raw) > 0 {
		updates["gateway_response"] = gw.Raw
	}
	if succeeded {
		updates["status"] = enums.RefundStatusCompleted
		updates["processed_at"] = now
	} else {
		updates["status"] = enums.RefundStatusFailed
		updates["failed_at"] = now
		updates["failure_reason"] = "gateway reported refund failure"
	}

	var applied bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		applied, err = repo.TransitionFromProcessing(ctx, refund.ID, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle refund")
		}
		if !applied || succeeded {
			return nil
		}
		return s.recomputeOrderStatus(ctx, tx, repo, refund)
	})
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	eventType := enums.EventRefundCompleted
	status := enums.RefundStatusCompleted
	if !succeeded {
		eventType = enums.EventRefundFailed
		status = enums.RefundStatusFailed
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":  refund.OrderID.String(),
		"refund_id": refund.ID.String(),
		"status":    status.String(),
	}), "refund settled")

	s.emitEvent(ctx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateRefund,
		AggregateID:   refund.ID,
		Source:        eventSource,
		Data: payloads.RefundStatusEvent{
			OrderID:     refund.OrderID,
			PaymentID:   refund.PaymentID,
			RefundID:    refund.ID,
			Status:      status.String(),
			AmountMinor: refund.AmountMinor,
			Reason:      refund.Reason.String(),
		},
	})
	return true, nil
}

// recomputeOrderStatus rederives the order's refund-derived status after a
// refund failure released its amount.
func (s *service) recomputeOrderStatus(ctx context.Context, tx *gorm.DB, repo Repository, refund *models.Refund) error {
	payment, err := s.payments.Get(ctx, refund.PaymentID)
	if err != nil {
		return err
	}
	activeSum, err := repo.SumActiveByPayment(ctx, refund.PaymentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum active refunds")
	}

	target := enums.OrderStatusPartiallyFulfilled
	switch {
	case activeSum == 0:
		target = enums.OrderStatusConfirmed
	case activeSum == payment.AmountMinor:
		target = enums.OrderStatusRefunded
	}
	_, err = s.orders.Advance(ctx, tx, refund.OrderID, target)
	return err
}

func (s *service) Get(ctx context.Context, refundID uuid.UUID) (*models.Refund, error) {
	if refundID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id required")
	}
	refund, err := s.repo.FindByID(ctx, refundID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund")
	}
	return refund, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Refund, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	refunds, err := s.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list refunds")
	}
	return refunds, nil
}

func (s *service) LocateByGatewayRef(ctx context.Context, refundRef string) (*models.Refund, error) {
	if refundRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway refund ref required")
	}
	refund, err := s.repo.FindByGatewayRefundRef(ctx, refundRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found for gateway ref")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locate refund by gateway ref")
	}
	return refund, nil
}

func (s *service) emitEvent(ctx context.Context, event outbox.DomainEvent) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID.String(),
		}), "queue outbox event", err)
	}
}
