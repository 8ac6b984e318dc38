package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketpay-backend/internal/orders"
	"github.com/angelmondragon/marketpay-backend/internal/split"
	"github.com/angelmondragon/marketpay-backend/pkg/db/models"
	"github.com/angelmondragon/marketpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketpay-backend/pkg/errors"
	"github.com/angelmondragon/marketpay-backend/pkg/logger"
	"github.com/angelmondragon/marketpay-backend/pkg/outbox"
	"github.com/angelmondragon/marketpay-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketpay-backend/pkg/razorpay"
)

const eventSource = "payments"

type gatewayClient interface {
	CreateOrder(ctx context.Context, params razorpay.OrderCreateParams) (*razorpay.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service coordinates payment initiation and webhook-driven settlement
// against the gateway. The gateway is written first on initiation; local
// state is only persisted once the remote call succeeded.
type Service interface {
	Initiate(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	ApplyCapture(ctx context.Context, payment *models.Payment, gw *razorpay.Payment) (bool, error)
	ApplyFailure(ctx context.Context, payment *models.Payment, gw *razorpay.Payment) (bool, error)
	Get(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	LocateByGatewayRefs(ctx context.Context, paymentRef, orderRef string) (*models.Payment, error)
}

// ServiceParams groups dependencies for the payment coordinator.
type ServiceParams struct {
	Repo              Repository
	Orders            orders.Service
	Gateway           gatewayClient
	TransactionRunner txRunner
	Outbox            outboxPublisher
	Logger            *logger.Logger
}

type service struct {
	repo    Repository
	orders  orders.Service
	gateway gatewayClient
	tx      txRunner
	outbox  outboxPublisher
	logg    *logger.Logger
}

// NewService builds the payment coordinator.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repo required")
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
		repo:    params.Repo,
		orders:  params.Orders,
		gateway: params.Gateway,
		tx:      params.TransactionRunner,
		outbox:  params.Outbox,
		logg:    params.Logger,
	}, nil
}

// Initiate registers the order with the gateway, including the transfer
// split, then persists the initiated payment and moves the order to
// payment_pending in one transaction.
func (s *service) Initiate(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	order, err := s.orders.GetWithItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.IsPayable() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is not payable").
			WithDetails(map[string]any{"status": order.Status.String()})
	}

	if _, err := s.repo.FindByOrderID(ctx, orderID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already initiated for order")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment for order")
	}

	lines := make([]split.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, split.Line{
			ManufacturerID:  item.ManufacturerID,
			TotalMinor:      item.TotalMinor,
			CommissionMinor: item.CommissionMinor,
		})
	}
	details, err := split.ForPayment(order.TotalAmountMinor, lines)
	if err != nil {
		return nil, err
	}

	transfers := make([]razorpay.Transfer, 0, len(details.Transfers))
	for _, share := range details.Transfers {
		transfers = append(transfers, razorpay.Transfer{
			Account:     share.ManufacturerID.String(),
			AmountMinor: share.AmountMinor,
			Currency:    order.Currency.String(),
		})
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, razorpay.OrderCreateParams{
		AmountMinor: order.TotalAmountMinor,
		Currency:    order.Currency.String(),
		Receipt:     order.ID.String(),
		Notes:       map[string]string{"order_id": order.ID.String()},
		Transfers:   transfers,
	})
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		OrderID:         order.ID,
		Status:          enums.PaymentStatusInitiated,
		AmountMinor:     order.TotalAmountMinor,
		Currency:        order.Currency,
		GatewayOrderRef: gwOrder.ID,
		SplitDetails:    details,
		GatewayResponse: gwOrder.Raw,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment")
		}
		if _, err := s.orders.Advance(ctx, tx, order.ID, enums.OrderStatusPaymentPending); err != nil {
			return err
		}
		return s.orders.SetGatewayOrderRef(ctx, tx, order.ID, gwOrder.ID)
	})
	if err != nil {
		// The gateway order exists but nothing was written locally; keep the
		// ref in the log so reconciliation can pick it up.
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"order_id":          order.ID.String(),
			"gateway_order_ref": gwOrder.ID,
		}), "payment initiation persisted remotely but not locally", err)
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":          order.ID.String(),
		"payment_id":        payment.ID.String(),
		"gateway_order_ref": gwOrder.ID,
		"amount_minor":      payment.AmountMinor,
	}), "payment initiated")
	return payment, nil
}

// ApplyCapture settles a gateway-confirmed capture. Returns false when the
// payment already left initiated, which absorbs webhook replays.
func (s *service) ApplyCapture(ctx context.Context, payment *models.Payment, gw *razorpay.Payment) (bool, error) {
	if payment == nil || gw == nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "payment and gateway payment required")
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":              enums.PaymentStatusCaptured,
		"gateway_payment_ref": gw.ID,
		"captured_at":         now,
	}
	if len(gw.Raw) > 0 {
		updates["gateway_response"] = gw.Raw
	}
	setIfPresent(updates, "method", gw.Method)
	setIfPresent(updates, "bank", gw.Bank)
	setIfPresent(updates, "wallet", gw.Wallet)
	setIfPresent(updates, "vpa", gw.VPA)
	setIfPresent(updates, "card_ref", gw.CardRef)

	var applied bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		applied, err = s.repo.WithTx(tx).TransitionFromInitiated(ctx, payment.ID, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "capture payment")
		}
		if !applied {
			return nil
		}
		_, err = s.orders.Advance(ctx, tx, payment.OrderID, enums.OrderStatusConfirmed)
		return err
	})
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":            payment.OrderID.String(),
		"payment_id":          payment.ID.String(),
		"gateway_payment_ref": gw.ID,
	}), "payment captured")

	s.emitPostCapture(ctx, payment, gw, now)
	return true, nil
}

// ApplyFailure marks a gateway-reported failure. Returns false when the
// payment already left initiated.
func (s *service) ApplyFailure(ctx context.Context, payment *models.Payment, gw *razorpay.Payment) (bool, error) {
	if payment == nil || gw == nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "payment and gateway payment required")
	}

	updates := map[string]any{
		"status":    enums.PaymentStatusFailed,
		"failed_at": time.Now().UTC(),
	}
	if gw.ID != "" {
		updates["gateway_payment_ref"] = gw.ID
	}
	if len(gw.Raw) > 0 {
		updates["gateway_response"] = gw.Raw
	}
	setIfPresent(updates, "failure_reason", gw.ErrorDescription)

	var applied bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		applied, err = s.repo.WithTx(tx).TransitionFromInitiated(ctx, payment.ID, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail payment")
		}
		if !applied {
			return nil
		}
		_, err = s.orders.Advance(ctx, tx, payment.OrderID, enums.OrderStatusPaymentFailed)
		return err
	})
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"order_id":   payment.OrderID.String(),
		"payment_id": payment.ID.String(),
		"reason":     gw.ErrorDescription,
	}), "payment failed")

	s.emitEvent(ctx, outbox.DomainEvent{
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Source:        eventSource,
		Data: payloads.PaymentStatusEvent{
			OrderID:     payment.OrderID,
			PaymentID:   payment.ID,
			Status:      enums.PaymentStatusFailed.String(),
			AmountMinor: payment.AmountMinor,
			Reason:      gw.ErrorDescription,
		},
	})
	return true, nil
}

func (s *service) Get(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (s *service) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	payment, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment for order")
	}
	return payment, nil
}

// LocateByGatewayRefs resolves a webhook's payment entity to the local row,
// preferring the payment ref and falling back to the gateway order ref.
func (s *service) LocateByGatewayRefs(ctx context.Context, paymentRef, orderRef string) (*models.Payment, error) {
	if paymentRef != "" {
		payment, err := s.repo.FindByGatewayPaymentRef(ctx, paymentRef)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locate payment by gateway payment ref")
		}
	}
	if orderRef != "" {
		payment, err := s.repo.FindByGatewayOrderRef(ctx, orderRef)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "locate payment by gateway order ref")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for gateway refs")
}

// emitPostCapture queues the invoice request and the captured notification
// after the capture transaction committed. Emission failures never unwind
// the capture; the publisher's retry loop owns delivery.
func (s *service) emitPostCapture(ctx context.Context, payment *models.Payment, gw *razorpay.Payment, capturedAt time.Time) {
	order, err := s.orders.Get(ctx, payment.OrderID)
	if err != nil {
		s.logg.Error(s.logg.WithPaymentID(ctx, payment.ID.String()), "load order for invoice event", err)
		return
	}
	s.emitEvent(ctx, outbox.DomainEvent{
		EventType:     enums.EventInvoiceRequested,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Source:        eventSource,
		Data: payloads.InvoiceRequestedEvent{
			OrderID:      payment.OrderID,
			PaymentID:    payment.ID,
			BuyerID:      order.BuyerID,
			AmountMinor:  payment.AmountMinor,
			Currency:     payment.Currency.String(),
			SplitDetails: payment.SplitDetails,
			CapturedAt:   capturedAt,
		},
	})
	s.emitEvent(ctx, outbox.DomainEvent{
		EventType:     enums.EventPaymentCaptured,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Source:        eventSource,
		Data: payloads.PaymentStatusEvent{
			OrderID:     payment.OrderID,
			PaymentID:   payment.ID,
			Status:      enums.PaymentStatusCaptured.String(),
			AmountMinor: payment.AmountMinor,
		},
	})
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

func setIfPresent(updates map[string]any, column, value string) {
	if value != "" {
		updates[column] = value
	}
}
