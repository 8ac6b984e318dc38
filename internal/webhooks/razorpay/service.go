package razorpaywebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/marketpay-backend/internal/payments"
	"github.com/angelmondragon/marketpay-backend/internal/refunds"
	"github.com/angelmondragon/marketpay-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketpay-backend/pkg/errors"
	"github.com/angelmondragon/marketpay-backend/pkg/logger"
	"github.com/angelmondragon/marketpay-backend/pkg/metrics"
	"github.com/angelmondragon/marketpay-backend/pkg/razorpay"
)

// Gateway event names carried on the webhook channel.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventRefundProcessed = "refund.processed"
	EventRefundFailed    = "refund.failed"
)

// Processing outcomes recorded on metrics.
const (
	outcomeApplied  = "applied"
	outcomeAbsorbed = "absorbed"
	outcomeIgnored  = "ignored"
	outcomeError    = "error"
)

type envelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity json.RawMessage `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity json.RawMessage `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

type gatewayClient interface {
	GetPayment(ctx context.Context, paymentRef string) (*razorpay.Payment, error)
}

// Service dispatches verified gateway webhooks into the payment and refund
// coordinators. The webhook body only locates the affected rows; terminal
// payment state always comes from an authoritative gateway fetch.
type Service struct {
	payments payments.Service
	refunds  refunds.Service
	gateway  gatewayClient
	guard    *IdempotencyGuard
	metrics  *metrics.WebhookMetrics
	logg     *logger.Logger
}

// ServiceParams groups dependencies for the webhook dispatcher.
type ServiceParams struct {
	Payments payments.Service
	Refunds  refunds.Service
	Gateway  gatewayClient
	Guard    *IdempotencyGuard
	Metrics  *metrics.WebhookMetrics
	Logger   *logger.Logger
}

// NewService builds the webhook dispatcher.
func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service required")
	}
	if params.Refunds == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refunds service required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway client required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		payments: params.Payments,
		refunds:  params.Refunds,
		gateway:  params.Gateway,
		guard:    params.Guard,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// Process handles one verified webhook delivery. Signature verification is
// the transport layer's job; everything past that point acks with success so
// the gateway stops redelivering, including events this service has no
// interest in or no local row for.
func (s *Service) Process(ctx context.Context, eventID string, body []byte) error {
	start := time.Now()

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		s.metrics.IncProcessed("unparseable", outcomeIgnored)
		s.logg.Warn(ctx, "webhook body did not parse, acking")
		return nil
	}

	ctx = s.logg.WithEventID(ctx, eventID)
	var err error
	switch env.Event {
	case EventPaymentCaptured, EventPaymentFailed:
		err = s.processPaymentEvent(ctx, eventID, &env)
	case EventRefundProcessed, EventRefundFailed:
		err = s.processRefundEvent(ctx, eventID, &env)
	default:
		s.metrics.IncProcessed(env.Event, outcomeIgnored)
	}

	s.metrics.ObserveDuration(env.Event, time.Since(start))
	return err
}

func (s *Service) processPaymentEvent(ctx context.Context, eventID string, env *envelope) error {
	var entity razorpay.Payment
	if err := json.Unmarshal(env.Payload.Payment.Entity, &entity); err != nil {
		s.metrics.IncProcessed(env.Event, outcomeIgnored)
		s.logg.Warn(ctx, "payment entity did not parse, acking")
		return nil
	}

	payment, err := s.payments.LocateByGatewayRefs(ctx, entity.ID, entity.OrderRef)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			// The gateway knows payments this service never initiated.
			s.metrics.IncProcessed(env.Event, outcomeAbsorbed)
			s.logg.Info(ctx, "webhook for unknown payment, acking")
			return nil
		}
		s.metrics.IncProcessed(env.Event, outcomeError)
		return err
	}
	ctx = s.logg.WithPaymentID(ctx, payment.ID.String())

	if payment.Status.IsTerminal() {
		s.metrics.IncDuplicate(env.Event)
		s.logg.Info(ctx, "payment already terminal, acking")
		return nil
	}

	duplicate, err := s.guard.CheckAndMark(ctx, s.eventKey(eventID, env.Event, entity.ID))
	if err != nil {
		s.metrics.IncProcessed(env.Event, outcomeError)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency check")
	}
	if duplicate {
		s.metrics.IncDuplicate(env.Event)
		return nil
	}

	applied, err := s.settlePayment(ctx, env.Event, payment, entity.ID)
	if err != nil {
		s.releaseGuard(ctx, eventID, env.Event, entity.ID)
		s.metrics.IncProcessed(env.Event, outcomeError)
		return err
	}
	if !applied {
		// Nothing mutated; the marker must not absorb the delivery that
		// eventually carries the terminal state.
		s.releaseGuard(ctx, eventID, env.Event, entity.ID)
		s.metrics.IncProcessed(env.Event, outcomeIgnored)
		return nil
	}
	s.metrics.IncProcessed(env.Event, outcomeApplied)
	return nil
}

// settlePayment fetches the payment's authoritative state from the gateway
// and applies whichever terminal branch it reports. The webhook's own claim
// about the status is never trusted. Returns whether a local mutation was
// applied.
func (s *Service) settlePayment(ctx context.Context, event string, payment *models.Payment, paymentRef string) (bool, error) {
	gw, err := s.gateway.GetPayment(ctx, paymentRef)
	if err != nil {
		return false, err
	}

	switch gw.Status {
	case razorpay.PaymentStatusCaptured:
		return s.payments.ApplyCapture(ctx, payment, gw)
	case razorpay.PaymentStatusFailed:
		return s.payments.ApplyFailure(ctx, payment, gw)
	default:
		// Authorized or still in flight; a later webhook will settle it.
		s.logg.Info(s.logg.WithField(ctx, "gateway_status", gw.Status), "payment not terminal at gateway, acking")
		return false, nil
	}
}

func (s *Service) processRefundEvent(ctx context.Context, eventID string, env *envelope) error {
	var entity razorpay.Refund
	if err := json.Unmarshal(env.Payload.Refund.Entity, &entity); err != nil {
		s.metrics.IncProcessed(env.Event, outcomeIgnored)
		s.logg.Warn(ctx, "refund entity did not parse, acking")
		return nil
	}
	entity.Raw = env.Payload.Refund.Entity

	refund, err := s.refunds.LocateByGatewayRef(ctx, entity.ID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			s.metrics.IncProcessed(env.Event, outcomeAbsorbed)
			s.logg.Info(ctx, "webhook for unknown refund, acking")
			return nil
		}
		s.metrics.IncProcessed(env.Event, outcomeError)
		return err
	}
	ctx = s.logg.WithRefundID(ctx, refund.ID.String())

	if refund.Status.IsTerminal() {
		s.metrics.IncDuplicate(env.Event)
		s.logg.Info(ctx, "refund already terminal, acking")
		return nil
	}

	duplicate, err := s.guard.CheckAndMark(ctx, s.eventKey(eventID, env.Event, entity.ID))
	if err != nil {
		s.metrics.IncProcessed(env.Event, outcomeError)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency check")
	}
	if duplicate {
		s.metrics.IncDuplicate(env.Event)
		return nil
	}

	succeeded := env.Event == EventRefundProcessed
	applied, err := s.refunds.ApplyResult(ctx, refund, succeeded, &entity)
	if err != nil {
		s.releaseGuard(ctx, eventID, env.Event, entity.ID)
		s.metrics.IncProcessed(env.Event, outcomeError)
		return err
	}
	if !applied {
		s.releaseGuard(ctx, eventID, env.Event, entity.ID)
		s.metrics.IncDuplicate(env.Event)
		return nil
	}
	s.metrics.IncProcessed(env.Event, outcomeApplied)
	return nil
}

// eventKey prefers the gateway's delivery id; older deliveries without one
// fall back to event type plus entity ref.
func (s *Service) eventKey(eventID, event, entityRef string) string {
	if eventID != "" {
		return eventID
	}
	return fmt.Sprintf("%s:%s", event, entityRef)
}

func (s *Service) releaseGuard(ctx context.Context, eventID, event, entityRef string) {
	if err := s.guard.Delete(ctx, s.eventKey(eventID, event, entityRef)); err != nil {
		s.logg.Error(ctx, "release idempotency marker", err)
	}
}
