package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/marketpay-backend/pkg/config"
	"github.com/angelmondragon/marketpay-backend/pkg/db"
	"github.com/angelmondragon/marketpay-backend/pkg/enums"
	"github.com/angelmondragon/marketpay-backend/pkg/logger"
	"github.com/angelmondragon/marketpay-backend/pkg/outbox"
	"github.com/angelmondragon/marketpay-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketpay-backend/pkg/pubsub"
)

type ServiceParams struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	PubSub *pubsub.Client
}

// Service drains the billing subscription. Invoice generation itself lives
// downstream; this worker validates, records, and acks so the topic never
// backs up behind a slow consumer.
type Service struct {
	cfg    *config.Config
	logg   *logger.Logger
	db     *db.Client
	pubsub *pubsub.Client
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}

	return &Service{
		cfg:    params.Config,
		logg:   params.Logger,
		db:     params.DB,
		pubsub: params.PubSub,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	sub := s.pubsub.BillingSubscription()
	if sub == nil {
		return errors.New("billing subscription not configured")
	}

	return sub.Receive(ctx, s.handleMessage)
}

func (s *Service) handleMessage(ctx context.Context, msg *gcppubsub.Message) {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		// Malformed payloads never become parseable; redelivery only loops.
		s.logg.Error(s.logg.WithField(ctx, "event_type", string(eventType)), "decode billing envelope", err)
		msg.Ack()
		return
	}

	fields := map[string]any{
		"event_type":   string(eventType),
		"event_id":     envelope.EventID,
		"aggregate_id": msg.Attributes["aggregate_id"],
	}

	switch eventType {
	case enums.EventInvoiceRequested:
		var payload payloads.InvoiceRequestedEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			s.logg.Error(s.logg.WithFields(ctx, fields), "decode invoice request", err)
			msg.Ack()
			return
		}
		fields["order_id"] = payload.OrderID.String()
		fields["payment_id"] = payload.PaymentID.String()
		fields["amount_minor"] = payload.AmountMinor
		s.logg.Info(s.logg.WithFields(ctx, fields), "invoice requested")

	case enums.EventPaymentCaptured, enums.EventPaymentFailed:
		var payload payloads.PaymentStatusEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			s.logg.Error(s.logg.WithFields(ctx, fields), "decode payment status", err)
			msg.Ack()
			return
		}
		fields["payment_id"] = payload.PaymentID.String()
		fields["status"] = payload.Status
		s.logg.Info(s.logg.WithFields(ctx, fields), "payment status recorded")

	case enums.EventRefundCompleted, enums.EventRefundFailed:
		var payload payloads.RefundStatusEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			s.logg.Error(s.logg.WithFields(ctx, fields), "decode refund status", err)
			msg.Ack()
			return
		}
		fields["refund_id"] = payload.RefundID.String()
		fields["status"] = payload.Status
		s.logg.Info(s.logg.WithFields(ctx, fields), "refund status recorded")

	default:
		s.logg.Warn(s.logg.WithFields(ctx, fields), "unrecognized billing event")
	}

	msg.Ack()
}
