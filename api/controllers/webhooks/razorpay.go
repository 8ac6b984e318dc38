package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/angelmondragon/marketpay-backend/api/responses"
	pkgerrors "github.com/angelmondragon/marketpay-backend/pkg/errors"
	"github.com/angelmondragon/marketpay-backend/pkg/logger"
	"github.com/angelmondragon/marketpay-backend/pkg/razorpay"
)

const (
	signatureHeader = "X-Razorpay-Signature"
	eventIDHeader   = "X-Razorpay-Event-Id"
)

type RazorpayWebhookService interface {
	Process(ctx context.Context, eventID string, body []byte) error
}

type webhookSecretProvider interface {
	WebhookSecret() string
}

// RazorpayWebhook verifies the delivery signature and hands the event to the
// dispatcher. A bad signature is the only hard rejection; everything past
// verification acks with 200 unless processing genuinely failed, so the
// gateway retries only what is worth retrying.
func RazorpayWebhook(svc RazorpayWebhookService, client webhookSecretProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get(signatureHeader)
		if !razorpay.VerifyWebhookSignature(body, signature, client.WebhookSecret()) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature invalid"))
			return
		}

		eventID := r.Header.Get(eventIDHeader)
		if err := svc.Process(ctx, eventID, body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]bool{"received": true}); err != nil && logg != nil {
			logg.Error(ctx, "encode webhook ack", err)
		}
	}
}
