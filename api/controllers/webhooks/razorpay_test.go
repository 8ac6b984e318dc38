package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	pkgerrors "github.com/angelmondragon/marketpay-backend/pkg/errors"
	"github.com/angelmondragon/marketpay-backend/pkg/logger"
)

const testWebhookSecret = "whsec_test"

type stubDispatcher struct {
	err     error
	eventID string
	body    []byte
	called  bool
}

func (s *stubDispatcher) Process(ctx context.Context, eventID string, body []byte) error {
	s.called = true
	s.eventID = eventID
	s.body = body
	return s.err
}

type stubSecretProvider struct{ secret string }

func (s stubSecretProvider) WebhookSecret() string { return s.secret }

func sign(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "webhooks-test", Level: zerolog.Disabled})
}

func deliver(t *testing.T, svc RazorpayWebhookService, body, signature, eventID string) *httptest.ResponseRecorder {
	t.Helper()

	handler := RazorpayWebhook(svc, stubSecretProvider{secret: testWebhookSecret}, webhookTestLogger())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Razorpay-Signature", signature)
	}
	if eventID != "" {
		req.Header.Set("X-Razorpay-Event-Id", eventID)
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestRazorpayWebhookAck(t *testing.T) {
	svc := &stubDispatcher{}
	body := `{"event":"payment.captured"}`

	w := deliver(t, svc, body, sign(body, testWebhookSecret), "evt_1")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"received":true`) {
		t.Fatalf("unexpected ack body %q", w.Body.String())
	}
	if !svc.called || svc.eventID != "evt_1" || string(svc.body) != body {
		t.Fatalf("dispatcher saw eventID=%q body=%q", svc.eventID, svc.body)
	}
}

func TestRazorpayWebhookBadSignature(t *testing.T) {
	svc := &stubDispatcher{}
	body := `{"event":"payment.captured"}`

	w := deliver(t, svc, body, sign(body, "wrong-secret"), "evt_1")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if svc.called {
		t.Fatal("dispatcher must not run on a bad signature")
	}
}

func TestRazorpayWebhookMissingSignature(t *testing.T) {
	w := deliver(t, &stubDispatcher{}, `{"event":"payment.captured"}`, "", "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRazorpayWebhookProcessingError(t *testing.T) {
	svc := &stubDispatcher{err: pkgerrors.New(pkgerrors.CodeDependency, "gateway lookup failed")}
	body := `{"event":"refund.processed"}`

	w := deliver(t, svc, body, sign(body, testWebhookSecret), "evt_2")

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
