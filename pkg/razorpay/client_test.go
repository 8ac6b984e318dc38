package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/marketpay-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketpay-backend/pkg/errors"
	"github.com/angelmondragon/marketpay-backend/pkg/logger"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	client, err := NewClient(context.Background(), config.RazorpayConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     "rzp_test_secret",
		WebhookSecret: "whsec",
		BaseURL:       baseURL,
		Timeout:       5 * time.Second,
	}, logg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestNewClientValidatesCredentials(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	if _, err := NewClient(context.Background(), config.RazorpayConfig{}, nil); err != errLoggerRequired {
		t.Fatalf("expected logger requirement, got %v", err)
	}
	if _, err := NewClient(context.Background(), config.RazorpayConfig{KeySecret: "s", WebhookSecret: "w"}, logg); err != errKeyIDRequired {
		t.Fatalf("expected key id requirement, got %v", err)
	}
	if _, err := NewClient(context.Background(), config.RazorpayConfig{KeyID: "k", WebhookSecret: "w"}, logg); err != errKeySecretRequired {
		t.Fatalf("expected key secret requirement, got %v", err)
	}
	if _, err := NewClient(context.Background(), config.RazorpayConfig{KeyID: "k", KeySecret: "s"}, logg); err != errWebhookSecretRequired {
		t.Fatalf("expected webhook secret requirement, got %v", err)
	}
}

func TestCreateOrderSendsTransfers(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "rzp_test_key" || pass != "rzp_test_secret" {
			t.Fatal("expected basic auth credentials")
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_abc","amount":10000,"currency":"INR","receipt":"rcpt-1","status":"created"}`))
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)
	order, err := client.CreateOrder(context.Background(), OrderCreateParams{
		AmountMinor: 10000,
		Currency:    "INR",
		Receipt:     "rcpt-1",
		Transfers: []Transfer{
			{Account: "acc_m1", AmountMinor: 6300, Currency: "INR"},
			{Account: "acc_m2", AmountMinor: 2700, Currency: "INR"},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if order.ID != "order_abc" || order.AmountMinor != 10000 {
		t.Fatalf("unexpected order %+v", order)
	}
	if len(order.Raw) == 0 {
		t.Fatal("expected raw body to be retained")
	}
	transfers, ok := received["transfers"].([]any)
	if !ok || len(transfers) != 2 {
		t.Fatalf("expected two transfers in request, got %v", received["transfers"])
	}
}

func TestGetPaymentDecodesNarrowFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments/pay_123" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"pay_123","order_id":"order_abc","status":"captured","amount":10000,` +
			`"currency":"INR","method":"upi","vpa":"buyer@upi","extra_field":{"nested":true}}`))
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)
	payment, err := client.GetPayment(context.Background(), "pay_123")
	if err != nil {
		t.Fatalf("GetPayment failed: %v", err)
	}

	if payment.Status != PaymentStatusCaptured || payment.Method != "upi" || payment.VPA != "buyer@upi" {
		t.Fatalf("unexpected payment %+v", payment)
	}
	var snapshot map[string]any
	if err := json.Unmarshal(payment.Raw, &snapshot); err != nil {
		t.Fatalf("raw snapshot not valid JSON: %v", err)
	}
	if _, ok := snapshot["extra_field"]; !ok {
		t.Fatal("raw snapshot should retain fields the typed struct drops")
	}
}

func TestCreateRefundOmitsAmountForFullRefund(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments/pay_123/refund" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		_, _ = w.Write([]byte(`{"id":"rfnd_1","payment_id":"pay_123","amount":10000,"currency":"INR","status":"processed"}`))
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)
	refund, err := client.CreateRefund(context.Background(), "pay_123", RefundCreateParams{})
	if err != nil {
		t.Fatalf("CreateRefund failed: %v", err)
	}
	if refund.ID != "rfnd_1" || refund.Status != RefundStatusProcessed {
		t.Fatalf("unexpected refund %+v", refund)
	}
	if _, present := received["amount"]; present {
		t.Fatal("full refund must omit the amount field")
	}
}

func TestGatewayErrorsAreMappedNotSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payments/pay_down":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/payments/pay_bad/refund":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"refund amount exceeds captured amount"}}`))
		}
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)

	_, err := client.GetPayment(context.Background(), "pay_down")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error for 5xx, got %v", err)
	}

	_, err = client.CreateRefund(context.Background(), "pay_bad", RefundCreateParams{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeGatewayRejected {
		t.Fatalf("expected gateway rejection for 4xx, got %v", err)
	}
}

func TestGatewayUnreachableIsDependencyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := testClient(t, srv.URL)
	_, err := client.GetPayment(context.Background(), "pay_123")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error for unreachable gateway, got %v", err)
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"event":"payment.captured"}`)
	secret := "whsec"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	valid := hex.EncodeToString(mac.Sum(nil))

	if !VerifyWebhookSignature(payload, valid, secret) {
		t.Fatal("expected valid signature to verify")
	}
	if VerifyWebhookSignature(payload, valid, "other-secret") {
		t.Fatal("signature must not verify under a different secret")
	}
	if VerifyWebhookSignature([]byte(`{"event":"tampered"}`), valid, secret) {
		t.Fatal("tampered payload must not verify")
	}
	if VerifyWebhookSignature(payload, "", secret) {
		t.Fatal("empty signature must not verify")
	}
}
