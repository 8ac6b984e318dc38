package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/angelmondragon/marketpay-backend/pkg/db/models"
	"github.com/angelmondragon/marketpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketpay-backend/pkg/errors"
	"github.com/angelmondragon/marketpay-backend/pkg/logger"
	"github.com/angelmondragon/marketpay-backend/pkg/razorpay"
	"github.com/angelmondragon/marketpay-backend/pkg/types"
)

type stubPaymentService struct {
	payment     *models.Payment
	initiateErr error
}

func (s *stubPaymentService) Initiate(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	if s.initiateErr != nil {
		return nil, s.initiateErr
	}
	return s.payment, nil
}

func (s *stubPaymentService) ApplyCapture(ctx context.Context, payment *models.Payment, gw *razorpay.Payment) (bool, error) {
	panic("not implemented")
}

func (s *stubPaymentService) ApplyFailure(ctx context.Context, payment *models.Payment, gw *razorpay.Payment) (bool, error) {
	panic("not implemented")
}

func (s *stubPaymentService) Get(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	if s.payment == nil || s.payment.ID != paymentID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return s.payment, nil
}

func (s *stubPaymentService) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	if s.payment == nil || s.payment.OrderID != orderID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for order")
	}
	return s.payment, nil
}

func (s *stubPaymentService) LocateByGatewayRefs(ctx context.Context, paymentRef, orderRef string) (*models.Payment, error) {
	panic("not implemented")
}

func controllersTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "controllers-test", Level: zerolog.Disabled})
}

func routeRequest(t *testing.T, method, pattern, url string, handler http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.MethodFunc(method, pattern, handler)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, url, nil))
	return w
}

func samplePayment() *models.Payment {
	return &models.Payment{
		ID:              uuid.New(),
		OrderID:         uuid.New(),
		Status:          enums.PaymentStatusInitiated,
		AmountMinor:     10000,
		Currency:        enums.CurrencyINR,
		GatewayOrderRef: "order_gw1",
		SplitDetails: types.SplitDetails{
			PlatformAmountMinor: 1000,
			Transfers:           []types.SplitLine{{ManufacturerID: uuid.New(), AmountMinor: 9000}},
		},
	}
}

func TestInitiatePaymentCreated(t *testing.T) {
	payment := samplePayment()
	svc := &stubPaymentService{payment: payment}

	w := routeRequest(t, http.MethodPost, "/orders/{orderId}/payment",
		"/orders/"+payment.OrderID.String()+"/payment",
		InitiatePayment(svc, controllersTestLogger()))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data := body.Data.(map[string]any)
	if data["status"] != "initiated" {
		t.Fatalf("unexpected status %v", data["status"])
	}
	if data["amount_minor"].(float64) != 10000 {
		t.Fatalf("unexpected amount %v", data["amount_minor"])
	}
}

func TestInitiatePaymentConflict(t *testing.T) {
	svc := &stubPaymentService{initiateErr: pkgerrors.New(pkgerrors.CodeConflict, "payment already initiated for order")}

	w := routeRequest(t, http.MethodPost, "/orders/{orderId}/payment",
		"/orders/"+uuid.NewString()+"/payment",
		InitiatePayment(svc, controllersTestLogger()))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestInitiatePaymentInvalidID(t *testing.T) {
	w := routeRequest(t, http.MethodPost, "/orders/{orderId}/payment",
		"/orders/not-a-uuid/payment",
		InitiatePayment(&stubPaymentService{}, controllersTestLogger()))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPaymentByOrderNotFound(t *testing.T) {
	w := routeRequest(t, http.MethodGet, "/orders/{orderId}/payment",
		"/orders/"+uuid.NewString()+"/payment",
		PaymentByOrder(&stubPaymentService{}, controllersTestLogger()))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestPaymentByID(t *testing.T) {
	payment := samplePayment()
	w := routeRequest(t, http.MethodGet, "/payments/{paymentId}",
		"/payments/"+payment.ID.String(),
		PaymentByID(&stubPaymentService{payment: payment}, controllersTestLogger()))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
