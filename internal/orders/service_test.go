package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketpay-backend/pkg/db/models"
	"github.com/angelmondragon/marketpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketpay-backend/pkg/errors"
	"github.com/angelmondragon/marketpay-backend/pkg/logger"
)

type stubOrdersRepo struct {
	order        *models.Order
	findByID     func(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	updateStatus func(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error)
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return order, nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.findByID != nil {
		return s.findByID(ctx, orderID)
	}
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.order
	return &clone, nil
}

func (s *stubOrdersRepo) FindByIDWithItems(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.FindByID(ctx, orderID)
}

func (s *stubOrdersRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	if s.updateStatus != nil {
		return s.updateStatus(ctx, orderID, from, to)
	}
	if s.order != nil && s.order.ID == orderID && s.order.Status == from {
		s.order.Status = to
		return true, nil
	}
	return false, nil
}

func (s *stubOrdersRepo) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "orders-test", Level: zerolog.Disabled})
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, testLogger())
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func TestAdvanceLegalTransition(t *testing.T) {
	order := &models.Order{ID: uuid.New(), Status: enums.OrderStatusPending}
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo)

	got, err := svc.Advance(context.Background(), nil, order.ID, enums.OrderStatusPaymentPending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != enums.OrderStatusPaymentPending {
		t.Fatalf("expected payment_pending, got %s", got.Status)
	}
	if repo.order.Status != enums.OrderStatusPaymentPending {
		t.Fatalf("expected persisted status update, got %s", repo.order.Status)
	}
}

func TestAdvanceIllegalTransitionIsStateConflict(t *testing.T) {
	order := &models.Order{ID: uuid.New(), Status: enums.OrderStatusPending}
	svc := newTestService(t, &stubOrdersRepo{order: order})

	_, err := svc.Advance(context.Background(), nil, order.ID, enums.OrderStatusConfirmed)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestAdvanceSameStatusIsNoOp(t *testing.T) {
	order := &models.Order{ID: uuid.New(), Status: enums.OrderStatusConfirmed}
	repo := &stubOrdersRepo{
		order: order,
		updateStatus: func(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error) {
			t.Fatal("no update expected for a same-status advance")
			return false, nil
		},
	}
	svc := newTestService(t, repo)

	got, err := svc.Advance(context.Background(), nil, order.ID, enums.OrderStatusConfirmed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != enums.OrderStatusConfirmed {
		t.Fatalf("unexpected status %s", got.Status)
	}
}

func TestAdvanceConcurrentWriterLoses(t *testing.T) {
	order := &models.Order{ID: uuid.New(), Status: enums.OrderStatusPaymentPending}
	repo := &stubOrdersRepo{
		order: order,
		updateStatus: func(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error) {
			return false, nil
		},
	}
	svc := newTestService(t, repo)

	_, err := svc.Advance(context.Background(), nil, order.ID, enums.OrderStatusConfirmed)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for lost race, got %v", err)
	}
}

func TestAdvanceUnknownOrderIsNotFound(t *testing.T) {
	svc := newTestService(t, &stubOrdersRepo{})

	_, err := svc.Advance(context.Background(), nil, uuid.New(), enums.OrderStatusPaymentPending)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetValidation(t *testing.T) {
	svc := newTestService(t, &stubOrdersRepo{})

	_, err := svc.Get(context.Background(), uuid.Nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCompensatingTransitionsAllowed(t *testing.T) {
	for _, from := range []enums.OrderStatus{enums.OrderStatusRefunded, enums.OrderStatusPartiallyFulfilled} {
		order := &models.Order{ID: uuid.New(), Status: from}
		svc := newTestService(t, &stubOrdersRepo{order: order})

		got, err := svc.Advance(context.Background(), nil, order.ID, enums.OrderStatusConfirmed)
		if err != nil {
			t.Fatalf("expected %s -> confirmed to be legal: %v", from, err)
		}
		if got.Status != enums.OrderStatusConfirmed {
			t.Fatalf("unexpected status %s", got.Status)
		}
	}
}
