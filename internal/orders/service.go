package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketpay-backend/pkg/db/models"
	"github.com/angelmondragon/marketpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketpay-backend/pkg/errors"
	"github.com/angelmondragon/marketpay-backend/pkg/logger"
)

// Service enforces the order state machine. Orders are created by the
// ordering workflow; only the payment and refund coordinators advance them.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetWithItems(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Advance(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error)
	SetGatewayOrderRef(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, ref string) error
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds the order state machine service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) GetWithItems(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByIDWithItems(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// Advance moves the order to the next status, enforcing the transition
// table. A nil tx runs against the base connection. Advancing to the
// current status is a no-op so idempotent replays absorb cleanly.
func (s *service) Advance(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target order status")
	}

	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if order.Status == next {
		return order, nil
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order cannot move from %s to %s", order.Status, next)).
			WithDetails(map[string]any{"current": order.Status.String(), "target": next.String()})
	}

	updated, err := repo.UpdateStatus(ctx, orderID, order.Status, next)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !updated {
		// A concurrent writer advanced the order between load and update.
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": orderID.String(),
		"from":     order.Status.String(),
		"to":       next.String(),
	}), "order status advanced")

	order.Status = next
	return order, nil
}

// SetGatewayOrderRef records the gateway's order identifier once payment
// initiation has registered the order remotely.
func (s *service) SetGatewayOrderRef(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, ref string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if ref == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway order ref required")
	}
	if err := s.repo.WithTx(tx).Update(ctx, orderID, map[string]any{"gateway_order_ref": ref}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist gateway order ref")
	}
	return nil
}
