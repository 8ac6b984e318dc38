package refunds

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/marketpay-backend/internal/repo"
	"github.com/angelmondragon/marketpay-backend/pkg/db/models"
	"github.com/angelmondragon/marketpay-backend/pkg/enums"
)

type repository struct {
	repo.Base
}

// NewRepository builds a refunds repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, refund *models.Refund) (*models.Refund, error) {
	if err := r.DB(ctx).Create(refund).Error; err != nil {
		return nil, err
	}
	return refund, nil
}

func (r *repository) FindByID(ctx context.Context, refundID uuid.UUID) (*models.Refund, error) {
	var refund models.Refund
	err := r.DB(ctx).
		Where("id = ?", refundID).
		First(&refund).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *repository) FindByGatewayRefundRef(ctx context.Context, ref string) (*models.Refund, error) {
	var refund models.Refund
	err := r.DB(ctx).
		Where("gateway_refund_ref = ?", ref).
		First(&refund).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Refund, error) {
	var refunds []models.Refund
	err := r.DB(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&refunds).Error
	if err != nil {
		return nil, err
	}
	return refunds, nil
}

// FindPaymentForUpdate loads the payment row under a write lock so concurrent
// refund creates serialize on the remaining-amount check. SQLite has no row
// locks; its single writer gives the same ordering.
func (r *repository) FindPaymentForUpdate(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	q := r.DB(ctx)
	if q.Dialector != nil && q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var payment models.Payment
	err := q.
		Where("id = ?", paymentID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// SumActiveByPayment totals the amounts already committed against the
// payment: completed refunds plus in-flight processing ones. Failed refunds
// release their amount and are excluded.
func (r *repository) SumActiveByPayment(ctx context.Context, paymentID uuid.UUID) (int64, error) {
	var total int64
	err := r.DB(ctx).
		Model(&models.Refund{}).
		Where("payment_id = ? AND status IN ?", paymentID, []enums.RefundStatus{
			enums.RefundStatusProcessing,
			enums.RefundStatusCompleted,
		}).
		Select("COALESCE(SUM(amount_minor), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// TransitionFromProcessing applies updates only while the refund is still
// processing, so terminal webhooks settle exactly once.
func (r *repository) TransitionFromProcessing(ctx context.Context, refundID uuid.UUID, updates map[string]any) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Refund{}).
		Where("id = ? AND status = ?", refundID, enums.RefundStatusProcessing).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
