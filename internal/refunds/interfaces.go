package refunds

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketpay-backend/pkg/db/models"
)

// Repository defines persistence operations for refunds.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, refund *models.Refund) (*models.Refund, error)
	FindByID(ctx context.Context, refundID uuid.UUID) (*models.Refund, error)
	FindByGatewayRefundRef(ctx context.Context, ref string) (*models.Refund, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Refund, error)
	FindPaymentForUpdate(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	SumActiveByPayment(ctx context.Context, paymentID uuid.UUID) (int64, error)
	TransitionFromProcessing(ctx context.Context, refundID uuid.UUID, updates map[string]any) (bool, error)
}
