package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketpay-backend/pkg/db/models"
)

// Repository defines persistence operations for payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindByGatewayOrderRef(ctx context.Context, ref string) (*models.Payment, error)
	FindByGatewayPaymentRef(ctx context.Context, ref string) (*models.Payment, error)
	TransitionFromInitiated(ctx context.Context, paymentID uuid.UUID, updates map[string]any) (bool, error)
}
