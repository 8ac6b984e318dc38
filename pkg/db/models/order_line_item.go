package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLineItem snapshots one manufacturer's portion of an order, including
// the platform commission withheld from that manufacturer's transfer.
type OrderLineItem struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ManufacturerID  uuid.UUID `gorm:"column:manufacturer_id;type:uuid;not null"`
	Name            string    `gorm:"column:name;not null"`
	Qty             int       `gorm:"column:qty;not null"`
	UnitPriceMinor  int64     `gorm:"column:unit_price_minor;not null"`
	CommissionMinor int64     `gorm:"column:commission_minor;not null;default:0"`
	TotalMinor      int64     `gorm:"column:total_minor;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
