package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

// Payment is the ledger record for one charge attempt. It is the single
// source of truth for payment state; the orchestrator never caches it.
type Payment struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	AmountCents     int64               `gorm:"column:amount_cents;not null"`
	Currency        enums.Currency      `gorm:"column:currency;type:text;not null"`
	Status          enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	GatewayIntentID string              `gorm:"column:gateway_intent_id;not null;uniqueIndex:ux_payments_gateway_intent_id"`
	FailureReason   *string             `gorm:"column:failure_reason"`
	CompletedAt     *time.Time          `gorm:"column:completed_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
