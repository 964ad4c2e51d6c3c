package models

import (
	"database/sql"
	"time"
)

// Payment lifecycle statuses. Transitions are monotonic: created and
// pending may move to any of the others, confirmed/canceled/failed are
// terminal (refund bookkeeping on a confirmed payment does not touch the
// payment's own status).
const (
	PaymentStatusCreated   = "created"
	PaymentStatusPending   = "pending"
	PaymentStatusConfirmed = "confirmed"
	PaymentStatusCanceled  = "canceled"
	PaymentStatusFailed    = "failed"
)

// Refund origin tags.
const (
	RefundOriginRefund     = "refund"
	RefundOriginChargeback = "chargeback"
)

// Payment maps to the `payments` table. One row per payment attempt.
type Payment struct {
	ID        uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID   uint           `gorm:"column:order_id;index" json:"order_id"`
	TenantID  string         `gorm:"column:tenant_id;size:191;index" json:"tenant_id"`
	Amount    string         `gorm:"column:amount;size:45" json:"amount"`
	Currency  string         `gorm:"column:currency;size:3" json:"currency"`
	Status    string         `gorm:"column:status;size:45" json:"status"`
	Info      string         `gorm:"column:info;type:text" json:"info"`
	RemoteID  sql.NullString `gorm:"column:remote_id;size:191;index" json:"remote_id"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// IsTerminal reports whether the payment can no longer change status.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentStatusConfirmed, PaymentStatusCanceled, PaymentStatusFailed:
		return true
	}
	return false
}

// Refund maps to the `refunds` table. Rows are append-only children of a
// confirmed payment, deduplicated by the gateway-assigned remote id.
type Refund struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PaymentID uint      `gorm:"column:payment_id;index" json:"payment_id"`
	RemoteID  string    `gorm:"column:remote_id;size:191;uniqueIndex" json:"remote_id"`
	Amount    string    `gorm:"column:amount;size:45" json:"amount"`
	Currency  string    `gorm:"column:currency;size:3" json:"currency"`
	Origin    string    `gorm:"column:origin;size:45" json:"origin"`
	Info      string    `gorm:"column:info;type:text" json:"info"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Refund) TableName() string {
	return "refunds"
}
