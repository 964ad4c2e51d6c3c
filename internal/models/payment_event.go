package models

import "time"

// Operator-visible event types recorded against payments and credentials.
const (
	EventPaymentCanceled    = "payment_canceled"
	EventPaymentExpired     = "payment_expired"
	EventPaymentFailed      = "payment_failed"
	EventPaymentPaid        = "payment_paid"
	EventRefundRecorded     = "refund_recorded"
	EventChargebackRecorded = "chargeback_recorded"
	EventCredentialDisabled = "credential_disabled"
)

// PaymentEvent maps to the `payment_events` table. Append-only audit log.
type PaymentEvent struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PaymentID uint      `gorm:"column:payment_id;index" json:"payment_id"`
	TenantID  string    `gorm:"column:tenant_id;size:191;index" json:"tenant_id"`
	EventType string    `gorm:"column:event_type;size:100" json:"event_type"`
	Detail    string    `gorm:"column:detail;type:text" json:"detail"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (PaymentEvent) TableName() string {
	return "payment_events"
}
