package repository

import (
	"database/sql"
	"errors"

	"gorm.io/gorm"

	"qpaygate/internal/models"
)

// PaymentRepository handles payment, refund and payment-event rows.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// FindByID returns a payment by its local database id.
func (r *PaymentRepository) FindByID(id uint) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindForOrder returns a payment by id, scoped to an order. Used by the
// return endpoint so a payment id cannot be replayed against a foreign
// order.
func (r *PaymentRepository) FindForOrder(id, orderID uint) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("id = ? AND order_id = ?", id, orderID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Create creates a new payment attempt.
func (r *PaymentRepository) Create(p *models.Payment) error {
	return r.db.Create(p).Error
}

// UpdateInfo overwrites the raw gateway snapshot for a payment.
func (r *PaymentRepository) UpdateInfo(id uint, info string) error {
	return r.db.Model(&models.Payment{}).Where("id = ?", id).Update("info", info).Error
}

// UpdateStatus writes a new lifecycle status.
func (r *PaymentRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.Payment{}).Where("id = ?", id).Update("status", status).Error
}

// SetRemoteID records the gateway-assigned identifier. The id is written
// only while unset; once present it never changes.
func (r *PaymentRepository) SetRemoteID(id uint, remoteID string) error {
	return r.db.Model(&models.Payment{}).
		Where("id = ? AND (remote_id IS NULL OR remote_id = '')", id).
		Update("remote_id", sql.NullString{String: remoteID, Valid: true}).Error
}

// ListStaleOpen returns non-terminal payments that already have a remote
// id, for the periodic reconcile sweep.
func (r *PaymentRepository) ListStaleOpen(limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.
		Where("status IN ? AND remote_id IS NOT NULL AND remote_id != ''",
			[]string{models.PaymentStatusCreated, models.PaymentStatusPending}).
		Order("updated_at ASC").Limit(limit).Find(&payments).Error
	return payments, err
}

// --- Refunds ---

// RefundRemoteIDs returns the gateway ids of all refunds and chargebacks
// already recorded for a payment.
func (r *PaymentRepository) RefundRemoteIDs(paymentID uint) ([]string, error) {
	var ids []string
	err := r.db.Model(&models.Refund{}).
		Where("payment_id = ?", paymentID).
		Pluck("remote_id", &ids).Error
	return ids, err
}

// CreateRefund appends a refund record. The unique index on remote_id
// backs the in-process dedup check, so a race between two reconciliations
// cannot insert the same remote refund twice.
func (r *PaymentRepository) CreateRefund(refund *models.Refund) error {
	err := r.db.Create(refund).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

// ListRefunds returns all refund records for a payment.
func (r *PaymentRepository) ListRefunds(paymentID uint) ([]models.Refund, error) {
	var refunds []models.Refund
	err := r.db.Where("payment_id = ?", paymentID).Order("id ASC").Find(&refunds).Error
	return refunds, err
}

// --- Events ---

// CreateEvent appends an audit event.
func (r *PaymentRepository) CreateEvent(ev *models.PaymentEvent) error {
	return r.db.Create(ev).Error
}
