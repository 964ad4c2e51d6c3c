package fulfillment

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"qpaygate/internal/models"
)

// ErrCapacityExceeded means local fulfillment cannot be granted, e.g. a
// product sold out between payment and confirmation. The remote payment
// stays confirmed; only the ticket side is left for manual follow-up.
var ErrCapacityExceeded = errors.New("fulfillment: capacity exceeded")

// ErrConcurrencyTimeout means local resource contention during
// confirmation. Callers surface a transient retry-later message; webhook
// callers answer 503 so the sender retries.
var ErrConcurrencyTimeout = errors.New("fulfillment: concurrency timeout")

// Confirmer marks an order as paid. Implementations must be idempotent:
// confirming an already-paid order is a no-op.
type Confirmer interface {
	Confirm(ctx context.Context, orderID uint) error
}

// Service is the gorm-backed Confirmer. Quota rows are locked and
// decremented inside one transaction per order.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Confirm flips the order to paid after reserving quota for each line
// item. Already-paid orders return nil immediately.
func (s *Service) Confirm(ctx context.Context, orderID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", orderID).First(&order).Error; err != nil {
			return err
		}
		if order.Status == models.OrderStatusPaid {
			return nil
		}

		var items []models.OrderItem
		if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
			return err
		}

		for _, item := range items {
			var quota models.Quota
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("product_id = ?", item.ProductID).First(&quota).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// No quota row means unlimited capacity.
				continue
			}
			if err != nil {
				return err
			}
			if quota.Sold+item.Quantity > quota.Capacity {
				return ErrCapacityExceeded
			}
			if err := tx.Model(&models.Quota{}).Where("id = ?", quota.ID).
				Update("sold", quota.Sold+item.Quantity).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.Order{}).Where("id = ?", orderID).
			Update("status", models.OrderStatusPaid).Error
	})

	if err != nil {
		if isLockTimeout(err) {
			s.logger.Warn("order confirmation lock timeout", zap.Uint("order_id", orderID))
			return ErrConcurrencyTimeout
		}
		return err
	}
	return nil
}

// isLockTimeout detects MySQL's lock wait timeout (error 1205) without
// binding this package to the driver's error type.
func isLockTimeout(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Lock wait timeout")
}
