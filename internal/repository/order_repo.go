package repository

import (
	"gorm.io/gorm"

	"qpaygate/internal/models"
)

// OrderRepository handles order, order-item and quota rows.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// DB returns the underlying gorm.DB instance.
func (r *OrderRepository) DB() *gorm.DB {
	return r.db
}

// FindByCode returns an order by its public code.
func (r *OrderRepository) FindByCode(code string) (*models.Order, error) {
	var o models.Order
	if err := r.db.Where("code = ?", code).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// FindByID returns an order by primary key.
func (r *OrderRepository) FindByID(id uint) (*models.Order, error) {
	var o models.Order
	if err := r.db.Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// Items returns the line items of an order.
func (r *OrderRepository) Items(orderID uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&items).Error
	return items, err
}

// UpdateStatus writes a new order status.
func (r *OrderRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.Order{}).Where("id = ?", id).Update("status", status).Error
}

// Create creates an order with its items.
func (r *OrderRepository) Create(o *models.Order, items []models.OrderItem) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(o).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = o.ID
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
}
