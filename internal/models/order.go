package models

import "time"

// Order statuses.
const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
	OrderStatusExpired = "expired"
)

// Order maps to the `orders` table. Orders are owned by the surrounding
// shop; this service only reads them and flips their status on
// confirmation.
type Order struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Code      string    `gorm:"column:code;size:191;uniqueIndex" json:"code"`
	Secret    string    `gorm:"column:secret;size:191" json:"-"`
	TenantID  string    `gorm:"column:tenant_id;size:191;index" json:"tenant_id"`
	Total     string    `gorm:"column:total;size:45" json:"total"`
	Currency  string    `gorm:"column:currency;size:3" json:"currency"`
	Locale    string    `gorm:"column:locale;size:10" json:"locale"`
	Status    string    `gorm:"column:status;size:45" json:"status"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem maps to the `order_items` table.
type OrderItem struct {
	ID        uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID   uint   `gorm:"column:order_id;index" json:"order_id"`
	ProductID string `gorm:"column:product_id;size:191" json:"product_id"`
	Name      string `gorm:"column:name;size:400" json:"name"`
	Quantity  int    `gorm:"column:quantity" json:"quantity"`
	Price     string `gorm:"column:price;size:45" json:"price"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// Quota maps to the `quotas` table. Fulfillment decrements the remaining
// capacity when an order is confirmed.
type Quota struct {
	ID        uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ProductID string `gorm:"column:product_id;size:191;uniqueIndex" json:"product_id"`
	Capacity  int    `gorm:"column:capacity" json:"capacity"`
	Sold      int    `gorm:"column:sold" json:"sold"`
}

func (Quota) TableName() string {
	return "quotas"
}
