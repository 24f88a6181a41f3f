package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentCreditCard   PaymentMethod = "credit_card"
	PaymentPaypal       PaymentMethod = "paypal"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

// Order is a customer purchase. TotalPrice is computed from the item
// snapshots when the order is created.
type Order struct {
	ID            uint            `gorm:"primaryKey"`
	UserID        uint            `gorm:"not null;index"`
	User          User            `gorm:"foreignKey:UserID"`
	OrderNumber   string          `gorm:"size:50;uniqueIndex;not null"`
	Status        OrderStatus     `gorm:"size:20;not null;default:pending"`
	PaymentMethod PaymentMethod   `gorm:"size:20;not null"`
	PaymentStatus bool            `gorm:"not null;default:false"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Items         []OrderItem     `gorm:"foreignKey:OrderID"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (o *Order) TableName() string {
	return "orders"
}

// OrderItem keeps the unit price at purchase time.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey"`
	OrderID   uint            `gorm:"not null;index"`
	ProductID uint            `gorm:"not null"`
	Product   Product         `gorm:"foreignKey:ProductID"`
	Quantity  uint            `gorm:"not null;default:1"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
}

func (i *OrderItem) TableName() string {
	return "order_items"
}

func (i OrderItem) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
