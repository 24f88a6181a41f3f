package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrOrderNotFound is returned when no order has the requested number.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInsufficientStock is returned when a line asks for more than is in stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrEmptyOrder is returned when an order has no lines.
	ErrEmptyOrder = errors.New("order has no items")
)

// OrderLine is one requested product and quantity.
type OrderLine struct {
	ProductID uint
	Quantity  uint
}

type OrdersRepository struct {
	db        *gorm.DB
	newNumber func() string
}

func NewOrdersRepository(db *gorm.DB) *OrdersRepository {
	return &OrdersRepository{
		db:        db,
		newNumber: newOrderNumber,
	}
}

func newOrderNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "EVM-" + strings.ToUpper(id[:12])
}

// CreateOrder reserves stock and snapshots prices in one transaction.
func (r *OrdersRepository) CreateOrder(userID uint, method PaymentMethod, lines []OrderLine) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	order := &Order{
		UserID:        userID,
		OrderNumber:   r.newNumber(),
		Status:        OrderStatusPending,
		PaymentMethod: method,
		TotalPrice:    decimal.Zero,
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var user User
		if err := tx.Select("id").First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		for _, line := range lines {
			var product Product
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ? AND available = ? AND is_published = ?", line.ProductID, true, true).
				First(&product).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("product %d: %w", line.ProductID, ErrProductNotFound)
				}
				return err
			}
			if product.Stock < line.Quantity {
				return fmt.Errorf("product %d: %w", line.ProductID, ErrInsufficientStock)
			}
			if err := tx.Model(&Product{}).
				Where("id = ?", product.ID).
				UpdateColumn("stock", gorm.Expr("stock - ?", line.Quantity)).Error; err != nil {
				return err
			}

			item := OrderItem{
				ProductID: product.ID,
				Quantity:  line.Quantity,
				Price:     product.Price,
			}
			order.Items = append(order.Items, item)
			order.TotalPrice = order.TotalPrice.Add(item.Total())
		}

		return tx.Create(order).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrdersRepository) GetByNumber(number string) (*Order, error) {
	var order Order
	if err := r.db.
		Preload("Items.Product").
		Where("order_number = ?", number).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}
