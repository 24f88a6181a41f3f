package orders

import (
	"errors"
	"net/http"
	"time"

	"github.com/evimeria/evimeria-api/app/api"
	"github.com/evimeria/evimeria-api/internal/logging"
	"github.com/evimeria/evimeria-api/internal/validation"
	"github.com/evimeria/evimeria-api/models"
)

type CreateOrderRequest struct {
	UserID        uint            `json:"user_id" validate:"required"`
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=credit_card paypal bank_transfer"`
	Items         []OrderItemLine `json:"items" validate:"required,min=1,dive"`
}

type OrderItemLine struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  uint `json:"quantity" validate:"gte=1"`
}

type ItemResponse struct {
	ProductID   uint    `json:"product_id"`
	ProductName string  `json:"product_name,omitempty"`
	ProductSlug string  `json:"product_slug,omitempty"`
	Quantity    uint    `json:"quantity"`
	Price       float64 `json:"price"`
	Total       float64 `json:"total"`
}

type OrderResponse struct {
	OrderNumber   string         `json:"order_number"`
	UserID        uint           `json:"user_id"`
	Status        string         `json:"status"`
	PaymentMethod string         `json:"payment_method"`
	PaymentStatus bool           `json:"payment_status"`
	TotalPrice    float64        `json:"total_price"`
	Items         []ItemResponse `json:"items"`
	CreatedAt     time.Time      `json:"created_at"`
}

type OrderProvider interface {
	CreateOrder(userID uint, method models.PaymentMethod, lines []models.OrderLine) (*models.Order, error)
	GetByNumber(number string) (*models.Order, error)
}

type OrderHandler struct {
	repo OrderProvider
}

func NewOrderHandler(r OrderProvider) *OrderHandler {
	return &OrderHandler{repo: r}
}

func newOrderResponse(o *models.Order) OrderResponse {
	items := make([]ItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = ItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.Product.Name,
			ProductSlug: item.Product.Slug,
			Quantity:    item.Quantity,
			Price:       item.Price.InexactFloat64(),
			Total:       item.Total().InexactFloat64(),
		}
	}
	return OrderResponse{
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        string(o.Status),
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: o.PaymentStatus,
		TotalPrice:    o.TotalPrice.InexactFloat64(),
		Items:         items,
		CreatedAt:     o.CreatedAt,
	}
}

func (h *OrderHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateOrderRequest
	if err := api.DecodeJSON(r, &input); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := validation.Struct(input); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	// Repeated products are merged so stock is checked against the full quantity.
	lines := make([]models.OrderLine, 0, len(input.Items))
	index := make(map[uint]int, len(input.Items))
	for _, item := range input.Items {
		if i, ok := index[item.ProductID]; ok {
			lines[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(lines)
		lines = append(lines, models.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.repo.CreateOrder(input.UserID, models.PaymentMethod(input.PaymentMethod), lines)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUserNotFound):
			api.Error(w, http.StatusNotFound, "User not found")
		case errors.Is(err, models.ErrProductNotFound):
			api.Error(w, http.StatusNotFound, "Product not found or unavailable")
		case errors.Is(err, models.ErrInsufficientStock):
			api.Error(w, http.StatusConflict, "Insufficient stock")
		case errors.Is(err, models.ErrEmptyOrder):
			api.Error(w, http.StatusBadRequest, "items is required")
		default:
			logging.Error().Err(err).Uint("user_id", input.UserID).Msg("failed to create order")
			api.Error(w, http.StatusInternalServerError, "Failed to create order")
		}
		return
	}

	logging.Info().
		Str("order_number", order.OrderNumber).
		Uint("user_id", order.UserID).
		Str("total", order.TotalPrice.StringFixed(2)).
		Msg("order created")
	api.Created(w, newOrderResponse(order))
}

func (h *OrderHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")

	order, err := h.repo.GetByNumber(number)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			api.Error(w, http.StatusNotFound, "Order not found")
			return
		}
		logging.Error().Err(err).Str("order_number", number).Msg("failed to get order")
		api.Error(w, http.StatusInternalServerError, "Failed to retrieve order")
		return
	}
	api.OK(w, newOrderResponse(order))
}
