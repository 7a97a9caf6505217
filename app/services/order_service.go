package services

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mazeltote/mazeltote/app/models"
	"github.com/mazeltote/mazeltote/app/repositories"
	"github.com/mazeltote/mazeltote/config"
	"github.com/mazeltote/mazeltote/pkg/event"
	"github.com/mazeltote/mazeltote/pkg/metrics"
	"gorm.io/gorm"
)

// totalTolerance absorbs float formatting noise when comparing the client's
// displayed total against the server-side recomputation.
const totalTolerance = 0.005

// OrderItemInput is one cart line as submitted at checkout.
type OrderItemInput struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity"   validate:"required,gte=1"`
}

// OrderInput is the checkout submission payload.
type OrderInput struct {
	Items        []OrderItemInput       `json:"items"`
	Shipping     models.ShippingAddress `json:"shipping_address"`
	CharityTrust string                 `json:"charity_trust"`
	TotalAmount  float64                `json:"total_amount"`
}

// OrderService creates orders and handles fulfilment transitions. Payment
// processing lives in PaymentService.
type OrderService struct {
	orders   *repositories.OrderRepository
	products *repositories.ProductRepository
}

func NewOrderService() *OrderService {
	return &OrderService{
		orders:   repositories.NewOrderRepository(),
		products: repositories.NewProductRepository(),
	}
}

// CreateOrder validates the cart, snapshots current product names and
// prices, recomputes the total server-side, and persists the order in
// awaiting_payment with a fresh expiry deadline.
//
// The client-supplied total is only accepted when it matches the
// recomputation — the displayed price and the charged price must agree.
func (s *OrderService) CreateOrder(userID uint, in OrderInput) (models.Order, error) {
	if len(in.Items) == 0 {
		return models.Order{}, ErrEmptyCart
	}
	if !models.ValidCharity(in.CharityTrust) {
		return models.Order{}, ErrInvalidCharity
	}

	var items []models.OrderItem
	var total float64

	for _, line := range in.Items {
		if line.Quantity < 1 {
			return models.Order{}, ErrInvalidQuantity
		}

		product, err := s.products.FindByID(line.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Order{}, ErrProductNotFound
			}
			return models.Order{}, fmt.Errorf("orders: load product %d: %w", line.ProductID, err)
		}
		if !product.IsActive {
			return models.Order{}, ErrProductUnavailable
		}

		items = append(items, models.OrderItem{
			ProductID:       product.ID,
			Name:            product.Name,
			PriceAtPurchase: product.Price,
			Quantity:        line.Quantity,
		})
		total += product.Price * float64(line.Quantity)
	}

	if math.Abs(total-in.TotalAmount) > totalTolerance {
		return models.Order{}, ErrTotalMismatch
	}

	now := time.Now()
	order := models.Order{
		UserID:        userID,
		Items:         items,
		Shipping:      in.Shipping,
		CharityTrust:  in.CharityTrust,
		TotalAmount:   total,
		Status:        models.OrderAwaitingPayment,
		PaymentStatus: models.PaymentPending,
		ExpiresAt:     now.Add(config.OrderExpiry()),
	}

	if err := s.orders.Create(&order); err != nil {
		return models.Order{}, fmt.Errorf("orders: create: %w", err)
	}

	metrics.OrdersCreated.Inc()
	return order, nil
}

// Get returns an order visible to the caller: its owner, or any admin.
func (s *OrderService) Get(orderID, userID uint, isAdmin bool) (models.Order, error) {
	order, err := s.orders.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Order{}, ErrOrderNotFound
		}
		return models.Order{}, fmt.Errorf("orders: load %d: %w", orderID, err)
	}
	if order.UserID != userID && !isAdmin {
		return models.Order{}, ErrNotOwner
	}
	return order, nil
}

// MarkShipped moves a paid order to shipped (admin action).
func (s *OrderService) MarkShipped(orderID uint) (models.Order, error) {
	return s.transition(orderID, models.OrderPaid, models.OrderShipped, "order.shipped")
}

// MarkDelivered moves a shipped order to delivered (admin action).
func (s *OrderService) MarkDelivered(orderID uint) (models.Order, error) {
	return s.transition(orderID, models.OrderShipped, models.OrderDelivered, "order.delivered")
}

func (s *OrderService) transition(orderID uint, from, to models.OrderStatus, eventName string) (models.Order, error) {
	applied, err := s.orders.Transition(orderID, from, to)
	if err != nil {
		return models.Order{}, err
	}
	if !applied {
		// Either the order doesn't exist or it isn't in the from-state.
		if _, err := s.orders.FindByID(orderID); errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Order{}, ErrOrderNotFound
		}
		return models.Order{}, ErrBadTransition
	}

	order, err := s.orders.FindByID(orderID)
	if err != nil {
		return models.Order{}, fmt.Errorf("orders: reload %d: %w", orderID, err)
	}

	event.FireAsync(eventName, order)
	return order, nil
}
