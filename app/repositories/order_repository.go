package repositories

import (
	"fmt"
	"time"

	"github.com/mazeltote/mazeltote/app/models"
	"github.com/mazeltote/mazeltote/pkg/database"
	"github.com/mazeltote/mazeltote/pkg/orm"
	"gorm.io/gorm"
)

// OrderRepository handles database operations for Order.
//
// Every lifecycle transition is a single conditional UPDATE guarded by the
// current status, so racing writers (sync capture, webhook, sweeper) cannot
// double-apply a transition: exactly one of them observes RowsAffected == 1.
type OrderRepository struct{}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{}
}

// FindByID loads an order with its item snapshot.
func (r *OrderRepository) FindByID(id uint) (models.Order, error) {
	var order models.Order
	err := orm.DB().Model(&models.Order{}).Preload("Items").Where("id = ?", id).First(&order)
	return order, err
}

// FindByGatewayOrderID resolves the local order a gateway order belongs to.
func (r *OrderRepository) FindByGatewayOrderID(gatewayID string) (models.Order, error) {
	var order models.Order
	err := orm.DB().Model(&models.Order{}).Preload("Items").
		Where("gateway_order_id = ?", gatewayID).First(&order)
	return order, err
}

// Create persists a new order with its items.
func (r *OrderRepository) Create(order *models.Order) error {
	return orm.DB().Create(order)
}

// ListByUser returns one page of a user's orders, newest first.
func (r *OrderRepository) ListByUser(userID uint, page, perPage int) ([]models.Order, orm.Pagination, error) {
	var orders []models.Order
	pagination, err := orm.DB().Model(&models.Order{}).Preload("Items").
		Where("user_id = ?", userID).Order("created_at DESC").
		GetWithPagination(&orders, page, perPage)
	return orders, pagination, err
}

// ListAll returns one page of all orders, optionally filtered by status.
func (r *OrderRepository) ListAll(status models.OrderStatus, page, perPage int) ([]models.Order, orm.Pagination, error) {
	q := orm.DB().Model(&models.Order{}).Preload("Items").Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var orders []models.Order
	pagination, err := q.GetWithPagination(&orders, page, perPage)
	return orders, pagination, err
}

// AttachGatewayOrder stores a freshly created gateway order id and bumps the
// attempt counter in one UPDATE.
func (r *OrderRepository) AttachGatewayOrder(orderID uint, gatewayID string) error {
	_, err := orm.DB().Model(&models.Order{}).Where("id = ?", orderID).Updates(map[string]interface{}{
		"gateway_order_id": gatewayID,
		"payment_attempts": gorm.Expr("payment_attempts + 1"),
	})
	if err != nil {
		return fmt.Errorf("orders: attach gateway order: %w", err)
	}
	return nil
}

// MarkPaid performs the paid transition and the stock decrement in one
// transaction, guarded by status = awaiting_payment. Returns true only for
// the caller that actually applied the transition; every other concurrent
// or repeated call gets false with no side effects.
func (r *OrderRepository) MarkPaid(orderID uint, captureID, method string) (bool, error) {
	applied := false

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, models.OrderAwaitingPayment).
			Updates(map[string]interface{}{
				"status":             models.OrderPaid,
				"payment_status":     models.PaymentCompleted,
				"gateway_capture_id": captureID,
				"payment_method":     method,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // already handled by another path
		}
		applied = true

		var items []models.OrderItem
		if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
			return err
		}

		// Floor-at-zero decrement, in the same transaction as the status
		// flip so a webhook/capture race can never deduct twice.
		for _, item := range items {
			err := tx.Model(&models.Product{}).
				Where("id = ?", item.ProductID).
				Update("stock", gorm.Expr(
					"CASE WHEN stock >= ? THEN stock - ? ELSE 0 END",
					item.Quantity, item.Quantity,
				)).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("orders: mark paid: %w", err)
	}
	return applied, nil
}

// MarkPaymentFailed records a declined/failed capture. Guarded the same way
// as MarkPaid so a late failure can never overwrite a paid order.
func (r *OrderRepository) MarkPaymentFailed(orderID uint) (bool, error) {
	n, err := orm.DB().Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.OrderAwaitingPayment).
		Updates(map[string]interface{}{
			"status":         models.OrderPaymentFailed,
			"payment_status": models.PaymentFailed,
		})
	if err != nil {
		return false, fmt.Errorf("orders: mark payment failed: %w", err)
	}
	return n > 0, nil
}

// CancelIfExpired lazily cancels a single order whose payment window has
// closed. Used by the checkout path; the sweeper handles the bulk case.
func (r *OrderRepository) CancelIfExpired(orderID uint, now time.Time) (bool, error) {
	n, err := orm.DB().Model(&models.Order{}).
		Where("id = ? AND status = ? AND expires_at < ?", orderID, models.OrderAwaitingPayment, now).
		Updates(map[string]interface{}{
			"status": models.OrderCancelled,
		})
	if err != nil {
		return false, fmt.Errorf("orders: cancel expired: %w", err)
	}
	return n > 0, nil
}

// CancelExpired bulk-cancels every awaiting_payment order past its expiry.
// The predicate excludes already-cancelled orders, so overlapping sweeps
// are harmless.
func (r *OrderRepository) CancelExpired(now time.Time) (int64, error) {
	n, err := orm.DB().Model(&models.Order{}).
		Where("status = ? AND expires_at < ?", models.OrderAwaitingPayment, now).
		Updates(map[string]interface{}{
			"status": models.OrderCancelled,
		})
	if err != nil {
		return 0, fmt.Errorf("orders: cancel expired sweep: %w", err)
	}
	return n, nil
}

// Transition moves an order from one fulfilment status to the next
// (paid→shipped, shipped→delivered). The from-guard makes illegal jumps
// no-ops rather than errors the caller must pre-check.
func (r *OrderRepository) Transition(orderID uint, from, to models.OrderStatus) (bool, error) {
	n, err := orm.DB().Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]interface{}{
			"status": to,
		})
	if err != nil {
		return false, fmt.Errorf("orders: transition %s->%s: %w", from, to, err)
	}
	return n > 0, nil
}
