package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mazeltote/mazeltote/app/jobs"
	"github.com/mazeltote/mazeltote/app/models"
	"github.com/mazeltote/mazeltote/app/repositories"
	"github.com/mazeltote/mazeltote/config"
	"github.com/mazeltote/mazeltote/pkg/event"
	"github.com/mazeltote/mazeltote/pkg/logger"
	"github.com/mazeltote/mazeltote/pkg/metrics"
	"github.com/mazeltote/mazeltote/pkg/paypal"
	"github.com/mazeltote/mazeltote/pkg/queue"
	"gorm.io/gorm"
)

// Gateway is the slice of the PayPal client the payment lifecycle needs.
// *paypal.Client satisfies it; tests substitute a fake.
type Gateway interface {
	CreateOrder(ctx context.Context, amt float64, currency, referenceID, customID string) (*paypal.RemoteOrder, error)
	GetOrder(ctx context.Context, id string) (*paypal.RemoteOrder, error)
	CaptureOrder(ctx context.Context, id string) (*paypal.CaptureResult, error)
}

// CaptureOutcome is what the capture endpoint reports back to the client.
type CaptureOutcome struct {
	Order       models.Order
	CaptureID   string
	AlreadyPaid bool
}

// PaymentService drives the payment half of the order lifecycle: opening
// gateway orders, capturing them, and converging the local record when the
// gateway reports a completed charge through any path.
type PaymentService struct {
	orders  *repositories.OrderRepository
	gateway Gateway
}

func NewPaymentService(gateway Gateway) *PaymentService {
	return &PaymentService{
		orders:  repositories.NewOrderRepository(),
		gateway: gateway,
	}
}

// CreateGatewayOrder opens (or reuses) a gateway order for a local order in
// awaiting_payment. The call is idempotent from the client's point of view:
//
//   - a previously opened gateway order that is still capturable is returned
//     again instead of opening a duplicate charge;
//   - a gateway order that already completed converges the local record and
//     reports ErrAlreadyPaid;
//   - an expired payment window cancels the order lazily.
func (s *PaymentService) CreateGatewayOrder(ctx context.Context, userID, orderID uint) (*paypal.RemoteOrder, error) {
	order, err := s.loadOwned(orderID, userID)
	if err != nil {
		return nil, err
	}

	switch {
	case order.Status == models.OrderPaid:
		return nil, ErrAlreadyPaid
	case order.Status.PaymentTerminal():
		return nil, ErrOrderClosed
	}

	if order.Expired(time.Now()) {
		if _, err := s.orders.CancelIfExpired(order.ID, time.Now()); err != nil {
			return nil, err
		}
		return nil, ErrOrderExpired
	}

	// Reuse path: a prior attempt already opened a gateway order.
	if order.GatewayOrderID != "" {
		remote, err := s.gateway.GetOrder(ctx, order.GatewayOrderID)
		switch {
		case err != nil:
			// Gateway lookup failures fall through to a fresh order so a
			// transient error never wedges checkout.
			logger.WithCtx(ctx).Warn("payments: gateway order lookup failed",
				"order_id", order.ID, "gateway_order_id", order.GatewayOrderID, "error", err)
		case paypal.IsCompleted(remote.Status):
			if _, err := s.Settle(ctx, order.ID, remote.CaptureID(), "paypal"); err != nil {
				return nil, err
			}
			return nil, ErrAlreadyPaid
		case paypal.IsOpen(remote.Status):
			return remote, nil
		}
		// Voided/declined remote order: open a fresh one below.
	}

	localID := strconv.FormatUint(uint64(order.ID), 10)
	remote, err := s.gateway.CreateOrder(ctx, order.TotalAmount, config.PayPalCurrency(), localID, localID)
	if err != nil {
		return nil, fmt.Errorf("payments: create gateway order for %d: %w", order.ID, err)
	}

	if err := s.orders.AttachGatewayOrder(order.ID, remote.ID); err != nil {
		return nil, err
	}

	logger.WithCtx(ctx).Info("payments: gateway order opened",
		"order_id", order.ID, "gateway_order_id", remote.ID)
	return remote, nil
}

// CaptureGatewayOrder finalizes the charge for an approved gateway order and
// converges the local order to paid. Safe to retry: an order that is already
// paid short-circuits with AlreadyPaid instead of charging again.
func (s *PaymentService) CaptureGatewayOrder(ctx context.Context, userID uint, gatewayOrderID string) (CaptureOutcome, error) {
	order, err := s.orders.FindByGatewayOrderID(gatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CaptureOutcome{}, ErrOrderNotFound
		}
		return CaptureOutcome{}, fmt.Errorf("payments: resolve gateway order %s: %w", gatewayOrderID, err)
	}
	if order.UserID != userID {
		return CaptureOutcome{}, ErrNotOwner
	}

	if order.Status == models.OrderPaid {
		metrics.PaymentsCaptured.WithLabelValues("already_paid").Inc()
		return CaptureOutcome{Order: order, CaptureID: order.GatewayCaptureID, AlreadyPaid: true}, nil
	}
	if order.Status.PaymentTerminal() {
		return CaptureOutcome{}, ErrOrderClosed
	}

	if order.Expired(time.Now()) {
		if _, err := s.orders.CancelIfExpired(order.ID, time.Now()); err != nil {
			return CaptureOutcome{}, err
		}
		return CaptureOutcome{}, ErrOrderExpired
	}

	// A lost capture response leaves the charge completed on the gateway
	// side only. Converge from the gateway's own state instead of
	// re-capturing, which PayPal would reject.
	remote, lookupErr := s.gateway.GetOrder(ctx, gatewayOrderID)
	switch {
	case lookupErr != nil:
		logger.WithCtx(ctx).Warn("payments: gateway order lookup failed",
			"order_id", order.ID, "gateway_order_id", gatewayOrderID, "error", lookupErr)
	case paypal.IsCompleted(remote.Status):
		return s.convergeCompleted(ctx, order.ID, remote.CaptureID())
	}

	result, err := s.gateway.CaptureOrder(ctx, gatewayOrderID)
	if err != nil {
		if paypal.IsAlreadyCaptured(err) {
			// Lost the race to the webhook between lookup and capture. The
			// money was taken, so this is a success to converge, never a
			// failure to record.
			if remote, rerr := s.gateway.GetOrder(ctx, gatewayOrderID); rerr == nil && paypal.IsCompleted(remote.Status) {
				return s.convergeCompleted(ctx, order.ID, remote.CaptureID())
			}
			return CaptureOutcome{}, fmt.Errorf("payments: capture %s: %w", gatewayOrderID, err)
		}

		// The charge did not go through; record the failed attempt but let
		// the guarded update keep a concurrent success intact.
		if _, ferr := s.orders.MarkPaymentFailed(order.ID); ferr != nil {
			logger.WithCtx(ctx).Error("payments: mark failed after capture error",
				"order_id", order.ID, "error", ferr)
		}
		metrics.PaymentsCaptured.WithLabelValues("failed").Inc()
		return CaptureOutcome{}, fmt.Errorf("payments: capture %s: %w", gatewayOrderID, err)
	}

	if !paypal.IsCompleted(result.Status) {
		if _, err := s.orders.MarkPaymentFailed(order.ID); err != nil {
			return CaptureOutcome{}, err
		}
		metrics.PaymentsCaptured.WithLabelValues("failed").Inc()
		logger.WithCtx(ctx).Warn("payments: capture declined",
			"order_id", order.ID, "gateway_status", result.Status)

		order.Status = models.OrderPaymentFailed
		order.PaymentStatus = models.PaymentFailed
		return CaptureOutcome{Order: order}, nil
	}

	settled, err := s.Settle(ctx, order.ID, result.CaptureID, "paypal")
	if err != nil {
		return CaptureOutcome{}, err
	}
	metrics.PaymentsCaptured.WithLabelValues("completed").Inc()

	return CaptureOutcome{Order: settled, CaptureID: result.CaptureID, AlreadyPaid: false}, nil
}

// Settle converges a local order onto a completed gateway charge. Both the
// synchronous capture path and the webhook reconciler end here, so the paid
// side effects (stock decrement, confirmation mail, events) run exactly once
// no matter which path wins the race.
func (s *PaymentService) Settle(ctx context.Context, orderID uint, captureID, method string) (models.Order, error) {
	applied, err := s.orders.MarkPaid(orderID, captureID, method)
	if err != nil {
		return models.Order{}, err
	}

	order, err := s.orders.FindByID(orderID)
	if err != nil {
		return models.Order{}, fmt.Errorf("payments: reload order %d: %w", orderID, err)
	}
	if !applied {
		return order, nil
	}

	units := 0
	for _, it := range order.Items {
		units += it.Quantity
	}
	metrics.StockDecrements.Add(float64(units))
	logger.WithCtx(ctx).Info("payments: order settled",
		"order_id", order.ID, "capture_id", captureID, "amount", order.TotalAmount)

	event.FireAsync("order.paid", order)
	if err := queue.Dispatch(&jobs.OrderPaidJob{OrderID: order.ID}); err != nil {
		// Mail is best-effort; the payment itself already committed.
		logger.WithCtx(ctx).Error("payments: enqueue confirmation mail",
			"order_id", order.ID, "error", err)
	}
	return order, nil
}

// convergeCompleted settles an order whose charge the gateway reports as
// already completed and shapes the outcome the way a repeated capture does.
func (s *PaymentService) convergeCompleted(ctx context.Context, orderID uint, captureID string) (CaptureOutcome, error) {
	settled, err := s.Settle(ctx, orderID, captureID, "paypal")
	if err != nil {
		return CaptureOutcome{}, err
	}
	metrics.PaymentsCaptured.WithLabelValues("already_paid").Inc()
	return CaptureOutcome{Order: settled, CaptureID: settled.GatewayCaptureID, AlreadyPaid: true}, nil
}

func (s *PaymentService) loadOwned(orderID, userID uint) (models.Order, error) {
	order, err := s.orders.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Order{}, ErrOrderNotFound
		}
		return models.Order{}, fmt.Errorf("payments: load order %d: %w", orderID, err)
	}
	if order.UserID != userID {
		return models.Order{}, ErrNotOwner
	}
	return order, nil
}
