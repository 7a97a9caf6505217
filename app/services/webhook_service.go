package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/mazeltote/mazeltote/app/models"
	"github.com/mazeltote/mazeltote/app/repositories"
	"github.com/mazeltote/mazeltote/pkg/logger"
	"github.com/mazeltote/mazeltote/pkg/metrics"
	"github.com/mazeltote/mazeltote/pkg/paypal"
	"gorm.io/gorm"
)

// Webhook reconciliation results, exported for metrics and tests.
const (
	WebhookSettled    = "settled"    // this delivery applied the paid transition
	WebhookNoop       = "noop"       // order already converged by another path
	WebhookIgnored    = "ignored"    // event type we don't act on
	WebhookUnresolved = "unresolved" // no local order matches the event
)

// WebhookService reconciles asynchronous gateway notifications against the
// local order store. It is the safety net for captures whose synchronous
// response was lost: the client never confirmed, but the charge completed.
type WebhookService struct {
	orders   *repositories.OrderRepository
	payments *PaymentService
}

func NewWebhookService(payments *PaymentService) *WebhookService {
	return &WebhookService{
		orders:   repositories.NewOrderRepository(),
		payments: payments,
	}
}

// Reconcile processes one verified webhook delivery and reports what it did.
// It never returns an error for states the gateway may legitimately resend
// (unknown orders, repeat deliveries); those are outcomes, not failures.
func (s *WebhookService) Reconcile(ctx context.Context, ev *paypal.WebhookEvent) (string, error) {
	if ev.EventType != "PAYMENT.CAPTURE.COMPLETED" {
		logger.WithCtx(ctx).Debug("webhook: ignoring event", "type", ev.EventType, "id", ev.ID)
		s.count(WebhookIgnored)
		return WebhookIgnored, nil
	}

	var res paypal.CaptureResource
	if err := json.Unmarshal(ev.Resource, &res); err != nil {
		return "", fmt.Errorf("webhook: decode capture resource: %w", err)
	}

	order, ok, err := s.resolve(res)
	if err != nil {
		return "", err
	}
	if !ok {
		logger.WithCtx(ctx).Warn("webhook: no matching order",
			"event_id", ev.ID, "gateway_order_id", res.SupplementaryData.RelatedIDs.OrderID,
			"custom_id", res.CustomID)
		s.count(WebhookUnresolved)
		return WebhookUnresolved, nil
	}

	settled, err := s.payments.Settle(ctx, order.ID, res.ID, "paypal")
	if err != nil {
		return "", err
	}

	// Settle reports the post-converge order; distinguish "we applied it"
	// from "already applied" by whether a capture id was newly recorded.
	if settled.GatewayCaptureID == res.ID && order.GatewayCaptureID != res.ID {
		logger.WithCtx(ctx).Info("webhook: order settled",
			"order_id", order.ID, "event_id", ev.ID, "capture_id", res.ID)
		s.count(WebhookSettled)
		return WebhookSettled, nil
	}

	s.count(WebhookNoop)
	return WebhookNoop, nil
}

// resolve maps a capture resource to the local order. The related order id
// is authoritative; custom_id is the fallback for deliveries where PayPal
// omits supplementary data. Both were written by us at gateway-order
// creation, so either one is sufficient.
func (s *WebhookService) resolve(res paypal.CaptureResource) (models.Order, bool, error) {
	if gw := res.SupplementaryData.RelatedIDs.OrderID; gw != "" {
		order, err := s.orders.FindByGatewayOrderID(gw)
		if err == nil {
			return order, true, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Order{}, false, fmt.Errorf("webhook: resolve by gateway id: %w", err)
		}
	}

	if res.CustomID != "" {
		id, err := strconv.ParseUint(res.CustomID, 10, 64)
		if err == nil {
			order, err := s.orders.FindByID(uint(id))
			if err == nil {
				return order, true, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Order{}, false, fmt.Errorf("webhook: resolve by custom id: %w", err)
			}
		}
	}

	return models.Order{}, false, nil
}

func (s *WebhookService) count(result string) {
	metrics.WebhookEvents.WithLabelValues(result).Inc()
}
