package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/mazeltote/mazeltote/app/models"
	"github.com/mazeltote/mazeltote/app/services"
	"github.com/mazeltote/mazeltote/pkg/database"
	"github.com/mazeltote/mazeltote/pkg/paypal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureEvent(captureID, gatewayOrderID, customID string) *paypal.WebhookEvent {
	resource := map[string]interface{}{
		"id":     captureID,
		"status": "COMPLETED",
	}
	if customID != "" {
		resource["custom_id"] = customID
	}
	if gatewayOrderID != "" {
		resource["supplementary_data"] = map[string]interface{}{
			"related_ids": map[string]string{"order_id": gatewayOrderID},
		}
	}

	raw, _ := json.Marshal(resource)
	return &paypal.WebhookEvent{
		ID:        "WH-" + captureID,
		EventType: "PAYMENT.CAPTURE.COMPLETED",
		Resource:  raw,
	}
}

func newWebhookService() *services.WebhookService {
	return services.NewWebhookService(services.NewPaymentService(&fakeGateway{}))
}

func TestWebhookSettlesByGatewayOrderID(t *testing.T) {
	setupDB(t)
	user := seedUser(t, "buyer@example.com", "user")
	product := seedProduct(t, "classic-canvas-tote", 499, 5)
	order := seedAwaitingOrder(t, user.ID, product, 1, time.Now().Add(30*time.Minute))

	require.NoError(t, database.DB.Model(&models.Order{}).
		Where("id = ?", order.ID).Update("gateway_order_id", "GW-1").Error)

	svc := newWebhookService()
	result, err := svc.Reconcile(context.Background(), captureEvent("CAP-1", "GW-1", ""))
	require.NoError(t, err)
	assert.Equal(t, services.WebhookSettled, result)

	after := orderStatus(t, order.ID)
	assert.Equal(t, models.OrderPaid, after.Status)
	assert.Equal(t, "CAP-1", after.GatewayCaptureID)
	assert.Equal(t, 4, productStock(t, product.ID))
}

func TestWebhookFallsBackToCustomID(t *testing.T) {
	setupDB(t)
	user := seedUser(t, "buyer@example.com", "user")
	product := seedProduct(t, "jute-market-bag", 349, 5)
	order := seedAwaitingOrder(t, user.ID, product, 1, time.Now().Add(30*time.Minute))

	// No supplementary data in the delivery; custom_id carries our order id.
	svc := newWebhookService()
	result, err := svc.Reconcile(context.Background(),
		captureEvent("CAP-2", "", fmt.Sprintf("%d", order.ID)))
	require.NoError(t, err)
	assert.Equal(t, services.WebhookSettled, result)
	assert.Equal(t, models.OrderPaid, orderStatus(t, order.ID).Status)
}

func TestWebhookReplayIsNoop(t *testing.T) {
	setupDB(t)
	user := seedUser(t, "buyer@example.com", "user")
	product := seedProduct(t, "block-print-jhola", 699, 5)
	order := seedAwaitingOrder(t, user.ID, product, 1, time.Now().Add(30*time.Minute))

	require.NoError(t, database.DB.Model(&models.Order{}).
		Where("id = ?", order.ID).Update("gateway_order_id", "GW-1").Error)

	svc := newWebhookService()
	ev := captureEvent("CAP-3", "GW-1", "")

	result, err := svc.Reconcile(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, services.WebhookSettled, result)

	result, err = svc.Reconcile(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, services.WebhookNoop, result)
	assert.Equal(t, 4, productStock(t, product.ID))
}

func TestWebhookUnresolvedAndIgnored(t *testing.T) {
	setupDB(t)

	svc := newWebhookService()

	result, err := svc.Reconcile(context.Background(), captureEvent("CAP-4", "GW-UNKNOWN", "424242"))
	require.NoError(t, err)
	assert.Equal(t, services.WebhookUnresolved, result)

	result, err = svc.Reconcile(context.Background(), &paypal.WebhookEvent{
		ID:        "WH-OTHER",
		EventType: "PAYMENT.CAPTURE.DENIED",
	})
	require.NoError(t, err)
	assert.Equal(t, services.WebhookIgnored, result)
}
