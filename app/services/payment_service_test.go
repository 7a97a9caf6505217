package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mazeltote/mazeltote/app/models"
	"github.com/mazeltote/mazeltote/app/services"
	"github.com/mazeltote/mazeltote/pkg/database"
	"github.com/mazeltote/mazeltote/pkg/paypal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway scripts the remote side of the payment flow. Safe for
// concurrent callers so racing capture paths can share one instance.
type fakeGateway struct {
	mu           sync.Mutex
	createCalls  int
	captureCalls int

	remoteStatus  string // status GetOrder reports
	captureStatus string // status CaptureOrder reports
	captureID     string
	getErr        error
	captureErr    error
}

func (g *fakeGateway) CreateOrder(_ context.Context, amt float64, currency, referenceID, customID string) (*paypal.RemoteOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	return &paypal.RemoteOrder{
		ID:     fmt.Sprintf("GW-%s-%d", referenceID, g.createCalls),
		Status: paypal.StatusCreated,
	}, nil
}

func (g *fakeGateway) GetOrder(_ context.Context, id string) (*paypal.RemoteOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getErr != nil {
		return nil, g.getErr
	}
	ro := &paypal.RemoteOrder{ID: id, Status: g.remoteStatus}
	if g.captureID != "" {
		ro.PurchaseUnits = []paypal.PurchaseUnit{{
			Payments: &paypal.Payments{Captures: []paypal.Capture{{
				ID: g.captureID, Status: g.remoteStatus,
			}}},
		}}
	}
	return ro, nil
}

func (g *fakeGateway) CaptureOrder(_ context.Context, id string) (*paypal.CaptureResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captureCalls++
	if g.captureErr != nil {
		return nil, g.captureErr
	}
	return &paypal.CaptureResult{
		OrderID:   id,
		Status:    g.captureStatus,
		CaptureID: g.captureID,
	}, nil
}

func orderStatus(t *testing.T, id uint) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, database.DB.Preload("Items").First(&order, id).Error)
	return order
}

func productStock(t *testing.T, id uint) int {
	t.Helper()
	var product models.Product
	require.NoError(t, database.DB.First(&product, id).Error)
	return product.Stock
}

func TestCreateGatewayOrderFreshAndReuse(t *testing.T) {
	setupDB(t)
	user := seedUser(t, "buyer@example.com", "user")
	product := seedProduct(t, "classic-canvas-tote", 499, 10)
	order := seedAwaitingOrder(t, user.ID, product, 1, time.Now().Add(30*time.Minute))

	gw := &fakeGateway{remoteStatus: paypal.StatusApproved}
	svc := services.NewPaymentService(gw)

	remote, err := svc.CreateGatewayOrder(context.Background(), user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gw.createCalls)

	after := orderStatus(t, order.ID)
	assert.Equal(t, remote.ID, after.GatewayOrderID)
	assert.Equal(t, 1, after.PaymentAttempts)

	// Second click reuses the open gateway order instead of charging twice.
	again, err := svc.CreateGatewayOrder(context.Background(), user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, remote.ID, again.ID)
	assert.Equal(t, 1, gw.createCalls)
	assert.Equal(t, 1, orderStatus(t, order.ID).PaymentAttempts)
}

func TestCreateGatewayOrderConvergesWhenRemoteAlreadyCompleted(t *testing.T) {
	setupDB(t)
	user := seedUser(t, "buyer@example.com", "user")
	product := seedProduct(t, "jute-market-bag", 349, 6)
	order := seedAwaitingOrder(t, user.ID, product, 1, time.Now().Add(30*time.Minute))

	require.NoError(t, database.DB.Model(&models.Order{}).
		Where("id = ?", order.ID).Update("gateway_order_id", "GW-1").Error)

	// The charge went through earlier but the confirmation never reached us.
	gw := &fakeGateway{remoteStatus: paypal.StatusCompleted, captureID: "CAP-9"}
	svc := services.NewPaymentService(gw)

	_, err := svc.CreateGatewayOrder(context.Background(), user.ID, order.ID)
	assert.ErrorIs(t, err, services.ErrAlreadyPaid)

	after := orderStatus(t, order.ID)
	assert.Equal(t, models.OrderPaid, after.Status)
	assert.Equal(t, "CAP-9", after.GatewayCaptureID)
	assert.Equal(t, 5, productStock(t, product.ID))
	assert.Equal(t, 0, gw.createCalls)
}

func TestCreateGatewayOrderOwnershipAndExpiry(t *testing.T) {
	setupDB(t)
	owner := seedUser(t, "owner@example.com", "user")
	other := seedUser(t, "other@example.com", "user")
	product := seedProduct(t, "jute-market-bag", 349, 10)

	gw := &fakeGateway{}
	svc := services.NewPaymentService(gw)

	live := seedAwaitingOrder(t, owner.ID, product, 1, time.Now().Add(30*time.Minute))
	_, err := svc.CreateGatewayOrder(context.Background(), other.ID, live.ID)
	assert.ErrorIs(t, err, services.ErrNotOwner)

	expired := seedAwaitingOrder(t, owner.ID, product, 1, time.Now().Add(-time.Minute))
	_, err = svc.CreateGatewayOrder(context.Background(), owner.ID, expired.ID)
	assert.ErrorIs(t, err, services.ErrOrderExpired)
	assert.Equal(t, models.OrderCancelled, orderStatus(t, expired.ID).Status)
	assert.Equal(t, 0, gw.createCalls)
}

func TestCaptureCompletesOrderAndDecrementsStock(t *testing.T) {
	setupDB(t)
	user := seedUser(t, "buyer@example.com", "user")
	product := seedProduct(t, "block-print-jhola", 699, 3)
	order := seedAwaitingOrder(t, user.ID, product, 2, time.Now().Add(30*time.Minute))

	require.NoError(t, database.DB.Model(&models.Order{}).
		Where("id = ?", order.ID).Update("gateway_order_id", "GW-1").Error)

	gw := &fakeGateway{captureStatus: paypal.StatusCompleted, captureID: "CAP-1"}
	svc := services.NewPaymentService(gw)

	outcome, err := svc.CaptureGatewayOrder(context.Background(), user.ID, "GW-1")
	require.NoError(t, err)
	assert.False(t, outcome.AlreadyPaid)
	assert.Equal(t, "CAP-1", outcome.CaptureID)

	after := orderStatus(t, order.ID)
	assert.Equal(t, models.OrderPaid, after.Status)
	assert.Equal(t, models.PaymentCompleted, after.PaymentStatus)
	assert.Equal(t, "CAP-1", after.GatewayCaptureID)
	assert.Equal(t, 1, productStock(t, product.ID))

	// Retrying the capture is a no-op, not a second charge or decrement.
	outcome, err = svc.CaptureGatewayOrder(context.Background(), user.ID, "GW-1")
	require.NoError(t, err)
	assert.True(t, outcome.AlreadyPaid)
	assert.Equal(t, 1, gw.captureCalls)
	assert.Equal(t, 1, productStock(t, product.ID))
}

func TestCaptureStockFloorsAtZero(t *testing.T) {
	setupDB(t)
	user := seedUser(t, "buyer@example.com", "user")
	product := seedProduct(t, "quilted-kantha-tote", 899, 1)
	seedAwaitingOrder(t, user.ID, product, 5, time.Now().Add(30*time.Minute))

	require.NoError(t, database.DB.Model(&models.Order{}).
		Where("user_id = ?", user.ID).Update("gateway_order_id", "GW-1").Error)

	gw := &fakeGateway{captureStatus: paypal.StatusCompleted, captureID: "CAP-1"}
	svc := services.NewPaymentService(gw)

	_, err := svc.CaptureGatewayOrder(context.Background(), user.ID, "GW-1")
	require.NoError(t, err)
	assert.Equal(t, 0, productStock(t, product.ID))
}

func TestCaptureDeclinedMarksPaymentFailed(t *testing.T) {
	setupDB(t)
	user := seedUser(t, "buyer@example.com", "user")
	product := seedProduct(t, "organic-cotton-shopper", 549, 4)
	order := seedAwaitingOrder(t, user.ID, product, 1, time.Now().Add(30*time.Minute))

	require.NoError(t, database.DB.Model(&models.Order{}).
		Where("id = ?", order.ID).Update("gateway_order_id", "GW-1").Error)

	gw := &fakeGateway{captureStatus: paypal.StatusDeclined}
	svc := services.NewPaymentService(gw)

	outcome, err := svc.CaptureGatewayOrder(context.Background(), user.ID, "GW-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaymentFailed, outcome.Order.Status)

	after := orderStatus(t, order.ID)
	assert.Equal(t, models.OrderPaymentFailed, after.Status)
	assert.Equal(t, models.PaymentFailed, after.PaymentStatus)
	// No charge, no stock movement.
	assert.Equal(t, 4, productStock(t, product.ID))
}

func TestCaptureExpiredOrderCancels(t *testing.T) {
	setupDB(t)
	user := seedUser(t, "buyer@example.com", "user")
	product := seedProduct(t, "classic-canvas-tote", 499, 4)
	order := seedAwaitingOrder(t, user.ID, product, 1, time.Now().Add(-time.Minute))

	require.NoError(t, database.DB.Model(&models.Order{}).
		Where("id = ?", order.ID).Update("gateway_order_id", "GW-1").Error)

	gw := &fakeGateway{captureStatus: paypal.StatusCompleted, captureID: "CAP-1"}
	svc := services.NewPaymentService(gw)

	_, err := svc.CaptureGatewayOrder(context.Background(), user.ID, "GW-1")
	assert.ErrorIs(t, err, services.ErrOrderExpired)
	assert.Equal(t, models.OrderCancelled, orderStatus(t, order.ID).Status)
	assert.Equal(t, 0, gw.captureCalls)
}

func TestCaptureConvergesWhenGatewayReportsCompleted(t *testing.T) {
	setupDB(t)
	user := seedUser(t, "buyer@example.com", "user")
	product := seedProduct(t, "classic-canvas-tote", 499, 5)
	order := seedAwaitingOrder(t, user.ID, product, 1, time.Now().Add(30*time.Minute))

	require.NoError(t, database.DB.Model(&models.Order{}).
		Where("id = ?", order.ID).Update("gateway_order_id", "GW-1").Error)

	// The first capture response was lost: the gateway already holds the
	// charge and would reject a re-capture.
	gw := &fakeGateway{
		remoteStatus: paypal.StatusCompleted,
		captureID:    "CAP-7",
		captureErr: errors.New(`paypal: capture order GW-1: http: request failed with status 422: ` +
			`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_ALREADY_CAPTURED"}]}`),
	}
	svc := services.NewPaymentService(gw)

	outcome, err := svc.CaptureGatewayOrder(context.Background(), user.ID, "GW-1")
	require.NoError(t, err)
	assert.True(t, outcome.AlreadyPaid)
	assert.Equal(t, "CAP-7", outcome.CaptureID)
	assert.Equal(t, 0, gw.captureCalls, "a completed charge must never be re-captured")

	after := orderStatus(t, order.ID)
	assert.Equal(t, models.OrderPaid, after.Status)
	assert.Equal(t, "CAP-7", after.GatewayCaptureID)
	assert.Equal(t, 4, productStock(t, product.ID))
}

func TestCaptureAlreadyCapturedRejectionNeverMarksFailure(t *testing.T) {
	setupDB(t)
	user := seedUser(t, "buyer@example.com", "user")
	product := seedProduct(t, "jute-market-bag", 349, 5)
	order := seedAwaitingOrder(t, user.ID, product, 1, time.Now().Add(30*time.Minute))

	require.NoError(t, database.DB.Model(&models.Order{}).
		Where("id = ?", order.ID).Update("gateway_order_id", "GW-1").Error)

	// The gateway still reports the order open at lookup time but rejects
	// the capture as already taken (webhook race in the smallest window).
	gw := &fakeGateway{
		remoteStatus: paypal.StatusApproved,
		captureErr:   errors.New("paypal: capture order GW-1: ORDER_ALREADY_CAPTURED"),
	}
	svc := services.NewPaymentService(gw)

	_, err := svc.CaptureGatewayOrder(context.Background(), user.ID, "GW-1")
	require.Error(t, err)

	// The money was taken, so the order must stay convergeable: not
	// payment_failed, and the webhook path can still settle it.
	assert.Equal(t, models.OrderAwaitingPayment, orderStatus(t, order.ID).Status)

	settled, err := svc.Settle(context.Background(), order.ID, "CAP-8", "paypal")
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, settled.Status)
	assert.Equal(t, "CAP-8", settled.GatewayCaptureID)
	assert.Equal(t, 4, productStock(t, product.ID))
}

func TestConcurrentCapturesDecrementStockOnce(t *testing.T) {
	setupDB(t)

	// One writer connection serializes sqlite; the race stays at the
	// guarded UPDATE, which is the property under test.
	sqlDB, err := database.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	user := seedUser(t, "buyer@example.com", "user")
	product := seedProduct(t, "block-print-jhola", 699, 10)
	order := seedAwaitingOrder(t, user.ID, product, 2, time.Now().Add(30*time.Minute))

	require.NoError(t, database.DB.Model(&models.Order{}).
		Where("id = ?", order.ID).Update("gateway_order_id", "GW-1").Error)

	gw := &fakeGateway{captureStatus: paypal.StatusCompleted, captureID: "CAP-1"}
	svc := services.NewPaymentService(gw)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CaptureGatewayOrder(context.Background(), user.ID, "GW-1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	after := orderStatus(t, order.ID)
	assert.Equal(t, models.OrderPaid, after.Status)
	assert.Equal(t, "CAP-1", after.GatewayCaptureID)
	// Exactly one settle applied: one decrement, not two.
	assert.Equal(t, 8, productStock(t, product.ID))
}

func TestSettleIsIdempotent(t *testing.T) {
	setupDB(t)
	user := seedUser(t, "buyer@example.com", "user")
	product := seedProduct(t, "block-print-jhola", 699, 10)
	order := seedAwaitingOrder(t, user.ID, product, 2, time.Now().Add(30*time.Minute))

	svc := services.NewPaymentService(&fakeGateway{})

	first, err := svc.Settle(context.Background(), order.ID, "CAP-1", "paypal")
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, first.Status)
	assert.Equal(t, 8, productStock(t, product.ID))

	// The second converge (webhook replay, racing path) changes nothing.
	second, err := svc.Settle(context.Background(), order.ID, "CAP-2", "paypal")
	require.NoError(t, err)
	assert.Equal(t, "CAP-1", second.GatewayCaptureID)
	assert.Equal(t, 8, productStock(t, product.ID))
}
