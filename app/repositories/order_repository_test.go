package repositories_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mazeltote/mazeltote/app/models"
	"github.com/mazeltote/mazeltote/app/repositories"
	"github.com/mazeltote/mazeltote/config"
	"github.com/mazeltote/mazeltote/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) {
	t.Helper()
	config.Set("DB_DRIVER", "sqlite")
	config.Set("DB_DSN", "file:"+t.Name()+"?mode=memory&cache=shared")

	require.NoError(t, database.Connect())
	require.NoError(t, database.DB.AutoMigrate(
		&models.User{}, &models.Product{},
		&models.Order{}, &models.OrderItem{},
	))
}

func seedOrder(t *testing.T, status models.OrderStatus, stock, qty int) (models.Order, models.Product) {
	t.Helper()

	product := models.Product{Name: "Tote", Slug: "tote-" + t.Name(), Price: 499, Stock: stock, IsActive: true}
	require.NoError(t, database.DB.Create(&product).Error)

	order := models.Order{
		UserID: 1,
		Items: []models.OrderItem{{
			ProductID: product.ID, Name: product.Name,
			PriceAtPurchase: product.Price, Quantity: qty,
		}},
		CharityTrust:  models.Charities[0],
		TotalAmount:   product.Price * float64(qty),
		Status:        status,
		PaymentStatus: models.PaymentPending,
		ExpiresAt:     time.Now().Add(30 * time.Minute),
	}
	require.NoError(t, database.DB.Create(&order).Error)
	return order, product
}

func TestMarkPaidAppliesExactlyOnce(t *testing.T) {
	setupDB(t)
	order, product := seedOrder(t, models.OrderAwaitingPayment, 10, 3)

	repo := repositories.NewOrderRepository()

	applied, err := repo.MarkPaid(order.ID, "CAP-1", "paypal")
	require.NoError(t, err)
	assert.True(t, applied)

	// The losing path sees false and must not decrement again.
	applied, err = repo.MarkPaid(order.ID, "CAP-2", "paypal")
	require.NoError(t, err)
	assert.False(t, applied)

	var after models.Order
	require.NoError(t, database.DB.First(&after, order.ID).Error)
	assert.Equal(t, models.OrderPaid, after.Status)
	assert.Equal(t, "CAP-1", after.GatewayCaptureID)

	var p models.Product
	require.NoError(t, database.DB.First(&p, product.ID).Error)
	assert.Equal(t, 7, p.Stock)
}

func TestMarkPaidConcurrentWritersApplyExactlyOnce(t *testing.T) {
	setupDB(t)

	// One writer connection serializes sqlite; the guarded UPDATE decides
	// the race either way.
	sqlDB, err := database.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	order, product := seedOrder(t, models.OrderAwaitingPayment, 10, 3)
	repo := repositories.NewOrderRepository()

	var applied int32
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ok, err := repo.MarkPaid(order.ID, fmt.Sprintf("CAP-%d", n), "paypal")
			if assert.NoError(t, err) && ok {
				atomic.AddInt32(&applied, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), applied, "exactly one writer may apply the paid transition")

	var after models.Order
	require.NoError(t, database.DB.First(&after, order.ID).Error)
	assert.Equal(t, models.OrderPaid, after.Status)
	assert.NotEmpty(t, after.GatewayCaptureID)

	var p models.Product
	require.NoError(t, database.DB.First(&p, product.ID).Error)
	assert.Equal(t, 7, p.Stock, "the stock decrement must run once, not twice")
}

func TestMarkPaymentFailedNeverOverwritesPaid(t *testing.T) {
	setupDB(t)
	order, _ := seedOrder(t, models.OrderAwaitingPayment, 5, 1)

	repo := repositories.NewOrderRepository()

	applied, err := repo.MarkPaid(order.ID, "CAP-1", "paypal")
	require.NoError(t, err)
	require.True(t, applied)

	// A late failure signal loses to the earlier success.
	applied, err = repo.MarkPaymentFailed(order.ID)
	require.NoError(t, err)
	assert.False(t, applied)

	var after models.Order
	require.NoError(t, database.DB.First(&after, order.ID).Error)
	assert.Equal(t, models.OrderPaid, after.Status)
}

func TestCancelIfExpiredGuards(t *testing.T) {
	setupDB(t)
	order, _ := seedOrder(t, models.OrderAwaitingPayment, 5, 1)

	repo := repositories.NewOrderRepository()

	// Not yet expired: nothing happens.
	applied, err := repo.CancelIfExpired(order.ID, order.ExpiresAt.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = repo.CancelIfExpired(order.ID, order.ExpiresAt.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, applied)

	// A capture arriving after cancellation is rejected by the same guard.
	applied, err = repo.MarkPaid(order.ID, "CAP-LATE", "paypal")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestAttachGatewayOrderBumpsAttempts(t *testing.T) {
	setupDB(t)
	order, _ := seedOrder(t, models.OrderAwaitingPayment, 5, 1)

	repo := repositories.NewOrderRepository()
	require.NoError(t, repo.AttachGatewayOrder(order.ID, "GW-1"))
	require.NoError(t, repo.AttachGatewayOrder(order.ID, "GW-2"))

	after, err := repo.FindByGatewayOrderID("GW-2")
	require.NoError(t, err)
	assert.Equal(t, order.ID, after.ID)
	assert.Equal(t, 2, after.PaymentAttempts)
}
