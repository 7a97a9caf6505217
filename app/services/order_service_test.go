package services_test

import (
	"testing"
	"time"

	"github.com/mazeltote/mazeltote/app/models"
	"github.com/mazeltote/mazeltote/app/services"
	"github.com/mazeltote/mazeltote/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkoutInput(product models.Product, qty int, total float64) services.OrderInput {
	return services.OrderInput{
		Items: []services.OrderItemInput{{ProductID: product.ID, Quantity: qty}},
		Shipping: models.ShippingAddress{
			Name: "Asha Rao", Phone: "9876543210",
			Address: "12 MG Road", City: "Bengaluru", State: "Karnataka", Pincode: "560001",
		},
		CharityTrust: "Goonj",
		TotalAmount:  total,
	}
}

func TestCreateOrderSnapshotsAndRecomputesTotal(t *testing.T) {
	setupDB(t)
	user := seedUser(t, "buyer@example.com", "user")
	product := seedProduct(t, "classic-canvas-tote", 499, 10)

	svc := services.NewOrderService()
	order, err := svc.CreateOrder(user.ID, checkoutInput(product, 2, 998))
	require.NoError(t, err)

	assert.Equal(t, models.OrderAwaitingPayment, order.Status)
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)
	assert.Equal(t, 998.0, order.TotalAmount)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), order.ExpiresAt, time.Minute)

	require.Len(t, order.Items, 1)
	assert.Equal(t, product.Name, order.Items[0].Name)
	assert.Equal(t, 499.0, order.Items[0].PriceAtPurchase)

	// A later price edit must not touch the snapshot.
	require.NoError(t, database.DB.Model(&models.Product{}).
		Where("id = ?", product.ID).Update("price", 999).Error)

	reloaded, err := svc.Get(order.ID, user.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 499.0, reloaded.Items[0].PriceAtPurchase)
	assert.Equal(t, 998.0, reloaded.TotalAmount)
}

func TestCreateOrderRejectsTotalMismatch(t *testing.T) {
	setupDB(t)
	user := seedUser(t, "buyer@example.com", "user")
	product := seedProduct(t, "jute-market-bag", 349, 10)

	svc := services.NewOrderService()
	_, err := svc.CreateOrder(user.ID, checkoutInput(product, 2, 100))
	assert.ErrorIs(t, err, services.ErrTotalMismatch)
}

func TestCreateOrderValidation(t *testing.T) {
	setupDB(t)
	user := seedUser(t, "buyer@example.com", "user")
	product := seedProduct(t, "block-print-jhola", 699, 5)

	inactive := seedProduct(t, "retired-tote", 200, 5)
	require.NoError(t, database.DB.Model(&models.Product{}).
		Where("id = ?", inactive.ID).Update("is_active", false).Error)

	svc := services.NewOrderService()

	_, err := svc.CreateOrder(user.ID, services.OrderInput{CharityTrust: "Goonj"})
	assert.ErrorIs(t, err, services.ErrEmptyCart)

	in := checkoutInput(product, 1, 699)
	in.CharityTrust = "Totally Made Up Trust"
	_, err = svc.CreateOrder(user.ID, in)
	assert.ErrorIs(t, err, services.ErrInvalidCharity)

	in = checkoutInput(product, 0, 0)
	_, err = svc.CreateOrder(user.ID, in)
	assert.ErrorIs(t, err, services.ErrInvalidQuantity)

	in = checkoutInput(inactive, 1, 200)
	_, err = svc.CreateOrder(user.ID, in)
	assert.ErrorIs(t, err, services.ErrProductUnavailable)

	in = checkoutInput(product, 1, 699)
	in.Items[0].ProductID = 99999
	_, err = svc.CreateOrder(user.ID, in)
	assert.ErrorIs(t, err, services.ErrProductNotFound)
}

func TestOrderVisibility(t *testing.T) {
	setupDB(t)
	owner := seedUser(t, "owner@example.com", "user")
	other := seedUser(t, "other@example.com", "user")
	admin := seedUser(t, "admin@example.com", "admin")
	product := seedProduct(t, "organic-cotton-shopper", 549, 5)

	order := seedAwaitingOrder(t, owner.ID, product, 1, time.Now().Add(30*time.Minute))

	svc := services.NewOrderService()

	_, err := svc.Get(order.ID, owner.ID, false)
	assert.NoError(t, err)

	_, err = svc.Get(order.ID, other.ID, false)
	assert.ErrorIs(t, err, services.ErrNotOwner)

	_, err = svc.Get(order.ID, admin.ID, true)
	assert.NoError(t, err)

	_, err = svc.Get(99999, owner.ID, false)
	assert.ErrorIs(t, err, services.ErrOrderNotFound)
}

func TestFulfilmentTransitions(t *testing.T) {
	setupDB(t)
	user := seedUser(t, "buyer@example.com", "user")
	product := seedProduct(t, "quilted-kantha-tote", 899, 5)
	order := seedAwaitingOrder(t, user.ID, product, 1, time.Now().Add(30*time.Minute))

	svc := services.NewOrderService()

	// Cannot ship before payment.
	_, err := svc.MarkShipped(order.ID)
	assert.ErrorIs(t, err, services.ErrBadTransition)

	require.NoError(t, database.DB.Model(&models.Order{}).
		Where("id = ?", order.ID).Update("status", models.OrderPaid).Error)

	shipped, err := svc.MarkShipped(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipped, shipped.Status)

	delivered, err := svc.MarkDelivered(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, delivered.Status)

	// Delivered is terminal.
	_, err = svc.MarkShipped(order.ID)
	assert.ErrorIs(t, err, services.ErrBadTransition)
}
