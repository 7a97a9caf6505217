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

func TestSweepCancelsOnlyExpiredAwaitingOrders(t *testing.T) {
	setupDB(t)
	user := seedUser(t, "buyer@example.com", "user")
	product := seedProduct(t, "classic-canvas-tote", 499, 10)

	expired := seedAwaitingOrder(t, user.ID, product, 1, time.Now().Add(-time.Hour))
	live := seedAwaitingOrder(t, user.ID, product, 1, time.Now().Add(30*time.Minute))

	paid := seedAwaitingOrder(t, user.ID, product, 1, time.Now().Add(-time.Hour))
	require.NoError(t, database.DB.Model(&models.Order{}).
		Where("id = ?", paid.ID).Update("status", models.OrderPaid).Error)

	sweeper := services.NewSweeper()
	n, err := sweeper.Sweep()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, models.OrderCancelled, orderStatus(t, expired.ID).Status)
	assert.Equal(t, models.OrderAwaitingPayment, orderStatus(t, live.ID).Status)
	assert.Equal(t, models.OrderPaid, orderStatus(t, paid.ID).Status)

	// Sweeping again finds nothing — cancellation is not re-applied.
	n, err = sweeper.Sweep()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
