package services_test

import (
	"testing"
	"time"

	"github.com/mazeltote/mazeltote/app/models"
	"github.com/mazeltote/mazeltote/config"
	"github.com/mazeltote/mazeltote/pkg/database"
	"github.com/stretchr/testify/require"
)

// setupDB opens a fresh in-memory database with the full schema. The cache
// stays disconnected, so repository reads hit the database directly.
func setupDB(t *testing.T) {
	t.Helper()

	// A named shared in-memory database: every pooled connection sees the
	// same data, and each test gets a clean slate.
	config.Set("DB_DRIVER", "sqlite")
	config.Set("DB_DSN", "file:"+t.Name()+"?mode=memory&cache=shared")

	require.NoError(t, database.Connect())
	require.NoError(t, database.DB.AutoMigrate(
		&models.User{}, &models.Product{},
		&models.Order{}, &models.OrderItem{},
	))
}

func seedUser(t *testing.T, email, role string) models.User {
	t.Helper()
	user := models.User{Name: "Test User", Email: email, Password: "x", Role: role}
	require.NoError(t, database.DB.Create(&user).Error)
	return user
}

func seedProduct(t *testing.T, slug string, price float64, stock int) models.Product {
	t.Helper()
	product := models.Product{
		Name:     "Tote " + slug,
		Slug:     slug,
		Price:    price,
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, database.DB.Create(&product).Error)
	return product
}

func seedAwaitingOrder(t *testing.T, userID uint, product models.Product, qty int, expiresAt time.Time) models.Order {
	t.Helper()
	order := models.Order{
		UserID: userID,
		Items: []models.OrderItem{{
			ProductID:       product.ID,
			Name:            product.Name,
			PriceAtPurchase: product.Price,
			Quantity:        qty,
		}},
		CharityTrust:  models.Charities[0],
		TotalAmount:   product.Price * float64(qty),
		Status:        models.OrderAwaitingPayment,
		PaymentStatus: models.PaymentPending,
		ExpiresAt:     expiresAt,
	}
	require.NoError(t, database.DB.Create(&order).Error)
	return order
}
