// Package routes maps URLs onto controllers. All mounting happens in
// Register so `mazeltote route:list` can print the whole surface.
package routes

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mazeltote/mazeltote/app/controllers"
	"github.com/mazeltote/mazeltote/app/services"
	"github.com/mazeltote/mazeltote/pkg/metrics"
	"github.com/mazeltote/mazeltote/pkg/middleware"
	"github.com/mazeltote/mazeltote/pkg/reqid"
	"github.com/mazeltote/mazeltote/pkg/response"
	"github.com/mazeltote/mazeltote/pkg/router"
	"github.com/mazeltote/mazeltote/pkg/ws"
)

// Deps carries the shared instances routes need. Controllers that hold no
// state are constructed inline.
type Deps struct {
	Payments *services.PaymentService
	Webhooks *services.WebhookService
	Verifier controllers.Verifier
	OrderHub *ws.Hub
}

// Register mounts the full HTTP surface on r.
func Register(r *router.Router, deps Deps) error {
	authController := controllers.NewAuthController()
	productController := controllers.NewProductController()
	orderController := controllers.NewOrderController()
	paymentController := controllers.NewPaymentController(deps.Payments)
	webhookController := controllers.NewWebhookController(deps.Verifier, deps.Webhooks)
	charityController := controllers.NewCharityController()

	r.Use(reqid.Middleware(), middleware.Recovery, middleware.Logger)
	r.Use(middleware.CORS(middleware.DefaultCORSOptions()))
	r.Use(middleware.RateLimit(200, time.Minute))
	r.Use(metrics.Middleware())

	r.Get("/healthz", "healthz", func(w http.ResponseWriter, _ *http.Request) {
		response.Success(w, map[string]string{"status": "ok"})
	})
	r.Get("/metrics", "metrics", metrics.Handler())

	api := r.Group("/api")

	// Public storefront.
	api.Post("/auth/register", "auth.register", authController.Register)
	api.Post("/auth/login", "auth.login", authController.Login)
	api.Get("/products", "products.index", productController.Index)
	api.Get("/products/hottest", "products.hottest", productController.Hottest)
	api.Get("/products/{slug}", "products.show", productController.Show)
	api.Get("/charities", "charities.index", charityController.Index)

	catalog, err := catalogHandler()
	if err != nil {
		return fmt.Errorf("routes: %w", err)
	}
	api.Post("/graphql", "graphql", catalog)

	// Gateway callbacks authenticate by signature, not by session.
	api.Post("/webhooks/paypal", "webhooks.paypal", webhookController.HandlePayPal)

	// Authenticated storefront.
	authed := api.Group("", middleware.AuthMiddleware)
	authed.Post("/orders", "orders.store", orderController.Store)
	authed.Get("/orders", "orders.index", orderController.Index)
	authed.Get("/orders/{id}", "orders.show", orderController.Show)
	authed.Post("/orders/{id}/payment", "orders.payment", paymentController.CreateGatewayOrder)
	authed.Post("/payments/capture", "payments.capture", paymentController.Capture)

	// Back office.
	admin := api.Group("/admin", middleware.AuthMiddleware, middleware.RequireAdmin)
	admin.Get("/products", "admin.products.index", productController.AdminIndex)
	admin.Post("/products", "admin.products.store", productController.Store)
	admin.Put("/products/{id}", "admin.products.update", productController.Update)
	admin.Delete("/products/{id}", "admin.products.destroy", productController.Destroy)
	admin.Get("/orders", "admin.orders.index", orderController.AdminIndex)
	admin.Post("/orders/{id}/ship", "admin.orders.ship", orderController.Ship)
	admin.Post("/orders/{id}/deliver", "admin.orders.deliver", orderController.Deliver)

	// Live order-event feed for back-office dashboards.
	admin.Get("/orders/feed", "admin.orders.feed", func(w http.ResponseWriter, r *http.Request) {
		ws.Upgrade(w, r, deps.OrderHub)
	})

	return nil
}
