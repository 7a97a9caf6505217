package controllers

import (
	"net/http"

	"github.com/mazeltote/mazeltote/app/models"
	"github.com/mazeltote/mazeltote/app/repositories"
	"github.com/mazeltote/mazeltote/app/services"
	"github.com/mazeltote/mazeltote/pkg/bind"
	"github.com/mazeltote/mazeltote/pkg/logger"
	"github.com/mazeltote/mazeltote/pkg/response"
	"github.com/mazeltote/mazeltote/pkg/validate"
)

type OrderController struct {
	orders     *services.OrderService
	repository *repositories.OrderRepository
}

func NewOrderController() *OrderController {
	return &OrderController{
		orders:     services.NewOrderService(),
		repository: repositories.NewOrderRepository(),
	}
}

// Store handles POST /api/orders — checkout.
func (c *OrderController) Store(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(r)
	if !ok {
		response.Unauthorized(w)
		return
	}

	var in services.OrderInput
	if errs, err := bind.JSON(r, &in); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	// Shipping is a nested struct, validated on its own.
	if errs := validate.Struct(&in.Shipping); validate.HasErrors(errs) {
		response.ValidationError(w, errs)
		return
	}

	order, err := c.orders.CreateOrder(userID, in)
	if err != nil {
		serviceError(w, err)
		return
	}

	logger.WithCtx(r.Context()).Info("orders: created",
		"order_id", order.ID, "user_id", userID, "total", order.TotalAmount)
	response.Created(w, order)
}

// Index handles GET /api/orders — the caller's order history.
func (c *OrderController) Index(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(r)
	if !ok {
		response.Unauthorized(w)
		return
	}

	page, perPage := pageParams(r)
	orders, pagination, err := c.repository.ListByUser(userID, page, perPage)
	if err != nil {
		serviceError(w, err)
		return
	}
	response.Paginated(w, orders, pagination)
}

// Show handles GET /api/orders/{id}.
func (c *OrderController) Show(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := currentUser(r)
	if !ok {
		response.Unauthorized(w)
		return
	}
	id, ok := uintParam(r, "id")
	if !ok {
		response.NotFound(w)
		return
	}

	order, err := c.orders.Get(id, userID, isAdmin)
	if err != nil {
		serviceError(w, err)
		return
	}
	response.Success(w, order)
}

// ─── Back office ──────────────────────────────────────────────────────────────

// AdminIndex handles GET /api/admin/orders with optional ?status= filter.
func (c *OrderController) AdminIndex(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r)
	status := models.OrderStatus(r.URL.Query().Get("status"))

	orders, pagination, err := c.repository.ListAll(status, page, perPage)
	if err != nil {
		serviceError(w, err)
		return
	}
	response.Paginated(w, orders, pagination)
}

// Ship handles POST /api/admin/orders/{id}/ship.
func (c *OrderController) Ship(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(r, "id")
	if !ok {
		response.NotFound(w)
		return
	}

	order, err := c.orders.MarkShipped(id)
	if err != nil {
		serviceError(w, err)
		return
	}
	response.Success(w, order)
}

// Deliver handles POST /api/admin/orders/{id}/deliver.
func (c *OrderController) Deliver(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(r, "id")
	if !ok {
		response.NotFound(w)
		return
	}

	order, err := c.orders.MarkDelivered(id)
	if err != nil {
		serviceError(w, err)
		return
	}
	response.Success(w, order)
}
