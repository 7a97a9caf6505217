package controllers

import (
	"net/http"

	"github.com/mazeltote/mazeltote/app/services"
	"github.com/mazeltote/mazeltote/pkg/bind"
	"github.com/mazeltote/mazeltote/pkg/response"
)

type PaymentController struct {
	payments *services.PaymentService
}

func NewPaymentController(payments *services.PaymentService) *PaymentController {
	return &PaymentController{payments: payments}
}

// CreateGatewayOrder handles POST /api/orders/{id}/payment. Retrying is
// safe: an open gateway order is reused instead of charging twice.
func (c *PaymentController) CreateGatewayOrder(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(r)
	if !ok {
		response.Unauthorized(w)
		return
	}
	orderID, ok := uintParam(r, "id")
	if !ok {
		response.NotFound(w)
		return
	}

	remote, err := c.payments.CreateGatewayOrder(r.Context(), userID, orderID)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.Success(w, map[string]string{
		"gateway_order_id": remote.ID,
		"status":           remote.Status,
	})
}

type captureInput struct {
	GatewayOrderID string `json:"gateway_order_id" validate:"required"`
}

// Capture handles POST /api/payments/capture after the buyer approved the
// charge on the gateway side.
func (c *PaymentController) Capture(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(r)
	if !ok {
		response.Unauthorized(w)
		return
	}

	var in captureInput
	if errs, err := bind.JSON(r, &in); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	outcome, err := c.payments.CaptureGatewayOrder(r.Context(), userID, in.GatewayOrderID)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.Success(w, map[string]interface{}{
		"order":        outcome.Order,
		"capture_id":   outcome.CaptureID,
		"already_paid": outcome.AlreadyPaid,
	})
}
