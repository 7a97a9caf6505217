package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/mazeltote/mazeltote/app/services"
	"github.com/mazeltote/mazeltote/pkg/logger"
	"github.com/mazeltote/mazeltote/pkg/metrics"
	"github.com/mazeltote/mazeltote/pkg/paypal"
	"github.com/mazeltote/mazeltote/pkg/response"
)

// maxWebhookBody caps gateway deliveries; real events are a few KB.
const maxWebhookBody = 1 << 20

// Verifier checks a webhook delivery's signature. *paypal.Client satisfies
// it; tests substitute a fake.
type Verifier interface {
	VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) (bool, error)
}

type WebhookController struct {
	verifier Verifier
	webhooks *services.WebhookService
}

func NewWebhookController(verifier Verifier, webhooks *services.WebhookService) *WebhookController {
	return &WebhookController{verifier: verifier, webhooks: webhooks}
}

// HandlePayPal handles POST /api/webhooks/paypal.
//
// Unverifiable deliveries get a 400 so a misconfigured webhook is visible
// at the gateway. Verified deliveries always get a 2xx — even when the
// event resolves to nothing — because a non-2xx only makes PayPal resend
// an event we have already decided about.
func (c *WebhookController) HandlePayPal(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "unreadable body")
		return
	}

	verified, err := c.verifier.VerifyWebhookSignature(r.Context(), r.Header, body)
	if err != nil {
		// Verification itself failed (missing webhook id, gateway unreachable).
		// A 503 keeps the gateway retrying instead of dropping the event.
		logger.WithCtx(r.Context()).Error("webhook: verification unavailable", "error", err)
		metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		response.Error(w, http.StatusServiceUnavailable, "verification unavailable")
		return
	}
	if !verified {
		logger.WithCtx(r.Context()).Warn("webhook: signature rejected")
		metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		response.Error(w, http.StatusBadRequest, "signature verification failed")
		return
	}

	var ev paypal.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		response.Error(w, http.StatusBadRequest, "malformed event")
		return
	}

	result, err := c.webhooks.Reconcile(r.Context(), &ev)
	if err != nil {
		// Processing failed on our side; a 500 makes the gateway retry.
		logger.WithCtx(r.Context()).Error("webhook: reconcile failed",
			"event_id", ev.ID, "error", err)
		response.Error(w, http.StatusInternalServerError, "reconcile failed")
		return
	}

	response.Success(w, map[string]string{"result": result})
}
