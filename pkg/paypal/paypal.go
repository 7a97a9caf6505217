// Package paypal wraps the PayPal REST checkout API: client-credentials
// token exchange, order create/get/capture, and webhook signature
// verification.
//
// All calls go through the shared pkg/http client, so tests can fake the
// gateway by swapping http.DefaultClient.Transport.
//
//	pp := paypal.New()
//	remote, err := pp.CreateOrder(ctx, 25.00, "USD", "41", "41")
package paypal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	gohttp "net/http"
	"strings"
	"sync"
	"time"

	"github.com/mazeltote/mazeltote/config"
	"github.com/mazeltote/mazeltote/pkg/http"
)

// ErrNoCredentials is returned when PAYPAL_CLIENT_ID / PAYPAL_SECRET are
// not configured. Payment calls cannot proceed without them.
var ErrNoCredentials = fmt.Errorf("paypal: client credentials not configured")

// Gateway-native order/capture statuses. These never leave the service
// layer unmapped; see the status predicates below.
const (
	StatusCreated             = "CREATED"
	StatusSaved               = "SAVED"
	StatusApproved            = "APPROVED"
	StatusPayerActionRequired = "PAYER_ACTION_REQUIRED"
	StatusCompleted           = "COMPLETED"
	StatusDeclined            = "DECLINED"
	StatusVoided              = "VOIDED"
)

// IsOpen reports whether a gateway order in this status can still be
// captured, i.e. it may be reused instead of creating a duplicate charge.
func IsOpen(status string) bool {
	switch status {
	case StatusCreated, StatusSaved, StatusApproved, StatusPayerActionRequired:
		return true
	}
	return false
}

// IsCompleted reports a finalized charge.
func IsCompleted(status string) bool { return status == StatusCompleted }

// IsAlreadyCaptured reports whether a capture call was rejected because the
// gateway order had already been captured, i.e. the charge went through on an
// earlier attempt or via the webhook race. Non-2xx errors carry the upstream
// body, so the gateway's issue code is matched in the message.
func IsAlreadyCaptured(err error) bool {
	return err != nil && strings.Contains(err.Error(), "ORDER_ALREADY_CAPTURED")
}

// Client talks to one PayPal environment. The zero value is not usable;
// construct with New or NewWithCredentials.
type Client struct {
	baseURL   string
	clientID  string
	secret    string
	webhookID string

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// New builds a client from application config.
func New() *Client {
	return NewWithCredentials(
		config.PayPalBaseURL(),
		config.PayPalClientID(),
		config.PayPalSecret(),
		config.PayPalWebhookID(),
	)
}

// NewWithCredentials builds a client with explicit settings (tests).
func NewWithCredentials(baseURL, clientID, secret, webhookID string) *Client {
	return &Client{baseURL: baseURL, clientID: clientID, secret: secret, webhookID: webhookID}
}

// ─── Token ────────────────────────────────────────────────────────────────────

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// AccessToken returns a cached bearer token, refreshing it via the
// client-credentials flow when it is missing or within 60s of expiry.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if c.clientID == "" || c.secret == "" {
		return "", ErrNoCredentials
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.tokenExp) > time.Minute {
		return c.token, nil
	}

	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.secret))

	resp, err := http.Post(c.baseURL+"/v1/oauth2/token").
		Header("Authorization", "Basic "+basic).
		Header("Content-Type", "application/x-www-form-urlencoded").
		Body("grant_type=client_credentials").
		WithContext(ctx).
		Send()
	if err != nil {
		return "", fmt.Errorf("paypal: token request: %w", err)
	}
	if err := resp.Throw(); err != nil {
		return "", fmt.Errorf("paypal: token request: %w", err)
	}

	var tr tokenResponse
	if err := resp.JSON(&tr); err != nil {
		return "", fmt.Errorf("paypal: token decode: %w", err)
	}

	c.token = tr.AccessToken
	c.tokenExp = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return c.token, nil
}

// ─── Orders ───────────────────────────────────────────────────────────────────

// RemoteOrder is the subset of PayPal's order representation the app uses.
type RemoteOrder struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units,omitempty"`
}

// PurchaseUnit is one charge line of a gateway order.
type PurchaseUnit struct {
	ReferenceID string    `json:"reference_id,omitempty"`
	CustomID    string    `json:"custom_id,omitempty"`
	Amount      *Amount   `json:"amount,omitempty"`
	Payments    *Payments `json:"payments,omitempty"`
}

// Amount is a money value in PayPal's string representation.
type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// Payments holds the captures recorded against a purchase unit.
type Payments struct {
	Captures []Capture `json:"captures,omitempty"`
}

// Capture is a single finalized charge.
type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CaptureResult summarises a capture call.
type CaptureResult struct {
	OrderID   string
	Status    string // order-level status
	CaptureID string
	Raw       json.RawMessage
}

// CreateOrder opens a gateway order for a single charge of amount in the
// given currency. referenceID and customID both carry the local order id so
// the webhook path can resolve it.
func (c *Client) CreateOrder(ctx context.Context, amt float64, currency, referenceID, customID string) (*RemoteOrder, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"reference_id": referenceID,
			"custom_id":    customID,
			"amount": map[string]string{
				"currency_code": currency,
				"value":         fmt.Sprintf("%.2f", amt),
			},
		}},
	}

	resp, err := http.Post(c.baseURL+"/v2/checkout/orders").
		Bearer(token).
		Body(body).
		WithContext(ctx).
		Send()
	if err != nil {
		return nil, fmt.Errorf("paypal: create order: %w", err)
	}
	if err := resp.Throw(); err != nil {
		return nil, fmt.Errorf("paypal: create order: %w", err)
	}

	var ro RemoteOrder
	if err := resp.JSON(&ro); err != nil {
		return nil, fmt.Errorf("paypal: create order decode: %w", err)
	}
	return &ro, nil
}

// GetOrder fetches the current gateway-side state of an order.
func (c *Client) GetOrder(ctx context.Context, id string) (*RemoteOrder, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := http.Get(c.baseURL+"/v2/checkout/orders/"+id).
		Bearer(token).
		WithContext(ctx).
		Send()
	if err != nil {
		return nil, fmt.Errorf("paypal: get order %s: %w", id, err)
	}
	if err := resp.Throw(); err != nil {
		return nil, fmt.Errorf("paypal: get order %s: %w", id, err)
	}

	var ro RemoteOrder
	if err := resp.JSON(&ro); err != nil {
		return nil, fmt.Errorf("paypal: get order decode: %w", err)
	}
	return &ro, nil
}

// CaptureOrder finalizes an approved gateway order into a completed charge.
func (c *Client) CaptureOrder(ctx context.Context, id string) (*CaptureResult, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(c.baseURL+"/v2/checkout/orders/"+id+"/capture").
		Bearer(token).
		WithContext(ctx).
		Send()
	if err != nil {
		return nil, fmt.Errorf("paypal: capture order %s: %w", id, err)
	}
	if err := resp.Throw(); err != nil {
		return nil, fmt.Errorf("paypal: capture order %s: %w", id, err)
	}

	var ro RemoteOrder
	if err := resp.JSON(&ro); err != nil {
		return nil, fmt.Errorf("paypal: capture decode: %w", err)
	}

	result := &CaptureResult{OrderID: ro.ID, Status: ro.Status, Raw: resp.Raw}
	if len(ro.PurchaseUnits) > 0 && ro.PurchaseUnits[0].Payments != nil {
		caps := ro.PurchaseUnits[0].Payments.Captures
		if len(caps) > 0 {
			result.CaptureID = caps[0].ID
		}
	}
	return result, nil
}

// CaptureID extracts the first capture id from a fetched order, if any.
func (ro *RemoteOrder) CaptureID() string {
	if len(ro.PurchaseUnits) > 0 && ro.PurchaseUnits[0].Payments != nil {
		caps := ro.PurchaseUnits[0].Payments.Captures
		if len(caps) > 0 {
			return caps[0].ID
		}
	}
	return ""
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

// WebhookEvent is the envelope PayPal posts to the webhook endpoint.
type WebhookEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

// CaptureResource is the resource payload of a PAYMENT.CAPTURE.* event.
// For PAYMENT.CAPTURE.COMPLETED, supplementary_data.related_ids.order_id
// carries the gateway order id; custom_id carries the local order id we set
// at order creation.
type CaptureResource struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	CustomID          string `json:"custom_id"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

type verifyRequest struct {
	TransmissionID   string          `json:"transmission_id"`
	TransmissionTime string          `json:"transmission_time"`
	TransmissionSig  string          `json:"transmission_sig"`
	CertURL          string          `json:"cert_url"`
	AuthAlgo         string          `json:"auth_algo"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// VerifyWebhookSignature delegates signature verification to PayPal's own
// verification endpoint. It fails closed: a missing PAYPAL_WEBHOOK_ID means
// every delivery is rejected.
func (c *Client) VerifyWebhookSignature(ctx context.Context, headers gohttp.Header, body []byte) (bool, error) {
	if c.webhookID == "" {
		return false, fmt.Errorf("paypal: PAYPAL_WEBHOOK_ID not configured")
	}

	token, err := c.AccessToken(ctx)
	if err != nil {
		return false, err
	}

	req := verifyRequest{
		TransmissionID:   headers.Get("Paypal-Transmission-Id"),
		TransmissionTime: headers.Get("Paypal-Transmission-Time"),
		TransmissionSig:  headers.Get("Paypal-Transmission-Sig"),
		CertURL:          headers.Get("Paypal-Cert-Url"),
		AuthAlgo:         headers.Get("Paypal-Auth-Algo"),
		WebhookID:        c.webhookID,
		WebhookEvent:     body,
	}

	resp, err := http.Post(c.baseURL+"/v1/notifications/verify-webhook-signature").
		Bearer(token).
		Body(req).
		WithContext(ctx).
		Send()
	if err != nil {
		return false, fmt.Errorf("paypal: verify webhook: %w", err)
	}
	if err := resp.Throw(); err != nil {
		return false, fmt.Errorf("paypal: verify webhook: %w", err)
	}

	var vr verifyResponse
	if err := resp.JSON(&vr); err != nil {
		return false, fmt.Errorf("paypal: verify decode: %w", err)
	}
	return vr.VerificationStatus == "SUCCESS", nil
}
