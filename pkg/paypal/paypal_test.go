package paypal_test

import (
	"context"
	"encoding/json"
	"io"
	gohttp "net/http"
	"testing"

	"github.com/mazeltote/mazeltote/pkg/http"
	"github.com/mazeltote/mazeltote/pkg/paypal"
	"github.com/mazeltote/mazeltote/pkg/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = "https://api.sandbox.example"

func tokenRoute() *testkit.Route {
	return &testkit.Route{
		Method: "POST", Prefix: base + "/v1/oauth2/token",
		Body: map[string]interface{}{"access_token": "tok-1", "expires_in": 3600},
	}
}

func newClient() *paypal.Client {
	return paypal.NewWithCredentials(base, "client-id", "secret", "wh-id")
}

func TestAccessTokenIsCached(t *testing.T) {
	mt := testkit.NewMockTransport(tokenRoute())
	http.DefaultClient.Transport = mt
	defer http.ResetTransport()

	c := newClient()

	tok, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	_, err = c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, mt.Calls(0), "second call must reuse the cached token")
}

func TestAccessTokenRequiresCredentials(t *testing.T) {
	c := paypal.NewWithCredentials(base, "", "", "")
	_, err := c.AccessToken(context.Background())
	assert.ErrorIs(t, err, paypal.ErrNoCredentials)
}

func TestCreateOrderSendsAmountAndLocalOrderID(t *testing.T) {
	var sent map[string]interface{}

	mt := testkit.NewMockTransport(
		tokenRoute(),
		&testkit.Route{
			Method: "POST", Prefix: base + "/v2/checkout/orders",
			Handler: func(req *gohttp.Request) (*gohttp.Response, error) {
				raw, _ := io.ReadAll(req.Body)
				_ = json.Unmarshal(raw, &sent)
				return testkit.JSONResponse(req, 201, map[string]string{
					"id": "GW-1", "status": "CREATED",
				})
			},
		},
	)
	http.DefaultClient.Transport = mt
	defer http.ResetTransport()

	remote, err := newClient().CreateOrder(context.Background(), 998, "INR", "41", "41")
	require.NoError(t, err)
	assert.Equal(t, "GW-1", remote.ID)
	assert.True(t, paypal.IsOpen(remote.Status))

	units := sent["purchase_units"].([]interface{})
	unit := units[0].(map[string]interface{})
	assert.Equal(t, "41", unit["reference_id"])
	assert.Equal(t, "41", unit["custom_id"])

	amount := unit["amount"].(map[string]interface{})
	assert.Equal(t, "998.00", amount["value"])
	assert.Equal(t, "INR", amount["currency_code"])
}

func TestCaptureOrderExtractsCaptureID(t *testing.T) {
	mt := testkit.NewMockTransport(
		tokenRoute(),
		&testkit.Route{
			Method: "POST", Prefix: base + "/v2/checkout/orders/GW-1/capture",
			Body: map[string]interface{}{
				"id": "GW-1", "status": "COMPLETED",
				"purchase_units": []map[string]interface{}{{
					"payments": map[string]interface{}{
						"captures": []map[string]string{{"id": "CAP-1", "status": "COMPLETED"}},
					},
				}},
			},
		},
	)
	http.DefaultClient.Transport = mt
	defer http.ResetTransport()

	result, err := newClient().CaptureOrder(context.Background(), "GW-1")
	require.NoError(t, err)
	assert.True(t, paypal.IsCompleted(result.Status))
	assert.Equal(t, "CAP-1", result.CaptureID)
}

func TestVerifyWebhookSignature(t *testing.T) {
	headers := gohttp.Header{}
	headers.Set("Paypal-Transmission-Id", "t-id")
	headers.Set("Paypal-Transmission-Sig", "t-sig")

	t.Run("fails closed without a webhook id", func(t *testing.T) {
		c := paypal.NewWithCredentials(base, "client-id", "secret", "")
		ok, err := c.VerifyWebhookSignature(context.Background(), headers, []byte(`{}`))
		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("accepts only SUCCESS", func(t *testing.T) {
		var sent map[string]interface{}

		mt := testkit.NewMockTransport(
			tokenRoute(),
			&testkit.Route{
				Method: "POST", Prefix: base + "/v1/notifications/verify-webhook-signature",
				Handler: func(req *gohttp.Request) (*gohttp.Response, error) {
					raw, _ := io.ReadAll(req.Body)
					_ = json.Unmarshal(raw, &sent)
					return testkit.JSONResponse(req, 200, map[string]string{
						"verification_status": "FAILURE",
					})
				},
			},
		)
		http.DefaultClient.Transport = mt
		defer http.ResetTransport()

		ok, err := newClient().VerifyWebhookSignature(context.Background(), headers, []byte(`{"id":"WH-1"}`))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, "wh-id", sent["webhook_id"])
		assert.Equal(t, "t-id", sent["transmission_id"])
	})
}
