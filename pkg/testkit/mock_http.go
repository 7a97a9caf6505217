// Package testkit holds test doubles shared across the test suites. The
// main piece is MockTransport: it stands in for the payment gateway by
// intercepting the shared HTTP client, so gateway behaviour is scripted
// per-test without a network.
package testkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Route pairs a method + URL prefix with a scripted response.
type Route struct {
	Method string // empty matches any method
	Prefix string // matched against the full request URL
	Status int
	Body   interface{} // marshalled to JSON; strings/[]byte pass through

	// Handler, when set, takes precedence over Status/Body and may inspect
	// the request.
	Handler func(req *http.Request) (*http.Response, error)

	calls int
}

// MockTransport implements http.RoundTripper over a fixed route table.
//
// Install it on the shared client before the test:
//
//	mt := testkit.NewMockTransport(routes...)
//	http.DefaultClient.Transport = mt
//	defer http.ResetTransport()
type MockTransport struct {
	mu     sync.Mutex
	routes []*Route
}

func NewMockTransport(routes ...*Route) *MockTransport {
	return &MockTransport{routes: routes}
}

// RoundTrip matches the request against the route table in order and
// returns the first scripted response. Unmatched requests fail loudly so a
// test can never silently hit the network.
func (mt *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	for _, route := range mt.routes {
		if route.Method != "" && route.Method != req.Method {
			continue
		}
		if !strings.HasPrefix(req.URL.String(), route.Prefix) {
			continue
		}

		route.calls++
		if route.Handler != nil {
			return route.Handler(req)
		}
		return JSONResponse(req, route.Status, route.Body)
	}

	return nil, fmt.Errorf("testkit: unexpected outgoing HTTP call %s %s", req.Method, req.URL)
}

// Calls reports how many requests matched the route at index i.
func (mt *MockTransport) Calls(i int) int {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.routes[i].calls
}

// JSONResponse builds a synthetic *http.Response with a JSON body.
func JSONResponse(req *http.Request, status int, body interface{}) (*http.Response, error) {
	if status == 0 {
		status = http.StatusOK
	}

	var raw []byte
	switch v := body.(type) {
	case nil:
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("testkit: marshal mock body: %w", err)
		}
		raw = b
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(raw)),
		Request:    req,
	}, nil
}
