package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

const idempotencyHeader = "Idempotency-Key"

// HTTPGateway talks JSON to the provider's REST API. The provider dedupes
// intent creation on the Idempotency-Key header, which we derive from the
// order number, so a retried create never opens a second authorization.
type HTTPGateway struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
}

func NewHTTPGateway(baseURL, apiKey string, httpClient *http.Client) (*HTTPGateway, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway base url %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPGateway{baseURL: u, apiKey: apiKey, http: httpClient}, nil
}

type createIntentRequest struct {
	Amount   decimal.Decimal   `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (g *HTTPGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currencyCode string, metadata map[string]string) (Intent, error) {
	body, err := json.Marshal(createIntentRequest{
		Amount:   amount,
		Currency: currencyCode,
		Metadata: metadata,
	})
	if err != nil {
		return Intent{}, &GatewayError{Op: "create intent", Err: err}
	}

	req, err := g.newRequest(ctx, http.MethodPost, "/v1/payment_intents", bytes.NewReader(body))
	if err != nil {
		return Intent{}, &GatewayError{Op: "create intent", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if key := metadata["orderNumber"]; key != "" {
		req.Header.Set(idempotencyHeader, key)
	}

	return g.do(req, "create intent")
}

func (g *HTTPGateway) RetrieveIntent(ctx context.Context, intentID string) (Intent, error) {
	req, err := g.newRequest(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(intentID), nil)
	if err != nil {
		return Intent{}, &GatewayError{Op: "retrieve intent", Err: err}
	}
	return g.do(req, "retrieve intent")
}

func (g *HTTPGateway) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	u := g.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	return req, nil
}

func (g *HTTPGateway) do(req *http.Request, op string) (Intent, error) {
	resp, err := g.http.Do(req)
	if err != nil {
		return Intent{}, &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Intent{}, &GatewayError{
			Op:  op,
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet),
		}
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return Intent{}, &GatewayError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return intent, nil
}
