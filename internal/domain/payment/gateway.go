// internal/domain/payment/gateway.go
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/your-org/jewelry-storefront/internal/config"
)

// Error is the only error type the gateway returns. Provider-specific
// failures are folded into it so they never leak past this package.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(format string, args ...interface{}) *Error {
	return &Error{Code: "payment_error", Message: fmt.Sprintf(format, args...)}
}

// Intent is the gateway's handle for one payment attempt.
type Intent struct {
	ID           string            `json:"id"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Status       string            `json:"status"`
	ClientSecret string            `json:"client_secret"`
	Metadata     map[string]string `json:"metadata"`
}

// Refund is the gateway's record of a refund request.
type Refund struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
}

// Gateway wraps the payment provider's REST API. The base URL is
// configurable so tests can point it at a local server.
type Gateway struct {
	config     *config.Config
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewGateway creates a new payment gateway client
func NewGateway(cfg *config.Config) *Gateway {
	return &Gateway{
		config:    cfg,
		secretKey: cfg.Payment.SecretKey,
		baseURL:   strings.TrimRight(cfg.Payment.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateIntent creates a payment intent for the given amount in minor
// currency units, tagged with the supplied metadata.
func (g *Gateway) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*Intent, error) {
	if amount <= 0 {
		return nil, newError("invalid amount: %d", amount)
	}

	form := url.Values{}
	form.Set("amount", fmt.Sprintf("%d", amount))
	form.Set("currency", currency)
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	body, err := g.apiCall(ctx, http.MethodPost, "/payment_intents", form)
	if err != nil {
		return nil, err
	}

	var intent Intent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, newError("malformed intent response from provider")
	}
	return &intent, nil
}

// Confirm confirms a payment intent synchronously. Used only in test
// configurations where no real payment page collects the card.
func (g *Gateway) Confirm(ctx context.Context, intentID string) (*Intent, error) {
	if intentID == "" {
		return nil, newError("intent ID required")
	}

	body, err := g.apiCall(ctx, http.MethodPost, "/payment_intents/"+intentID+"/confirm", url.Values{})
	if err != nil {
		return nil, err
	}

	var intent Intent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, newError("malformed intent response from provider")
	}
	return &intent, nil
}

// ListIntents returns all intents whose metadata matches every key/value
// pair in the filter.
func (g *Gateway) ListIntents(ctx context.Context, metadataFilter map[string]string) ([]Intent, error) {
	clauses := make([]string, 0, len(metadataFilter))
	for k, v := range metadataFilter {
		clauses = append(clauses, fmt.Sprintf("metadata['%s']:'%s'", k, v))
	}

	form := url.Values{}
	form.Set("query", strings.Join(clauses, " AND "))

	endpoint := "/payment_intents/search?" + form.Encode()
	body, err := g.apiCall(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var list struct {
		Data []Intent `json:"data"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, newError("malformed intent list from provider")
	}
	return list.Data, nil
}

// CreateRefund requests a refund for a payment intent.
func (g *Gateway) CreateRefund(ctx context.Context, intentID, reason string) (*Refund, error) {
	if intentID == "" {
		return nil, newError("intent ID required")
	}

	form := url.Values{}
	form.Set("payment_intent", intentID)
	if reason != "" {
		form.Set("reason", reason)
	}

	body, err := g.apiCall(ctx, http.MethodPost, "/refunds", form)
	if err != nil {
		return nil, err
	}

	var refund Refund
	if err := json.Unmarshal(body, &refund); err != nil {
		return nil, newError("malformed refund response from provider")
	}
	return &refund, nil
}

// apiCall makes one HTTP call to the provider and normalizes every failure
// into *Error.
func (g *Gateway) apiCall(ctx context.Context, method, endpoint string, form url.Values) ([]byte, error) {
	var reqBody io.Reader
	if form != nil && method != http.MethodGet {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, newError("failed to build provider request")
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, newError("payment provider unreachable: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError("failed to read provider response")
	}

	if resp.StatusCode >= 400 {
		// Prefer the provider's own message when it sends one.
		var providerErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &providerErr) == nil && providerErr.Error.Message != "" {
			return nil, newError("payment was declined: %s", providerErr.Error.Message)
		}
		return nil, newError("payment provider returned status %d", resp.StatusCode)
	}

	return body, nil
}
