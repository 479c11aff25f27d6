package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shopapi/internal/domain"
)

// Intent is the client-usable payment handle returned by the gateway.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Raw          []byte
}

// Result translates the intent into the normalized status vocabulary.
func (i *Intent) Result() domain.GatewayResult {
	return domain.GatewayResult{
		TransactionID: i.ID,
		Status:        NormalizeStatus(i.Status),
		Raw:           i.Raw,
	}
}

// CreateIntentInput tags the intent with enough metadata to recover order
// context from the gateway's own records even if local state is lost.
type CreateIntentInput struct {
	Amount      float64
	Currency    string
	OrderID     int64
	OrderNumber string
	UserID      int64
	Description string
}

// PaymentGateway is the adapter surface the rest of the system depends on.
// Transport failures are returned as-is for the caller's retry policy;
// malformed responses wrap domain.ErrGatewayProtocol.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, in CreateIntentInput) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
}

// StripeClient talks to the Stripe payment-intents API. It carries its own
// HTTP client so outbound calls time out independently of the inbound
// request, keeping a slow gateway from holding per-order locks.
type StripeClient struct {
	baseURL   string
	secretKey string
	client    *http.Client
	logger    *log.Logger
}

func NewStripe(baseURL, secretKey string, timeout time.Duration, logger *log.Logger) *StripeClient {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &StripeClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

func (c *StripeClient) CreateIntent(ctx context.Context, in CreateIntentInput) (*Intent, error) {
	form := url.Values{}
	// Stripe amounts are integer minor units.
	form.Set("amount", strconv.FormatInt(int64(in.Amount*100+0.5), 10))
	form.Set("currency", strings.ToLower(in.Currency))
	form.Set("metadata[order_id]", strconv.FormatInt(in.OrderID, 10))
	form.Set("metadata[order_number]", in.OrderNumber)
	form.Set("metadata[user_id]", strconv.FormatInt(in.UserID, 10))
	form.Set("automatic_payment_methods[enabled]", "true")
	if in.Description != "" {
		form.Set("description", in.Description)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req)
}

func (c *StripeClient) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payment_intents/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *StripeClient) do(req *http.Request) (*Intent, error) {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
			return nil, fmt.Errorf("%w: status %d", domain.ErrGatewayProtocol, resp.StatusCode)
		}
		return nil, fmt.Errorf("gateway rejected request: %s", apiErr.Error.Message)
	}

	var payload struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
		Status       string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayProtocol, err)
	}
	if payload.ID == "" || payload.Status == "" {
		return nil, fmt.Errorf("%w: missing id or status", domain.ErrGatewayProtocol)
	}

	return &Intent{
		ID:           payload.ID,
		ClientSecret: payload.ClientSecret,
		Status:       payload.Status,
		Raw:          body,
	}, nil
}

// NormalizeStatus maps the gateway's external states into the system's
// payment-status vocabulary.
func NormalizeStatus(s string) domain.GatewayStatus {
	switch s {
	case "succeeded":
		return domain.GatewaySucceeded
	case "processing":
		return domain.GatewayProcessing
	case "requires_action", "requires_confirmation", "requires_payment_method", "requires_capture":
		return domain.GatewayRequiresAction
	default:
		return domain.GatewayFailed
	}
}
