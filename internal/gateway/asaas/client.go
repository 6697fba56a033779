// internal/gateway/asaas/client.go
package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	xerrors "babylon-billing-service/internal/pkg/errors"
)

// Client is a thin wrapper around the Asaas REST API. The API key is sent
// as the access_token header on every call.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateCustomer registers a customer in the gateway.
// POST /customers
func (c *Client) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	var customer Customer
	if err := c.doJSON(ctx, http.MethodPost, "/customers", req, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CreateSubscription creates a recurring charge for a customer.
// POST /subscriptions
func (c *Client) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error) {
	var sub Subscription
	if err := c.doJSON(ctx, http.MethodPost, "/subscriptions", req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubscriptionPayments lists the payments the gateway generated for a
// subscription. The first payment shows up asynchronously after creation.
// GET /subscriptions/{id}/payments
func (c *Client) ListSubscriptionPayments(ctx context.Context, subscriptionID string) ([]Payment, error) {
	var list paymentListResponse
	path := fmt.Sprintf("/subscriptions/%s/payments", url.PathEscape(subscriptionID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

// GetPayment retrieves a single payment by id.
// GET /payments/{id}
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	path := fmt.Sprintf("/payments/%s", url.PathEscape(paymentID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPixQRCode retrieves the PIX copy-and-paste payload and QR image for a
// payment.
// GET /payments/{id}/pixQrCode
func (c *Client) GetPixQRCode(ctx context.Context, paymentID string) (*PixQRCode, error) {
	var qr PixQRCode
	path := fmt.Sprintf("/payments/%s/pixQrCode", url.PathEscape(paymentID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &qr); err != nil {
		return nil, err
	}
	return &qr, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.gatewayError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode gateway response: %w", err)
		}
	}

	return nil
}

// gatewayError surfaces the provider's first structured error description
// when present, otherwise a generic message.
func (c *Client) gatewayError(resp *http.Response) error {
	message := fmt.Sprintf("unexpected status %d from payment gateway", resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil && len(raw) > 0 {
		var parsed errorResponse
		if json.Unmarshal(raw, &parsed) == nil && len(parsed.Errors) > 0 && parsed.Errors[0].Description != "" {
			message = parsed.Errors[0].Description
		}
	}

	return &xerrors.GatewayError{Status: resp.StatusCode, Message: message}
}
