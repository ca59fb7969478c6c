package esewa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Client talks to the eSewa ePay v2 transaction status API.
type Client struct {
	httpClient  *http.Client
	statusURL   string
	productCode string
}

// NewClient creates a status client. A non-positive timeout falls back to 15 seconds.
func NewClient(statusURL, productCode string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		statusURL:   statusURL,
		productCode: productCode,
	}
}

// CheckStatus asks eSewa for the state of the transaction identified by transactionUUID.
func (c *Client) CheckStatus(ctx context.Context, transactionUUID string, totalAmount decimal.Decimal) (*StatusResponse, error) {
	endpoint, err := url.Parse(c.statusURL)
	if err != nil {
		return nil, fmt.Errorf("esewa: invalid status url: %w", err)
	}
	q := endpoint.Query()
	q.Set("product_code", c.productCode)
	q.Set("total_amount", totalAmount.String())
	q.Set("transaction_uuid", transactionUUID)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("esewa: failed to create status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("esewa: failed to perform status request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("esewa: unexpected status code on status check: %d, body: %s", resp.StatusCode, string(body))
	}

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("esewa: failed to decode status response: %w", err)
	}
	return &status, nil
}
