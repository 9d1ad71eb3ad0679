// Package gateway confirms card payments with the Toss Payments API.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cobia/billing/internal/models"
	"github.com/cobia/billing/pkg/logger"
)

const (
	DefaultBaseURL = "https://api.tosspayments.com"
	DefaultTimeout = 15 * time.Second

	confirmPath = "/v1/payments/confirm"
)

// TossClient is stateless apart from its credentials. It never retries.
type TossClient struct {
	logger     *logger.Logger
	httpClient *http.Client
	baseURL    string
	authHeader string
}

func NewTossClient(baseURL, secretKey string, timeout time.Duration, logger *logger.Logger) *TossClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TossClient{
		logger:     logger,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(secretKey+":")),
	}
}

type confirmRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

type confirmResponse struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	Method     string `json:"method"`
	ApprovedAt string `json:"approvedAt"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Confirm asks the gateway to capture the payment. A non-2xx answer is
// returned as *models.GatewayError, anything else that fails is a transport error.
func (c *TossClient) Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*models.GatewayResult, error) {
	body, err := json.Marshal(confirmRequest{PaymentKey: paymentKey, OrderID: orderID, Amount: amount})
	if err != nil {
		return nil, fmt.Errorf("toss: failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+confirmPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("toss: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("toss: failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("toss: failed to read response: %w", err)
	}
	c.logger.Debug("Gateway confirm answered", "order_id", orderID, "status_code", resp.StatusCode, "elapsed", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gwErr := &models.GatewayError{StatusCode: resp.StatusCode}
		var body errorResponse
		if json.Unmarshal(raw, &body) == nil {
			gwErr.Code = body.Code
			gwErr.Message = body.Message
		}
		if gwErr.Message == "" {
			gwErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, gwErr
	}

	var out confirmResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("toss: failed to decode response: %w", err)
	}

	result := &models.GatewayResult{
		PaymentKey: out.PaymentKey,
		OrderID:    out.OrderID,
		Status:     out.Status,
		Method:     out.Method,
	}
	if out.ApprovedAt != "" {
		approvedAt, err := time.Parse(time.RFC3339, out.ApprovedAt)
		if err != nil {
			// The charge went through; the caller stamps its own time.
			c.logger.Warn("Gateway returned unparsable approvedAt", "order_id", orderID, "approved_at", out.ApprovedAt, "error", err)
		} else {
			result.ApprovedAt = approvedAt
		}
	}
	return result, nil
}
