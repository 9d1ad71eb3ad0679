package models

import (
	"context"
	"fmt"
	"time"
)

// GatewayStatusDone is the only gateway status that counts as paid.
const GatewayStatusDone = "DONE"

// GatewayResult is the outcome of a successful confirmation call.
type GatewayResult struct {
	PaymentKey string
	OrderID    string
	Status     string
	Method     string
	ApprovedAt time.Time
}

// GatewayError is a non-2xx answer from the card gateway.
type GatewayError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway returned %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// PaymentGateway confirms card payments with an external provider. A
// transport failure is returned as a plain error, a rejection as *GatewayError.
type PaymentGateway interface {
	Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*GatewayResult, error)
}
