package models

import "time"

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page is a limit/offset window over an admin listing.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the window to the allowed range.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type PaymentFilter struct {
	Page
	// Email matches case-insensitively as a substring.
	Email string
}

// AdminPayment is a payment row joined with its owner's email.
type AdminPayment struct {
	ID         int64         `json:"id"`
	Email      string        `json:"email"`
	OrderID    string        `json:"order_id"`
	Amount     int64         `json:"amount"`
	Method     string        `json:"method"`
	Status     PaymentStatus `json:"status"`
	ApprovedAt time.Time     `json:"approved_at"`
}

// AdminSubscription is a subscription row joined with its owner's email.
type AdminSubscription struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Tier      Tier       `json:"tier"`
	IsActive  bool       `json:"is_active"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
