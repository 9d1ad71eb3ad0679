package models

import "context"

type BillingI interface {
	// Start runs the expiry sweeper until ctx is cancelled or Stop is called.
	Start(ctx context.Context)
	Stop()

	// InitiatePayment records a card payment intent for a paid tier.
	InitiatePayment(ctx context.Context, user *User, tier Tier) (*PendingPayment, error)

	// ConfirmPayment confirms a card payment with the gateway and activates
	// the purchased tier.
	ConfirmPayment(ctx context.Context, user *User, req ConfirmPaymentRequest) (*Payment, error)

	// ConfirmBTCPayment records an asserted BTC transaction and activates
	// the tier its amount buys.
	ConfirmBTCPayment(ctx context.Context, caller *User, req BTCConfirmRequest) (*BTCTransaction, *Subscription, error)

	ActivateSubscription(ctx context.Context, userID int64, tier Tier) (*Subscription, error)
	SubscriptionStatus(ctx context.Context, userID int64) (*SubscriptionStatus, error)
	// BTCStatus returns the latest BTC transaction of the user, or nil.
	BTCStatus(ctx context.Context, userID int64) (*BTCTransaction, *SubscriptionStatus, error)

	ListPayments(ctx context.Context, filter PaymentFilter) ([]*AdminPayment, int64, error)
	ListSubscriptions(ctx context.Context, page Page) ([]*AdminSubscription, int64, error)

	GetUser(ctx context.Context, id int64) (*User, error)
	LinkTelegram(ctx context.Context, userID int64, chatID string) error

	// Sweep removes expired intents and deactivates expired subscriptions.
	Sweep(ctx context.Context) error
}

type ConfirmPaymentRequest struct {
	PaymentKey string
	OrderID    string
	Amount     int64
}

type BTCConfirmRequest struct {
	TxHash string
	Amount string
	UserID int64
}
