package models

import (
	"context"
	"time"
)

// Store groups the per-entity repositories. Transaction runs fn against a
// Store bound to one database transaction and commits only if fn returns nil.
type Store interface {
	Users() UserRepository
	PendingPayments() PendingPaymentRepository
	Payments() PaymentRepository
	Subscriptions() SubscriptionRepository
	BTCTransactions() BTCTransactionRepository
	Locks() LockRepository

	Transaction(ctx context.Context, fn func(tx Store) error) error
	Close() error
}

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	// GetByIDForUpdate locks the user row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateTier(ctx context.Context, id int64, tier Tier) error
	SetTelegramChatID(ctx context.Context, id int64, chatID string) error
}

type PendingPaymentRepository interface {
	Create(ctx context.Context, p *PendingPayment) error
	FindByOrderAndUser(ctx context.Context, orderID string, userID int64) (*PendingPayment, error)
	Delete(ctx context.Context, id int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	ExistsByOrderID(ctx context.Context, orderID string) (bool, error)
	List(ctx context.Context, filter PaymentFilter) ([]*AdminPayment, int64, error)
}

type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*Subscription, error)
	Save(ctx context.Context, s *Subscription) error
	List(ctx context.Context, page Page) ([]*AdminSubscription, int64, error)
	// ExpiredUserIDs returns the owners of active subscriptions whose end
	// date has passed. Nothing is locked or changed.
	ExpiredUserIDs(ctx context.Context, now time.Time) ([]int64, error)
	// ExpireDue deactivates the subscriptions of userIDs that are still
	// active and past their end date at now, and returns the owners that
	// were actually deactivated.
	ExpireDue(ctx context.Context, userIDs []int64, now time.Time) ([]int64, error)
}

type BTCTransactionRepository interface {
	Create(ctx context.Context, tx *BTCTransaction) error
	LatestByUserID(ctx context.Context, userID int64) (*BTCTransaction, error)
}
