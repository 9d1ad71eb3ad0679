package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cobia/billing/internal/models"
	"github.com/cobia/billing/pkg/apperror"
)

const orderIDPrefix = "COBIA-"

// Ledger tracks payment intents between initiation and confirmation.
type Ledger struct {
	window time.Duration
	now    func() time.Time
}

func NewLedger(now func() time.Time) *Ledger {
	return &Ledger{window: models.PendingPaymentWindow, now: now}
}

// NewOrderID returns "COBIA-" followed by 8 uppercase hex characters.
func NewOrderID() string {
	return orderIDPrefix + strings.ToUpper(uuid.NewString()[:8])
}

func (l *Ledger) CreateIntent(ctx context.Context, store models.Store, userID int64, orderID string, amount int64) (*models.PendingPayment, error) {
	now := l.now()
	intent := &models.PendingPayment{
		UserID:    userID,
		OrderID:   orderID,
		Amount:    amount,
		CreatedAt: now,
		ExpiresAt: now.Add(l.window),
	}
	if err := store.PendingPayments().Create(ctx, intent); err != nil {
		return nil, err
	}
	return intent, nil
}

// FindByOrderAndUser only matches intents created by userID, so nobody but
// the initiator can confirm a payment.
func (l *Ledger) FindByOrderAndUser(ctx context.Context, store models.Store, orderID string, userID int64) (*models.PendingPayment, error) {
	return store.PendingPayments().FindByOrderAndUser(ctx, orderID, userID)
}

func (l *Ledger) Delete(ctx context.Context, store models.Store, intent *models.PendingPayment) error {
	return store.PendingPayments().Delete(ctx, intent.ID)
}

func (l *Ledger) SweepExpired(ctx context.Context, store models.Store) (int64, error) {
	n, err := store.PendingPayments().DeleteExpired(ctx, l.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep pending payments: %w", err)
	}
	return n, nil
}

// InitiatePayment creates an intent priced for tier.
func (b *Billing) InitiatePayment(ctx context.Context, user *models.User, tier models.Tier) (*models.PendingPayment, error) {
	price, ok := tier.Price()
	if !ok {
		return nil, apperror.Validation(apperror.CodeInvalidTier, "Invalid subscription tier")
	}

	// A collision on 32 random bits is unlikely but possible, so retry once.
	for attempt := 0; ; attempt++ {
		intent, err := b.ledger.CreateIntent(ctx, b.store, user.ID, NewOrderID(), price)
		if err == nil {
			b.logger.Info("Payment initiated", "order_id", intent.OrderID, "user_id", user.ID, "tier", tier, "amount", price)
			return intent, nil
		}
		if !errors.Is(err, models.ErrDuplicate) || attempt > 0 {
			return nil, fmt.Errorf("failed to create payment intent: %w", err)
		}
	}
}
