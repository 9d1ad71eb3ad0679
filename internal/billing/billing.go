package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cobia/billing/internal/btc"
	"github.com/cobia/billing/internal/models"
	"github.com/cobia/billing/pkg/apperror"
	"github.com/cobia/billing/pkg/logger"
)

const (
	DefaultSweepInterval = 5 * time.Minute

	sweeperLockName = "expiry_sweeper"
)

type Options struct {
	Renewal       RenewalPolicy
	SweepInterval time.Duration
	// InstanceID identifies this process in app_locks. Random when empty.
	InstanceID string
}

var _ models.BillingI = (*Billing)(nil)

// Billing is the payment and subscription service. It owns the pending
// payment ledger, the subscription manager and both confirmation flows.
type Billing struct {
	logger *logger.Logger

	store       models.Store
	gateway     models.PaymentGateway
	btc         *btc.Adapter
	notificator models.NotificationService

	ledger        *Ledger
	subscriptions *SubscriptionManager

	sweepInterval time.Duration
	instanceID    string
	now           func() time.Time

	cancel        context.CancelFunc
	wg            sync.WaitGroup
	notifications sync.WaitGroup
}

func New(
	store models.Store,
	gateway models.PaymentGateway,
	notificator models.NotificationService,
	logger *logger.Logger,
	opts Options,
) *Billing {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Renewal == "" {
		opts.Renewal = RenewalExtend
	}
	if opts.InstanceID == "" {
		opts.InstanceID = uuid.NewString()
	}

	b := &Billing{
		logger:        logger,
		store:         store,
		gateway:       gateway,
		btc:           btc.NewAdapter(),
		notificator:   notificator,
		sweepInterval: opts.SweepInterval,
		instanceID:    opts.InstanceID,
		now:           time.Now,
	}
	clock := func() time.Time { return b.now() }
	b.ledger = NewLedger(clock)
	b.subscriptions = NewSubscriptionManager(opts.Renewal, clock)
	return b
}

// Start runs the expiry sweeper in the background.
func (b *Billing) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.sweepInterval)
		defer ticker.Stop()

		b.logger.Info("Expiry sweeper started", "interval", b.sweepInterval, "instance_id", b.instanceID)
		for {
			select {
			case <-ctx.Done():
				releaseCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				if err := b.store.Locks().Release(releaseCtx, sweeperLockName, b.instanceID); err != nil {
					b.logger.Warn("Failed to release sweeper lock", "error", err)
				}
				done()
				return
			case <-ticker.C:
				if err := b.Sweep(ctx); err != nil {
					b.logger.Error("Expiry sweep failed", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the sweeper and waits for it and for any notification still
// being delivered.
func (b *Billing) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	b.notifications.Wait()
}

// Sweep deletes expired intents and deactivates lapsed subscriptions. Only
// the instance holding the sweeper lock does any work.
func (b *Billing) Sweep(ctx context.Context) error {
	acquired, err := b.store.Locks().Acquire(ctx, sweeperLockName, b.instanceID, 2*b.sweepInterval)
	if err != nil {
		return fmt.Errorf("failed to acquire sweeper lock: %w", err)
	}
	if !acquired {
		b.logger.Debug("Sweeper lock held by another instance")
		return nil
	}

	removed, err := b.ledger.SweepExpired(ctx, b.store)
	if err != nil {
		return err
	}

	var expired []int64
	err = b.store.Transaction(ctx, func(tx models.Store) error {
		var err error
		expired, err = b.subscriptions.ExpireDue(ctx, tx)
		return err
	})
	if err != nil {
		return err
	}

	if removed > 0 || len(expired) > 0 {
		b.logger.Info("Expiry sweep finished", "expired_intents", removed, "expired_subscriptions", len(expired))
	}
	return nil
}

func (b *Billing) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := b.store.Users().GetByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperror.NotFound(apperror.CodeUserNotFound, "User not found")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// LinkTelegram stores the chat that receives the user's receipts.
func (b *Billing) LinkTelegram(ctx context.Context, userID int64, chatID string) error {
	err := b.store.Users().SetTelegramChatID(ctx, userID, chatID)
	if errors.Is(err, models.ErrNotFound) {
		return apperror.NotFound(apperror.CodeUserNotFound, "User not found")
	}
	if err != nil {
		return err
	}
	b.logger.Info("Telegram chat linked", "user_id", userID)
	return nil
}

func (b *Billing) notify(n *models.Notification) {
	if b.notificator == nil {
		return
	}
	b.notifications.Add(1)
	go func() {
		defer b.notifications.Done()
		b.notificator.SendNotification(n)
	}()
}
