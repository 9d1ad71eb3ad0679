package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cobia/billing/internal/models"
	"github.com/cobia/billing/pkg/apperror"
)

// RenewalPolicy decides where a new window starts when a subscription is
// activated while the previous one is still running.
type RenewalPolicy string

const (
	// RenewalExtend adds the new period to the remaining time of a running
	// subscription of the same tier. A tier change always starts now.
	RenewalExtend RenewalPolicy = "extend"
	// RenewalReset starts the new period now and drops the remaining time.
	RenewalReset RenewalPolicy = "reset"
)

func ParseRenewalPolicy(s string) (RenewalPolicy, error) {
	switch p := RenewalPolicy(s); p {
	case RenewalExtend, RenewalReset:
		return p, nil
	}
	return "", fmt.Errorf("unknown renewal policy %q", s)
}

type SubscriptionManager struct {
	policy RenewalPolicy
	now    func() time.Time
}

func NewSubscriptionManager(policy RenewalPolicy, now func() time.Time) *SubscriptionManager {
	return &SubscriptionManager{policy: policy, now: now}
}

// Activate upserts the user's subscription for tier and mirrors the tier on
// the user row. store must be transactional: the user row lock is what
// serializes concurrent activations for the same user.
func (m *SubscriptionManager) Activate(ctx context.Context, store models.Store, userID int64, tier models.Tier) (*models.Subscription, error) {
	if !tier.IsPaid() {
		return nil, apperror.Validation(apperror.CodeInvalidTier, "Invalid subscription tier")
	}

	if _, err := store.Users().GetByIDForUpdate(ctx, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, apperror.NotFound(apperror.CodeUserNotFound, "User not found")
		}
		return nil, err
	}

	sub, err := store.Subscriptions().GetByUserID(ctx, userID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		sub = &models.Subscription{UserID: userID}
	case err != nil:
		return nil, err
	}

	now := m.now()
	start := now
	if m.policy == RenewalExtend && sub.Tier == tier && sub.Effective(now) && sub.EndDate != nil {
		start = *sub.EndDate
	}
	end := start.Add(models.SubscriptionPeriod)

	sub.Tier = tier
	sub.StartDate = now
	sub.EndDate = &end
	sub.IsActive = true
	if err := store.Subscriptions().Save(ctx, sub); err != nil {
		return nil, err
	}
	if err := store.Users().UpdateTier(ctx, userID, tier); err != nil {
		return nil, err
	}
	return sub, nil
}

// IsExpired is true iff the subscription has an end date in the past.
func (m *SubscriptionManager) IsExpired(sub *models.Subscription) bool {
	return sub.IsExpired(m.now())
}

// ExpireDue deactivates lapsed subscriptions and demotes their owners to
// free. Owners are locked in the same order Activate uses, user row first,
// and only subscriptions still expired after the lock are touched, so a
// renewal racing the sweep is never undone. store must be transactional.
func (m *SubscriptionManager) ExpireDue(ctx context.Context, store models.Store) ([]int64, error) {
	now := m.now()
	candidates, err := store.Subscriptions().ExpiredUserIDs(ctx, now)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	locked := make([]int64, 0, len(candidates))
	for _, id := range candidates {
		if _, err := store.Users().GetByIDForUpdate(ctx, id); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, err
		}
		locked = append(locked, id)
	}

	userIDs, err := store.Subscriptions().ExpireDue(ctx, locked, now)
	if err != nil {
		return nil, err
	}
	for _, id := range userIDs {
		if err := store.Users().UpdateTier(ctx, id, models.TierFree); err != nil {
			return nil, err
		}
	}
	return userIDs, nil
}

func (m *SubscriptionManager) Status(ctx context.Context, store models.Store, userID int64) (*models.SubscriptionStatus, error) {
	sub, err := store.Subscriptions().GetByUserID(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return models.StatusOf(nil, m.now()), nil
	}
	if err != nil {
		return nil, err
	}
	return models.StatusOf(sub, m.now()), nil
}

// ActivateSubscription activates tier for userID in its own transaction.
func (b *Billing) ActivateSubscription(ctx context.Context, userID int64, tier models.Tier) (*models.Subscription, error) {
	var sub *models.Subscription
	err := b.store.Transaction(ctx, func(tx models.Store) error {
		var err error
		sub, err = b.subscriptions.Activate(ctx, tx, userID, tier)
		return err
	})
	if err != nil {
		return nil, err
	}
	b.logger.Info("Subscription activated", "user_id", userID, "tier", tier, "end_date", sub.EndDate)
	return sub, nil
}

func (b *Billing) SubscriptionStatus(ctx context.Context, userID int64) (*models.SubscriptionStatus, error) {
	return b.subscriptions.Status(ctx, b.store, userID)
}
