package billing

import (
	"context"

	"github.com/cobia/billing/internal/models"
)

func (b *Billing) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]*models.AdminPayment, int64, error) {
	filter.Page = filter.Page.Normalize()
	return b.store.Payments().List(ctx, filter)
}

// ListSubscriptions reports is_active as of now, not as last persisted.
func (b *Billing) ListSubscriptions(ctx context.Context, page models.Page) ([]*models.AdminSubscription, int64, error) {
	rows, total, err := b.store.Subscriptions().List(ctx, page.Normalize())
	if err != nil {
		return nil, 0, err
	}
	now := b.now()
	for _, row := range rows {
		if row.EndDate != nil && row.EndDate.Before(now) {
			row.IsActive = false
		}
	}
	return rows, total, nil
}
