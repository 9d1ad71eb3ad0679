package billing

import (
	"context"
	"errors"

	"github.com/cobia/billing/internal/models"
	"github.com/cobia/billing/pkg/apperror"
)

// ConfirmBTCPayment records an asserted BTC payment for req.UserID and
// activates the tier its amount buys. Callers may only confirm for
// themselves unless they are admins; anyone else sees USER_NOT_FOUND.
func (b *Billing) ConfirmBTCPayment(ctx context.Context, caller *models.User, req models.BTCConfirmRequest) (*models.BTCTransaction, *models.Subscription, error) {
	if req.TxHash == "" || req.Amount == "" || req.UserID == 0 {
		return nil, nil, apperror.Validation(apperror.CodeMissingParameters, "Missing required parameters")
	}

	tx, tier, err := b.btc.Confirm(req.TxHash, req.Amount, req.UserID, b.now())
	if err != nil {
		return nil, nil, err
	}

	if caller == nil || (caller.ID != req.UserID && !caller.IsAdmin) {
		return nil, nil, apperror.NotFound(apperror.CodeUserNotFound, "User not found")
	}

	var sub *models.Subscription
	err = b.store.Transaction(ctx, func(s models.Store) error {
		if _, err := s.Users().GetByIDForUpdate(ctx, req.UserID); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return apperror.NotFound(apperror.CodeUserNotFound, "User not found")
			}
			return err
		}
		if err := s.BTCTransactions().Create(ctx, tx); err != nil {
			if errors.Is(err, models.ErrDuplicate) {
				return apperror.Conflict(apperror.CodeDuplicateTransaction, "Transaction already processed")
			}
			return err
		}
		var err error
		sub, err = b.subscriptions.Activate(ctx, s, req.UserID, tier)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	b.logger.Info("BTC payment recorded without chain verification",
		"user_id", req.UserID, "caller_id", caller.ID, "tx_hash", tx.TxHash, "amount", tx.Amount.String(), "tier", tier)
	b.notify(&models.Notification{
		UserID:    req.UserID,
		Tier:      tier,
		Amount:    tx.Amount.String() + " BTC",
		Reference: tx.TxHash,
		EndDate:   sub.EndDate,
	})
	return tx, sub, nil
}

// BTCStatus returns the user's latest BTC transaction, or nil if there is none.
func (b *Billing) BTCStatus(ctx context.Context, userID int64) (*models.BTCTransaction, *models.SubscriptionStatus, error) {
	latest, err := b.store.BTCTransactions().LatestByUserID(ctx, userID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, nil, err
	}
	status, err := b.subscriptions.Status(ctx, b.store, userID)
	if err != nil {
		return nil, nil, err
	}
	return latest, status, nil
}
