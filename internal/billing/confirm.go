package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/cobia/billing/internal/models"
	"github.com/cobia/billing/pkg/apperror"
)

// ConfirmPayment drives a card payment from a pending intent to an active
// subscription:
//
//	Received -> Validated -> GatewayConfirmed -> Persisted -> SubscriptionActivated -> Completed
//
// Persisting the payment, activating the subscription and deleting the
// intent happen in one transaction. The unique order_id index is the
// duplicate guard under concurrency; the ExistsByOrderID check only
// short-circuits the common case before the gateway is called.
func (b *Billing) ConfirmPayment(ctx context.Context, user *models.User, req models.ConfirmPaymentRequest) (*models.Payment, error) {
	log := b.logger.With("order_id", req.OrderID, "user_id", user.ID)

	if req.PaymentKey == "" || req.OrderID == "" || req.Amount == 0 {
		return nil, apperror.Validation(apperror.CodeMissingParameters, "Missing required parameters")
	}

	exists, err := b.store.Payments().ExistsByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if exists {
		log.Warn("Duplicate payment confirmation")
		return nil, apperror.Conflict(apperror.CodeDuplicatePayment, "Payment already processed")
	}

	intent, err := b.ledger.FindByOrderAndUser(ctx, b.store, req.OrderID, user.ID)
	if errors.Is(err, models.ErrNotFound) {
		log.Warn("Unknown order id")
		return nil, apperror.State(apperror.CodeInvalidOrderID, "Invalid order ID")
	}
	if err != nil {
		return nil, err
	}

	if intent.IsExpired(b.now()) {
		if err := b.ledger.Delete(ctx, b.store, intent); err != nil {
			log.Error("Failed to delete expired payment intent", "error", err)
		}
		log.Warn("Payment intent expired", "expires_at", intent.ExpiresAt)
		return nil, apperror.State(apperror.CodePaymentExpired, "Payment request has expired")
	}

	if req.Amount != intent.Amount {
		log.Warn("Payment amount mismatch", "amount", req.Amount, "expected", intent.Amount)
		return nil, apperror.State(apperror.CodeAmountMismatch, "Payment amount does not match")
	}

	tier, ok := models.TierForAmount(intent.Amount)
	if !ok {
		return nil, fmt.Errorf("no tier is priced at %d", intent.Amount)
	}

	result, err := b.gateway.Confirm(ctx, req.PaymentKey, req.OrderID, req.Amount)
	if err != nil {
		var gwErr *models.GatewayError
		if errors.As(err, &gwErr) {
			log.Warn("Gateway rejected payment", "gateway_status", gwErr.StatusCode, "gateway_code", gwErr.Code, "message", gwErr.Message)
			return nil, apperror.State(apperror.CodePaymentConfirmationFailed, gwErr.Message).WithDetail("gateway_code", gwErr.Code)
		}
		log.Error("Gateway call failed", "error", err)
		return nil, apperror.External(err)
	}
	if result.Status != models.GatewayStatusDone {
		log.Warn("Unexpected gateway status", "status", result.Status)
		return nil, apperror.State(apperror.CodeInvalidPaymentStatus, "Invalid payment status")
	}

	approvedAt := result.ApprovedAt
	if approvedAt.IsZero() {
		approvedAt = b.now()
	}
	payment := &models.Payment{
		UserID:     user.ID,
		OrderID:    req.OrderID,
		PaymentKey: req.PaymentKey,
		Amount:     req.Amount,
		Method:     result.Method,
		Status:     models.PaymentStatusSuccess,
		ApprovedAt: approvedAt,
	}

	var sub *models.Subscription
	err = b.store.Transaction(ctx, func(tx models.Store) error {
		if err := tx.Payments().Create(ctx, payment); err != nil {
			return err
		}
		var err error
		if sub, err = b.subscriptions.Activate(ctx, tx, user.ID, tier); err != nil {
			return err
		}
		return b.ledger.Delete(ctx, tx, intent)
	})
	if errors.Is(err, models.ErrDuplicate) {
		log.Warn("Concurrent confirmation lost the race")
		return nil, apperror.Conflict(apperror.CodeDuplicatePayment, "Payment already processed")
	}
	if err != nil {
		log.Error("Gateway approved payment but recording it failed", "payment_key", req.PaymentKey, "error", err)
		return nil, err
	}

	log.Info("Payment confirmed", "payment_id", payment.ID, "tier", tier, "amount", payment.Amount)
	b.notify(&models.Notification{
		UserID:    user.ID,
		Tier:      tier,
		Amount:    fmt.Sprintf("%d KRW", payment.Amount),
		Reference: payment.OrderID,
		EndDate:   sub.EndDate,
	})
	return payment, nil
}
