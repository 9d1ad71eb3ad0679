// Package btc maps caller-asserted Bitcoin payments to subscription tiers.
//
// The adapter does not look the transaction up on chain. Whatever hash and
// amount the caller submits is recorded as confirmed.
package btc

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cobia/billing/internal/models"
	"github.com/cobia/billing/pkg/apperror"
	"github.com/cobia/billing/pkg/validation"
)

var (
	// WhaleThreshold is the minimum amount that buys the whale tier.
	WhaleThreshold = decimal.RequireFromString("0.01")
	// ProThreshold is the minimum amount that buys the pro tier.
	ProThreshold = decimal.RequireFromString("0.001")
)

// amountScale is the number of fractional digits stored for BTC amounts.
const amountScale = 8

type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

// TierFor maps an amount to the tier it buys.
func TierFor(amount decimal.Decimal) (models.Tier, bool) {
	switch {
	case amount.GreaterThanOrEqual(WhaleThreshold):
		return models.TierWhale, true
	case amount.GreaterThanOrEqual(ProThreshold):
		return models.TierPro, true
	}
	return "", false
}

// Confirm validates the asserted payment and returns an unsaved confirmed
// transaction together with the tier it buys. All checks run before the
// caller persists anything.
func (a *Adapter) Confirm(txHash, amount string, userID int64, now time.Time) (*models.BTCTransaction, models.Tier, error) {
	if err := validation.ValidateTxHash(txHash); err != nil {
		return nil, "", apperror.Validation(apperror.CodeInvalidTxHash, "Invalid transaction hash format")
	}
	value, err := validation.ParsePositiveDecimal(amount)
	if err != nil {
		return nil, "", apperror.Validation(apperror.CodeInvalidAmount, "Invalid amount format")
	}
	value = value.Truncate(amountScale)

	tier, ok := TierFor(value)
	if !ok {
		return nil, "", apperror.Validation(apperror.CodeAmountTooLow, "Amount too low for subscription")
	}

	confirmedAt := now
	return &models.BTCTransaction{
		UserID:      userID,
		TxHash:      txHash,
		Amount:      value,
		Status:      models.BTCTransactionConfirmed,
		ConfirmedAt: &confirmedAt,
		CreatedAt:   now,
	}, tier, nil
}
