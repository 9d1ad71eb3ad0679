package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingPaymentWindow is how long an intent stays confirmable.
const PendingPaymentWindow = 30 * time.Minute

// PendingPayment is a payment intent created before the gateway confirms it.
type PendingPayment struct {
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// UserID is the initiator. Only this user can confirm the intent.
	UserID int64 `json:"user_id" gorm:"column:user_id;index;not null"`
	// OrderID is the caller-visible identifier, unique across all intents.
	OrderID   string    `json:"order_id" gorm:"column:order_id;size:64;uniqueIndex;not null"`
	Amount    int64     `json:"amount" gorm:"column:amount;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"column:expires_at;index;not null"`
}

// IsExpired reports whether the intent can no longer be confirmed.
func (p *PendingPayment) IsExpired(now time.Time) bool {
	return p.ExpiresAt.Before(now)
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusSuccess  PaymentStatus = "success"
	PaymentStatusCanceled PaymentStatus = "canceled"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// Payment is the immutable record of a card payment confirmed by the gateway.
type Payment struct {
	ID     int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	UserID int64 `json:"user_id" gorm:"column:user_id;index;not null"`
	// OrderID is unique so a second insert for the same order fails at the
	// storage layer even when two confirmations race past the pre-check.
	OrderID    string        `json:"order_id" gorm:"column:order_id;size:64;uniqueIndex;not null"`
	PaymentKey string        `json:"payment_key" gorm:"column:payment_key;size:200;uniqueIndex;not null"`
	Amount     int64         `json:"amount" gorm:"column:amount;not null"`
	Method     string        `json:"method" gorm:"column:method;size:50"`
	Status     PaymentStatus `json:"status" gorm:"column:status;size:16;not null"`
	ApprovedAt time.Time     `json:"approved_at" gorm:"column:approved_at;index"`
	CreatedAt  time.Time     `json:"created_at" gorm:"column:created_at"`
}

type BTCTransactionStatus string

const (
	BTCTransactionPending   BTCTransactionStatus = "pending"
	BTCTransactionConfirmed BTCTransactionStatus = "confirmed"
	BTCTransactionFailed    BTCTransactionStatus = "failed"
)

// BTCTransaction is a caller-asserted Bitcoin payment.
type BTCTransaction struct {
	ID          int64                `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	UserID      int64                `json:"user_id" gorm:"column:user_id;index;not null"`
	TxHash      string               `json:"tx_hash" gorm:"column:tx_hash;size:64;uniqueIndex;not null"`
	Amount      decimal.Decimal      `json:"amount" gorm:"column:amount;type:numeric(16,8);not null"`
	Status      BTCTransactionStatus `json:"status" gorm:"column:status;size:16;not null"`
	ConfirmedAt *time.Time           `json:"confirmed_at" gorm:"column:confirmed_at"`
	CreatedAt   time.Time            `json:"created_at" gorm:"column:created_at;index"`
}

// TableName keeps the acronym readable in the schema.
func (BTCTransaction) TableName() string {
	return "btc_transactions"
}
