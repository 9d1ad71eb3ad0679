package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cobia/billing/pkg/validation"
)

// Wallet is an address a user watches.
type Wallet struct {
	// ID is the unique identifier for the wallet.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// UserID is the owner of the wallet.
	UserID int64 `json:"user_id" gorm:"column:user_id;index;not null"`
	// Address is the lowercase 0x address.
	Address string `json:"address" gorm:"column:address;size:42;uniqueIndex;not null"`
	// Alias is a free-form label chosen by the user.
	Alias string `json:"alias" gorm:"column:alias;size:100"`
	// CreatedAt is the date when the wallet was added.
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`

	Reports      []Report      `json:"-" gorm:"foreignKey:WalletID;constraint:OnDelete:CASCADE"`
	Transactions []Transaction `json:"-" gorm:"foreignKey:WalletID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate rejects malformed addresses and stores the normalized form.
func (w *Wallet) BeforeCreate(*gorm.DB) error {
	if err := validation.ValidateWalletAddress(w.Address); err != nil {
		return fmt.Errorf("invalid wallet address: %w", err)
	}
	w.Address = validation.NormalizeWalletAddress(w.Address)
	return nil
}

// Report is an externally produced risk/profit summary of a wallet.
type Report struct {
	ID       int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	WalletID int64 `json:"wallet_id" gorm:"column:wallet_id;index;not null"`
	Summary  string `json:"summary" gorm:"column:summary;type:text"`
	// RiskScore ranges from 0 to 100.
	RiskScore      int             `json:"risk_score" gorm:"column:risk_score;check:risk_score >= 0 AND risk_score <= 100"`
	ProfitEstimate decimal.Decimal `json:"profit_estimate" gorm:"column:profit_estimate;type:numeric(20,2)"`
	CreatedAt      time.Time       `json:"created_at" gorm:"column:created_at;index"`
}

type TransactionType string

const (
	TransactionTransfer TransactionType = "transfer"
	TransactionSwap     TransactionType = "swap"
	TransactionDeposit  TransactionType = "deposit"
	TransactionWithdraw TransactionType = "withdraw"
)

// Transaction is an on-chain transfer observed for a wallet.
type Transaction struct {
	ID        int64           `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	WalletID  int64           `json:"wallet_id" gorm:"column:wallet_id;index;not null"`
	Hash      string          `json:"hash" gorm:"column:hash;size:66;uniqueIndex;not null"`
	Type      TransactionType `json:"type" gorm:"column:type;size:16"`
	Amount    decimal.Decimal `json:"amount" gorm:"column:amount;type:numeric(30,18)"`
	Token     string          `json:"token" gorm:"column:token;size:20"`
	Timestamp time.Time       `json:"timestamp" gorm:"column:timestamp;index"`
}

type AlertType string

const (
	AlertPrice  AlertType = "price"
	AlertVolume AlertType = "volume"
	AlertRisk   AlertType = "risk"
)

// Alert is a user-defined threshold notification.
type Alert struct {
	ID        int64           `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	UserID    int64           `json:"user_id" gorm:"column:user_id;index;not null"`
	Type      AlertType       `json:"type" gorm:"column:type;size:16"`
	Threshold decimal.Decimal `json:"threshold" gorm:"column:threshold;type:numeric(20,8)"`
	IsActive  bool            `json:"is_active" gorm:"column:is_active;default:true"`
	CreatedAt time.Time       `json:"created_at" gorm:"column:created_at"`
}
