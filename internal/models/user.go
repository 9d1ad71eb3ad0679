package models

import "time"

// User is the account that owns payments and the subscription.
type User struct {
	// ID is the unique identifier for the user.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// Email is the login and receipt address of the user.
	Email string `json:"email" gorm:"column:email;size:254;uniqueIndex;not null"`
	// Tier mirrors Subscription.Tier and is rewritten on every activation.
	Tier Tier `json:"tier" gorm:"column:tier;size:16;not null;default:free"`
	// TelegramChatID is the chat receipts are delivered to. Empty when unlinked.
	TelegramChatID string `json:"telegram_chat_id,omitempty" gorm:"column:telegram_chat_id;size:64;index"`
	// IsAdmin grants access to the admin listings.
	IsAdmin bool `json:"is_admin" gorm:"column:is_admin;not null;default:false"`
	// CreatedAt is the date when the user registered.
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`

	Subscription    *Subscription    `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	PendingPayments []PendingPayment `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Payments        []Payment        `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	BTCTransactions []BTCTransaction `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Wallets         []Wallet         `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Alerts          []Alert          `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}
