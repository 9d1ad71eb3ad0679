package models

import (
	"fmt"
	"time"
)

// Notification is a receipt sent to a user after their subscription changes.
type Notification struct {
	UserID int64 `json:"user_id"`
	Tier   Tier  `json:"tier"`
	// Amount is formatted with its currency, e.g. "99000 KRW" or "0.005 BTC".
	Amount    string     `json:"amount"`
	Reference string     `json:"reference"`
	EndDate   *time.Time `json:"end_date"`
}

func (n *Notification) String() string {
	msg := fmt.Sprintf("Payment received: %s (%s).\nYour %s subscription is active", n.Amount, n.Reference, n.Tier)
	if n.EndDate != nil {
		msg += " until " + n.EndDate.UTC().Format("2006-01-02 15:04 MST")
	}
	return msg + "."
}
