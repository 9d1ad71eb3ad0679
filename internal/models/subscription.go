package models

import (
	"time"

	"gorm.io/gorm"
)

// SubscriptionPeriod is the length of one paid window.
const SubscriptionPeriod = 30 * 24 * time.Hour

// Subscription holds the authoritative tier state of a user.
type Subscription struct {
	ID     int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	UserID int64 `json:"user_id" gorm:"column:user_id;uniqueIndex;not null"`
	Tier   Tier  `json:"tier" gorm:"column:tier;size:16;not null;default:free"`
	// StartDate is the time of the last activation.
	StartDate time.Time `json:"start_date" gorm:"column:start_date"`
	// EndDate is nil for subscriptions that never expire.
	EndDate   *time.Time `json:"end_date" gorm:"column:end_date;index"`
	IsActive  bool       `json:"is_active" gorm:"column:is_active;not null;default:false"`
	CreatedAt time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"column:updated_at"`
}

// IsExpired is true iff EndDate is set and in the past.
func (s *Subscription) IsExpired(now time.Time) bool {
	return s.EndDate != nil && s.EndDate.Before(now)
}

// Effective reports whether the subscription is active right now, regardless
// of when the stored flag was last re-derived.
func (s *Subscription) Effective(now time.Time) bool {
	return s.IsActive && !s.IsExpired(now)
}

// Normalize forces IsActive off for an expired subscription.
func (s *Subscription) Normalize(now time.Time) {
	if s.IsExpired(now) {
		s.IsActive = false
	}
}

// BeforeSave runs on every gorm Create/Save of a subscription.
func (s *Subscription) BeforeSave(*gorm.DB) error {
	s.Normalize(time.Now())
	return nil
}

// SubscriptionStatus is the read model returned to the subscription owner.
type SubscriptionStatus struct {
	Tier     Tier       `json:"tier"`
	IsActive bool       `json:"is_active"`
	EndDate  *time.Time `json:"end_date"`
}

// StatusOf builds the owner-facing view. A nil subscription reads as free.
func StatusOf(s *Subscription, now time.Time) *SubscriptionStatus {
	if s == nil {
		return &SubscriptionStatus{Tier: TierFree}
	}
	return &SubscriptionStatus{Tier: s.Tier, IsActive: s.Effective(now), EndDate: s.EndDate}
}
