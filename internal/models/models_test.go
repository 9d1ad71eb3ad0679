package models

import (
	"strings"
	"testing"
	"time"
)

func TestTierForAmount(t *testing.T) {
	tests := []struct {
		amount int64
		want   Tier
		ok     bool
	}{
		{99000, TierPro, true},
		{990000, TierWhale, true},
		{9900, "", false},
		{0, "", false},
	}
	for _, tt := range tests {
		got, ok := TierForAmount(tt.amount)
		if got != tt.want || ok != tt.ok {
			t.Errorf("TierForAmount(%d) = (%q, %v), want (%q, %v)", tt.amount, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParsePaidTier(t *testing.T) {
	for _, s := range []string{"pro", "whale"} {
		if _, err := ParsePaidTier(s); err != nil {
			t.Errorf("ParsePaidTier(%q): %v", s, err)
		}
	}
	for _, s := range []string{"free", "PRO", "", "gold"} {
		if _, err := ParsePaidTier(s); err == nil {
			t.Errorf("ParsePaidTier(%q) expected error", s)
		}
	}
}

func TestPriceRoundTrip(t *testing.T) {
	for tier := range TierPrices {
		price, ok := tier.Price()
		if !ok {
			t.Fatalf("%s has no price", tier)
		}
		back, ok := TierForAmount(price)
		if !ok || back != tier {
			t.Errorf("price %d of %s maps back to %q", price, tier, back)
		}
	}
	if TierFree.IsPaid() {
		t.Error("free tier must not be purchasable")
	}
}

func TestSubscriptionExpiry(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name        string
		end         *time.Time
		stored      bool
		wantExpired bool
		wantActive  bool
	}{
		{"never expires", nil, true, false, true},
		{"future end", &future, true, false, true},
		{"past end with stale flag", &past, true, true, false},
		{"past end inactive", &past, false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Subscription{Tier: TierPro, EndDate: tt.end, IsActive: tt.stored}
			if got := s.IsExpired(now); got != tt.wantExpired {
				t.Errorf("IsExpired = %v, want %v", got, tt.wantExpired)
			}
			if got := s.Effective(now); got != tt.wantActive {
				t.Errorf("Effective = %v, want %v", got, tt.wantActive)
			}
		})
	}
}

func TestSubscriptionBeforeSaveForcesInactive(t *testing.T) {
	past := time.Now().Add(-24 * time.Hour)
	s := &Subscription{Tier: TierWhale, EndDate: &past, IsActive: true}
	if err := s.BeforeSave(nil); err != nil {
		t.Fatalf("BeforeSave: %v", err)
	}
	if s.IsActive {
		t.Error("expired subscription still active after BeforeSave")
	}

	s = &Subscription{Tier: TierPro, IsActive: true}
	_ = s.BeforeSave(nil)
	if !s.IsActive {
		t.Error("subscription without end date was deactivated")
	}
}

func TestStatusOfNil(t *testing.T) {
	st := StatusOf(nil, time.Now())
	if st.Tier != TierFree || st.IsActive || st.EndDate != nil {
		t.Errorf("StatusOf(nil) = %+v", st)
	}
}

func TestPageNormalize(t *testing.T) {
	tests := []struct {
		in   Page
		want Page
	}{
		{Page{}, Page{Limit: DefaultPageLimit}},
		{Page{Limit: 500, Offset: 10}, Page{Limit: MaxPageLimit, Offset: 10}},
		{Page{Limit: 5, Offset: -3}, Page{Limit: 5}},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Errorf("%+v.Normalize() = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestPendingPaymentExpiry(t *testing.T) {
	now := time.Now()
	p := &PendingPayment{ExpiresAt: now.Add(PendingPaymentWindow)}
	if p.IsExpired(now) {
		t.Error("fresh intent reported expired")
	}
	if !p.IsExpired(now.Add(PendingPaymentWindow + time.Second)) {
		t.Error("intent past its window not expired")
	}
}

func TestNotificationString(t *testing.T) {
	end := time.Date(2026, 11, 18, 9, 30, 0, 0, time.UTC)
	n := &Notification{Tier: TierPro, Amount: "99000 KRW", Reference: "COBIA-1A2B3C4D", EndDate: &end}
	msg := n.String()
	for _, part := range []string{"99000 KRW", "COBIA-1A2B3C4D", "pro", "2026-11-18"} {
		if !strings.Contains(msg, part) {
			t.Errorf("message %q missing %q", msg, part)
		}
	}
}
