package models

import "fmt"

// Tier is a subscription level.
type Tier string

const (
	TierFree  Tier = "free"
	TierPro   Tier = "pro"
	TierWhale Tier = "whale"
)

// TierPrices are the fixed card prices in KRW. Initiation and confirmation
// both read this table so an intent amount always maps back to its tier.
var TierPrices = map[Tier]int64{
	TierPro:   99000,
	TierWhale: 990000,
}

// ParsePaidTier accepts only tiers that can be purchased.
func ParsePaidTier(s string) (Tier, error) {
	t := Tier(s)
	if _, ok := TierPrices[t]; !ok {
		return "", fmt.Errorf("invalid tier %q", s)
	}
	return t, nil
}

// Price returns the card price of a paid tier.
func (t Tier) Price() (int64, bool) {
	p, ok := TierPrices[t]
	return p, ok
}

// IsPaid reports whether t is a purchasable tier.
func (t Tier) IsPaid() bool {
	_, ok := TierPrices[t]
	return ok
}

// TierForAmount maps a card amount to the tier whose price it equals exactly.
func TierForAmount(amount int64) (Tier, bool) {
	for tier, price := range TierPrices {
		if price == amount {
			return tier, true
		}
	}
	return "", false
}
