package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Promotion is administered in the back office only; checkout never
// applies it.
type Promotion struct {
	ID        string
	Code      string
	Type      DiscountType
	Value     decimal.Decimal
	Active    bool
	Expires   *time.Time
	CreatedAt time.Time
}

func (p Promotion) Expired(now time.Time) bool {
	return p.Expires != nil && now.After(*p.Expires)
}
