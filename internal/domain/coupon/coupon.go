package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Rejection reasons, checked in declaration order by Validate. The window is
// evaluated before the usage limit on purpose: an expired coupon that has
// also hit its limit reports ErrExpired, not ErrLimitReached.
var (
	ErrNotFound     = errors.New("coupon not found")
	ErrNotYetActive = errors.New("coupon not yet active")
	ErrExpired      = errors.New("coupon expired")
	ErrLimitReached = errors.New("coupon usage limit reached")
)

// Coupon is a percentage discount with a validity window and a usage cap.
// UsageLimit 0 means unlimited. UsageCount is mutated only by the finalize
// transaction, never by validation.
type Coupon struct {
	ID         string
	Code       string
	Discount   decimal.Decimal
	StartDate  time.Time
	EndDate    time.Time
	UsageLimit int
	UsageCount int
}

// ValidAt reports the first failing rejection reason at the given instant,
// or nil when the coupon may be applied.
func (c *Coupon) ValidAt(now time.Time) error {
	if now.Before(c.StartDate) {
		return ErrNotYetActive
	}
	if !now.Before(c.EndDate) {
		return ErrExpired
	}
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return ErrLimitReached
	}
	return nil
}

// DiscountFor returns the discount amount for the given subtotal, rounded to
// two decimal places and never exceeding the subtotal.
func (c *Coupon) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	amount := subtotal.Mul(c.Discount).Div(decimal.NewFromInt(100)).Round(2)
	if amount.GreaterThan(subtotal) {
		return subtotal
	}
	return amount
}

// Repository provides coupon lookup. Usage increments happen inside the
// finalize transaction, not through this interface. ListAllCodes must return
// every code regardless of validity window: the code filter built from it
// caches existence, and window rejections are the validator's to report.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	ListAllCodes(ctx context.Context) ([]string, error)
}
