// Package checkout orchestrates the cart-to-order saga: review, payment
// intent creation, capture, and the single atomic commit that turns a cart
// into a persisted order.
package checkout

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/gearbox-checkout/internal/domain/coupon"
	"github.com/xenking/gearbox-checkout/internal/domain/order"
)

// State names the steps of the checkout flow. The flow itself is driven by
// separate requests (create-intent, capture, finalize), so states are not
// persisted; they appear in logs and errors to make failures attributable
// to a step.
type State string

const (
	StateCartReviewed  State = "CART_REVIEWED"
	StateIntentCreated State = "INTENT_CREATED"
	StateCaptured      State = "CAPTURED"
	StateCommitted     State = "COMMITTED"
)

// Pre-capture failures. All of them are safe: no money has moved and no
// local state has changed, the user simply retries from cart review.
var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrMissingAddress = errors.New("address is required")
	ErrMissingCapture = errors.New("capture id is required")
)

// ErrNothingToCommit is returned when the finalize transaction finds the
// cart already empty. This is the idempotent answer to a replayed finalize:
// a concurrent or earlier call already consumed the cart, and no second
// order is created.
var ErrNothingToCommit = errors.New("nothing to commit: cart already empty")

// ErrCouponNoLongerValid is returned from inside the commit transaction when
// the coupon's window or usage limit no longer holds at commit time.
var ErrCouponNoLongerValid = errors.New("coupon no longer valid at commit time")

// InsufficientStockError aborts the commit transaction when a conditional
// stock decrement would go negative. It occurs after capture, so it demands
// the same operator attention as a hard commit failure.
type InsufficientStockError struct {
	ProductID string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (requested %d)", e.ProductID, e.Requested)
}

// CommitFailedError is the one irreducible failure of the design: the
// gateway captured the payment but the local commit did not persist an
// order. The capture id is the correlation key reconciliation tooling uses
// to find the money.
type CommitFailedError struct {
	CaptureID string
	Err       error
}

func (e *CommitFailedError) Error() string {
	return fmt.Sprintf("payment captured but order not persisted (capture %s): %v", e.CaptureID, e.Err)
}

func (e *CommitFailedError) Unwrap() error { return e.Err }

// ReviewedLine is a cart line resolved against the catalog during review,
// with the price snapshot the intent will be priced from.
type ReviewedLine struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Review is the server-side recomputation of the cart's pricing. Dropped
// lists product ids that were in the cart but have vanished from the
// catalog; they are excluded from the totals, never priced at zero.
type Review struct {
	Lines    []ReviewedLine
	Dropped  []string
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
	Coupon   *coupon.Coupon
}

// CommitRequest is the input to the atomic finalize transaction.
type CommitRequest struct {
	UserID        string
	AddressID     string
	Coupon        *coupon.Coupon
	CaptureID     string
	PaymentMethod string
}

// Committer executes the finalize transaction: re-read cart lines, snapshot
// prices, decrement stock conditionally, increment coupon usage after
// re-validation, insert the order, and clear the cart. All effects succeed
// or none do. Implementations must not perform network calls.
type Committer interface {
	Commit(ctx context.Context, req CommitRequest) (*order.Order, error)
}
