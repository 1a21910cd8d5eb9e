// Package payment wraps the external capture-based payment gateway behind a
// small interface and normalizes its failures into three categories:
// unreachable (retry-safe), rejected (request must change), and not-captured
// (the gateway answered, but no money moved).
package payment

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Intent statuses reported by the gateway.
const (
	StatusCreated   = "CREATED"
	StatusApproved  = "APPROVED"
	StatusCompleted = "COMPLETED"
)

// ErrGatewayUnreachable indicates a transport-level failure: the request may
// never have reached the gateway, or the response was lost. Retrying with the
// same intent id is safe; callers should re-query intent state first.
var ErrGatewayUnreachable = errors.New("payment gateway unreachable")

// RejectedError is a gateway-side validation failure (for example an
// unbalanced amount breakdown). Retrying the identical request will fail
// identically.
type RejectedError struct {
	StatusCode int
	Issue      string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("payment gateway rejected request (%d): %s", e.StatusCode, e.Issue)
}

// NotCapturedError indicates the capture call succeeded at the transport
// level but the gateway did not complete the payment (denied, voided,
// pending review). No local mutation may follow.
type NotCapturedError struct {
	IntentID string
	Status   string
}

func (e *NotCapturedError) Error() string {
	return fmt.Sprintf("payment for intent %s not captured: status %s", e.IntentID, e.Status)
}

// Line is one priced cart entry forwarded in the intent breakdown.
type Line struct {
	SKU       string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Intent is the gateway-side record of an authorized-but-uncaptured payment.
type Intent struct {
	ID        string
	Status    string
	CaptureID string
}

// Capture is the result of moving funds for an intent.
type Capture struct {
	ID     string
	Status string
}

// Gateway is the two-phase payment surface consumed by the checkout core.
//
// CreateIntent receives the server-computed subtotal and discount; the
// implementation must send a balanced breakdown (item_total − discount ==
// total) because the gateway rejects anything else. Capture returns a
// NotCapturedError for any terminal status other than COMPLETED. GetIntent
// re-queries state after a lost response, so a masked-but-successful capture
// is detected instead of retried blindly.
type Gateway interface {
	CreateIntent(ctx context.Context, lines []Line, subtotal, discount decimal.Decimal) (*Intent, error)
	Capture(ctx context.Context, intentID string) (*Capture, error)
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
}
