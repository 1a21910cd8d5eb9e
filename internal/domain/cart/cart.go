package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for cart operations.
var (
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrLineNotFound    = errors.New("cart line not found")
)

// Variant distinguishes otherwise identical lines of the same product.
// Empty fields mean "no variant".
type Variant struct {
	Color string
	Size  string
}

// Line is a single cart entry: a product reference plus quantity. It carries
// no price — prices are always resolved against the catalog at read time.
type Line struct {
	ID        string
	UserID    string
	ProductID string
	Quantity  int
	Variant   Variant
}

// ResolvedLine is a cart line joined with its current catalog product.
type ResolvedLine struct {
	Line
	Name      string
	UnitPrice decimal.Decimal
	ImageURL  string
}

// View is the user-facing cart: resolved lines plus the ids of lines whose
// product has disappeared from the catalog since they were added.
type View struct {
	Lines    []ResolvedLine
	Dropped  []string
	Subtotal decimal.Decimal
}

// Repository defines persistence operations for cart lines.
//
// Upsert must merge quantities when a line with the same
// (user, product, variant) key already exists. DeleteAll must be a no-op for
// an absent cart: the finalize transaction calls it unconditionally.
type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]Line, error)
	Upsert(ctx context.Context, line Line) (*Line, error)
	UpdateQuantity(ctx context.Context, userID, lineID string, qty int) (*Line, error)
	Delete(ctx context.Context, userID, lineID string) error
	DeleteAll(ctx context.Context, userID string) error
}
