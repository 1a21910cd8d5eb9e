package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Price and Stock
// are the current catalog values; order lines snapshot them at commit time.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
	ImageURL string
	Stock    int
}

// Reader defines the read-only catalog surface consumed by the checkout core.
type Reader interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
