package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when an order does not exist or belongs to a
// different user.
var ErrNotFound = errors.New("order not found")

// Payment constants for the single supported gateway flow. Orders are only
// ever created after a successful capture, so PaymentCompleted is the only
// payment status this subsystem writes.
const (
	PaymentMethodPayPal = "PAYPAL"
	PaymentCompleted    = "COMPLETED"

	StatusPending = "PENDING"
)

// Order is a completed, paid order. Lines, price snapshots, and the capture
// id are immutable once written; Status is advanced by fulfillment tooling
// outside this subsystem.
type Order struct {
	ID            string
	UserID        string
	AddressID     string
	CouponID      string
	Total         decimal.Decimal
	Discount      decimal.Decimal
	PaymentMethod string
	PaymentStatus string
	CaptureID     string
	Status        string
	Lines         []Line
	CreatedAt     time.Time
}

// Line is an order line with the product name and unit price snapshotted at
// commit time. Snapshots intentionally diverge from later catalog changes.
type Line struct {
	ID          string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Store defines the query surface over persisted orders. Creation happens
// exclusively inside the finalize transaction and has no standalone method.
type Store interface {
	GetByID(ctx context.Context, id, userID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	GetByCaptureID(ctx context.Context, captureID string) (*Order, error)
}
