package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/gearbox-checkout/internal/domain/order"
)

const (
	getOrderByIDSQL = `SELECT id, user_id, address_id, COALESCE(coupon_id, ''), total, discount,
			payment_method, payment_status, capture_id, status, created_at
		FROM orders WHERE id = $1 AND user_id = $2`

	getOrderByCaptureIDSQL = `SELECT id, user_id, address_id, COALESCE(coupon_id, ''), total, discount,
			payment_method, payment_status, capture_id, status, created_at
		FROM orders WHERE capture_id = $1`

	listOrdersByUserSQL = `SELECT id, user_id, address_id, COALESCE(coupon_id, ''), total, discount,
			payment_method, payment_status, capture_id, status, created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	listOrderItemsSQL = `SELECT id, product_id, product_name, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY id`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL. Orders are created
// only by the finalize transaction in commit.go; this type is read-only.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// GetByID returns an order with its lines, scoped to the owning user.
func (s *OrderStore) GetByID(ctx context.Context, id, userID string) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, getOrderByIDSQL, id, userID)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	if o.Lines, err = s.listItems(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByCaptureID returns the order recorded for a gateway capture, if any.
// Reconciliation uses this to tell recorded captures from orphaned ones.
func (s *OrderStore) GetByCaptureID(ctx context.Context, captureID string) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, getOrderByCaptureIDSQL, captureID)
	if err != nil {
		return nil, fmt.Errorf("getting order by capture %q: %w", captureID, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order by capture %q: %w", captureID, err)
	}

	if o.Lines, err = s.listItems(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByUser returns the user's orders, newest first, without lines.
func (s *OrderStore) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func (s *OrderStore) listItems(ctx context.Context, orderID string) ([]order.Line, error) {
	rows, err := s.pool.Query(ctx, listOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing items for order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, scanOrderLine)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o        order.Order
		total    decimal.Decimal
		discount decimal.Decimal
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.AddressID, &o.CouponID, &total, &discount,
		&o.PaymentMethod, &o.PaymentStatus, &o.CaptureID, &o.Status, &o.CreatedAt,
	)
	o.Total = total
	o.Discount = discount
	return o, err
}

func scanOrderLine(row pgx.CollectableRow) (order.Line, error) {
	var (
		l     order.Line
		qty   int32
		price decimal.Decimal
	)
	err := row.Scan(&l.ID, &l.ProductID, &l.ProductName, &qty, &price)
	l.Quantity = int(qty)
	l.UnitPrice = price
	return l, err
}
