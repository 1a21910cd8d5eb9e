package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/gearbox-checkout/internal/domain/checkout"
	"github.com/xenking/gearbox-checkout/internal/domain/order"
)

const (
	lockCartLinesSQL = `SELECT id, product_id, quantity
		FROM cart_items WHERE user_id = $1 ORDER BY product_id FOR UPDATE`

	getCommitProductsSQL = `SELECT id, name, price
		FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	decrementStockSQL = `UPDATE products
		SET stock = stock - $2, sold_count = sold_count + $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`

	consumeCouponSQL = `UPDATE coupons
		SET usage_count = usage_count + 1
		WHERE id = $1 AND start_date <= $2 AND end_date > $2
			AND (usage_limit = 0 OR usage_count < usage_limit)
		RETURNING discount`

	insertOrderSQL = `INSERT INTO orders (id, user_id, address_id, coupon_id, total, discount,
			payment_method, payment_status, capture_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

var _ checkout.Committer = (*Committer)(nil)

// Committer runs the finalize transaction. Everything happens inside one
// database transaction against rows locked within it: cart lines are
// re-read, prices and names are snapshotted, stock is decremented
// conditionally, coupon usage is incremented after re-checking window and
// limit, the order is inserted, and the cart is cleared. No network calls.
type Committer struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewCommitter returns a Committer that uses the given pool.
func NewCommitter(pool *pgxpool.Pool) *Committer {
	return &Committer{pool: pool, now: time.Now}
}

type commitLine struct {
	lineID    string
	productID string
	quantity  int
}

// Commit executes the finalize transaction for the given request.
//
// Products are locked in id order so concurrent commits touching the same
// catalog rows cannot deadlock. Cart lines whose product has vanished from
// the catalog are dropped, never priced. An empty or fully dropped cart
// yields checkout.ErrNothingToCommit, which is also the answer to a replayed
// finalize: the first commit consumed the cart.
func (c *Committer) Commit(ctx context.Context, req checkout.CommitRequest) (*order.Order, error) {
	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("beginning commit transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	lines, err := c.lockCartLines(ctx, tx, req.UserID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, checkout.ErrNothingToCommit
	}

	products, err := c.lockProducts(ctx, tx, lines)
	if err != nil {
		return nil, err
	}

	o := &order.Order{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		AddressID:     req.AddressID,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: order.PaymentCompleted,
		CaptureID:     req.CaptureID,
		Status:        order.StatusPending,
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		p, ok := products[l.productID]
		if !ok {
			continue
		}

		tag, err := tx.Exec(ctx, decrementStockSQL, l.productID, l.quantity)
		if err != nil {
			return nil, fmt.Errorf("decrementing stock for %q: %w", l.productID, err)
		}
		if tag.RowsAffected() == 0 {
			return nil, &checkout.InsufficientStockError{
				ProductID: l.productID,
				Requested: l.quantity,
			}
		}

		o.Lines = append(o.Lines, order.Line{
			ID:          uuid.New().String(),
			ProductID:   l.productID,
			ProductName: p.name,
			Quantity:    l.quantity,
			UnitPrice:   p.price,
		})
		subtotal = subtotal.Add(p.price.Mul(decimal.NewFromInt(int64(l.quantity))))
	}
	if len(o.Lines) == 0 {
		return nil, checkout.ErrNothingToCommit
	}
	subtotal = subtotal.Round(2)

	o.Discount = decimal.Zero
	if req.Coupon != nil {
		o.Discount, err = c.consumeCoupon(ctx, tx, req.Coupon.ID, subtotal)
		if err != nil {
			return nil, err
		}
		o.CouponID = req.Coupon.ID
	}
	o.Total = subtotal.Sub(o.Discount).Round(2)

	if err := c.insertOrder(ctx, tx, o); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, deleteCartSQL, req.UserID); err != nil {
		return nil, fmt.Errorf("clearing cart for user %q: %w", req.UserID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return o, nil
}

func (c *Committer) lockCartLines(ctx context.Context, tx pgx.Tx, userID string) ([]commitLine, error) {
	rows, err := tx.Query(ctx, lockCartLinesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("locking cart lines for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (commitLine, error) {
		var (
			l   commitLine
			qty int32
		)
		err := row.Scan(&l.lineID, &l.productID, &qty)
		l.quantity = int(qty)
		return l, err
	})
}

type commitProduct struct {
	name  string
	price decimal.Decimal
}

func (c *Committer) lockProducts(ctx context.Context, tx pgx.Tx, lines []commitLine) (map[string]commitProduct, error) {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.productID
	}
	sort.Strings(ids)

	rows, err := tx.Query(ctx, getCommitProductsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("locking products: %w", err)
	}

	products := make(map[string]commitProduct, len(ids))
	var (
		id string
		p  commitProduct
	)
	if _, err := pgx.ForEachRow(rows, []any{&id, &p.name, &p.price}, func() error {
		products[id] = p
		return nil
	}); err != nil {
		return nil, fmt.Errorf("scanning products: %w", err)
	}
	return products, nil
}

// consumeCoupon increments the coupon's usage counter, re-checking the
// validity window and usage limit against commit time. The earlier
// validation was advisory; this conditional update is what actually holds.
func (c *Committer) consumeCoupon(ctx context.Context, tx pgx.Tx, couponID string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	var percent decimal.Decimal
	err := tx.QueryRow(ctx, consumeCouponSQL, couponID, c.now()).Scan(&percent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, checkout.ErrCouponNoLongerValid
		}
		return decimal.Zero, fmt.Errorf("consuming coupon %q: %w", couponID, err)
	}

	discount := subtotal.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount, nil
}

func (c *Committer) insertOrder(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	var couponID *string
	if o.CouponID != "" {
		couponID = &o.CouponID
	}

	err := tx.QueryRow(ctx, insertOrderSQL,
		o.ID, o.UserID, o.AddressID, couponID, o.Total, o.Discount,
		o.PaymentMethod, o.PaymentStatus, o.CaptureID, o.Status,
	).Scan(&o.CreatedAt)
	if err != nil {
		// A duplicate capture id means another commit already recorded this
		// payment; treat the replay as already committed.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "orders_capture_id_key" {
			return checkout.ErrNothingToCommit
		}
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	for _, l := range o.Lines {
		if _, err := tx.Exec(ctx, insertOrderItemSQL,
			l.ID, o.ID, l.ProductID, l.ProductName, l.Quantity, l.UnitPrice,
		); err != nil {
			return fmt.Errorf("inserting order item for %q: %w", l.ProductID, err)
		}
	}
	return nil
}
