package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/gearbox-checkout/internal/domain/cart"
)

const (
	listCartLinesSQL = `SELECT id, user_id, product_id, quantity, color, size
		FROM cart_items WHERE user_id = $1 ORDER BY created_at`

	upsertCartLineSQL = `INSERT INTO cart_items (id, user_id, product_id, quantity, color, size)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, product_id, color, size) DO UPDATE SET
			quantity = cart_items.quantity + EXCLUDED.quantity,
			updated_at = now()
		RETURNING id, user_id, product_id, quantity, color, size`

	updateCartLineQtySQL = `UPDATE cart_items SET quantity = $3, updated_at = now()
		WHERE id = $2 AND user_id = $1
		RETURNING id, user_id, product_id, quantity, color, size`

	deleteCartLineSQL = `DELETE FROM cart_items WHERE id = $2 AND user_id = $1`

	deleteCartSQL = `DELETE FROM cart_items WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. The unique
// key on (user_id, product_id, color, size) makes Upsert merge quantities
// instead of duplicating lines.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// ListByUser returns the user's cart lines in insertion order.
func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]cart.Line, error) {
	rows, err := r.pool.Query(ctx, listCartLinesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart lines for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanCartLine)
}

// Upsert inserts the line or merges its quantity into the existing line with
// the same (user, product, variant) key.
func (r *CartRepository) Upsert(ctx context.Context, line cart.Line) (*cart.Line, error) {
	rows, err := r.pool.Query(ctx, upsertCartLineSQL,
		line.ID, line.UserID, line.ProductID, line.Quantity,
		line.Variant.Color, line.Variant.Size,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting cart line: %w", err)
	}

	l, err := pgx.CollectExactlyOneRow(rows, scanCartLine)
	if err != nil {
		return nil, fmt.Errorf("upserting cart line: %w", err)
	}
	return &l, nil
}

// UpdateQuantity sets a line's quantity. Returns cart.ErrLineNotFound when
// the line does not exist or belongs to another user.
func (r *CartRepository) UpdateQuantity(ctx context.Context, userID, lineID string, qty int) (*cart.Line, error) {
	rows, err := r.pool.Query(ctx, updateCartLineQtySQL, userID, lineID, qty)
	if err != nil {
		return nil, fmt.Errorf("updating cart line %q: %w", lineID, err)
	}

	l, err := pgx.CollectExactlyOneRow(rows, scanCartLine)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrLineNotFound
		}
		return nil, fmt.Errorf("updating cart line %q: %w", lineID, err)
	}
	return &l, nil
}

// Delete removes a single line. Returns cart.ErrLineNotFound when nothing
// matched.
func (r *CartRepository) Delete(ctx context.Context, userID, lineID string) error {
	tag, err := r.pool.Exec(ctx, deleteCartLineSQL, userID, lineID)
	if err != nil {
		return fmt.Errorf("deleting cart line %q: %w", lineID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

// DeleteAll clears the user's cart. Deleting an already empty cart succeeds.
func (r *CartRepository) DeleteAll(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, deleteCartSQL, userID)
	if err != nil {
		return fmt.Errorf("clearing cart for user %q: %w", userID, err)
	}
	return nil
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var (
		l   cart.Line
		qty int32
	)
	err := row.Scan(&l.ID, &l.UserID, &l.ProductID, &qty, &l.Variant.Color, &l.Variant.Size)
	l.Quantity = int(qty)
	return l, err
}
