package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/gearbox-checkout/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, code, discount, start_date, end_date, usage_limit, usage_count
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	listCouponCodesSQL = `SELECT code FROM coupons`

	upsertCouponSQL = `INSERT INTO coupons (id, code, discount, start_date, end_date, usage_limit)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO UPDATE SET
			discount = EXCLUDED.discount,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			usage_limit = EXCLUDED.usage_limit`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive). Returns
// coupon.ErrNotFound when no such coupon exists; window and limit checks are
// the validator's job.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// ListAllCodes returns every coupon code, including expired and not-yet-active
// ones. Feeds the in-memory code filter, which caches existence only: window
// rejections must still reach the validator so an expired code reports
// expired, not unknown.
func (r *CouponRepository) ListAllCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupon codes: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var code string
		err := row.Scan(&code)
		return code, err
	})
}

// Upsert inserts or refreshes a coupon. Used by the seed tool; usage_count is
// deliberately left untouched on conflict.
func (r *CouponRepository) Upsert(ctx context.Context, c coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		c.ID, c.Code, c.Discount, c.StartDate, c.EndDate, c.UsageLimit,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c          coupon.Coupon
		discount   decimal.Decimal
		usageLimit int32
		usageCount int32
	)
	err := row.Scan(
		&c.ID, &c.Code, &discount, &c.StartDate, &c.EndDate, &usageLimit, &usageCount,
	)
	c.Discount = discount
	c.UsageLimit = int(usageLimit)
	c.UsageCount = int(usageCount)
	return c, err
}
