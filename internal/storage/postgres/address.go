package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/gearbox-checkout/internal/domain/address"
)

const (
	getAddressSQL = `SELECT id, user_id, name, line1, line2, city, postcode, country, phone
		FROM addresses WHERE id = $1 AND user_id = $2`

	upsertAddressSQL = `INSERT INTO addresses (id, user_id, name, line1, line2, city, postcode, country, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			line1 = EXCLUDED.line1,
			line2 = EXCLUDED.line2,
			city = EXCLUDED.city,
			postcode = EXCLUDED.postcode,
			country = EXCLUDED.country,
			phone = EXCLUDED.phone`
)

var _ address.Reader = (*AddressRepository)(nil)

// AddressRepository implements address.Reader backed by PostgreSQL.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

// Get returns the address only when it exists and belongs to the user.
func (r *AddressRepository) Get(ctx context.Context, id, userID string) (*address.Address, error) {
	rows, err := r.pool.Query(ctx, getAddressSQL, id, userID)
	if err != nil {
		return nil, fmt.Errorf("getting address %q: %w", id, err)
	}

	a, err := pgx.CollectExactlyOneRow(rows, scanAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, address.ErrNotFound
		}
		return nil, fmt.Errorf("getting address %q: %w", id, err)
	}
	return &a, nil
}

// Upsert inserts or refreshes an address. Used by the seed tool and tests.
func (r *AddressRepository) Upsert(ctx context.Context, a address.Address) error {
	_, err := r.pool.Exec(ctx, upsertAddressSQL,
		a.ID, a.UserID, a.Name, a.Line1, a.Line2, a.City, a.Postcode, a.Country, a.Phone,
	)
	if err != nil {
		return fmt.Errorf("upserting address %q: %w", a.ID, err)
	}
	return nil
}

func scanAddress(row pgx.CollectableRow) (address.Address, error) {
	var a address.Address
	err := row.Scan(
		&a.ID, &a.UserID, &a.Name, &a.Line1, &a.Line2,
		&a.City, &a.Postcode, &a.Country, &a.Phone,
	)
	return a, err
}
