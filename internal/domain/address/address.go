package address

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when an address does not exist or belongs to a
// different user. Callers cannot distinguish the two cases.
var ErrNotFound = errors.New("address not found")

// Address is a shipping destination owned by a single user.
type Address struct {
	ID       string
	UserID   string
	Name     string
	Line1    string
	Line2    string
	City     string
	Postcode string
	Country  string
	Phone    string
}

// Reader provides ownership-checked address lookup.
type Reader interface {
	Get(ctx context.Context, id, userID string) (*Address, error)
}
