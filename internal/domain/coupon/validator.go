package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Validator checks whether a coupon code may be applied right now and
// returns the coupon when it may. Validation never reserves usage.
type Validator interface {
	Validate(ctx context.Context, code string) (*Coupon, error)
}

// RepoValidator implements Validator against a Repository, optionally
// short-circuiting unknown codes through a CodeFilter.
type RepoValidator struct {
	repo   Repository
	filter *CodeFilter
	now    func() time.Time
}

// NewRepoValidator creates a RepoValidator. filter may be nil.
func NewRepoValidator(repo Repository, filter *CodeFilter) *RepoValidator {
	return &RepoValidator{repo: repo, filter: filter, now: time.Now}
}

// Validate looks up the code and applies the rejection rules in order:
// unknown code, not yet active, expired, usage limit reached.
func (v *RepoValidator) Validate(ctx context.Context, code string) (*Coupon, error) {
	if v.filter != nil && !v.filter.MayContain(code) {
		return nil, ErrNotFound
	}

	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if err := c.ValidAt(v.now()); err != nil {
		return nil, err
	}
	return c, nil
}
