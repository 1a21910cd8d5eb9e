package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/gearbox-checkout/internal/domain/product"
)

// Service implements the cart operations exposed to users: add, update,
// remove, clear, and the resolved read view.
type Service struct {
	lines   Repository
	catalog product.Reader
}

// NewService creates a cart Service over the given repository and catalog.
func NewService(lines Repository, catalog product.Reader) *Service {
	return &Service{lines: lines, catalog: catalog}
}

// Get returns the user's cart with every line resolved against the catalog.
// Lines referencing products that no longer exist are excluded from the view
// and reported in Dropped — they are never priced at zero.
func (s *Service) Get(ctx context.Context, userID string) (*View, error) {
	lines, err := s.lines.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart lines")
	}
	if len(lines) == 0 {
		return &View{Subtotal: decimal.Zero}, nil
	}

	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	fetched, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "resolve products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	view := &View{Subtotal: decimal.Zero}
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			view.Dropped = append(view.Dropped, l.ID)
			continue
		}
		view.Lines = append(view.Lines, ResolvedLine{
			Line:      l,
			Name:      p.Name,
			UnitPrice: p.Price,
			ImageURL:  p.ImageURL,
		})
		qty := decimal.NewFromInt(int64(l.Quantity))
		view.Subtotal = view.Subtotal.Add(p.Price.Mul(qty))
	}
	view.Subtotal = view.Subtotal.Round(2)
	return view, nil
}

// AddLine appends a line to the user's cart, merging quantities when the same
// (product, variant) pair is already present. The product must exist in the
// catalog at add time.
func (s *Service) AddLine(ctx context.Context, userID, productID string, qty int, variant Variant) (*Line, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	if _, err := s.catalog.GetByID(ctx, productID); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %s", productID)
	}

	line, err := s.lines.Upsert(ctx, Line{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
		Variant:   variant,
	})
	if err != nil {
		return nil, errors.Wrap(err, "upsert cart line")
	}
	return line, nil
}

// UpdateLineQty replaces the quantity of an existing line.
func (s *Service) UpdateLineQty(ctx context.Context, userID, lineID string, qty int) (*Line, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	line, err := s.lines.UpdateQuantity(ctx, userID, lineID, qty)
	if err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return nil, ErrLineNotFound
		}
		return nil, errors.Wrap(err, "update cart line")
	}
	return line, nil
}

// RemoveLine deletes a single line from the user's cart.
func (s *Service) RemoveLine(ctx context.Context, userID, lineID string) error {
	if err := s.lines.Delete(ctx, userID, lineID); err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return ErrLineNotFound
		}
		return errors.Wrap(err, "delete cart line")
	}
	return nil
}

// Clear removes every line from the user's cart. Clearing an empty or absent
// cart succeeds: the finalize path calls Clear unconditionally under retries.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.lines.DeleteAll(ctx, userID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}
