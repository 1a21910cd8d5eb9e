package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/gearbox-checkout/internal/domain/address"
	"github.com/xenking/gearbox-checkout/internal/domain/cart"
	"github.com/xenking/gearbox-checkout/internal/domain/coupon"
	"github.com/xenking/gearbox-checkout/internal/domain/order"
	"github.com/xenking/gearbox-checkout/internal/domain/product"
	"github.com/xenking/gearbox-checkout/internal/payment"
)

// IntentResult is the outcome of the create-intent step.
type IntentResult struct {
	IntentID string
	Review   *Review
}

// FinalizeRequest is the input to Finalize.
type FinalizeRequest struct {
	UserID     string
	AddressID  string
	CouponCode string
	CaptureID  string
}

// Service drives the checkout state machine. Gateway calls happen outside
// any database transaction; the commit is delegated to the Committer and is
// the only step with local side effects.
type Service struct {
	carts     cart.Repository
	catalog   product.Reader
	coupons   coupon.Validator
	addresses address.Reader
	gateway   payment.Gateway
	committer Committer

	committed metric.Int64Counter
}

// NewService creates a checkout Service with its collaborators.
func NewService(
	carts cart.Repository,
	catalog product.Reader,
	coupons coupon.Validator,
	addresses address.Reader,
	gateway payment.Gateway,
	committer Committer,
) *Service {
	committed, _ := otel.Meter("checkout").Int64Counter("checkout.orders.committed",
		metric.WithDescription("Orders successfully committed"))
	return &Service{
		carts:     carts,
		catalog:   catalog,
		coupons:   coupons,
		addresses: addresses,
		gateway:   gateway,
		committer: committer,
		committed: committed,
	}
}

// Review loads the cart and recomputes its pricing server-side. Missing
// products are dropped and flagged. A coupon rejection stops the flow with
// the typed reason; the cart is untouched and the user may retry.
func (s *Service) Review(ctx context.Context, userID, couponCode string) (*Review, error) {
	lines, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart lines")
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
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

	rev := &Review{Subtotal: decimal.Zero, Discount: decimal.Zero}
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			rev.Dropped = append(rev.Dropped, l.ProductID)
			continue
		}
		rev.Lines = append(rev.Lines, ReviewedLine{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  l.Quantity,
		})
		qty := decimal.NewFromInt(int64(l.Quantity))
		rev.Subtotal = rev.Subtotal.Add(p.Price.Mul(qty))
	}
	if len(rev.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	rev.Subtotal = rev.Subtotal.Round(2)

	if couponCode != "" {
		c, err := s.coupons.Validate(ctx, couponCode)
		if err != nil {
			return nil, err
		}
		rev.Coupon = c
		rev.Discount = c.DiscountFor(rev.Subtotal)
	}
	rev.Total = rev.Subtotal.Sub(rev.Discount).Round(2)

	if len(rev.Dropped) > 0 {
		zctx.From(ctx).Warn("cart lines dropped during review",
			zap.String("user_id", userID),
			zap.Strings("product_ids", rev.Dropped),
		)
	}
	return rev, nil
}

// CreateIntent reviews the cart and registers a payment intent with the
// gateway. A failure here has no side effects anywhere; the caller may
// retry from review.
func (s *Service) CreateIntent(ctx context.Context, userID, couponCode string) (*IntentResult, error) {
	rev, err := s.Review(ctx, userID, couponCode)
	if err != nil {
		return nil, err
	}

	plines := make([]payment.Line, len(rev.Lines))
	for i, l := range rev.Lines {
		plines[i] = payment.Line{
			SKU:       l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		}
	}

	intent, err := s.gateway.CreateIntent(ctx, plines, rev.Subtotal, rev.Discount)
	if err != nil {
		return nil, err
	}

	return &IntentResult{IntentID: intent.ID, Review: rev}, nil
}

// Capture asks the gateway to move funds for an approved intent. No local
// state has changed at this point, so any failure is safe to report as-is.
func (s *Service) Capture(ctx context.Context, intentID string) (*payment.Capture, error) {
	return s.gateway.Capture(ctx, intentID)
}

// Finalize runs the commit step: one atomic transaction creating the order,
// decrementing stock, incrementing coupon usage, and clearing the cart.
//
// Failures after this point happen with money already captured. They are
// logged at error level with the capture id so reconciliation can match the
// gateway's record against the missing order; insufficient stock keeps its
// own type, everything else is wrapped in CommitFailedError.
func (s *Service) Finalize(ctx context.Context, req FinalizeRequest) (*order.Order, error) {
	if req.CaptureID == "" {
		return nil, ErrMissingCapture
	}
	if req.AddressID == "" {
		return nil, ErrMissingAddress
	}
	if _, err := s.addresses.Get(ctx, req.AddressID, req.UserID); err != nil {
		if errors.Is(err, address.ErrNotFound) {
			return nil, address.ErrNotFound
		}
		return nil, errors.Wrap(err, "resolve address")
	}

	var cpn *coupon.Coupon
	if req.CouponCode != "" {
		c, err := s.coupons.Validate(ctx, req.CouponCode)
		if err != nil {
			return nil, err
		}
		cpn = c
	}

	o, err := s.committer.Commit(ctx, CommitRequest{
		UserID:        req.UserID,
		AddressID:     req.AddressID,
		Coupon:        cpn,
		CaptureID:     req.CaptureID,
		PaymentMethod: order.PaymentMethodPayPal,
	})
	if err != nil {
		return nil, s.commitError(ctx, req, err)
	}

	s.committed.Add(ctx, 1)
	zctx.From(ctx).Info("order committed",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.String("capture_id", o.CaptureID),
		zap.String("state", string(StateCommitted)),
	)
	return o, nil
}

func (s *Service) commitError(ctx context.Context, req FinalizeRequest, err error) error {
	if errors.Is(err, ErrNothingToCommit) {
		return ErrNothingToCommit
	}

	// Everything below happens post-capture: money has moved, no order
	// exists. Alert with the capture id as the correlation key.
	lg := zctx.From(ctx).With(
		zap.String("user_id", req.UserID),
		zap.String("capture_id", req.CaptureID),
	)

	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		lg.Error("commit aborted after capture: insufficient stock",
			zap.String("product_id", stockErr.ProductID),
			zap.Int("requested", stockErr.Requested),
		)
		return stockErr
	}

	lg.Error("commit failed after capture", zap.Error(err))
	return &CommitFailedError{CaptureID: req.CaptureID, Err: err}
}
