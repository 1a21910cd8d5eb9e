package coupon

import (
	"context"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

const (
	filterCapacity = 100_000
	filterFPR      = 0.001
)

// CodeFilter is a bloom-filter negative cache over every known coupon code,
// expired and upcoming ones included. A miss proves the code does not exist,
// so validation can reject without a database round trip; a hit still
// requires the authoritative lookup, which is where window and limit
// rejections come from.
type CodeFilter struct {
	mu sync.RWMutex
	bf *bloom.BloomFilter
}

// NewCodeFilter builds a filter from all codes known to the repository.
func NewCodeFilter(ctx context.Context, repo Repository) (*CodeFilter, error) {
	f := &CodeFilter{bf: bloom.NewWithEstimates(filterCapacity, filterFPR)}
	if err := f.Reload(ctx, repo); err != nil {
		return nil, err
	}
	return f, nil
}

// Reload rebuilds the filter from the repository. Safe for concurrent use
// with MayContain; intended to run periodically so newly created coupons
// become visible.
func (f *CodeFilter) Reload(ctx context.Context, repo Repository) error {
	codes, err := repo.ListAllCodes(ctx)
	if err != nil {
		return errors.Wrap(err, "list coupon codes")
	}

	bf := bloom.NewWithEstimates(filterCapacity, filterFPR)
	for _, code := range codes {
		bf.AddString(normalizeCode(code))
	}

	f.mu.Lock()
	f.bf = bf
	f.mu.Unlock()
	return nil
}

// MayContain reports whether the code might exist. False negatives are
// impossible; false positives occur at the configured rate.
func (f *CodeFilter) MayContain(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.TestString(normalizeCode(code))
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
