package coupon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCodeRepo struct {
	codes []string
}

func (r *staticCodeRepo) FindByCode(_ context.Context, _ string) (*Coupon, error) {
	return nil, ErrNotFound
}

func (r *staticCodeRepo) ListAllCodes(_ context.Context) ([]string, error) {
	return r.codes, nil
}

func TestCodeFilter_MayContain(t *testing.T) {
	repo := &staticCodeRepo{codes: []string{"SAVE10", "LAUNCH25"}}
	f, err := NewCodeFilter(context.Background(), repo)
	require.NoError(t, err)

	assert.True(t, f.MayContain("SAVE10"))
	assert.True(t, f.MayContain("save10"), "matching is case-insensitive")
	assert.True(t, f.MayContain("  SAVE10  "), "surrounding whitespace is ignored")
	assert.False(t, f.MayContain("NOPE-NOT-HERE"))
}

func TestCodeFilter_Reload(t *testing.T) {
	repo := &staticCodeRepo{codes: []string{"SAVE10"}}
	f, err := NewCodeFilter(context.Background(), repo)
	require.NoError(t, err)
	assert.False(t, f.MayContain("NEWCODE"))

	repo.codes = []string{"SAVE10", "NEWCODE"}
	require.NoError(t, f.Reload(context.Background(), repo))

	assert.True(t, f.MayContain("NEWCODE"))
	assert.True(t, f.MayContain("SAVE10"))
}
