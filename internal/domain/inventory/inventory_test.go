package inventory

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStock_NeverNegative(t *testing.T) {
	for current := 0; current <= 12; current++ {
		for original := 0; original <= 12; original++ {
			for requested := 0; requested <= 12; requested++ {
				got, err := NewStock(7, current, original, requested)
				want := current - (requested - original)
				if want < 0 {
					var insufficient *InsufficientStockError
					require.ErrorAs(t, err, &insufficient)
					assert.ErrorIs(t, err, ErrInsufficientStock)
					assert.Equal(t, int64(7), insufficient.ProductID)
					assert.Equal(t, current, insufficient.CurrentStock)
					assert.Equal(t, original, insufficient.OriginalQuantity)
					assert.Equal(t, requested, insufficient.RequestedQuantity)
					assert.Equal(t, requested-original, insufficient.NetChange)
					continue
				}
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		}
	}
}

func TestNewStock(t *testing.T) {
	tests := []struct {
		name      string
		current   int
		original  int
		requested int
		want      int
		wantErr   error
	}{
		{name: "new line consumes", current: 10, original: 0, requested: 4, want: 6},
		{name: "exact stock", current: 5, original: 0, requested: 5, want: 0},
		{name: "increase", current: 5, original: 3, requested: 5, want: 3},
		{name: "decrease returns units", current: 1, original: 4, requested: 1, want: 4},
		{name: "cancel restores", current: 6, original: 4, requested: 0, want: 10},
		{name: "over sell", current: 5, original: 0, requested: 15, wantErr: ErrInsufficientStock},
		{name: "negative original", current: 5, original: -1, requested: 1, wantErr: ErrInvalidQuantity},
		{name: "negative requested", current: 5, original: 1, requested: -1, wantErr: ErrInvalidQuantity},
		{name: "restore to max", current: math.MaxInt - 4, original: 4, requested: 0, want: math.MaxInt},
		{name: "restore overflows", current: math.MaxInt - 3, original: 4, requested: 0, wantErr: ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStock(1, tt.current, tt.original, tt.requested)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlan(t *testing.T) {
	p := NewPlan()
	require.True(t, p.Empty())

	require.NoError(t, p.Add(1, 10, 2, 0))
	require.NoError(t, p.Add(2, 10, 3, 5))
	require.NoError(t, p.Add(3, 10, 0, 1))

	err := p.Add(4, 1, 0, 2)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 3, p.Len(), "failed change must not be recorded")

	assert.ErrorIs(t, p.Add(1, 10, 0, 1), ErrInvalidQuantity)

	c, ok := p.Get(1)
	require.True(t, ok)
	assert.Equal(t, 12, c.NewStock)
	assert.Equal(t, -2, c.Delta())

	c, _ = p.Get(2)
	assert.Equal(t, 8, c.NewStock)
	assert.Equal(t, 2, c.Delta())

	changes := p.Changes()
	require.Len(t, changes, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{changes[0].ProductID, changes[1].ProductID, changes[2].ProductID})
}
