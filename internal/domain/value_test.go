package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrice(t *testing.T) {
	tests := []struct {
		name    string
		in      float64
		wantErr bool
	}{
		{"zero", 0, false},
		{"one", 1, false},
		{"mid", 0.45, false},
		{"negative", -0.01, true},
		{"above one", 1.01, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPrice(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.in, p.Amount())
		})
	}
}

func TestNewQuantity(t *testing.T) {
	q, err := NewQuantity(12.5)
	require.NoError(t, err)
	assert.Equal(t, 12.5, q.Amount())
	assert.False(t, q.IsZero())

	zero, err := NewQuantity(0)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = NewQuantity(-1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSideValid(t *testing.T) {
	assert.True(t, SideBuy.Valid())
	assert.True(t, SideSell.Valid())
	assert.False(t, Side("hold").Valid())
}
