package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/sentinel/internal/domain"
)

func pos(id string, size, price float64) domain.Position {
	return domain.Position{
		ID:           id,
		Side:         domain.SideBuy,
		Size:         domain.MustQuantity(size),
		CurrentPrice: price,
	}
}

func TestOpenPositions(t *testing.T) {
	positions := []domain.Position{
		pos("a", 10, 0.5),
		pos("b", 0, 0.5),
		pos("c", 3, 0.2),
	}

	open := OpenPositions(positions)
	assert.Len(t, open, 2)
	assert.Equal(t, "a", open[0].ID)
	assert.Equal(t, "c", open[1].ID)
	// Input untouched.
	assert.Len(t, positions, 3)
}

func TestTotalExposure(t *testing.T) {
	positions := []domain.Position{
		pos("a", 10, 0.5), // 5.0
		pos("b", 4, 0.25), // 1.0
	}
	assert.InDelta(t, 6.0, TotalExposure(positions), 1e-12)
	assert.Zero(t, TotalExposure(nil))
}

func TestTopByExposure(t *testing.T) {
	positions := []domain.Position{
		pos("small", 1, 0.1),
		pos("big", 100, 0.9),
		pos("mid", 10, 0.5),
	}

	top := TopByExposure(positions, 2)
	assert.Len(t, top, 2)
	assert.Equal(t, "big", top[0].ID)
	assert.Equal(t, "mid", top[1].ID)
}

func TestGroupBy(t *testing.T) {
	positions := []domain.Position{
		{ID: "a", MarketID: "m1"},
		{ID: "b", MarketID: "m2"},
		{ID: "c", MarketID: "m1"},
	}

	groups := GroupBy(positions, func(p domain.Position) string { return p.MarketID })
	assert.Len(t, groups, 2)
	assert.Len(t, groups["m1"], 2)
	assert.Len(t, groups["m2"], 1)
}
