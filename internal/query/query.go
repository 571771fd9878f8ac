// Package query provides read-only filter/sort/aggregate helpers over
// in-memory entity slices. Callers pass snapshots that are replaced wholesale
// between refresh cycles, so the helpers never mutate their inputs.
package query

import (
	"sort"

	"github.com/alanyoungcy/sentinel/internal/domain"
)

// Filter returns the elements of items for which keep returns true.
func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// SortBy returns a sorted copy of items ordered by less.
func SortBy[T any](items []T, less func(a, b T) bool) []T {
	out := make([]T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// GroupBy buckets items by the key function.
func GroupBy[T any, K comparable](items []T, key func(T) K) map[K][]T {
	out := make(map[K][]T)
	for _, it := range items {
		k := key(it)
		out[k] = append(out[k], it)
	}
	return out
}

// SumBy totals the value function over items.
func SumBy[T any](items []T, value func(T) float64) float64 {
	var total float64
	for _, it := range items {
		total += value(it)
	}
	return total
}

// OpenPositions returns only the positions that still carry size.
func OpenPositions(positions []domain.Position) []domain.Position {
	return Filter(positions, domain.Position.IsOpen)
}

// TotalExposure is the summed current notional value of the given positions.
func TotalExposure(positions []domain.Position) float64 {
	return SumBy(positions, domain.Position.Value)
}

// TopByExposure returns up to n positions ordered by descending notional value.
func TopByExposure(positions []domain.Position, n int) []domain.Position {
	sorted := SortBy(positions, func(a, b domain.Position) bool {
		return a.Value() > b.Value()
	})
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}
