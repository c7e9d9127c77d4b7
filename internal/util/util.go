package util

import "sort"

// SortBy returns a copy of items sorted with the given less function.
func SortBy[E any](items []E, less func(l, r E) bool) []E {
	sorted := make([]E, len(items))
	copy(sorted, items)

	sort.Slice(sorted, func(i, j int) bool {
		return less(sorted[i], sorted[j])
	})

	return sorted
}
