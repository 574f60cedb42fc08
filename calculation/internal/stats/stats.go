// Package stats implements the per-metric statistics reported by the
// calculation service.
package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic average of values rounded to two decimals, or
// 0 when values is empty. Values are summed in ascending order so the result
// does not depend on input order.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := sortedCopy(values)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return Round2(sum / float64(len(sorted)))
}

// Median returns the middle value of values (the average of the two central
// values for an even count) rounded to two decimals, or 0 when values is
// empty. values is left untouched.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := sortedCopy(values)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return Round2(sorted[mid])
	}
	return Round2((sorted[mid-1] + sorted[mid]) / 2)
}

// Round2 rounds v to two decimals, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sortedCopy(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return sorted
}
