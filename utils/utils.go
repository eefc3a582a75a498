// Package utils holds the small integer-slice helpers TemporalMemory
// needs for column-count arithmetic and candidate-pool exclusion, kept
// and trimmed from the original htm-community/htm utils package.
package utils

// ProdInt returns the product of vals, or 1 for an empty slice (the
// identity for multiplication, matching how ColumnDimensions folds into
// a total column count).
func ProdInt(vals []int) int {
	product := 1
	for _, v := range vals {
		product *= v
	}
	return product
}

// ContainsInt reports whether q appears in vals.
func ContainsInt(q int, vals []int) bool {
	for _, val := range vals {
		if val == q {
			return true
		}
	}
	return false
}

// Complement returns the elements of s that do not appear in t, in s's
// original order. Used to exclude cells already presynaptic on a segment
// from the candidate pool for new synapse growth.
func Complement(s []int, t []int) []int {
	result := make([]int, 0, len(s))
	for _, val := range s {
		if !ContainsInt(val, t) {
			result = append(result, val)
		}
	}
	return result
}
