package collate

import "github.com/V-Enzo/flashT5/internal/models"

// SentinelIDs converts a boolean noise mask into sentinel assignments
// for one row. The first position of each masked span receives a
// descending sentinel id allocated from models.SentinelBase (earlier
// spans get higher ids, matching the vocabulary's top-down extra-id
// layout). Interior span positions are marked -1 for deletion;
// unmasked positions stay 0.
func SentinelIDs(mask []bool) []int {
	ids := make([]int, len(mask))
	span := 0
	for i, m := range mask {
		if !m {
			continue
		}
		if i == 0 || !mask[i-1] {
			span++
			ids[i] = models.SentinelBase - span
		} else {
			ids[i] = -1
		}
	}
	return ids
}

// Complement returns the logical negation of mask. The label-side
// sentinel encoding runs on the complement of the input noise mask, so
// that every input sentinel lines up with exactly one label span.
func Complement(mask []bool) []bool {
	out := make([]bool, len(mask))
	for i, m := range mask {
		out[i] = !m
	}
	return out
}
