package collate

import (
	"errors"
	"fmt"

	"github.com/V-Enzo/flashT5/internal/models"
)

// ErrLengthBudget reports that a compacted sequence does not fit its
// configured target length. This indicates a mismatch between the
// offline length budget and the online masking parameters and must
// halt the run; it is never a recoverable per-batch condition.
var ErrLengthBudget = errors.New("collate: compacted sequence exceeds target length")

// Compact overlays sentinel assignments onto a token sequence, deletes
// interior-masked positions, appends the end marker, and pads to
// targetLength. Positions where sentinels is nonzero take the sentinel
// value; every resulting negative value (interior deletion markers and
// IgnoreID pre-mask padding) is dropped.
//
// For label extraction (isLabel), the final retained element is also
// dropped: it is the boundary sentinel belonging to the next, absent,
// span. Labels pad with models.IgnoreID, inputs with models.PadID.
func Compact(seq, sentinels []int, targetLength int, isLabel bool) ([]int, error) {
	out := make([]int, 0, targetLength)
	for i, tok := range seq {
		v := tok
		if sentinels[i] != 0 {
			v = sentinels[i]
		}
		if v >= 0 {
			out = append(out, v)
		}
	}

	if isLabel && len(out) > 0 {
		out = out[:len(out)-1]
	}

	if len(out)+1 > targetLength {
		return nil, fmt.Errorf("%w: %d+EOS into %d (is_label=%t)", ErrLengthBudget, len(out), targetLength, isLabel)
	}
	out = append(out, models.EOSID)

	pad := models.PadID
	if isLabel {
		pad = models.IgnoreID
	}
	for len(out) < targetLength {
		out = append(out, pad)
	}
	return out, nil
}
