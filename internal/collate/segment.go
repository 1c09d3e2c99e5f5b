package collate

import "math/rand"

// SegmentSpanMask applies span noise masking independently within the
// maximal runs of attendable positions. Structural tokens are
// pre-marked false in attendable; each false position is itself
// excluded and never grouped into a run. Runs shorter than
// minSegmentLength stay entirely unmasked, so the span generator's
// length>=2 precondition always holds.
func SegmentSpanMask(rng *rand.Rand, attendable []bool, noiseDensity, meanSpanLength float64, minSegmentLength int) []bool {
	mask := make([]bool, len(attendable))

	runStart := -1
	for i := 0; i <= len(attendable); i++ {
		if i < len(attendable) && attendable[i] {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		// Boundary: either a structural position or the end of input.
		if runStart >= 0 {
			runLen := i - runStart
			if runLen >= minSegmentLength {
				sub := SpanNoiseMask(rng, runLen, noiseDensity, meanSpanLength)
				copy(mask[runStart:i], sub)
			}
			runStart = -1
		}
	}
	return mask
}
