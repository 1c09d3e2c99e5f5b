// Package collate implements the per-batch collation pipeline: span
// noise masking, sentinel encoding, sequence compaction, and batch
// assembly for the MSP, POP and NML pre-training tasks.
package collate

import (
	"math"
	"math/rand"

	"github.com/V-Enzo/flashT5/internal/metrics"
)

// SpanNoiseMask produces a boolean noise mask of the given length with
// randomized span boundaries. The number of noise tokens is
// round(length*noiseDensity) clamped to [1, length-1]; the number of
// noise spans is round(noiseTokens/meanSpanLength) clamped to at least
// one. Spans alternate clean/noise beginning with clean; subject to
// those counts, all masks are equally likely.
//
// Callers must guarantee length >= 2. The segment masker gates on a
// minimum segment length well above that.
func SpanNoiseMask(rng *rand.Rand, length int, noiseDensity, meanSpanLength float64) []bool {
	numNoise := int(math.Round(float64(length) * noiseDensity))
	if numNoise < 1 {
		numNoise = 1
	}
	if numNoise > length-1 {
		numNoise = length - 1
	}
	numClean := length - numNoise

	numSpans := int(math.Round(float64(numNoise) / meanSpanLength))
	if numSpans < 1 {
		numSpans = 1
	}
	// A positive-parts partition needs at least as many items as
	// segments on both the noise and the clean side.
	if numSpans > numNoise {
		numSpans = numNoise
	}
	if numSpans > numClean {
		numSpans = numClean
	}

	noiseLens := randomSegmentation(rng, numNoise, numSpans)
	cleanLens := randomSegmentation(rng, numClean, numSpans)

	mask := make([]bool, length)
	pos := 0
	for s := 0; s < numSpans; s++ {
		pos += cleanLens[s]
		for j := 0; j < noiseLens[s]; j++ {
			mask[pos] = true
			pos++
		}
	}
	metrics.MaskSpans.Add(uint64(numSpans))
	return mask
}

// randomSegmentation partitions numItems into numSegments positive
// integer parts uniformly at random (stars and bars: shuffle
// numSegments-1 cut marks among numItems-1 gaps).
func randomSegmentation(rng *rand.Rand, numItems, numSegments int) []int {
	cuts := make([]bool, numItems-1)
	for i := 0; i < numSegments-1; i++ {
		cuts[i] = true
	}
	rng.Shuffle(len(cuts), func(i, j int) {
		cuts[i], cuts[j] = cuts[j], cuts[i]
	})

	lens := make([]int, 0, numSegments)
	run := 1
	for _, cut := range cuts {
		if cut {
			lens = append(lens, run)
			run = 1
		} else {
			run++
		}
	}
	return append(lens, run)
}
