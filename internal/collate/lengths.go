package collate

import "math"

// ComputeInputAndTargetLengths derives the raw (pre-mask) token length
// and the encoded target length that make span corruption land on
// inputsLength without padding. Each noise span collapses to one
// sentinel in the input; the targets carry the noise tokens plus one
// sentinel per span boundary; both sides get an EOS appended.
//
// The offline preprocessor truncates flows to the returned tokensLength
// so that corrupted inputs come out at inputsLength.
func ComputeInputAndTargetLengths(inputsLength int, noiseDensity, meanNoiseSpanLength float64) (tokensLength, targetsLength int) {
	lengths := func(tokens int) (int, int) {
		numNoise := int(math.Round(float64(tokens) * noiseDensity))
		numNonNoise := tokens - numNoise
		numSpans := int(math.Round(float64(numNoise) / meanNoiseSpanLength))
		// Inputs: all non-noise tokens, one sentinel per noise span,
		// one EOS. Targets: noise tokens, span sentinels on both the
		// leading and interior boundaries, one EOS. Sparse short-span
		// truncation can still demand extra sentinels, which is why
		// the target budget carries the boundary term.
		inputLen := numNonNoise + numSpans + 1
		targetLen := numNoise + numSpans + numSpans - 1 + 1
		return inputLen, targetLen
	}

	tokensLength = inputsLength
	for {
		in, _ := lengths(tokensLength + 1)
		if in > inputsLength {
			break
		}
		tokensLength++
	}

	_, targetsLength = lengths(tokensLength)

	// At density 0.5 the two sides want the same round number; nudge
	// the target down to match.
	if noiseDensity == 0.5 && targetsLength > inputsLength {
		tokensLength--
		targetsLength--
	}
	return tokensLength, targetsLength
}
