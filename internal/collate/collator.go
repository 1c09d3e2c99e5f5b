package collate

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/V-Enzo/flashT5/internal/config"
	"github.com/V-Enzo/flashT5/internal/metrics"
	"github.com/V-Enzo/flashT5/internal/models"
	"github.com/V-Enzo/flashT5/internal/optimization"
)

var (
	// ErrEmptyBatch reports a collate call with no examples.
	ErrEmptyBatch = errors.New("collate: empty batch")

	// ErrLabelMaskMismatch reports that the NML mask count disagrees
	// with the valid NML label count. This signals a bug in
	// structural-token bookkeeping, never a data quality issue.
	ErrLabelMaskMismatch = errors.New("collate: nml mask and label counts disagree")
)

// Collator is the per-batch entry point of the pipeline. It draws
// fresh noise masks on every call, so masking is re-randomized per
// epoch while the underlying flow records stay cached.
type Collator struct {
	cfg *config.Config
	rng *rand.Rand

	// attendable scratch buffers are reused across rows.
	flags *optimization.BoolSlicePool
}

// NewCollator creates a collator. The random generator is owned by the
// caller; each data-loading worker passes its own derived stream.
func NewCollator(cfg *config.Config, rng *rand.Rand) *Collator {
	return &Collator{
		cfg:   cfg,
		rng:   rng,
		flags: optimization.NewBoolSlicePool(cfg.OptimalLength),
	}
}

// Collate stacks flow records into the tensor dictionary the model
// consumes. All returned tensors are [len(examples)][fixed length].
func (c *Collator) Collate(examples []models.FlowRecord) (*models.Batch, error) {
	if len(examples) == 0 {
		return nil, ErrEmptyBatch
	}

	n := len(examples)
	optimal := c.cfg.OptimalLength

	b := &models.Batch{
		InputIDs:             make([][]int, n),
		Labels:               make([][]int, n),
		AttentionMask:        make([][]bool, n),
		DecoderAttentionMask: make([][]bool, n),
		POPMask:              make([][]bool, n),
		NMLMask:              make([][]bool, n),
		PktSegInd:            make([][]int, n),
		HeadPayloadSegInd:    make([][]int, n),
		POPOrder:             make([][]int, n),
		NMLLabels:            make([][]int, n),
	}

	for i := range examples {
		ex := &examples[i]
		if len(ex.InputIDs) != optimal {
			return nil, fmt.Errorf("collate: record %d has pre-mask length %d, want %d", i, len(ex.InputIDs), optimal)
		}

		realLen := ex.RealLen()

		// Structural tokens are unattendable for masking purposes.
		attendable := c.flags.Get(realLen)
		for j := 0; j < realLen; j++ {
			attendable[j] = !models.IsStructural(ex.InputIDs[j])
		}

		// The noise mask covers the full pre-mask length: padding
		// positions stay false, so on the label side (complement) the
		// padding joins the trailing clean span and compacts away.
		noise := make([]bool, optimal)
		copy(noise, SegmentSpanMask(c.rng, attendable, c.cfg.NoiseDensity, c.cfg.MeanNoiseSpanLength, c.cfg.MinMaskSpanLength))
		c.flags.Put(attendable)

		inputRow, err := Compact(ex.InputIDs, SentinelIDs(noise), c.cfg.MaxLength, false)
		if err != nil {
			return nil, fmt.Errorf("collate: record %d input: %w", i, err)
		}
		labelRow, err := Compact(ex.InputIDs, SentinelIDs(Complement(noise)), c.cfg.MaxLabelsLength, true)
		if err != nil {
			return nil, fmt.Errorf("collate: record %d labels: %w", i, err)
		}

		b.InputIDs[i] = inputRow
		b.Labels[i] = labelRow
		b.AttentionMask[i] = notEqualMask(inputRow, models.PadID)
		b.DecoderAttentionMask[i] = notEqualMask(labelRow, models.IgnoreID)
		b.POPMask[i] = taskMask(inputRow, models.PktID, ex.HasPOP())
		b.NMLMask[i] = taskMask(inputRow, models.HeadID, ex.HasNML())
		b.PktSegInd[i] = packetSegmentIndex(inputRow)
		b.HeadPayloadSegInd[i] = headPayloadSegmentIndex(inputRow)
		b.POPOrder[i] = ex.POPOrder
		b.NMLLabels[i] = ex.NMLLabels
	}

	if err := c.validate(b); err != nil {
		return nil, err
	}

	metrics.BatchesCollated.Inc()
	return b, nil
}

// notEqualMask returns row != id elementwise.
func notEqualMask(row []int, id int) []bool {
	out := make([]bool, len(row))
	for j, tok := range row {
		out[j] = tok != id
	}
	return out
}

// taskMask marks positions holding the given structural token, but
// only when the row carries supervision for the task at all.
func taskMask(row []int, id int, supervised bool) []bool {
	out := make([]bool, len(row))
	if !supervised {
		return out
	}
	for j, tok := range row {
		out[j] = tok == id
	}
	return out
}

// packetSegmentIndex assigns each token the 0-based index of the
// packet it belongs to: an exclusive prefix sum over <pkt> indicators,
// so a <pkt> token itself still counts with its own packet.
func packetSegmentIndex(row []int) []int {
	out := make([]int, len(row))
	seen := 0
	for j, tok := range row {
		out[j] = seen
		if tok == models.PktID {
			seen++
		}
	}
	return out
}

// headPayloadSegmentIndex marks header-region tokens with 1 and
// payload-region tokens with 0. Both <head> and <pkt> toggle the
// region; the marker convention puts <head> inside the header region
// and <pkt> inside the payload region.
func headPayloadSegmentIndex(row []int) []int {
	out := make([]int, len(row))
	cur := 1
	for j, tok := range row {
		if models.IsStructural(tok) {
			cur = 1 - cur
			out[j] = cur ^ 1
		} else {
			out[j] = cur
		}
	}
	return out
}

// validate enforces the per-batch invariants: fixed tensor shapes and
// agreement between the NML mask and the valid NML label count.
func (c *Collator) validate(b *models.Batch) error {
	nmlMaskCount := 0
	nmlLabelCount := 0
	for i := range b.InputIDs {
		if len(b.InputIDs[i]) != c.cfg.MaxLength {
			return fmt.Errorf("collate: input_ids row %d has length %d, want %d", i, len(b.InputIDs[i]), c.cfg.MaxLength)
		}
		if len(b.Labels[i]) != c.cfg.MaxLabelsLength {
			return fmt.Errorf("collate: labels row %d has length %d, want %d", i, len(b.Labels[i]), c.cfg.MaxLabelsLength)
		}
		for _, m := range b.NMLMask[i] {
			if m {
				nmlMaskCount++
			}
		}
		for _, l := range b.NMLLabels[i] {
			if l != models.IgnoreID && l >= 0 {
				nmlLabelCount++
			}
		}
	}
	if nmlMaskCount*c.cfg.NMLLabelGap != nmlLabelCount {
		return fmt.Errorf("%w: %d masked <head> positions x %d labels != %d valid labels",
			ErrLabelMaskMismatch, nmlMaskCount, c.cfg.NMLLabelGap, nmlLabelCount)
	}
	return nil
}
