// Package preprocess implements offline flow preprocessing: packet
// truncation to the pre-mask length budget, packet-order-prediction
// permutation, and network-model-layer label parsing. Flow records are
// produced once, cached, and re-masked fresh at every batch draw.
package preprocess

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/V-Enzo/flashT5/internal/config"
	"github.com/V-Enzo/flashT5/internal/logging"
	"github.com/V-Enzo/flashT5/internal/metrics"
	"github.com/V-Enzo/flashT5/internal/models"
	"github.com/V-Enzo/flashT5/internal/tokenizer"
)

var (
	// ErrEmptyFlow reports a record that tokenized to no packets.
	ErrEmptyFlow = errors.New("preprocess: flow has no packets")

	// ErrOverBudget reports a reserialized flow exceeding the pre-mask
	// length budget. This is an offline/online configuration mismatch
	// and must halt the run.
	ErrOverBudget = errors.New("preprocess: flow exceeds optimal length after truncation")
)

// Preprocessor turns raw JSONL records into flow records.
type Preprocessor struct {
	cfg *config.Config
	tok tokenizer.Codec
	log *logging.Logger
}

// NewPreprocessor creates a preprocessor bound to a tokenizer.
func NewPreprocessor(cfg *config.Config, tok tokenizer.Codec) *Preprocessor {
	return &Preprocessor{
		cfg: cfg,
		tok: tok,
		log: logging.PreprocessLogger(),
	}
}

// ProcessChunk preprocesses a contiguous chunk of records. POP flows
// are selected without replacement from the chunk's index pool at the
// configured rate. The rng is owned by the caller; the worker pool
// derives one stream per chunk so results do not depend on scheduling.
func (p *Preprocessor) ProcessChunk(rng *rand.Rand, records []models.RawRecord) ([]models.FlowRecord, error) {
	selected := make([]bool, len(records))
	popCount := int(float64(len(records)) * p.cfg.POPPercent)
	for _, idx := range rng.Perm(len(records))[:popCount] {
		selected[idx] = true
	}

	out := make([]models.FlowRecord, len(records))
	for i := range records {
		rec, err := p.processOne(rng, &records[i], selected[i])
		if err != nil {
			return nil, fmt.Errorf("preprocess: record %d: %w", i, err)
		}
		out[i] = rec
		metrics.FlowsPreprocessed.Inc()
	}
	return out, nil
}

// processOne handles a single flow: tokenize, truncate to budget,
// optionally swap two packets for POP, parse and co-permute the NML
// labels, and reserialize with structural tokens.
func (p *Preprocessor) processOne(rng *rand.Rand, raw *models.RawRecord, popSelected bool) (models.FlowRecord, error) {
	ids := p.tok.Encode(raw.Text)
	packets := splitPackets(ids)
	packetNum := len(packets)
	if packetNum == 0 {
		return models.FlowRecord{}, ErrEmptyFlow
	}
	if packetNum > p.cfg.PacketsPerFlow {
		return models.FlowRecord{}, fmt.Errorf("preprocess: flow has %d packets, exceeds packets_per_flow %d", packetNum, p.cfg.PacketsPerFlow)
	}

	if len(ids) > p.cfg.OptimalLength {
		var err error
		packets, err = p.truncate(packets, len(ids), packetNum)
		if err != nil {
			return models.FlowRecord{}, err
		}
	}

	groups, err := parseNMLLabels(raw.NetworkModelLayer, p.cfg.NMLLabelGap)
	if err != nil {
		return models.FlowRecord{}, err
	}
	if len(groups) != packetNum {
		return models.FlowRecord{}, fmt.Errorf("preprocess: %d nml label groups for %d packets", len(groups), packetNum)
	}

	popOrder := filled(p.cfg.PacketsPerFlow, models.IgnoreID)
	if popSelected && packetNum > p.cfg.POPSwitchGap {
		first := rng.Intn(packetNum - p.cfg.POPSwitchGap)
		second := first + p.cfg.POPSwitchGap

		order := make([]int, packetNum)
		for j := range order {
			order[j] = j
		}
		order[first], order[second] = order[second], order[first]
		packets[first], packets[second] = packets[second], packets[first]
		// Label group i must describe the packet currently at slot i.
		groups[first], groups[second] = groups[second], groups[first]

		copy(popOrder, order)
		metrics.POPSwaps.Inc()
	}

	seq := make([]int, 0, p.cfg.OptimalLength)
	for _, pkt := range packets {
		seq = append(seq, pkt...)
		seq = append(seq, models.PktID)
	}
	if len(seq) > p.cfg.OptimalLength-1 {
		return models.FlowRecord{}, fmt.Errorf("%w: %d tokens, budget %d", ErrOverBudget, len(seq), p.cfg.OptimalLength-1)
	}

	inputIDs := filled(p.cfg.OptimalLength, models.IgnoreID)
	copy(inputIDs, seq)

	nmlLabels := filled(p.cfg.PacketsPerFlow*p.cfg.NMLLabelGap, models.IgnoreID)
	for g, group := range groups {
		copy(nmlLabels[g*p.cfg.NMLLabelGap:], group)
	}

	return models.FlowRecord{
		InputIDs:  inputIDs,
		POPOrder:  popOrder,
		NMLLabels: nmlLabels,
	}, nil
}

// truncate shrinks packet contents proportionally so the reserialized
// flow fits the pre-mask budget. Payload is cut first, from the end of
// each packet, with ceiling rounding on each packet's share; only when
// the whole payload is exhausted does the residual come out of the
// headers, which is an undesired fallback and logged as such.
func (p *Preprocessor) truncate(packets [][]int, currentLen, packetNum int) ([][]int, error) {
	budget := currentLen - (p.cfg.OptimalLength - packetNum - 1)

	headers := make([][]int, packetNum)
	payloads := make([][]int, packetNum)
	totalPayload, totalHeader := 0, 0
	for i, pkt := range packets {
		h := indexOf(pkt, models.HeadID)
		if h < 0 {
			return nil, fmt.Errorf("preprocess: packet %d missing <head> marker", i)
		}
		headers[i] = pkt[:h]
		payloads[i] = pkt[h+1:]
		totalHeader += h
		totalPayload += len(pkt) - h - 1
	}

	if totalPayload >= budget {
		for i := range payloads {
			cut := ceilShare(budget, len(payloads[i]), totalPayload)
			if cut > len(payloads[i]) {
				cut = len(payloads[i])
			}
			payloads[i] = p.trimDanglingSubword(payloads[i][:len(payloads[i])-cut])
		}
	} else {
		residual := budget - totalPayload
		p.log.Warn("truncation exhausted payload, cutting headers",
			"residual", residual, "packets", packetNum)
		metrics.HeaderTruncations.Inc()

		for i := range packets {
			if totalHeader > 0 {
				cut := ceilShare(residual, len(headers[i]), totalHeader)
				if cut > len(headers[i]) {
					cut = len(headers[i])
				}
				headers[i] = p.trimDanglingSubword(headers[i][:len(headers[i])-cut])
			}
			payloads[i] = nil
		}
	}

	out := make([][]int, packetNum)
	for i := range packets {
		pkt := make([]int, 0, len(headers[i])+1+len(payloads[i]))
		pkt = append(pkt, headers[i]...)
		pkt = append(pkt, models.HeadID)
		pkt = append(pkt, payloads[i]...)
		out[i] = pkt
	}
	return out, nil
}

// trimDanglingSubword drops an invalid partial token left at a
// truncation boundary. A short non-continuation fragment is dropped
// outright; a continuation fragment is merged with its predecessor and
// the pair is dropped if the merge is itself a short fragment. This is
// best-effort, not guaranteed lossless.
func (p *Preprocessor) trimDanglingSubword(ids []int) []int {
	if len(ids) == 0 {
		return ids
	}
	last := p.tok.Decode(ids[len(ids)-1:])
	switch {
	case !strings.Contains(last, "#") && len(last) < 4:
		return ids[:len(ids)-1]
	case strings.Contains(last, "#") && len(ids) >= 2:
		prev := p.tok.Decode(ids[len(ids)-2 : len(ids)-1])
		merged := prev + strings.ReplaceAll(last, "#", "")
		if !strings.Contains(merged, "#") && len(merged) < 4 {
			return ids[:len(ids)-2]
		}
	}
	return ids
}

// splitPackets groups a token sequence into packets at <pkt>
// boundaries, dropping a trailing packet that is only the
// end-of-sequence marker.
func splitPackets(ids []int) [][]int {
	var packets [][]int
	start := -1
	for i := 0; i <= len(ids); i++ {
		if i < len(ids) && ids[i] != models.PktID {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			packets = append(packets, ids[start:i])
			start = -1
		}
	}
	if n := len(packets); n > 0 && len(packets[n-1]) == 1 && packets[n-1][0] == models.EOSID {
		packets = packets[:n-1]
	}
	return packets
}

// parseNMLLabels parses the semicolon-delimited per-packet label
// string into integer groups of exactly labelGap entries each.
func parseNMLLabels(s string, labelGap int) ([][]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("preprocess: empty network_model_layer label string")
	}
	rawGroups := strings.Split(s, ";")
	groups := make([][]int, 0, len(rawGroups))
	for gi, rawGroup := range rawGroups {
		fields := strings.Split(rawGroup, ",")
		if len(fields) != labelGap {
			return nil, fmt.Errorf("preprocess: nml group %d has %d labels, want %d", gi, len(fields), labelGap)
		}
		group := make([]int, labelGap)
		for fi, field := range fields {
			v, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return nil, fmt.Errorf("preprocess: nml group %d label %d: %w", gi, fi, err)
			}
			group[fi] = v
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// ceilShare computes ceil(budget * part / total).
func ceilShare(budget, part, total int) int {
	if part == 0 || total == 0 {
		return 0
	}
	return (budget*part + total - 1) / total
}

func indexOf(ids []int, id int) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func filled(n, v int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}
