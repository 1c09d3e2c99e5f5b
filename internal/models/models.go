// Package models defines the core data structures for the flashT5
// pre-training data pipeline: raw dataset records, preprocessed flow
// records, and collated batch tensors.
package models

// Distinguished token ids. These are fixed by the tokenizer vocabulary
// layout and must stay distinct from all content ids.
const (
	// PadID pads corrupted input sequences to their target length.
	PadID = 0
	// EOSID is the end-of-sequence marker appended by the compactor.
	EOSID = 1
	// UnkID is the unknown-token fallback.
	UnkID = 2
	// HeadID marks the boundary between a packet's header region and
	// its payload region.
	HeadID = 3
	// PktID terminates a packet inside a flow.
	PktID = 4

	// SentinelBase is the exclusive upper bound for sentinel ids.
	// Span sentinels are allocated downward from it, so the first
	// masked span in a row receives id SentinelBase-1.
	SentinelBase = 107

	// IgnoreID marks padded label entries and unused pre-mask input
	// positions. It is never a valid token id.
	IgnoreID = -100
)

// IsStructural reports whether id is a structural token, i.e. a token
// that marks a boundary rather than content. Structural tokens are
// never eligible for span corruption.
func IsStructural(id int) bool {
	return id == HeadID || id == PktID
}

// RawRecord is one line of the external JSONL dataset format produced
// by the ingest step: a flow serialized as whitespace-separated hex
// words with <head>/<pkt> markers, plus its per-packet protocol-layer
// label string ("l,n,t,a;l,n,t,a;...").
type RawRecord struct {
	Path              string `json:"path,omitempty"`
	Label             string `json:"label,omitempty"`
	Text              string `json:"text"`
	NetworkModelLayer string `json:"network_model_layer"`
}

// FlowRecord is one preprocessed training example: a tokenized flow
// padded to the optimal (pre-mask) length with IgnoreID, together with
// its packet-order-prediction and network-model-layer side labels.
// FlowRecords are produced once offline and cached; masking happens
// fresh on every batch draw.
type FlowRecord struct {
	// InputIDs is the token sequence, IgnoreID-padded to OptimalLength.
	InputIDs []int `json:"input_ids"`

	// POPOrder holds the post-swap packet permutation, one entry per
	// packet slot, IgnoreID for unused slots. All-IgnoreID means the
	// flow carries no POP supervision.
	POPOrder []int `json:"pop_order"`

	// NMLLabels holds the flattened per-packet layer labels,
	// NMLLabelGap entries per packet, IgnoreID-padded.
	NMLLabels []int `json:"nml_labels"`
}

// RealLen returns the number of non-padding positions in InputIDs.
func (r *FlowRecord) RealLen() int {
	n := 0
	for _, id := range r.InputIDs {
		if id != IgnoreID {
			n++
		}
	}
	return n
}

// HasPOP reports whether the record carries packet-order supervision.
func (r *FlowRecord) HasPOP() bool {
	for _, v := range r.POPOrder {
		if v != IgnoreID {
			return true
		}
	}
	return false
}

// HasNML reports whether the record carries layer-label supervision.
func (r *FlowRecord) HasNML() bool {
	for _, v := range r.NMLLabels {
		if v != IgnoreID {
			return true
		}
	}
	return false
}

// Batch is the complete input contract to the downstream model. Every
// tensor is [batch][length]; input-side tensors use the configured
// max length, label-side tensors the configured max labels length.
type Batch struct {
	InputIDs [][]int
	Labels   [][]int

	AttentionMask        [][]bool
	DecoderAttentionMask [][]bool

	// POPMask marks <pkt> positions eligible for packet-order
	// supervision; NMLMask marks <head> positions eligible for
	// layer-classification supervision.
	POPMask [][]bool
	NMLMask [][]bool

	// PktSegInd is the 0-based packet index per token.
	// HeadPayloadSegInd is 1 for tokens inside a header region (up to
	// and including the <head> marker), 0 otherwise.
	PktSegInd         [][]int
	HeadPayloadSegInd [][]int

	// POPOrder and NMLLabels are the stacked per-example side labels.
	POPOrder  [][]int
	NMLLabels [][]int
}

// Size returns the number of examples in the batch.
func (b *Batch) Size() int {
	return len(b.InputIDs)
}
