package collate

import (
	"math/rand"
	"testing"

	"github.com/V-Enzo/flashT5/internal/models"
)

func TestSentinelIDs(t *testing.T) {
	tests := []struct {
		name string
		mask []bool
		want []int
	}{
		{
			name: "two_spans",
			mask: []bool{false, true, true, false, true},
			want: []int{0, 106, -1, 0, 105},
		},
		{
			name: "start_of_row",
			mask: []bool{true, true, false},
			want: []int{106, -1, 0},
		},
		{
			name: "no_spans",
			mask: []bool{false, false, false},
			want: []int{0, 0, 0},
		},
		{
			name: "single_positions",
			mask: []bool{false, true, false, true, false, true},
			want: []int{0, 106, 0, 105, 0, 104},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SentinelIDs(tt.mask)
			if len(got) != len(tt.want) {
				t.Fatalf("length = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("position %d = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// Sentinel round-trip: span boundaries recovered from the compacted
// input must match the original mask's spans.
func TestSentinelRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(21))

	for trial := 0; trial < 100; trial++ {
		n := 16 + rng.Intn(100)
		seq := make([]int, n+8) // trailing IgnoreID padding
		for i := 0; i < n; i++ {
			seq[i] = models.SentinelBase + rng.Intn(1000)
		}
		for i := n; i < len(seq); i++ {
			seq[i] = models.IgnoreID
		}

		mask := make([]bool, len(seq))
		copy(mask, SpanNoiseMask(rng, n, 0.2, 3))

		compacted, err := Compact(seq, SentinelIDs(mask), len(seq)+1, false)
		if err != nil {
			t.Fatalf("compact: %v", err)
		}

		// Walk the compacted input: descending sentinels must appear
		// once per original mask span, and the retained tokens must be
		// exactly the unmasked ones in order.
		wantSpans := countRuns(mask)
		var kept []int
		spans := 0
		for _, tok := range compacted {
			if tok == models.EOSID || tok == models.PadID {
				break
			}
			if tok < models.SentinelBase && tok >= models.SentinelBase-100 {
				spans++
				if tok != models.SentinelBase-spans {
					t.Fatalf("sentinel %d out of order, want %d", tok, models.SentinelBase-spans)
				}
				continue
			}
			kept = append(kept, tok)
		}
		if spans != wantSpans {
			t.Fatalf("recovered %d spans, want %d", spans, wantSpans)
		}

		var wantKept []int
		for i := 0; i < n; i++ {
			if !mask[i] {
				wantKept = append(wantKept, seq[i])
			}
		}
		if len(kept) != len(wantKept) {
			t.Fatalf("kept %d tokens, want %d", len(kept), len(wantKept))
		}
		for i := range kept {
			if kept[i] != wantKept[i] {
				t.Fatalf("kept token %d = %d, want %d", i, kept[i], wantKept[i])
			}
		}
	}
}

func TestComplement(t *testing.T) {
	mask := []bool{true, false, true}
	got := Complement(mask)
	want := []bool{false, true, false}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("position %d = %t, want %t", i, got[i], want[i])
		}
	}
}
