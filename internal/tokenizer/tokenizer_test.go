package tokenizer

import (
	"testing"

	"github.com/V-Enzo/flashT5/internal/models"
)

func TestEncode_SpecialsAndEOS(t *testing.T) {
	tok := NewDefault()

	ids := tok.Encode("aabb <head> ccdd <pkt>")
	if n := len(ids); n != 5 {
		t.Fatalf("got %d ids: %v", n, ids)
	}
	if ids[1] != models.HeadID {
		t.Errorf("id 1 = %d, want <head>", ids[1])
	}
	if ids[3] != models.PktID {
		t.Errorf("id 3 = %d, want <pkt>", ids[3])
	}
	if ids[4] != models.EOSID {
		t.Errorf("id 4 = %d, want EOS", ids[4])
	}
	for _, id := range ids[:4] {
		if id < models.HeadID {
			t.Errorf("content word mapped to reserved id %d", id)
		}
	}
}

func TestEncode_ContentIDsAboveSentinels(t *testing.T) {
	tok := NewDefault()
	for _, id := range tok.Encode("00 ff abcd 0123") {
		if id == models.EOSID {
			continue
		}
		if id < models.SentinelBase {
			t.Fatalf("content id %d collides with the sentinel range", id)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	tok := NewDefault()
	tests := []string{
		"aabb",
		"aabb ccdd",
		"dead beef <head> ca fe <pkt>",
		"00 01 ff",
	}
	for _, text := range tests {
		ids := tok.Encode(text)
		got := tok.Decode(ids[:len(ids)-1]) // strip EOS
		if got != text {
			t.Errorf("round trip %q -> %v -> %q", text, ids, got)
		}
	}
}

// Six-digit words are not in the vocabulary and must split into a
// four-digit prefix plus a two-digit continuation.
func TestEncode_GreedySplit(t *testing.T) {
	tok := NewDefault()

	ids := tok.Encode("aabbcc")
	if len(ids) != 3 { // prefix, continuation, EOS
		t.Fatalf("got ids %v", ids)
	}
	if got := tok.Decode(ids[:2]); got != "aabbcc" {
		t.Fatalf("decoded %q, want aabbcc", got)
	}
	// The continuation piece keeps its marker when decoded alone.
	if got := tok.Decode(ids[1:2]); got != "##cc" {
		t.Fatalf("isolated continuation decoded to %q", got)
	}
}

func TestEncode_Unknown(t *testing.T) {
	tok, err := New([]string{"00"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ids := tok.Encode("zz")
	if len(ids) != 2 || ids[0] != models.UnkID {
		t.Fatalf("got ids %v, want [unk eos]", ids)
	}
}

func TestNew_Rejections(t *testing.T) {
	if _, err := New([]string{"<pkt>"}); err == nil {
		t.Error("reserved token accepted")
	}
	if _, err := New([]string{"00", "00"}); err == nil {
		t.Error("duplicate token accepted")
	}
}

func TestVocabSize(t *testing.T) {
	tok := NewDefault()
	// 65536 four-digit words, 256 two-digit pieces and their
	// continuations, 5 specials.
	if got, want := tok.VocabSize(), 65536+512+5; got != want {
		t.Fatalf("vocab size = %d, want %d", got, want)
	}
}
