// Package tokenizer provides the text-to-id codec boundary for the
// pipeline. The pipeline treats the tokenizer as opaque: an encode and
// a decode function plus fixed special-token ids. The bundled
// implementation is a WordPiece-style codec over whitespace-separated
// hex words, matching the vocabulary layout the model was built
// around: specials at the bottom, sentinel ids below SentinelBase,
// content ids above.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/V-Enzo/flashT5/internal/models"
)

// Codec converts between text and integer token ids.
type Codec interface {
	// Encode tokenizes text and appends the end-of-sequence marker.
	Encode(text string) []int
	// Decode renders ids back to text. Continuation pieces keep their
	// "##" prefix when decoded in isolation.
	Decode(ids []int) string
}

// continuationPrefix marks a WordPiece subword that continues the
// previous piece.
const continuationPrefix = "##"

// HexWordPiece is a greedy longest-prefix WordPiece codec. Words not
// present in the vocabulary are split into a prefix piece plus
// "##"-prefixed continuation pieces; unknown fragments map to UnkID.
type HexWordPiece struct {
	vocab map[string]int
	ids   map[int]string
}

// specialTokens maps the reserved surface forms to their fixed ids.
var specialTokens = map[string]int{
	"<pad>":  models.PadID,
	"</s>":   models.EOSID,
	"<unk>":  models.UnkID,
	"<head>": models.HeadID,
	"<pkt>":  models.PktID,
}

// New builds a codec from a vocabulary listing. The listing assigns
// ids sequentially starting at models.SentinelBase; ids below that are
// reserved for specials and span sentinels. Reserved surface forms in
// the listing are rejected.
func New(vocab []string) (*HexWordPiece, error) {
	c := &HexWordPiece{
		vocab: make(map[string]int, len(vocab)+len(specialTokens)),
		ids:   make(map[int]string, len(vocab)+len(specialTokens)),
	}
	for tok, id := range specialTokens {
		c.vocab[tok] = id
		c.ids[id] = tok
	}
	for i, tok := range vocab {
		if _, reserved := specialTokens[tok]; reserved {
			return nil, fmt.Errorf("tokenizer: reserved token %q in vocabulary", tok)
		}
		id := models.SentinelBase + i
		if _, dup := c.vocab[tok]; dup {
			return nil, fmt.Errorf("tokenizer: duplicate token %q", tok)
		}
		c.vocab[tok] = id
		c.ids[id] = tok
	}
	return c, nil
}

// NewDefault builds the full hex codec: every 4-hex-digit word, every
// 2-hex-digit piece, and the matching "##" continuations.
func NewDefault() *HexWordPiece {
	const digits = "0123456789abcdef"
	vocab := make([]string, 0, 65536+3*256)
	var w [4]byte
	for i := 0; i < 16; i++ {
		for j := 0; j < 16; j++ {
			w[0], w[1] = digits[i], digits[j]
			vocab = append(vocab, string(w[:2]))
			vocab = append(vocab, continuationPrefix+string(w[:2]))
		}
	}
	for i := 0; i < 16; i++ {
		for j := 0; j < 16; j++ {
			for k := 0; k < 16; k++ {
				for l := 0; l < 16; l++ {
					w[0], w[1], w[2], w[3] = digits[i], digits[j], digits[k], digits[l]
					vocab = append(vocab, string(w[:]))
				}
			}
		}
	}
	c, err := New(vocab)
	if err != nil {
		// The built-in vocabulary contains no reserved or duplicate
		// tokens; a failure here is a programming error.
		panic(err)
	}
	return c
}

// Encode tokenizes whitespace-separated words and appends EOSID.
func (c *HexWordPiece) Encode(text string) []int {
	words := strings.Fields(text)
	ids := make([]int, 0, len(words)+1)
	for _, word := range words {
		ids = append(ids, c.encodeWord(word)...)
	}
	return append(ids, models.EOSID)
}

// encodeWord performs greedy longest-prefix matching on a single word.
func (c *HexWordPiece) encodeWord(word string) []int {
	if id, ok := c.vocab[word]; ok {
		return []int{id}
	}

	var out []int
	rest := word
	first := true
	for len(rest) > 0 {
		prefix := rest
		if !first {
			prefix = continuationPrefix + rest
		}
		matched := false
		// Longest matching prefix wins; a 1-char floor keeps progress.
		for end := len(rest); end >= 1; end-- {
			cand := prefix[:len(prefix)-len(rest)+end]
			if id, ok := c.vocab[cand]; ok {
				out = append(out, id)
				rest = rest[end:]
				matched = true
				break
			}
		}
		if !matched {
			return []int{models.UnkID}
		}
		first = false
	}
	return out
}

// Decode renders ids to text. Continuation pieces are merged into the
// preceding piece; everything else is space-separated. A single
// continuation id decodes to its raw "##" form, which the truncation
// sanity check depends on.
func (c *HexWordPiece) Decode(ids []int) string {
	var b strings.Builder
	for i, id := range ids {
		tok, ok := c.ids[id]
		if !ok {
			tok = "<unk>"
		}
		cont := strings.HasPrefix(tok, continuationPrefix)
		if i > 0 && !cont {
			b.WriteByte(' ')
		}
		if cont && i > 0 {
			tok = strings.TrimPrefix(tok, continuationPrefix)
		}
		b.WriteString(tok)
	}
	return b.String()
}

// VocabSize returns the number of distinct ids the codec can emit.
func (c *HexWordPiece) VocabSize() int {
	return len(c.vocab)
}
