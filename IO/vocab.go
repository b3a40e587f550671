package IO

import "strings"

// Reserved tokens, always at the start of the vocab.
const (
	PadToken = "<PAD>"
	EndToken = "<END>"
	UnkToken = "<UNK>"

	PadID = 0
	EndID = 1
	UnkID = 2
)

var special = []string{PadToken, EndToken, UnkToken}

// Vocabulary maps lowercased words to ids and back. It is read-only once built.
type Vocabulary struct {
	TokenToID map[string]int
	IDToToken []string
}

func newReservedVocabulary() *Vocabulary {
	v := &Vocabulary{
		TokenToID: make(map[string]int, len(special)),
		IDToToken: append([]string(nil), special...),
	}
	for i, t := range special {
		v.TokenToID[t] = i
	}
	return v
}

// BuildVocabulary counts lowercased words over the whole corpus and gives every
// word seen at least threshold times the next free id, in first-encounter order.
func BuildVocabulary(examples []Example, threshold int) *Vocabulary {
	counts := make(map[string]int, 1<<12)
	order := make([]string, 0, 1<<12)
	for _, ex := range examples {
		for _, tok := range ex.Tokens {
			w := strings.ToLower(tok)
			if counts[w] == 0 {
				order = append(order, w)
			}
			counts[w]++
		}
	}

	v := newReservedVocabulary()
	for _, w := range order {
		if counts[w] < threshold {
			continue
		}
		v.TokenToID[w] = len(v.IDToToken)
		v.IDToToken = append(v.IDToToken, w)
	}
	return v
}

// Size is the number of ids, reserved tokens included.
func (v *Vocabulary) Size() int {
	return len(v.IDToToken)
}

// Lookup returns the id of tok (lowercased), or UnkID.
func (v *Vocabulary) Lookup(tok string) int {
	if id, ok := v.TokenToID[strings.ToLower(tok)]; ok {
		return id
	}
	return UnkID
}

// Encode maps tokens to exactly maxLen ids: words, then END, then PAD filler.
// Sequences that do not fit are cut to their first maxLen ids, so END is only
// kept when there is room for it.
func (v *Vocabulary) Encode(tokens []string, maxLen int) []int {
	out := make([]int, maxLen)
	n := 0
	for _, tok := range tokens {
		if n == maxLen {
			return out
		}
		out[n] = v.Lookup(tok)
		n++
	}
	if n < maxLen {
		out[n] = EndID
	}
	// remaining slots are already PadID (0)
	return out
}
