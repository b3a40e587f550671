package IO

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ExportVocabJSON writes TokenToID/IDToToken so inference can run without the corpus.
func ExportVocabJSON(v *Vocabulary, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	data := map[string]any{
		"TokenToID": v.TokenToID,
		"IDToToken": v.IDToToken,
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// ImportVocabJSON loads a vocab.json written by ExportVocabJSON.
func ImportVocabJSON(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var data struct {
		IDToToken []string `json:"IDToToken"`
	}
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return nil, err
	}
	return VocabularyFromTokens(data.IDToToken)
}

// VocabularyFromTokens rebuilds a Vocabulary from its id-ordered token list.
func VocabularyFromTokens(idToToken []string) (*Vocabulary, error) {
	if len(idToToken) < len(special) {
		return nil, fmt.Errorf("%w: vocabulary has %d tokens, fewer than the reserved ones", ErrConfiguration, len(idToToken))
	}
	for i, s := range special {
		if idToToken[i] != s {
			return nil, fmt.Errorf("%w: id %d is %q, want %q", ErrConfiguration, i, idToToken[i], s)
		}
	}
	v := &Vocabulary{
		TokenToID: make(map[string]int, len(idToToken)),
		IDToToken: append([]string(nil), idToToken...),
	}
	for i, t := range v.IDToToken {
		if _, dup := v.TokenToID[t]; dup {
			return nil, fmt.Errorf("%w: duplicate token %q", ErrConfiguration, t)
		}
		v.TokenToID[t] = i
	}
	return v, nil
}
