package rnn

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

// CheckpointVersion is bumped whenever the on-disk layout changes.
const CheckpointVersion = 1

var (
	ErrCheckpointVersion = errors.New("unsupported checkpoint version")
	ErrShapeMismatch     = errors.New("checkpoint tensor does not match model")
)

type tensorData struct {
	Name       string
	Rows, Cols int
	Data       []float64
}

// checkpoint is the serialized form. It names tensors instead of encoding the
// Go types so the model can be refactored without breaking saved files.
type checkpoint struct {
	Version int
	RunID   string
	Hyper   Hyperparameters
	Vocab   []string
	Tensors []tensorData
}

// Metadata is what a checkpoint stores next to the weights.
type Metadata struct {
	RunID string
	Vocab []string // id -> token
}

// SaveClassifier writes c and its vocabulary to path. The file is written to a
// temporary sibling and renamed so a crash never leaves a truncated checkpoint.
func SaveClassifier(c *Classifier, meta Metadata, path string) error {
	if len(meta.Vocab) != c.Hyper.VocabSize {
		return fmt.Errorf("save checkpoint: vocabulary has %d tokens, model expects %d: %w",
			len(meta.Vocab), c.Hyper.VocabSize, ErrShapeMismatch)
	}
	ck := checkpoint{
		Version: CheckpointVersion,
		RunID:   meta.RunID,
		Hyper:   c.Hyper,
		Vocab:   meta.Vocab,
	}
	for _, p := range c.Params() {
		r, cols := p.Value.Dims()
		data := make([]float64, 0, r*cols)
		for i := 0; i < r; i++ {
			data = append(data, p.Value.RawRowView(i)...)
		}
		ck.Tensors = append(ck.Tensors, tensorData{Name: p.Name, Rows: r, Cols: cols, Data: data})
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(&ck); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("save checkpoint: encode: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadClassifier rebuilds a classifier from a checkpoint written by SaveClassifier.
// A missing file yields an error matching fs.ErrNotExist.
func LoadClassifier(path string) (*Classifier, Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("load checkpoint: %w", err)
	}
	defer f.Close()

	var ck checkpoint
	if err := gob.NewDecoder(f).Decode(&ck); err != nil {
		return nil, Metadata{}, fmt.Errorf("load checkpoint: decode: %w", err)
	}
	if ck.Version != CheckpointVersion {
		return nil, Metadata{}, fmt.Errorf("load checkpoint: version %d, want %d: %w",
			ck.Version, CheckpointVersion, ErrCheckpointVersion)
	}
	if len(ck.Vocab) != ck.Hyper.VocabSize {
		return nil, Metadata{}, fmt.Errorf("load checkpoint: vocabulary has %d tokens, hyperparameters say %d: %w",
			len(ck.Vocab), ck.Hyper.VocabSize, ErrShapeMismatch)
	}

	// weights are overwritten below; the seed only satisfies the constructor
	c, err := NewClassifier(ck.Hyper, rand.New(rand.NewSource(0)))
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("load checkpoint: %w", err)
	}
	byName := make(map[string]tensorData, len(ck.Tensors))
	for _, t := range ck.Tensors {
		byName[t.Name] = t
	}
	params := c.Params()
	if len(byName) != len(params) {
		return nil, Metadata{}, fmt.Errorf("load checkpoint: %d tensors, model has %d: %w",
			len(byName), len(params), ErrShapeMismatch)
	}
	for _, p := range params {
		t, ok := byName[p.Name]
		if !ok {
			return nil, Metadata{}, fmt.Errorf("load checkpoint: missing tensor %q: %w", p.Name, ErrShapeMismatch)
		}
		r, cols := p.Value.Dims()
		if t.Rows != r || t.Cols != cols || len(t.Data) != r*cols {
			return nil, Metadata{}, fmt.Errorf("load checkpoint: tensor %q is %dx%d, want %dx%d: %w",
				p.Name, t.Rows, t.Cols, r, cols, ErrShapeMismatch)
		}
		p.Value.Copy(mat.NewDense(r, cols, t.Data))
	}
	return c, Metadata{RunID: ck.RunID, Vocab: ck.Vocab}, nil
}
