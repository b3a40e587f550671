package rnn

import (
	"encoding/gob"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var tinyVocab = []string{"<PAD>", "<END>", "<UNK>", "i", "love", "hate", "cats"}

func TestCheckpoint_RoundTripPreservesLogits(t *testing.T) {
	c, err := NewClassifier(tinyHyper(), rand.New(rand.NewSource(11)))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "nested", "model.gob")

	require.NoError(t, SaveClassifier(c, Metadata{RunID: "run-1", Vocab: tinyVocab}, path))
	_, err = os.Stat(path + ".tmp")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	got, meta, err := LoadClassifier(path)
	require.NoError(t, err)
	assert.Equal(t, c.Hyper, got.Hyper)
	assert.Equal(t, "run-1", meta.RunID)
	assert.Equal(t, tinyVocab, meta.Vocab)
	assert.True(t, mat.Equal(c.Forward(tinyBatch), got.Forward(tinyBatch)))
}

func TestLoadClassifier_Missing(t *testing.T) {
	_, _, err := LoadClassifier(filepath.Join(t.TempDir(), "nope.gob"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadClassifier_WrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.gob")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, gob.NewEncoder(f).Encode(&checkpoint{Version: CheckpointVersion + 1, Hyper: tinyHyper()}))
	require.NoError(t, f.Close())

	_, _, err = LoadClassifier(path)
	assert.ErrorIs(t, err, ErrCheckpointVersion)
}

func TestLoadClassifier_ShapeMismatch(t *testing.T) {
	c, err := NewClassifier(tinyHyper(), rand.New(rand.NewSource(11)))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, SaveClassifier(c, Metadata{Vocab: tinyVocab}, path))

	// rewrite with hyperparameters that no longer match the tensors
	f, err := os.Open(path)
	require.NoError(t, err)
	var ck checkpoint
	require.NoError(t, gob.NewDecoder(f).Decode(&ck))
	f.Close()
	ck.Hyper.HiddenSize = 3
	f, err = os.Create(path)
	require.NoError(t, err)
	require.NoError(t, gob.NewEncoder(f).Encode(&ck))
	require.NoError(t, f.Close())

	_, _, err = LoadClassifier(path)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestSaveClassifier_VocabSizeMismatch(t *testing.T) {
	c, err := NewClassifier(tinyHyper(), rand.New(rand.NewSource(11)))
	require.NoError(t, err)
	err = SaveClassifier(c, Metadata{Vocab: tinyVocab[:3]}, filepath.Join(t.TempDir(), "m.gob"))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
