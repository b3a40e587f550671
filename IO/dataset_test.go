package IO

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainDataset_EndToEnd(t *testing.T) {
	d, err := NewTrainDataset(goodBadCorpus(), 1, 5)
	require.NoError(t, err)
	require.Equal(t, 2, d.Len())

	v := d.Vocabulary()
	assert.Equal(t, map[string]int{
		PadToken: 0, EndToken: 1, UnkToken: 2,
		"good": 3, "movie": 4, "bad": 5,
	}, v.TokenToID)

	seq, label, err := d.Example(0)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 1, 0, 0}, seq)
	assert.Equal(t, 1, label)

	seq, label, err = d.Example(1)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 4, 1, 0, 0}, seq)
	assert.Equal(t, 0, label)
}

func TestDataset_IndexOutOfRange(t *testing.T) {
	d, err := NewTrainDataset(goodBadCorpus(), 1, 5)
	require.NoError(t, err)

	for _, i := range []int{-1, 2, 100} {
		_, _, err := d.Example(i)
		assert.ErrorIs(t, err, ErrIndexOutOfRange, "index %d", i)
	}
}

func TestEncodedDataset_UsesTrainingVocabulary(t *testing.T) {
	train, err := NewTrainDataset(goodBadCorpus(), 1, 5)
	require.NoError(t, err)

	test, err := NewEncodedDataset(SplitTest, []Example{
		{Label: 1, Tokens: []string{"good", "film"}},
	}, train.Vocabulary(), 5)
	require.NoError(t, err)

	seq, label, err := test.Example(0)
	require.NoError(t, err)
	assert.Equal(t, []int{3, UnkID, EndID, PadID, PadID}, seq)
	assert.Equal(t, 1, label)
	assert.Same(t, train.Vocabulary(), test.Vocabulary())
	assert.Equal(t, 6, train.Vocabulary().Size(), "test split must not grow the vocabulary")
}

func TestDatasetSplitMisuse(t *testing.T) {
	vocab := BuildVocabulary(goodBadCorpus(), 1)

	tests := []struct {
		name  string
		build func() (*Dataset, error)
	}{
		{"test split without vocab", func() (*Dataset, error) {
			return NewDataset(SplitTest, goodBadCorpus(), nil, 1, 5)
		}},
		{"val split without vocab", func() (*Dataset, error) {
			return NewEncodedDataset(SplitVal, goodBadCorpus(), nil, 5)
		}},
		{"encoded train split", func() (*Dataset, error) {
			return NewEncodedDataset(SplitTrain, goodBadCorpus(), vocab, 5)
		}},
		{"train split with external vocab", func() (*Dataset, error) {
			return NewDataset(SplitTrain, goodBadCorpus(), vocab, 1, 5)
		}},
		{"unknown split", func() (*Dataset, error) {
			return NewDataset(Split("holdout"), goodBadCorpus(), vocab, 1, 5)
		}},
		{"zero max len", func() (*Dataset, error) {
			return NewTrainDataset(goodBadCorpus(), 1, 0)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.build()
			assert.Nil(t, d)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestNewDataset_Dispatch(t *testing.T) {
	train, err := NewDataset(SplitTrain, goodBadCorpus(), nil, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, SplitTrain, train.Split())

	val, err := NewDataset(SplitVal, goodBadCorpus(), train.Vocabulary(), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, SplitVal, val.Split())
	assert.Equal(t, 5, val.MaxLen())
}
