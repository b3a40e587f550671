package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/manningwu07/sentiment/IO"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// firstTokenModel says positive when the first id is odd.
type firstTokenModel struct{}

func (firstTokenModel) Forward(batch [][]int) *mat.Dense {
	out := mat.NewDense(len(batch), 2, nil)
	for i, seq := range batch {
		out.Set(i, seq[0]%2, 1)
	}
	return out
}

func TestClassifyCLI(t *testing.T) {
	vocab := IO.BuildVocabulary([]IO.Example{{Tokens: []string{"great", "awful"}}}, 1)
	// great=3 awful=4
	in := strings.NewReader("great stuff\n\nawful!\nexit\ngreat\n")
	var out bytes.Buffer

	require.NoError(t, ClassifyCLI(firstTokenModel{}, vocab, 5, in, &out))
	got := out.String()
	assert.Equal(t, 2, strings.Count(got, "Sentiment:"))
	assert.Less(t, strings.Index(got, "Sentiment: positive"), strings.Index(got, "Sentiment: negative"))
}

func TestClassifyCLI_EOFWithoutNewline(t *testing.T) {
	vocab := IO.BuildVocabulary([]IO.Example{{Tokens: []string{"great"}}}, 1)
	var out bytes.Buffer
	require.NoError(t, ClassifyCLI(firstTokenModel{}, vocab, 5, strings.NewReader("great"), &out))
	assert.Contains(t, out.String(), "Sentiment: positive")
}

func TestFitWorkers(t *testing.T) {
	assert.Equal(t, 1, fitWorkers(1))
	assert.LessOrEqual(t, fitWorkers(1<<20), 1<<20)
	assert.Positive(t, fitWorkers(1<<20))
}
