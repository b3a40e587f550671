package rnn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/manningwu07/sentiment/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func tinyHyper() Hyperparameters {
	return Hyperparameters{
		VocabSize:     7,
		EmbedSize:     3,
		HiddenSize:    2,
		NumLayers:     2,
		Bidirectional: true,
		Dropout:       0,
		NumClasses:    2,
		PadIdx:        0,
	}
}

var tinyBatch = [][]int{
	{3, 4, 1, 0},
	{5, 6, 2, 1},
	{4, 1, 0, 0},
}

func TestClassifier_GradFiniteDiff(t *testing.T) {
	for _, bidir := range []bool{true, false} {
		h := tinyHyper()
		h.Bidirectional = bidir
		c, err := NewClassifier(h, rand.New(rand.NewSource(7)))
		require.NoError(t, err)
		labels := []int{0, 1, 1}

		c.ZeroGrad()
		logits, tr := c.ForwardTrain(tinyBatch, nil)
		_, dLogits := utils.CrossEntropy(logits, labels)
		c.Backward(tr, dLogits)

		lossAt := func() float64 {
			l, _ := utils.CrossEntropy(c.Forward(tinyBatch), labels)
			return l
		}

		const eps = 1e-5
		for _, p := range c.Params() {
			r, cols := p.Value.Dims()
			for i := 0; i < r; i++ {
				for j := 0; j < cols; j++ {
					w0 := p.Value.At(i, j)
					p.Value.Set(i, j, w0+eps)
					lp := lossAt()
					p.Value.Set(i, j, w0-eps)
					lm := lossAt()
					p.Value.Set(i, j, w0)

					num := (lp - lm) / (2 * eps)
					ana := p.Grad.At(i, j)
					if p.Name == "embedding" && i == h.PadIdx {
						assert.Zero(t, ana, "pad row grad must stay zero")
						continue
					}
					tol := 1e-6 + 1e-4*math.Max(math.Abs(num), math.Abs(ana))
					if math.Abs(num-ana) > tol {
						t.Fatalf("bidir=%v %s[%d,%d] grad mismatch: num=%.6g ana=%.6g", bidir, p.Name, i, j, num, ana)
					}
				}
			}
		}
	}
}

func TestClassifier_ForwardShape(t *testing.T) {
	c, err := NewClassifier(tinyHyper(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	r, cols := c.Forward(tinyBatch).Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, cols)

	r, cols = c.Forward([][]int{{3, 1}}).Dims()
	assert.Equal(t, 1, r)
	assert.Equal(t, 2, cols)
}

func TestClassifier_ForwardIsStateless(t *testing.T) {
	h := tinyHyper()
	h.Dropout = 0.5
	c, err := NewClassifier(h, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	a := c.Forward(tinyBatch)
	c.Forward([][]int{{6, 6, 6}})
	b := c.Forward(tinyBatch)
	assert.True(t, mat.Equal(a, b))

	// one row alone gives the same logits as inside the batch
	single := c.Forward(tinyBatch[1:2])
	assert.True(t, mat.EqualApprox(single, a.Slice(1, 2, 0, 2), 1e-10))
}

func TestClassifier_DropoutOnlyInTraining(t *testing.T) {
	h := tinyHyper()
	h.Dropout = 0.5
	h.HiddenSize = 8
	c, err := NewClassifier(h, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	eval := c.Forward(tinyBatch)
	noRng, _ := c.ForwardTrain(tinyBatch, nil)
	assert.True(t, mat.Equal(eval, noRng))

	train, _ := c.ForwardTrain(tinyBatch, rand.New(rand.NewSource(3)))
	assert.False(t, mat.EqualApprox(eval, train, 1e-9))
}

func TestClassifier_PadRowStaysZero(t *testing.T) {
	c, err := NewClassifier(tinyHyper(), rand.New(rand.NewSource(2)))
	require.NoError(t, err)
	for _, v := range c.Embedding.Weights.RawRowView(0) {
		assert.Zero(t, v)
	}

	c.ZeroGrad()
	logits, tr := c.ForwardTrain(tinyBatch, nil)
	_, d := utils.CrossEntropy(logits, []int{1, 0, 1})
	c.Backward(tr, d)
	for _, v := range c.Embedding.Grad.RawRowView(0) {
		assert.Zero(t, v)
	}
}

func TestClassifier_ParamsNamedAndShaped(t *testing.T) {
	c, err := NewClassifier(tinyHyper(), rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	ps := c.Params()
	// embedding + 2 layers * 2 directions * 4 + head W/B
	require.Len(t, ps, 1+2*2*4+2)

	byName := map[string][2]int{}
	for _, p := range ps {
		r, cols := p.Value.Dims()
		gr, gc := p.Grad.Dims()
		assert.Equal(t, r, gr, p.Name)
		assert.Equal(t, cols, gc, p.Name)
		byName[p.Name] = [2]int{r, cols}
	}
	assert.Equal(t, [2]int{7, 3}, byName["embedding"])
	assert.Equal(t, [2]int{3, 6}, byName["gru.l0.fwd.Wi"])
	assert.Equal(t, [2]int{4, 6}, byName["gru.l1.bwd.Wi"])
	assert.Equal(t, [2]int{2, 6}, byName["gru.l1.fwd.Wh"])
	assert.Equal(t, [2]int{4, 2}, byName["head.W"])
	assert.Equal(t, [2]int{1, 2}, byName["head.B"])
}

func TestNewClassifier_RejectsBadHyperparameters(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Hyperparameters)
	}{
		{"no vocab", func(h *Hyperparameters) { h.VocabSize = 0 }},
		{"no layers", func(h *Hyperparameters) { h.NumLayers = 0 }},
		{"dropout one", func(h *Hyperparameters) { h.Dropout = 1 }},
		{"pad outside vocab", func(h *Hyperparameters) { h.PadIdx = 7 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tinyHyper()
			tt.mutate(&h)
			_, err := NewClassifier(h, rand.New(rand.NewSource(1)))
			assert.Error(t, err)
		})
	}
}

func TestEmbedding_PanicsOnBadIds(t *testing.T) {
	e := NewEmbedding(rand.New(rand.NewSource(1)), 4, 2, 0)
	assert.Panics(t, func() { e.Forward([][]int{{1, 4}}) })
	assert.Panics(t, func() { e.Forward([][]int{{1, 2}, {1}}) })
	assert.Panics(t, func() { e.Forward(nil) })
}
