package rnn

import (
	"fmt"
	"math/rand"

	"github.com/manningwu07/sentiment/optimizations"
	"github.com/manningwu07/sentiment/utils"
	"gonum.org/v1/gonum/mat"
)

// SequenceModel maps a batch of equal-length id sequences to (B x C) logits.
// Forward runs in inference mode and keeps no state between calls.
type SequenceModel interface {
	Forward(batch [][]int) *mat.Dense
}

type Hyperparameters struct {
	VocabSize     int
	EmbedSize     int
	HiddenSize    int // per direction
	NumLayers     int
	Bidirectional bool
	Dropout       float64
	NumClasses    int
	PadIdx        int
}

func (h Hyperparameters) validate() error {
	for _, p := range []struct {
		name string
		v    int
	}{
		{"vocab size", h.VocabSize},
		{"embed size", h.EmbedSize},
		{"hidden size", h.HiddenSize},
		{"num layers", h.NumLayers},
		{"num classes", h.NumClasses},
	} {
		if p.v <= 0 {
			return fmt.Errorf("classifier: %s must be positive, got %d", p.name, p.v)
		}
	}
	if h.Dropout < 0 || h.Dropout >= 1 {
		return fmt.Errorf("classifier: dropout must be in [0, 1), got %g", h.Dropout)
	}
	if h.PadIdx < 0 || h.PadIdx >= h.VocabSize {
		return fmt.Errorf("classifier: pad index %d outside vocab of %d", h.PadIdx, h.VocabSize)
	}
	return nil
}

// Classifier is embedding -> stacked (bi)GRU -> pooled final states -> dropout -> linear.
type Classifier struct {
	Hyper Hyperparameters

	Embedding *Embedding
	Encoder   *GRU

	HeadW, HeadB   *mat.Dense // (D*H x C), (1 x C)
	DHeadW, DHeadB *mat.Dense
}

func NewClassifier(h Hyperparameters, rng *rand.Rand) (*Classifier, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}
	c := &Classifier{
		Hyper:     h,
		Embedding: NewEmbedding(rng, h.VocabSize, h.EmbedSize, h.PadIdx),
		Encoder:   NewGRU(rng, h.EmbedSize, h.HiddenSize, h.NumLayers, h.Bidirectional, h.Dropout),
	}
	pooled := c.Encoder.OutputSize()
	fan := float64(pooled)
	c.HeadW = mat.NewDense(pooled, h.NumClasses, utils.RandomArray(rng, pooled*h.NumClasses, fan))
	c.HeadB = mat.NewDense(1, h.NumClasses, utils.RandomArray(rng, h.NumClasses, fan))
	c.DHeadW = mat.NewDense(pooled, h.NumClasses, nil)
	c.DHeadB = mat.NewDense(1, h.NumClasses, nil)
	return c, nil
}

// Trace holds the activations of one training forward pass.
type Trace struct {
	batch    [][]int
	gru      *gruTrace
	pooled   *mat.Dense
	headMask *mat.Dense
}

// Forward computes logits with dropout disabled.
func (c *Classifier) Forward(batch [][]int) *mat.Dense {
	logits, _ := c.forward(batch, nil)
	return logits
}

// ForwardTrain computes logits with dropout drawn from rng and returns the trace
// Backward needs. A nil rng disables dropout.
func (c *Classifier) ForwardTrain(batch [][]int, rng *rand.Rand) (*mat.Dense, *Trace) {
	return c.forward(batch, rng)
}

func (c *Classifier) forward(batch [][]int, rng *rand.Rand) (*mat.Dense, *Trace) {
	xs := c.Embedding.Forward(batch)
	pooled, gt := c.Encoder.forward(xs, rng)
	tr := &Trace{batch: batch, gru: gt}
	if rng != nil && c.Hyper.Dropout > 0 {
		pooled, tr.headMask = dropout(pooled, c.Hyper.Dropout, rng)
	}
	tr.pooled = pooled
	logits := utils.Dot(pooled, c.HeadW)
	utils.AddRowVector(logits, c.HeadB)
	return logits, tr
}

// Backward accumulates parameter gradients for dL/dlogits into the grad buffers.
func (c *Classifier) Backward(tr *Trace, dLogits *mat.Dense) {
	var dW mat.Dense
	dW.Mul(tr.pooled.T(), dLogits)
	c.DHeadW.Add(c.DHeadW, &dW)
	utils.AccumulateColSums(c.DHeadB, dLogits)

	dPooled := utils.Dot(dLogits, c.HeadW.T())
	if tr.headMask != nil {
		dPooled.MulElem(dPooled, tr.headMask)
	}
	dXs := c.Encoder.backward(tr.gru, dPooled)
	c.Embedding.Backward(tr.batch, dXs)
}

func (c *Classifier) ZeroGrad() {
	c.Embedding.Grad.Zero()
	c.Encoder.zeroGrad()
	c.DHeadW.Zero()
	c.DHeadB.Zero()
}

// Params lists every learnable tensor with a stable name, in a stable order.
func (c *Classifier) Params() []optimizations.Param {
	ps := []optimizations.Param{{Name: "embedding", Value: c.Embedding.Weights, Grad: c.Embedding.Grad}}
	for l, layer := range c.Encoder.layers {
		ps = append(ps, cellParams(fmt.Sprintf("gru.l%d.fwd", l), layer.fwd)...)
		if layer.bwd != nil {
			ps = append(ps, cellParams(fmt.Sprintf("gru.l%d.bwd", l), layer.bwd)...)
		}
	}
	return append(ps,
		optimizations.Param{Name: "head.W", Value: c.HeadW, Grad: c.DHeadW},
		optimizations.Param{Name: "head.B", Value: c.HeadB, Grad: c.DHeadB},
	)
}

func cellParams(prefix string, cell *GRUCell) []optimizations.Param {
	return []optimizations.Param{
		{Name: prefix + ".Wi", Value: cell.Wi, Grad: cell.DWi},
		{Name: prefix + ".Wh", Value: cell.Wh, Grad: cell.DWh},
		{Name: prefix + ".Bi", Value: cell.Bi, Grad: cell.DBi},
		{Name: prefix + ".Bh", Value: cell.Bh, Grad: cell.DBh},
	}
}
