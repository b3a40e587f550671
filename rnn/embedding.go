package rnn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Embedding maps token ids to learned rows. The padding row stays zero: it is
// initialised to zero and its gradient is always dropped.
type Embedding struct {
	Weights *mat.Dense // (|V| x E)
	Grad    *mat.Dense
	PadIdx  int
}

func NewEmbedding(rng *rand.Rand, vocabSize, dim, padIdx int) *Embedding {
	data := make([]float64, vocabSize*dim)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	e := &Embedding{
		Weights: mat.NewDense(vocabSize, dim, data),
		Grad:    mat.NewDense(vocabSize, dim, nil),
		PadIdx:  padIdx,
	}
	if padIdx >= 0 && padIdx < vocabSize {
		floats.Scale(0, e.Weights.RawRowView(padIdx))
	}
	return e
}

// Forward returns one (B x E) matrix per timestep.
func (e *Embedding) Forward(batch [][]int) []*mat.Dense {
	B := len(batch)
	if B == 0 {
		panic("embedding: empty batch")
	}
	T := len(batch[0])
	if T == 0 {
		panic("embedding: empty sequence")
	}
	V, E := e.Weights.Dims()
	xs := make([]*mat.Dense, T)
	for t := range xs {
		xs[t] = mat.NewDense(B, E, nil)
	}
	for b, seq := range batch {
		if len(seq) != T {
			panic(fmt.Sprintf("embedding: sequence %d has length %d, want %d", b, len(seq), T))
		}
		for t, id := range seq {
			if id < 0 || id >= V {
				panic(fmt.Sprintf("embedding: token id %d out of range for vocab of %d", id, V))
			}
			copy(xs[t].RawRowView(b), e.Weights.RawRowView(id))
		}
	}
	return xs
}

// Backward scatters per-timestep input gradients into the rows that were looked up.
func (e *Embedding) Backward(batch [][]int, dXs []*mat.Dense) {
	for t, dx := range dXs {
		for b, seq := range batch {
			id := seq[t]
			if id == e.PadIdx {
				continue
			}
			floats.Add(e.Grad.RawRowView(id), dx.RawRowView(b))
		}
	}
}
