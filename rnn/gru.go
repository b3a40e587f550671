package rnn

import (
	"math"
	"math/rand"

	"github.com/manningwu07/sentiment/utils"
	"gonum.org/v1/gonum/mat"
)

// GRUCell is one direction of one GRU layer. Gates are packed along the 3H axis
// as reset | update | candidate:
//
//	r  = σ(x·Wi_r + bi_r + h·Wh_r + bh_r)
//	z  = σ(x·Wi_z + bi_z + h·Wh_z + bh_z)
//	n  = tanh(x·Wi_n + bi_n + r ⊙ (h·Wh_n + bh_n))
//	h' = (1-z) ⊙ n + z ⊙ h
type GRUCell struct {
	In, Hidden int

	Wi, Wh *mat.Dense // (In x 3H), (H x 3H)
	Bi, Bh *mat.Dense // (1 x 3H)

	DWi, DWh, DBi, DBh *mat.Dense
}

func NewGRUCell(rng *rand.Rand, in, hidden int) *GRUCell {
	h3 := 3 * hidden
	fan := float64(hidden)
	return &GRUCell{
		In:     in,
		Hidden: hidden,
		Wi:     mat.NewDense(in, h3, utils.RandomArray(rng, in*h3, fan)),
		Wh:     mat.NewDense(hidden, h3, utils.RandomArray(rng, hidden*h3, fan)),
		Bi:     mat.NewDense(1, h3, utils.RandomArray(rng, h3, fan)),
		Bh:     mat.NewDense(1, h3, utils.RandomArray(rng, h3, fan)),
		DWi:    mat.NewDense(in, h3, nil),
		DWh:    mat.NewDense(hidden, h3, nil),
		DBi:    mat.NewDense(1, h3, nil),
		DBh:    mat.NewDense(1, h3, nil),
	}
}

// gruStep keeps what backward needs from one timestep; all (B x H) but x.
type gruStep struct {
	x, hPrev    *mat.Dense
	r, z, n, hn *mat.Dense // hn = h·Wh_n + bh_n
}

func (c *GRUCell) step(x, hPrev *mat.Dense) (*mat.Dense, gruStep) {
	B, _ := x.Dims()
	H := c.Hidden
	gi := utils.Dot(x, c.Wi)
	utils.AddRowVector(gi, c.Bi)
	gh := utils.Dot(hPrev, c.Wh)
	utils.AddRowVector(gh, c.Bh)

	s := gruStep{
		x:     x,
		hPrev: hPrev,
		r:     mat.NewDense(B, H, nil),
		z:     mat.NewDense(B, H, nil),
		n:     mat.NewDense(B, H, nil),
		hn:    mat.NewDense(B, H, nil),
	}
	h := mat.NewDense(B, H, nil)
	for b := 0; b < B; b++ {
		giRow, ghRow := gi.RawRowView(b), gh.RawRowView(b)
		rRow, zRow, nRow, hnRow := s.r.RawRowView(b), s.z.RawRowView(b), s.n.RawRowView(b), s.hn.RawRowView(b)
		hpRow, hRow := hPrev.RawRowView(b), h.RawRowView(b)
		for k := 0; k < H; k++ {
			r := utils.Sigmoid(giRow[k] + ghRow[k])
			z := utils.Sigmoid(giRow[H+k] + ghRow[H+k])
			hn := ghRow[2*H+k]
			n := math.Tanh(giRow[2*H+k] + r*hn)
			rRow[k], zRow[k], nRow[k], hnRow[k] = r, z, n, hn
			hRow[k] = (1-z)*n + z*hpRow[k]
		}
	}
	return h, s
}

// run processes xs (one (B x In) matrix per timestep) from a zero state.
// Outputs and steps are indexed by timestep whatever the direction.
func (c *GRUCell) run(xs []*mat.Dense, reverse bool) ([]*mat.Dense, []gruStep) {
	T := len(xs)
	B, _ := xs[0].Dims()
	outs := make([]*mat.Dense, T)
	steps := make([]gruStep, T)
	h := mat.NewDense(B, c.Hidden, nil)
	for i := 0; i < T; i++ {
		t := i
		if reverse {
			t = T - 1 - i
		}
		h, steps[t] = c.step(xs[t], h)
		outs[t] = h
	}
	return outs, steps
}

// backward runs BPTT given dL/dout per timestep (nil entries mean zero),
// accumulates weight gradients and returns dL/dx per timestep.
func (c *GRUCell) backward(steps []gruStep, dOuts []*mat.Dense, reverse bool) []*mat.Dense {
	T := len(steps)
	B, _ := steps[0].x.Dims()
	H := c.Hidden
	dXs := make([]*mat.Dense, T)
	dhNext := mat.NewDense(B, H, nil)

	for i := T - 1; i >= 0; i-- {
		t := i
		if reverse {
			t = T - 1 - i
		}
		s := steps[t]
		dh := dhNext
		if dOuts[t] != nil {
			dh.Add(dh, dOuts[t])
		}

		dGi := mat.NewDense(B, 3*H, nil)
		dGh := mat.NewDense(B, 3*H, nil)
		dhPrev := mat.NewDense(B, H, nil)
		for b := 0; b < B; b++ {
			dhRow, hpRow := dh.RawRowView(b), s.hPrev.RawRowView(b)
			rRow, zRow, nRow, hnRow := s.r.RawRowView(b), s.z.RawRowView(b), s.n.RawRowView(b), s.hn.RawRowView(b)
			dGiRow, dGhRow, dhpRow := dGi.RawRowView(b), dGh.RawRowView(b), dhPrev.RawRowView(b)
			for k := 0; k < H; k++ {
				r, z, n, hn := rRow[k], zRow[k], nRow[k], hnRow[k]
				g := dhRow[k]

				dn := g * (1 - z)
				dz := g * (hpRow[k] - n)
				dhpRow[k] = g * z

				dnPre := dn * (1 - n*n)
				drPre := dnPre * hn * r * (1 - r)
				dzPre := dz * z * (1 - z)

				dGiRow[k], dGiRow[H+k], dGiRow[2*H+k] = drPre, dzPre, dnPre
				dGhRow[k], dGhRow[H+k], dGhRow[2*H+k] = drPre, dzPre, dnPre*r
			}
		}

		var dWi, dWh mat.Dense
		dWi.Mul(s.x.T(), dGi)
		c.DWi.Add(c.DWi, &dWi)
		dWh.Mul(s.hPrev.T(), dGh)
		c.DWh.Add(c.DWh, &dWh)
		utils.AccumulateColSums(c.DBi, dGi)
		utils.AccumulateColSums(c.DBh, dGh)

		dXs[t] = utils.Dot(dGi, c.Wi.T())
		var viaWh mat.Dense
		viaWh.Mul(dGh, c.Wh.T())
		dhPrev.Add(dhPrev, &viaWh)
		dhNext = dhPrev
	}
	return dXs
}

func (c *GRUCell) zeroGrad() {
	c.DWi.Zero()
	c.DWh.Zero()
	c.DBi.Zero()
	c.DBh.Zero()
}

type gruLayer struct {
	fwd, bwd *GRUCell // bwd is nil when unidirectional
}

// GRU is a stack of (bi)directional GRU layers. Layer l>0 reads the
// concatenated per-timestep outputs of layer l-1, with dropout in training.
type GRU struct {
	Hidden        int
	Bidirectional bool
	Dropout       float64

	layers []gruLayer
}

func NewGRU(rng *rand.Rand, in, hidden, numLayers int, bidirectional bool, dropout float64) *GRU {
	g := &GRU{Hidden: hidden, Bidirectional: bidirectional, Dropout: dropout}
	for l := 0; l < numLayers; l++ {
		layerIn := in
		if l > 0 {
			layerIn = g.OutputSize()
		}
		layer := gruLayer{fwd: NewGRUCell(rng, layerIn, hidden)}
		if bidirectional {
			layer.bwd = NewGRUCell(rng, layerIn, hidden)
		}
		g.layers = append(g.layers, layer)
	}
	return g
}

// OutputSize is the width of the pooled final state.
func (g *GRU) OutputSize() int {
	if g.Bidirectional {
		return 2 * g.Hidden
	}
	return g.Hidden
}

func (g *GRU) NumLayers() int { return len(g.layers) }

type layerTrace struct {
	mask     []*mat.Dense // dropout mask on this layer's input, nil when none
	fwd, bwd []gruStep
}

type gruTrace struct {
	layers []layerTrace
}

// forward returns the last layer's final states, forward ‖ backward, as (B x OutputSize).
// A nil rng means inference: no dropout between layers.
func (g *GRU) forward(xs []*mat.Dense, rng *rand.Rand) (*mat.Dense, *gruTrace) {
	tr := &gruTrace{layers: make([]layerTrace, len(g.layers))}
	T := len(xs)
	in := xs
	var fwdOut, bwdOut []*mat.Dense
	for l, layer := range g.layers {
		lt := &tr.layers[l]
		if l > 0 {
			in = concatSteps(fwdOut, bwdOut)
			if rng != nil && g.Dropout > 0 {
				in, lt.mask = dropoutSteps(in, g.Dropout, rng)
			}
		}
		fwdOut, lt.fwd = layer.fwd.run(in, false)
		if layer.bwd != nil {
			bwdOut, lt.bwd = layer.bwd.run(in, true)
		}
	}
	if !g.Bidirectional {
		return fwdOut[T-1], tr
	}
	return concatCols(fwdOut[T-1], bwdOut[0]), tr
}

// backward takes dL/d(pooled state) and returns dL/dx per timestep of the first layer.
func (g *GRU) backward(tr *gruTrace, dFinal *mat.Dense) []*mat.Dense {
	T := len(tr.layers[0].fwd)
	H := g.Hidden
	dF := make([]*mat.Dense, T)
	dB := make([]*mat.Dense, T)
	if g.Bidirectional {
		dF[T-1] = sliceCols(dFinal, 0, H)
		dB[0] = sliceCols(dFinal, H, 2*H)
	} else {
		dF[T-1] = mat.DenseCopyOf(dFinal)
	}

	var dIn []*mat.Dense
	for l := len(g.layers) - 1; l >= 0; l-- {
		layer, lt := g.layers[l], tr.layers[l]
		dIn = layer.fwd.backward(lt.fwd, dF, false)
		if layer.bwd != nil {
			dInB := layer.bwd.backward(lt.bwd, dB, true)
			for t := range dIn {
				dIn[t].Add(dIn[t], dInB[t])
			}
		}
		if l == 0 {
			break
		}
		if lt.mask != nil {
			for t := range dIn {
				dIn[t].MulElem(dIn[t], lt.mask[t])
			}
		}
		dF = make([]*mat.Dense, T)
		dB = make([]*mat.Dense, T)
		for t := range dIn {
			if g.Bidirectional {
				dF[t] = sliceCols(dIn[t], 0, H)
				dB[t] = sliceCols(dIn[t], H, 2*H)
			} else {
				dF[t] = dIn[t]
			}
		}
	}
	return dIn
}

func (g *GRU) zeroGrad() {
	for _, layer := range g.layers {
		layer.fwd.zeroGrad()
		if layer.bwd != nil {
			layer.bwd.zeroGrad()
		}
	}
}

// ---------- helpers ----------

func concatCols(a, b *mat.Dense) *mat.Dense {
	r, ca := a.Dims()
	_, cb := b.Dims()
	out := mat.NewDense(r, ca+cb, nil)
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		copy(row[:ca], a.RawRowView(i))
		copy(row[ca:], b.RawRowView(i))
	}
	return out
}

func concatSteps(fwd, bwd []*mat.Dense) []*mat.Dense {
	if bwd == nil {
		return fwd
	}
	out := make([]*mat.Dense, len(fwd))
	for t := range fwd {
		out[t] = concatCols(fwd[t], bwd[t])
	}
	return out
}

func sliceCols(m *mat.Dense, lo, hi int) *mat.Dense {
	r, _ := m.Dims()
	return mat.DenseCopyOf(m.Slice(0, r, lo, hi))
}

// dropout zeroes each entry with probability p and scales survivors by 1/(1-p).
func dropout(m *mat.Dense, p float64, rng *rand.Rand) (*mat.Dense, *mat.Dense) {
	r, c := m.Dims()
	mask := mat.NewDense(r, c, nil)
	keep := 1.0 / (1.0 - p)
	for i := 0; i < r; i++ {
		row := mask.RawRowView(i)
		for j := range row {
			if rng.Float64() >= p {
				row[j] = keep
			}
		}
	}
	out := mat.NewDense(r, c, nil)
	out.MulElem(m, mask)
	return out, mask
}

func dropoutSteps(xs []*mat.Dense, p float64, rng *rand.Rand) ([]*mat.Dense, []*mat.Dense) {
	out := make([]*mat.Dense, len(xs))
	masks := make([]*mat.Dense, len(xs))
	for t, x := range xs {
		out[t], masks[t] = dropout(x, p, rng)
	}
	return out, masks
}
