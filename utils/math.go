package utils

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Matrix functions used by the recurrent layers and the classifier head.
// Activations are row-major: one row per example, one column per unit.

func Dot(m, n mat.Matrix) *mat.Dense {
	r, _ := m.Dims()
	_, c := n.Dims()
	o := mat.NewDense(r, c, nil)
	o.Product(m, n)
	return o
}

// AddRowVector adds the (1 x c) row vector b to every row of m in place.
func AddRowVector(m *mat.Dense, b *mat.Dense) {
	r, c := m.Dims()
	if br, bc := b.Dims(); br != 1 || bc != c {
		panic(fmt.Sprintf("AddRowVector: bias is %dx%d, want 1x%d", br, bc, c))
	}
	bias := b.RawRowView(0)
	for i := 0; i < r; i++ {
		floats.Add(m.RawRowView(i), bias)
	}
}

// AccumulateColSums adds the column sums of src into the (1 x c) row vector dst.
func AccumulateColSums(dst, src *mat.Dense) {
	r, c := src.Dims()
	if dr, dc := dst.Dims(); dr != 1 || dc != c {
		panic(fmt.Sprintf("AccumulateColSums: dst is %dx%d, want 1x%d", dr, dc, c))
	}
	acc := dst.RawRowView(0)
	for i := 0; i < r; i++ {
		floats.Add(acc, src.RawRowView(i))
	}
}

func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// RandomArray draws size values uniformly from [-1/sqrt(v), 1/sqrt(v)].
func RandomArray(rng *rand.Rand, size int, v float64) []float64 {
	min := -1.0 / math.Sqrt(v+1e-12)
	max := 1.0 / math.Sqrt(v+1e-12)
	out := make([]float64, size)
	for i := 0; i < size; i++ {
		out[i] = min + (max-min)*rng.Float64()
	}
	return out
}

// ---------- Softmax / loss ----------

// RowSoftmax applies softmax independently to each row across columns.
func RowSoftmax(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		for j := 0; j < c; j++ {
			row[j] = m.At(i, j)
		}
		// numerical stability
		mx := floats.Max(row)
		sum := 0.0
		for j := range row {
			row[j] = math.Exp(row[j] - mx)
			sum += row[j]
		}
		floats.Scale(1/sum, row)
	}
	return out
}

// CrossEntropy is the mean negative log-likelihood of labels under softmax(logits),
// with its gradient with respect to logits, (softmax - onehot) / B.
func CrossEntropy(logits *mat.Dense, labels []int) (float64, *mat.Dense) {
	r, c := logits.Dims()
	if r != len(labels) {
		panic(fmt.Sprintf("CrossEntropy: %d rows of logits, %d labels", r, len(labels)))
	}
	prob := RowSoftmax(logits)
	loss := 0.0
	grad := mat.NewDense(r, c, nil)
	grad.Copy(prob)
	for i, gold := range labels {
		if gold < 0 || gold >= c {
			panic(fmt.Sprintf("CrossEntropy: label %d out of range for %d classes", gold, c))
		}
		loss -= math.Log(prob.At(i, gold) + 1e-12)
		grad.Set(i, gold, grad.At(i, gold)-1.0)
	}
	n := float64(r)
	grad.Scale(1/n, grad)
	return loss / n, grad
}

// RowArgmax returns the column index of the largest value in each row.
func RowArgmax(m *mat.Dense) []int {
	r, _ := m.Dims()
	out := make([]int, r)
	for i := 0; i < r; i++ {
		out[i] = floats.MaxIdx(m.RawRowView(i))
	}
	return out
}

// Accuracy is the fraction of rows whose argmax equals the label.
func Accuracy(logits *mat.Dense, labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	correct := 0
	for i, p := range RowArgmax(logits) {
		if p == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(labels))
}

// ---------- clipping ----------

// ClipGrads scales all grads so their combined norm <= maxNorm.
// Returns the scale actually applied (<=1.0) or 1.0 if no clip.
func ClipGrads(maxNorm float64, grads ...*mat.Dense) float64 {
	if maxNorm <= 0 {
		return 1.0
	}
	sum := 0.0
	for _, g := range grads {
		if g == nil {
			continue
		}
		n := MatrixNorm(g)
		sum += n * n
	}
	gn := math.Sqrt(sum)
	if gn <= maxNorm || gn == 0 {
		return 1.0
	}
	s := maxNorm / gn
	for _, g := range grads {
		if g != nil {
			g.Scale(s, g)
		}
	}
	return s
}

// MatrixNorm is the Frobenius norm.
func MatrixNorm(m *mat.Dense) float64 {
	r, _ := m.Dims()
	s := 0.0
	for i := 0; i < r; i++ {
		n := floats.Norm(m.RawRowView(i), 2)
		s += n * n
	}
	return math.Sqrt(s)
}
