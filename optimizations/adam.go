package optimizations

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Param is one learnable tensor and its gradient buffer, same shape.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

// p -= lr * (mhat/(sqrt(vhat)+eps) + wd * p) with bias correction (AdamW).
func AdamUpdateInPlace(
	p, g, m, v *mat.Dense,
	t int,
	lr, beta1, beta2, eps, weightDecay float64,
) {
	pr, pc := p.Dims()
	if gr, gc := g.Dims(); gr != pr || gc != pc {
		panic("adamUpdateInPlace: grad shape mismatch")
	}
	if mr, mc := m.Dims(); mr != pr || mc != pc {
		panic("adamUpdateInPlace: m shape mismatch")
	}
	if vr, vc := v.Dims(); vr != pr || vc != pc {
		panic("adamUpdateInPlace: v shape mismatch")
	}
	b1t := math.Pow(beta1, float64(t))
	b2t := math.Pow(beta2, float64(t))
	c1 := 1.0 / (1.0 - b1t)
	c2 := 1.0 / (1.0 - b2t)
	for i := 0; i < pr; i++ {
		pRow, gRow, mRow, vRow := p.RawRowView(i), g.RawRowView(i), m.RawRowView(i), v.RawRowView(i)
		for j := 0; j < pc; j++ {
			gij := gRow[j]
			mRow[j] = beta1*mRow[j] + (1.0-beta1)*gij
			vRow[j] = beta2*vRow[j] + (1.0-beta2)*gij*gij
			mhat := mRow[j] * c1
			vhat := vRow[j] * c2
			denom := math.Sqrt(vhat) + eps
			update := mhat/denom + weightDecay*pRow[j]
			pRow[j] -= lr * update
		}
	}
}

// ------- Adam optimizer --------

// Adam keeps first/second moment estimates per parameter name.
type Adam struct {
	LR, Beta1, Beta2, Eps, WeightDecay float64

	t    int
	m, v map[string]*mat.Dense
}

func NewAdam(lr, beta1, beta2, eps, weightDecay float64) *Adam {
	return &Adam{
		LR:          lr,
		Beta1:       beta1,
		Beta2:       beta2,
		Eps:         eps,
		WeightDecay: weightDecay,
		m:           make(map[string]*mat.Dense),
		v:           make(map[string]*mat.Dense),
	}
}

// Step applies one update to every parameter from its current gradient.
func (a *Adam) Step(params []Param) {
	a.t++
	for _, p := range params {
		m, ok := a.m[p.Name]
		if !ok {
			m = zerosLike(p.Value)
			a.m[p.Name] = m
			a.v[p.Name] = zerosLike(p.Value)
		}
		pr, pc := p.Value.Dims()
		if mr, mc := m.Dims(); mr != pr || mc != pc {
			panic(fmt.Sprintf("adam: parameter %q changed shape", p.Name))
		}
		AdamUpdateInPlace(p.Value, p.Grad, m, a.v[p.Name], a.t,
			a.LR, a.Beta1, a.Beta2, a.Eps, a.WeightDecay)
	}
}

// Steps is the number of updates applied so far.
func (a *Adam) Steps() int { return a.t }

func zerosLike(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	return mat.NewDense(r, c, nil)
}
