package agent

import (
	"math"
	"math/rand"

	"FinSignal/internal/domain/models"
)

const (
	Hidden1 = 64
	Hidden2 = 32
)

// Params is one immutable snapshot of the Q-network weights. Training and
// soft updates produce new snapshots instead of mutating shared arrays.
type Params struct {
	In, H1, H2, Out int
	W1              [][]float64 // H1 x In
	B1              []float64
	W2              [][]float64 // H2 x H1
	B2              []float64
	W3              [][]float64 // Out x H2
	B3              []float64
}

// NewParams initialises a network with Xavier-uniform weights and zero biases.
func NewParams(rng *rand.Rand, in, h1, h2, out int) *Params {
	return &Params{
		In: in, H1: h1, H2: h2, Out: out,
		W1: xavier(rng, h1, in), B1: make([]float64, h1),
		W2: xavier(rng, h2, h1), B2: make([]float64, h2),
		W3: xavier(rng, out, h2), B3: make([]float64, out),
	}
}

func xavier(rng *rand.Rand, rows, cols int) [][]float64 {
	limit := math.Sqrt(6 / float64(rows+cols))
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = (rng.Float64()*2 - 1) * limit
		}
	}
	return m
}

func cloneMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i := range m {
		out[i] = append([]float64(nil), m[i]...)
	}
	return out
}

func (p *Params) Clone() *Params {
	return &Params{
		In: p.In, H1: p.H1, H2: p.H2, Out: p.Out,
		W1: cloneMatrix(p.W1), B1: append([]float64(nil), p.B1...),
		W2: cloneMatrix(p.W2), B2: append([]float64(nil), p.B2...),
		W3: cloneMatrix(p.W3), B3: append([]float64(nil), p.B3...),
	}
}

func layer(w [][]float64, b, x []float64, relu bool) []float64 {
	out := make([]float64, len(w))
	for i, row := range w {
		sum := b[i]
		for j, v := range row {
			sum += v * x[j]
		}
		if relu && sum < 0 {
			sum = 0
		}
		out[i] = sum
	}
	return out
}

// Forward returns the Q-values and the last hidden activation.
func (p *Params) Forward(state []float64) (q, h2 []float64) {
	h1 := layer(p.W1, p.B1, state, true)
	h2 = layer(p.W2, p.B2, h1, true)
	q = layer(p.W3, p.B3, h2, false)
	return q, h2
}

// SoftUpdate returns tau*online + (1-tau)*target without touching either input.
func SoftUpdate(online, target *Params, tau float64) *Params {
	mix := func(a, b float64) float64 { return tau*a + (1-tau)*b }
	mixV := func(a, b []float64) []float64 {
		out := make([]float64, len(a))
		for i := range a {
			out[i] = mix(a[i], b[i])
		}
		return out
	}
	mixM := func(a, b [][]float64) [][]float64 {
		out := make([][]float64, len(a))
		for i := range a {
			out[i] = mixV(a[i], b[i])
		}
		return out
	}
	return &Params{
		In: online.In, H1: online.H1, H2: online.H2, Out: online.Out,
		W1: mixM(online.W1, target.W1), B1: mixV(online.B1, target.B1),
		W2: mixM(online.W2, target.W2), B2: mixV(online.B2, target.B2),
		W3: mixM(online.W3, target.W3), B3: mixV(online.B3, target.B3),
	}
}

func (p *Params) Snapshot() *models.NetworkSnapshot {
	c := p.Clone()
	return &models.NetworkSnapshot{
		Input: c.In, Hidden1: c.H1, Hidden2: c.H2, Output: c.Out,
		W1: c.W1, B1: c.B1, W2: c.W2, B2: c.B2, W3: c.W3, B3: c.B3,
	}
}

// ParamsFromSnapshot validates every dimension against the expected shape.
func ParamsFromSnapshot(s *models.NetworkSnapshot, in, h1, h2, out int) (*Params, error) {
	if s == nil {
		return nil, ErrShapeMismatch
	}
	if s.Input != in || s.Hidden1 != h1 || s.Hidden2 != h2 || s.Output != out {
		return nil, ErrShapeMismatch
	}
	if !shaped(s.W1, h1, in) || !shaped(s.W2, h2, h1) || !shaped(s.W3, out, h2) ||
		len(s.B1) != h1 || len(s.B2) != h2 || len(s.B3) != out {
		return nil, ErrShapeMismatch
	}
	p := &Params{
		In: in, H1: h1, H2: h2, Out: out,
		W1: s.W1, B1: s.B1, W2: s.W2, B2: s.B2, W3: s.W3, B3: s.B3,
	}
	return p.Clone(), nil
}

func shaped(m [][]float64, rows, cols int) bool {
	if len(m) != rows {
		return false
	}
	for _, r := range m {
		if len(r) != cols {
			return false
		}
		for _, v := range r {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
