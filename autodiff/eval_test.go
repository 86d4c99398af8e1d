package autodiff

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvalArithmetic(t *testing.T) {
	// Product rule and quotient rule against hand-computed partials
	{
		x := Variable(3, 0, 2)
		y := Variable(2, 1, 2)
		p := x.Times(y)
		assert.Equal(t, 6., p.Val)
		assert.Equal(t, 2., p.Deriv(0))
		assert.Equal(t, 3., p.Deriv(1))

		q := x.DividedBy(y)
		assert.InDelta(t, 1.5, q.Val, 1.e-14)
		assert.InDelta(t, 0.5, q.Deriv(0), 1.e-14)
		assert.InDelta(t, -0.75, q.Deriv(1), 1.e-14)
	}
	// Chained expression: f = (x+2)(x-1)/x, f'(2) checked numerically
	{
		f := func(x Eval) Eval {
			return x.AddValue(2).Times(x.AddValue(-1)).DividedBy(x)
		}
		x := Variable(2, 0, 1)
		r := f(x)
		h := 1.e-7
		fv := func(v float64) float64 { return (v + 2) * (v - 1) / v }
		assert.InDelta(t, fv(2), r.Val, 1.e-14)
		assert.InDelta(t, (fv(2+h)-fv(2-h))/(2*h), r.Deriv(0), 1.e-6)
	}
}

func TestEvalExtend(t *testing.T) {
	x := Variable(5, 1, 3)
	y := x.Extend(6)
	assert.Equal(t, 6, y.Len())
	assert.Equal(t, 5., y.Val)
	assert.Equal(t, 1., y.Deriv(1))
	assert.Equal(t, 0., y.Deriv(4))
	// The receiver is untouched
	assert.Equal(t, 3, x.Len())
}

func TestEvalFinite(t *testing.T) {
	x := Constant(1, 2)
	assert.True(t, x.IsFinite())
	x.Der[1] = math.NaN()
	assert.False(t, x.IsFinite())
	y := Constant(math.Inf(1), 1)
	assert.False(t, y.IsFinite())
}

func TestEvalSqrt(t *testing.T) {
	x := Variable(4, 0, 1)
	r := x.Sqrt()
	assert.InDelta(t, 2., r.Val, 1.e-14)
	assert.InDelta(t, 0.25, r.Deriv(0), 1.e-14)
}
