package autodiff

import (
	"fmt"
	"math"
)

/*
Eval is a dense forward-mode dual number: a value plus a fixed-length
array of partial derivatives. The derivative length is set at
construction and every operand in an expression must carry the same
length. Within the simulator the first NumEq slots hold derivatives
with respect to the cell unknowns of the connected cell, and the slots
from NumEq onward hold derivatives with respect to the well unknowns.
*/
type Eval struct {
	Val float64
	Der []float64
}

func NewEval(n int) (R Eval) {
	R = Eval{
		Val: 0,
		Der: make([]float64, n),
	}
	return
}

// Constant carries a value with all derivatives zero
func Constant(val float64, n int) (R Eval) {
	R = NewEval(n)
	R.Val = val
	return
}

// Variable seeds a unit derivative in slot idx
func Variable(val float64, idx, n int) (R Eval) {
	if idx < 0 || idx >= n {
		panic(fmt.Errorf("derivative index %d out of range [0,%d)", idx, n))
	}
	R = NewEval(n)
	R.Val = val
	R.Der[idx] = 1
	return
}

func (e Eval) Len() int { return len(e.Der) }

func (e Eval) Copy() (R Eval) {
	R = NewEval(len(e.Der))
	R.Val = e.Val
	copy(R.Der, e.Der)
	return
}

// Extend widens the derivative array to length n, keeping the existing
// derivative slots in place and zero-filling the remainder
func (e Eval) Extend(n int) (R Eval) {
	if n < len(e.Der) {
		panic(fmt.Errorf("cannot shrink derivative array from %d to %d", len(e.Der), n))
	}
	R = NewEval(n)
	R.Val = e.Val
	copy(R.Der, e.Der)
	return
}

func (e Eval) checkLen(a Eval) {
	if len(e.Der) != len(a.Der) {
		panic(fmt.Errorf("derivative length mismatch: %d vs %d", len(e.Der), len(a.Der)))
	}
}

func (e Eval) Plus(a Eval) (R Eval) { // Does not change receiver
	e.checkLen(a)
	R = e.Copy()
	R.Val += a.Val
	for i, d := range a.Der {
		R.Der[i] += d
	}
	return
}

func (e Eval) Minus(a Eval) (R Eval) { // Does not change receiver
	e.checkLen(a)
	R = e.Copy()
	R.Val -= a.Val
	for i, d := range a.Der {
		R.Der[i] -= d
	}
	return
}

func (e Eval) Times(a Eval) (R Eval) { // Does not change receiver
	e.checkLen(a)
	R = NewEval(len(e.Der))
	R.Val = e.Val * a.Val
	for i := range R.Der {
		R.Der[i] = e.Der[i]*a.Val + e.Val*a.Der[i]
	}
	return
}

func (e Eval) DividedBy(a Eval) (R Eval) { // Does not change receiver
	e.checkLen(a)
	if a.Val == 0 {
		panic("division by a zero-valued evaluation")
	}
	R = NewEval(len(e.Der))
	inv := 1. / a.Val
	R.Val = e.Val * inv
	for i := range R.Der {
		R.Der[i] = (e.Der[i] - R.Val*a.Der[i]) * inv
	}
	return
}

func (e Eval) Scale(val float64) (R Eval) { // Does not change receiver
	R = e.Copy()
	R.Val *= val
	for i := range R.Der {
		R.Der[i] *= val
	}
	return
}

func (e Eval) AddValue(val float64) (R Eval) { // Does not change receiver
	R = e.Copy()
	R.Val += val
	return
}

func (e Eval) Neg() (R Eval) {
	return e.Scale(-1)
}

func (e Eval) Abs() (R Eval) {
	if e.Val < 0 {
		return e.Neg()
	}
	return e.Copy()
}

// Deriv returns the partial in slot idx, treating a constant built
// with a shorter array as having zero high slots
func (e Eval) Deriv(idx int) float64 {
	if idx >= len(e.Der) {
		return 0
	}
	return e.Der[idx]
}

func (e Eval) IsFinite() bool {
	if math.IsNaN(e.Val) || math.IsInf(e.Val, 0) {
		return false
	}
	for _, d := range e.Der {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return false
		}
	}
	return true
}

func (e Eval) String() string {
	return fmt.Sprintf("v=%10.5e d=%v", e.Val, e.Der)
}

// Sqrt propagates d/dx sqrt(u) = u' / (2 sqrt(u))
func (e Eval) Sqrt() (R Eval) {
	R = NewEval(len(e.Der))
	R.Val = math.Sqrt(e.Val)
	if R.Val != 0 {
		inv := 0.5 / R.Val
		for i := range R.Der {
			R.Der[i] = e.Der[i] * inv
		}
	}
	return
}

func Max(a, b Eval) Eval {
	if a.Val >= b.Val {
		return a.Copy()
	}
	return b.Copy()
}

func Min(a, b Eval) Eval {
	if a.Val <= b.Val {
		return a.Copy()
	}
	return b.Copy()
}
