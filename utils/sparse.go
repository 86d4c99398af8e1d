package utils

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

/*
DOK is the assembly form of the reservoir Jacobian: entries are
accumulated coordinate-wise during linearization, then frozen into a
CSR for the repeated matrix-vector products of the linear solve.
*/
type DOK struct {
	M        *sparse.DOK
	readOnly bool
	name     string
}

func NewDOK(nr, nc int) (R DOK) {
	R = DOK{
		sparse.NewDOK(nr, nc),
		false,
		"unnamed - hint: pass a variable name to SetReadOnly()",
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m DOK) Dims() (r, c int)    { return m.M.Dims() }
func (m DOK) At(i, j int) float64 { return m.M.At(i, j) }
func (m DOK) T() mat.Matrix       { return m.M.T() }

func (m DOK) Set(i, j int, val float64) DOK { // Changes receiver
	m.checkWritable()
	m.M.Set(i, j, val)
	return m
}

func (m DOK) AddAt(i, j int, val float64) DOK { // Changes receiver
	m.checkWritable()
	m.M.Set(i, j, m.M.At(i, j)+val)
	return m
}

func (m DOK) checkWritable() {
	if m.readOnly {
		err := fmt.Errorf("attempt to write to a read only matrix named: \"%v\"", m.name)
		panic(err)
	}
}

func (m DOK) ToCSR() CSR {
	return CSR{
		M:    m.M.ToCSR(),
		name: m.name,
	}
}

type CSR struct {
	M    *sparse.CSR
	name string
}

func (m CSR) Dims() (r, c int)    { return m.M.Dims() }
func (m CSR) At(i, j int) float64 { return m.M.At(i, j) }
func (m CSR) T() mat.Matrix       { return m.M.T() }

// MulVecTo computes out = [m] * x without allocating. The raw kernel
// accumulates into out, so it is cleared first.
func (m CSR) MulVecTo(x, out []float64) {
	var (
		nr, nc = m.Dims()
	)
	if len(x) != nc || len(out) != nr {
		panic(fmt.Errorf("dimension mismatch: %dx%d matrix, len(x) = %d, len(out) = %d",
			nr, nc, len(x), len(out)))
	}
	VecZero(out)
	sparse.MulMatRawVec(m.M, x, out)
}

func (m CSR) MulVec(x []float64) (R []float64) {
	nr, _ := m.Dims()
	R = make([]float64, nr)
	m.MulVecTo(x, R)
	return
}

func (m CSR) DoNonZero(fn func(i, j int, v float64)) {
	m.M.DoNonZero(fn)
}
