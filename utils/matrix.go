package utils

import (
	"bytes"
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

type Matrix struct {
	M        *mat.Dense
	readOnly bool
	name     string
}

func NewMatrix(nr, nc int, dataO ...[]float64) (R Matrix) {
	var m *mat.Dense
	if len(dataO) != 0 {
		if len(dataO[0]) != nr*nc {
			err := fmt.Errorf("mismatch in allocation: NewMatrix nr,nc = %v,%v, len(data[0]) = %v\n", nr, nc, len(dataO[0]))
			panic(err)
		}
		m = mat.NewDense(nr, nc, dataO[0])
	} else {
		m = mat.NewDense(nr, nc, make([]float64, nr*nc))
	}
	R = Matrix{
		m,
		false,
		"unnamed - hint: pass a variable name to SetReadOnly()",
	}
	return
}

// Dims, At and RawMatrix minimally satisfy the mat.Matrix interface.
func (m Matrix) Dims() (r, c int)          { return m.M.Dims() }
func (m Matrix) At(i, j int) float64       { return m.M.At(i, j) }
func (m Matrix) RawMatrix() blas64.General { return m.M.RawMatrix() }
func (m Matrix) Data() []float64           { return m.M.RawMatrix().Data }
func (m Matrix) IsEmpty() bool             { return m.M == nil }

func (m *Matrix) SetReadOnly(name ...string) Matrix {
	if len(name) != 0 {
		m.name = name[0]
	}
	m.readOnly = true
	return *m
}

func (m Matrix) checkWritable() {
	if m.readOnly {
		err := fmt.Errorf("attempt to write to a read only matrix named: \"%v\"", m.name)
		panic(err)
	}
}

func (m Matrix) Copy() (R Matrix) { // Does not change receiver
	var (
		nr, nc = m.Dims()
		data   = m.Data()
		dataR  = make([]float64, nr*nc)
	)
	copy(dataR, data)
	R = NewMatrix(nr, nc, dataR)
	return
}

func (m Matrix) Set(i, j int, val float64) Matrix { // Changes receiver
	m.checkWritable()
	m.M.Set(i, j, val)
	return m
}

func (m Matrix) AddAt(i, j int, val float64) Matrix { // Changes receiver
	m.checkWritable()
	m.M.Set(i, j, m.M.At(i, j)+val)
	return m
}

func (m Matrix) Zero() Matrix { // Changes receiver
	var (
		data = m.Data()
	)
	m.checkWritable()
	for i := range data {
		data[i] = 0
	}
	return m
}

func (m Matrix) Add(a Matrix) Matrix { // Changes receiver
	var (
		data  = m.Data()
		dataA = a.Data()
	)
	m.checkWritable()
	for i, val := range dataA {
		data[i] += val
	}
	return m
}

func (m Matrix) Subtract(a Matrix) Matrix { // Changes receiver
	var (
		data  = m.Data()
		dataA = a.Data()
	)
	m.checkWritable()
	for i := range data {
		data[i] -= dataA[i]
	}
	return m
}

func (m Matrix) Scale(val float64) Matrix { // Changes receiver
	var (
		data = m.Data()
	)
	m.checkWritable()
	for i := range data {
		data[i] *= val
	}
	return m
}

func (m Matrix) Mul(a Matrix) (R Matrix) { // Does not change receiver
	var (
		nrM, _ = m.M.Dims()
		_, ncA = a.M.Dims()
	)
	R = NewMatrix(nrM, ncA)
	R.M.Mul(m.M, a.M)
	return
}

func (m Matrix) Transpose() (R Matrix) { // Does not change receiver
	var (
		nr, nc = m.Dims()
	)
	R = NewMatrix(nc, nr)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			R.M.Set(j, i, m.M.At(i, j))
		}
	}
	return
}

// MulVec computes R = [m] * x for a vector x of length nc
func (m Matrix) MulVec(x []float64) (R []float64) {
	var (
		nr, nc = m.Dims()
		data   = m.Data()
	)
	if len(x) != nc {
		panic(fmt.Errorf("dimension mismatch: nc = %d, len(x) = %d", nc, len(x)))
	}
	R = make([]float64, nr)
	for i := 0; i < nr; i++ {
		var sum float64
		row := data[i*nc : (i+1)*nc]
		for j, val := range row {
			sum += val * x[j]
		}
		R[i] = sum
	}
	return
}

// TransposeMulVec computes R = [m]^T * x for a vector x of length nr
func (m Matrix) TransposeMulVec(x []float64) (R []float64) {
	var (
		nr, nc = m.Dims()
		data   = m.Data()
	)
	if len(x) != nr {
		panic(fmt.Errorf("dimension mismatch: nr = %d, len(x) = %d", nr, len(x)))
	}
	R = make([]float64, nc)
	for i := 0; i < nr; i++ {
		row := data[i*nc : (i+1)*nc]
		for j, val := range row {
			R[j] += val * x[i]
		}
	}
	return
}

func (m Matrix) MaxAbs() (max float64) {
	for _, val := range m.Data() {
		if math.Abs(val) > max {
			max = math.Abs(val)
		}
	}
	return
}

func (m Matrix) Print(msgI ...string) (out string) {
	var (
		name = ""
	)
	if len(msgI) != 0 {
		name = msgI[0]
	}
	buf := bytes.Buffer{}
	buf.WriteString(fmt.Sprintf("%s =\n%8.5f\n", name, mat.Formatted(m.M, mat.Squeeze())))
	return buf.String()
}
