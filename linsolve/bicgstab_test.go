package linsolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gores/utils"
)

func tridiag(n int) (m utils.CSR, diag []float64) {
	d := utils.NewDOK(n, n)
	diag = make([]float64, n)
	for i := 0; i < n; i++ {
		d.Set(i, i, 4)
		diag[i] = 4
		if i > 0 {
			d.Set(i, i-1, -1)
		}
		if i < n-1 {
			d.Set(i, i+1, -1)
		}
	}
	m = d.ToCSR()
	return
}

func TestBiCGSTAB(t *testing.T) {
	n := 50
	m, diag := tridiag(n)
	A := MatrixOperator{M: m}

	// Build b from a known solution
	xTrue := make([]float64, n)
	for i := range xTrue {
		xTrue[i] = float64(i%7) - 3
	}
	b := m.MulVec(xTrue)

	s := &BiCGSTAB{Tol: 1.e-10, MaxIter: 200, Diag: diag}
	x, iters, err := s.Solve(A, b)
	require.NoError(t, err)
	assert.Greater(t, iters, 0)
	for i := range x {
		assert.InDelta(t, xTrue[i], x[i], 1.e-7)
	}
}

func TestBiCGSTABMatchesDenseSolve(t *testing.T) {
	n := 20
	m, diag := tridiag(n)

	b := make([]float64, n)
	for i := range b {
		b[i] = float64(i+1) * 0.1
	}

	dense := mat.NewDense(n, n, nil)
	m.DoNonZero(func(i, j int, v float64) {
		dense.Set(i, j, v)
	})
	var xDense mat.VecDense
	require.NoError(t, xDense.SolveVec(dense, mat.NewVecDense(n, b)))

	s := &BiCGSTAB{Tol: 1.e-12, MaxIter: 200, Diag: diag}
	x, _, err := s.Solve(MatrixOperator{M: m}, b)
	require.NoError(t, err)
	for i := range x {
		assert.InDelta(t, xDense.AtVec(i), x[i], 1.e-8)
	}
}

func TestBiCGSTABZeroRHS(t *testing.T) {
	m, diag := tridiag(10)
	s := &BiCGSTAB{Tol: 1.e-10, MaxIter: 50, Diag: diag}
	x, iters, err := s.Solve(MatrixOperator{M: m}, make([]float64, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, iters)
	assert.Equal(t, make([]float64, 10), x)
}

func TestBiCGSTABNoConvergence(t *testing.T) {
	m, diag := tridiag(50)
	s := &BiCGSTAB{Tol: 1.e-14, MaxIter: 1, Diag: diag}
	b := make([]float64, 50)
	for i := range b {
		b[i] = 1
	}
	_, _, err := s.Solve(MatrixOperator{M: m}, b)
	assert.Error(t, err)
}
