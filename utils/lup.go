package utils

import (
	"fmt"
	"math"
)

/*
LUP factorization of a small dense square matrix with partial
pivoting, used to invert the per-well diagonal blocks. The matrix is
factored in place, replacing its contents with the combined (L-I)+U
factors such that:

	P * [M] = L * U

The companion methods LUPSolve() and LUPInvert() can then be called
repeatedly against the factored form.

Algorithm from: https://en.wikipedia.org/wiki/LU_decomposition#C_code_example
*/
type LUP struct {
	A      Matrix
	N      int
	P      []int   // Permutation "matrix" built during decomposition
	Pcount int     // count of pivots, used in determining sign of determinant
	tol    float64 // pivot tolerance relative to the largest matrix entry
}

func NewLUP(A Matrix) (R *LUP, err error) {
	var (
		nr, nc = A.Dims()
	)
	if nr != nc {
		err = fmt.Errorf("matrix must be square, is %dx%d", nr, nc)
		return
	}
	R = &LUP{
		A:   A.Copy(),
		N:   nr,
		tol: 1.e-13, // Default value
	}
	err = R.decompose()
	return
}

func (lu *LUP) decompose() (err error) {
	var (
		imax       int
		absA, maxA float64
		N          = lu.N
		a          = lu.A.Data()
	)
	lu.P = make([]int, N)
	for i := range lu.P {
		lu.P[i] = i
	}
	// Degeneracy is judged against the scale of the matrix, so blocks
	// whose entries are legitimately tiny still factor
	scale := 0.
	for _, v := range a {
		scale = math.Max(scale, math.Abs(v))
	}
	// counting pivots starting from N
	lu.Pcount = N
	for i := 0; i < N; i++ {
		maxA = 0.
		imax = i
		for k := i; k < N; k++ {
			absA = math.Abs(a[k*N+i])
			if absA > maxA {
				maxA = absA
				imax = k
			}
		}
		if maxA <= lu.tol*scale {
			err = fmt.Errorf("matrix is degenerate with relative tolerance %8.5e", lu.tol)
			return
		}
		if imax != i {
			lu.P[i], lu.P[imax] = lu.P[imax], lu.P[i] // swap
			for j := 0; j < N; j++ {
				a[i*N+j], a[imax*N+j] = a[imax*N+j], a[i*N+j]
			}
			lu.Pcount++
		}
		for j := i + 1; j < N; j++ {
			a[j*N+i] /= a[i*N+i]
			for k := i + 1; k < N; k++ {
				a[j*N+k] -= a[j*N+i] * a[i*N+k]
			}
		}
	}
	return
}

/*
LUPSolve solves [M] * R = b against the factored form. It can be
called repeatedly with different right hand sides.
*/
func (lu *LUP) LUPSolve(b []float64) (R []float64, err error) {
	var (
		N = lu.N
		P = lu.P
		a = lu.A.Data()
	)
	if len(b) != N {
		err = fmt.Errorf("dimension mismatch: N = %d, len(b) = %d", N, len(b))
		return
	}
	R = make([]float64, N)
	for i := 0; i < N; i++ {
		R[i] = b[P[i]]
		for k := 0; k < i; k++ {
			R[i] -= a[i*N+k] * R[k]
		}
	}
	for i := N - 1; i >= 0; i-- {
		for k := i + 1; k < N; k++ {
			R[i] -= a[i*N+k] * R[k]
		}
		R[i] /= a[i*N+i]
	}
	return
}

// LUPInvert produces the explicit inverse by solving against the
// columns of the identity
func (lu *LUP) LUPInvert() (R Matrix, err error) {
	var (
		N = lu.N
		b = make([]float64, N)
		x []float64
	)
	R = NewMatrix(N, N)
	for j := 0; j < N; j++ {
		for i := range b {
			b[i] = 0
		}
		b[j] = 1
		if x, err = lu.LUPSolve(b); err != nil {
			return
		}
		for i := 0; i < N; i++ {
			R.Set(i, j, x[i])
		}
	}
	return
}

func (lu *LUP) LUPDeterminant() (det float64) {
	var (
		N = lu.N
		a = lu.A.Data()
	)
	det = a[0]
	for i := 1; i < N; i++ {
		det *= a[i*N+i]
	}
	if (lu.Pcount-lu.N)%2 != 0 {
		det = -det
	}
	return
}
