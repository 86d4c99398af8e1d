package linsolve

import (
	"fmt"
	"math"

	"github.com/notargets/gores/utils"
)

// Operator is the action of the reduced system matrix. The coupled
// reservoir/well system is solved against the Schur complement, so
// the matrix is applied as an operator rather than stored explicitly.
type Operator interface {
	// Apply computes y = A x
	Apply(x, y []float64)
	Size() int
}

// MatrixOperator wraps a frozen sparse matrix as an Operator
type MatrixOperator struct {
	M utils.CSR
}

func (m MatrixOperator) Apply(x, y []float64) {
	m.M.MulVecTo(x, y)
}

func (m MatrixOperator) Size() int {
	nr, _ := m.M.Dims()
	return nr
}

/*
BiCGSTAB with Jacobi preconditioning. The diagonal comes from the
reservoir matrix alone; for the well-eliminated operator that is an
approximation, which is fine for a preconditioner.

Algorithm from: https://en.wikipedia.org/wiki/Biconjugate_gradient_stabilized_method
*/
type BiCGSTAB struct {
	Tol     float64
	MaxIter int
	Diag    []float64 // nil disables preconditioning
}

func (s *BiCGSTAB) precondition(v []float64) (R []float64) {
	R = utils.VecCopy(v)
	if s.Diag == nil {
		return
	}
	for i, d := range s.Diag {
		if d != 0 {
			R[i] /= d
		}
	}
	return
}

func (s *BiCGSTAB) Solve(A Operator, b []float64) (x []float64, iters int, err error) {
	var (
		n     = A.Size()
		small = 1.e-40
	)
	if len(b) != n {
		err = fmt.Errorf("dimension mismatch: operator size %d, len(b) = %d", n, len(b))
		return
	}
	x = make([]float64, n)
	normB := utils.VecNorm2(b)
	if normB == 0 {
		return
	}
	tol := s.Tol * normB

	r := utils.VecCopy(b)
	rhat := utils.VecCopy(r)
	var (
		rho, alpha, omega = 1., 1., 1.
		v                 = make([]float64, n)
		p                 = make([]float64, n)
		t                 = make([]float64, n)
	)
	for iters = 1; iters <= s.MaxIter; iters++ {
		rho1 := utils.VecDot(rhat, r)
		if math.Abs(rho1) < small {
			err = fmt.Errorf("bicgstab breakdown: rho = %g at iteration %d", rho1, iters)
			return
		}
		beta := (rho1 / rho) * (alpha / omega)
		rho = rho1
		for i := range p {
			p[i] = r[i] + beta*(p[i]-omega*v[i])
		}
		phat := s.precondition(p)
		A.Apply(phat, v)
		den := utils.VecDot(rhat, v)
		if math.Abs(den) < small {
			err = fmt.Errorf("bicgstab breakdown: <rhat,v> = %g at iteration %d", den, iters)
			return
		}
		alpha = rho1 / den
		// s-vector reuses r
		utils.VecAxpy(-alpha, v, r)
		if utils.VecNorm2(r) < tol {
			utils.VecAxpy(alpha, phat, x)
			return
		}
		shat := s.precondition(r)
		A.Apply(shat, t)
		tt := utils.VecDot(t, t)
		if tt < small {
			err = fmt.Errorf("bicgstab breakdown: <t,t> = %g at iteration %d", tt, iters)
			return
		}
		omega = utils.VecDot(t, r) / tt
		utils.VecAxpy(alpha, phat, x)
		utils.VecAxpy(omega, shat, x)
		utils.VecAxpy(-omega, t, r)
		if !utils.VecIsFinite(x) {
			err = fmt.Errorf("bicgstab diverged at iteration %d", iters)
			return
		}
		if utils.VecNorm2(r) < tol {
			return
		}
	}
	iters = s.MaxIter
	err = fmt.Errorf("bicgstab did not converge in %d iterations", s.MaxIter)
	return
}
