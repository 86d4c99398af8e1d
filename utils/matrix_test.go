package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixOps(t *testing.T) {
	A := NewMatrix(2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})
	// MulVec and TransposeMulVec against hand-computed products
	{
		x := []float64{1, 1, 2}
		assert.Equal(t, []float64{9, 21}, A.MulVec(x))
		y := []float64{2, 1}
		assert.Equal(t, []float64{6, 9, 12}, A.TransposeMulVec(y))
	}
	// Transpose round trip
	{
		At := A.Transpose()
		nr, nc := At.Dims()
		assert.Equal(t, 3, nr)
		assert.Equal(t, 2, nc)
		assert.Equal(t, A.Data(), At.Transpose().Data())
	}
	// Copy does not alias
	{
		B := A.Copy()
		B.Set(0, 0, 100)
		assert.Equal(t, 1., A.At(0, 0))
	}
}

func TestLUP(t *testing.T) {
	A := NewMatrix(3, 3, []float64{
		2, 1, 1,
		4, -6, 0,
		-2, 7, 2,
	})
	lu, err := NewLUP(A)
	assert.NoError(t, err)

	// Solve against a known RHS: x = [1, 2, 3]
	b := A.MulVec([]float64{1, 2, 3})
	x, err := lu.LUPSolve(b)
	assert.NoError(t, err)
	for i, expected := range []float64{1, 2, 3} {
		assert.InDelta(t, expected, x[i], 1.e-12)
	}

	// Inverse satisfies A * Ainv = I
	Ainv, err := lu.LUPInvert()
	assert.NoError(t, err)
	I := A.Mul(Ainv)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			expected := 0.
			if i == j {
				expected = 1.
			}
			assert.InDelta(t, expected, I.At(i, j), 1.e-12)
		}
	}

	assert.InDelta(t, -16., lu.LUPDeterminant(), 1.e-12)
}

func TestLUPDegenerate(t *testing.T) {
	A := NewMatrix(2, 2, []float64{
		1, 2,
		2, 4,
	})
	_, err := NewLUP(A)
	assert.Error(t, err)
}

func TestLUPFactorsTinyPivotBlock(t *testing.T) {
	// a well equation block under pure pressure control: the fraction
	// columns carry only the wellbore storage terms, orders of
	// magnitude below the rate column, yet the block is nonsingular
	A := NewMatrix(3, 3, []float64{
		0.333, 9.6e-10, -9.4e-10,
		0.333, -9.6e-10, -1.9e-9,
		33.3, 0, 2.8e-9,
	})
	lu, err := NewLUP(A)
	require.NoError(t, err)
	inv, err := lu.LUPInvert()
	require.NoError(t, err)
	prod := A.Mul(inv)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			expected := 0.
			if i == j {
				expected = 1.
			}
			assert.InDelta(t, expected, prod.At(i, j), 1.e-5)
		}
	}
}

func TestSparse(t *testing.T) {
	d := NewDOK(3, 3)
	d.Set(0, 0, 2)
	d.AddAt(0, 0, 1)
	d.Set(1, 2, 5)
	d.Set(2, 1, -1)
	c := d.ToCSR()
	assert.Equal(t, 3., c.At(0, 0))
	out := c.MulVec([]float64{1, 2, 3})
	assert.Equal(t, []float64{3, 15, -2}, out)
}

func TestSparseMulVecToOverwrites(t *testing.T) {
	d := NewDOK(2, 2)
	d.Set(0, 0, 1)
	d.Set(0, 1, 2)
	d.Set(1, 1, 3)
	c := d.ToCSR()

	// a reused output buffer must not leak its previous contents
	out := []float64{99, -7}
	c.MulVecTo([]float64{1, 1}, out)
	assert.Equal(t, []float64{3, 3}, out)
	c.MulVecTo([]float64{1, 1}, out)
	assert.Equal(t, []float64{3, 3}, out)
}
