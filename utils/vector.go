package utils

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

func VecCopy(v []float64) (R []float64) {
	R = make([]float64, len(v))
	copy(R, v)
	return
}

func VecZero(v []float64) {
	for i := range v {
		v[i] = 0
	}
}

// VecAxpy computes v += alpha * x in place
func VecAxpy(alpha float64, x, v []float64) {
	for i, val := range x {
		v[i] += alpha * val
	}
}

func VecDot(a, b []float64) (R float64) {
	return floats.Dot(a, b)
}

func VecNorm2(v []float64) (R float64) {
	return floats.Norm(v, 2)
}

func VecMaxAbs(v []float64) (R float64) {
	for _, val := range v {
		if math.Abs(val) > R {
			R = math.Abs(val)
		}
	}
	return
}

func VecIsFinite(v []float64) bool {
	for _, val := range v {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return false
		}
	}
	return true
}
