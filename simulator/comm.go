package simulator

import "math"

// Communicator reduces convergence quantities across ranks. The
// serial implementation is the identity; a distributed run plugs in
// its own reduction.
type Communicator interface {
	// Sum replaces each entry with its global sum
	Sum(v []float64)
	// Max replaces each entry with its global max
	Max(v []float64)
	// Size is the number of ranks
	Size() int
}

type SerialComm struct{}

func (SerialComm) Sum(v []float64) {}
func (SerialComm) Max(v []float64) {}
func (SerialComm) Size() int       { return 1 }

// MaxOf is a helper for building the local max buffer before the
// reduction
func MaxOf(a, b float64) float64 {
	return math.Max(a, b)
}
