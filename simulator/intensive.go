package simulator

import (
	"github.com/notargets/gores/autodiff"
	"github.com/notargets/gores/state"
	"github.com/notargets/gores/utils"
)

/*
IntensiveQuantities is the per-cell property snapshot the well model
and the convergence checks read. Every Eval carries derivatives with
respect to that cell's unknowns only (length NumEq); a consumer that
needs a wider derivative space extends them.
*/
type IntensiveQuantities struct {
	Pressure   [3]autodiff.Eval
	Saturation [3]autodiff.Eval
	InvB       [3]autodiff.Eval
	Mobility   [3]autodiff.Eval
	Density    [3]autodiff.Eval
	Rs, Rv     autodiff.Eval

	// Saturated ratios at the cell pressure, used by the state
	// switching logic
	RsSat, RvSat float64

	// Extension quantities, zero-valued when the capability is off
	SolventSat          autodiff.Eval
	SolventInvB         autodiff.Eval
	SolventMobility     autodiff.Eval
	PolymerConc         autodiff.Eval
	PolymerViscosityMul float64
}

/*
GridSimulator is the reservoir side of the coupled system: it owns
cell geometry, linearizes the conservation equations into a sparse
Jacobian and residual, and serves the cached per-cell property
snapshots. The well model scatters its reservoir contributions through
AddToResidual / AddToJacobian between Linearize and FreezeJacobian.
*/
type GridSimulator interface {
	NumCells() int
	NumEq() int
	Caps() state.Capabilities

	// PushState makes rs the linearization point and invalidates the
	// property cache
	PushState(rs *state.ReservoirState)
	InvalidateIntensiveQuantitiesCache()
	IntensiveQuantities(cell int) *IntensiveQuantities

	// Linearize assembles accumulation and flux terms for one
	// timestep of length dt against the stored previous state
	Linearize(dt float64) error
	BeginTimeStep()

	Residual() []float64
	AddToResidual(cell, eq int, val float64)
	AddToJacobian(cell, eq, col, pv int, val float64)
	FreezeJacobian() utils.CSR

	DofTotalVolume(cell int) float64
	Depth(cell int) float64
}
