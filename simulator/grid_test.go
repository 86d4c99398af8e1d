package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gores/fluid"
	"github.com/notargets/gores/state"
)

func testGrid(t *testing.T, nx int) (*BlackoilGrid, *state.ReservoirState) {
	caps := state.Capabilities{HasDisgas: true}
	g, err := NewBlackoilGrid(nx, 10, 10, 10, 1.e-13, 0.2, fluid.Default(caps))
	require.NoError(t, err)
	rs := state.NewReservoirState(nx, 3, caps)
	f := g.Fluid
	for c := 0; c < nx; c++ {
		rs.Pressure[c] = f.PRef
		rs.SetSat(c, state.Water, 0.2)
		rs.SetSat(c, state.Oil, 0.5)
		rs.SetSat(c, state.Gas, 0.3)
		rs.Rs[c] = f.RsSat(rs.Pressure[c])
		rs.HydroCarbon[c] = state.GasAndOil
	}
	g.PushState(rs)
	return g, rs
}

func TestLinearizeEquilibrium(t *testing.T) {
	// A uniform state linearized against itself has zero residual
	g, _ := testGrid(t, 5)
	g.BeginTimeStep()
	require.NoError(t, g.Linearize(86400))
	for _, r := range g.Residual() {
		assert.InDelta(t, 0, r, 1.e-9)
	}
	// The accumulation terms still put derivatives on every diagonal
	// pressure entry
	jac := g.FreezeJacobian()
	for c := 0; c < 5; c++ {
		assert.NotEqual(t, 0., jac.At(c*3+0, c*3+0))
	}
}

func TestLinearizeFluxDirection(t *testing.T) {
	// Raising the pressure of cell 0 pushes mass into cell 1: the
	// residual of cell 0 turns positive (outflow), cell 1 negative
	g, rs := testGrid(t, 3)
	g.BeginTimeStep()
	rs.Pressure[0] += 1.e6
	g.PushState(rs)
	require.NoError(t, g.Linearize(86400))
	res := g.Residual()
	for comp := 0; comp < 3; comp++ {
		assert.Greater(t, res[0*3+comp], 0., "component %d cell 0", comp)
	}
	assert.Less(t, res[1*3+state.Water], 0.)
}

func TestJacobianMatchesFiniteDifference(t *testing.T) {
	g, rs := testGrid(t, 3)
	g.BeginTimeStep()
	// A definite pressure gradient keeps the upwind direction stable
	// under the perturbation
	rs.Pressure[0] += 2.e6
	rs.Pressure[2] -= 2.e6
	g.PushState(rs)
	require.NoError(t, g.Linearize(86400))
	res0 := append([]float64{}, g.Residual()...)
	jac := g.FreezeJacobian()

	h := 100. // Pa
	rs.Pressure[1] += h
	g.PushState(rs)
	require.NoError(t, g.Linearize(86400))
	res1 := g.Residual()

	col := 1*3 + 0 // pressure unknown of cell 1
	for row := 0; row < 9; row++ {
		fd := (res1[row] - res0[row]) / h
		ad := jac.At(row, col)
		scale := 1.e-12 + 1.e-6*absf(ad)
		assert.InDelta(t, ad, fd, scale, "row %d", row)
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestReportAccumulation(t *testing.T) {
	var total Report
	total.Add(Report{TotalNewtonIterations: 5, TotalLinearIterations: 40, Converged: false})
	total.AddFailed(Report{TotalNewtonIterations: 3, TotalLinearizations: 4})
	assert.Equal(t, 5, total.TotalNewtonIterations)
	assert.Equal(t, 3, total.FailedNewtonIterations)
	assert.Equal(t, 4, total.FailedLinearizations)
}
