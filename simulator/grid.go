package simulator

import (
	"fmt"

	"github.com/notargets/gores/autodiff"
	"github.com/notargets/gores/fluid"
	"github.com/notargets/gores/state"
	"github.com/notargets/gores/utils"
)

const Gravity = 9.80665

/*
BlackoilGrid is a one-dimensional two-point flux approximation
linearizer for the three-phase black-oil equations, used by the
bundled model cases and the end-to-end tests. Cells lie on a line
with uniform spacing; unknown ordering per cell is (pressure, water
saturation, third variable) where the third variable follows the
cell's hydrocarbon state.

Residuals are surface-volume rates, one row per cell and component,
so that a well's surface-condition connection rates subtract directly.
*/
type BlackoilGrid struct {
	Fluid fluid.PVT
	caps  state.Capabilities
	numEq int

	nx         int
	dx, dy, dz float64
	perm       float64
	poro       float64
	depth      []float64
	gravity    float64

	current *state.ReservoirState
	prev    *state.ReservoirState

	cache  []*IntensiveQuantities
	jac    utils.DOK
	res    []float64
	accum0 [][3]float64
}

func NewBlackoilGrid(nx int, dx, dy, dz, perm, poro float64, f fluid.PVT) (g *BlackoilGrid, err error) {
	caps := f.Caps
	if caps.HasSolvent || caps.HasPolymer {
		err = fmt.Errorf("the bundled grid only carries the three-phase model")
		return
	}
	g = &BlackoilGrid{
		Fluid:   f,
		caps:    caps,
		numEq:   caps.NumEq(),
		nx:      nx,
		dx:      dx,
		dy:      dy,
		dz:      dz,
		perm:    perm,
		poro:    poro,
		depth:   make([]float64, nx),
		gravity: 0, // horizontal line of cells
		cache:   make([]*IntensiveQuantities, nx),
		accum0:  make([][3]float64, nx),
	}
	for i := range g.depth {
		g.depth[i] = 2500
	}
	return
}

func (g *BlackoilGrid) NumCells() int            { return g.nx }
func (g *BlackoilGrid) NumEq() int               { return g.numEq }
func (g *BlackoilGrid) Caps() state.Capabilities { return g.caps }
func (g *BlackoilGrid) Depth(cell int) float64   { return g.depth[cell] }

func (g *BlackoilGrid) DofTotalVolume(cell int) float64 {
	return g.dx * g.dy * g.dz * g.poro
}

func (g *BlackoilGrid) transmissibility() float64 {
	return g.perm * g.dy * g.dz / g.dx
}

func (g *BlackoilGrid) PushState(rs *state.ReservoirState) {
	g.current = rs
	g.InvalidateIntensiveQuantitiesCache()
}

func (g *BlackoilGrid) InvalidateIntensiveQuantitiesCache() {
	for i := range g.cache {
		g.cache[i] = nil
	}
}

// BeginTimeStep freezes the accumulation reference at the current
// state
func (g *BlackoilGrid) BeginTimeStep() {
	g.prev = g.current.Clone()
	for c := 0; c < g.nx; c++ {
		g.accum0[c] = g.accumulationValues(g.prev, c)
	}
}

func (g *BlackoilGrid) IntensiveQuantities(cell int) *IntensiveQuantities {
	if g.cache[cell] == nil {
		g.cache[cell] = g.computeIntensive(cell)
	}
	return g.cache[cell]
}

// computeIntensive evaluates the cell's properties with derivatives
// seeded against its own unknowns
func (g *BlackoilGrid) computeIntensive(cell int) (iq *IntensiveQuantities) {
	var (
		rs = g.current
		f  = g.Fluid
		n  = g.numEq
	)
	iq = &IntensiveQuantities{}
	p := autodiff.Variable(rs.Pressure[cell], 0, n)
	sw := autodiff.Variable(rs.Sat(cell, state.Water), 1, n)
	one := autodiff.Constant(1, n)
	zero := autodiff.Constant(0, n)

	var sg, so, rsEv, rvEv autodiff.Eval
	switch rs.HydroCarbon[cell] {
	case state.GasAndOil:
		sg = autodiff.Variable(rs.Sat(cell, state.Gas), 2, n)
		so = one.Minus(sw).Minus(sg)
		rsEv = f.RsSatEval(p)
		rvEv = f.RvSatEval(p)
	case state.OilOnly:
		sg = zero
		so = one.Minus(sw)
		rsEv = autodiff.Variable(rs.Rs[cell], 2, n)
		rvEv = zero
	case state.GasOnly:
		so = zero
		sg = one.Minus(sw)
		rsEv = zero
		rvEv = autodiff.Variable(rs.Rv[cell], 2, n)
	default:
		panic(fmt.Errorf("cell %d: corrupted hydrocarbon state tag %d", cell, rs.HydroCarbon[cell]))
	}

	for ph := 0; ph < 3; ph++ {
		iq.Pressure[ph] = p
	}
	iq.Saturation[state.Water] = sw
	iq.Saturation[state.Oil] = so
	iq.Saturation[state.Gas] = sg
	iq.Rs = rsEv
	iq.Rv = rvEv
	iq.RsSat = f.RsSat(p.Val)
	iq.RvSat = f.RvSat(p.Val)
	for ph := 0; ph < 3; ph++ {
		iq.InvB[ph] = f.InvB(ph, iq.Pressure[ph])
		iq.Mobility[ph] = f.Mobility(ph, iq.Saturation[ph])
		iq.Density[ph] = f.Density(ph, iq.Pressure[ph], iq.Rs, iq.Rv)
	}
	return
}

// accumulationValues computes the component surface volumes per cell
// without derivatives, for the timestep reference
func (g *BlackoilGrid) accumulationValues(rs *state.ReservoirState, cell int) (A [3]float64) {
	var (
		f  = g.Fluid
		pv = g.DofTotalVolume(cell)
	)
	p := autodiff.Constant(rs.Pressure[cell], 0)
	sw := rs.Sat(cell, state.Water)
	so := rs.Sat(cell, state.Oil)
	sg := rs.Sat(cell, state.Gas)
	invBw := f.InvBw(p).Val
	invBo := f.InvBo(p).Val
	invBg := f.InvBg(p).Val
	A[state.Water] = pv * sw * invBw
	A[state.Oil] = pv * (so*invBo + rs.Rv[cell]*sg*invBg)
	A[state.Gas] = pv * (sg*invBg + rs.Rs[cell]*so*invBo)
	return
}

// widen places a cell-local Eval into a face-local derivative space
// of two cells
func widen(e autodiff.Eval, offset, wide int) (R autodiff.Eval) {
	R = autodiff.NewEval(wide)
	R.Val = e.Val
	copy(R.Der[offset:offset+len(e.Der)], e.Der)
	return
}

// Linearize assembles accumulation and interior-face flux terms. Well
// contributions are scattered afterwards by the well model, then the
// Jacobian is frozen for the solve.
func (g *BlackoilGrid) Linearize(dt float64) (err error) {
	var (
		n    = g.numEq
		ncv  = g.nx * n
		T    = g.transmissibility()
		wide = 2 * n
	)
	if g.prev == nil {
		err = fmt.Errorf("BeginTimeStep must run before Linearize")
		return
	}
	g.res = make([]float64, ncv)
	g.jac = utils.NewDOK(ncv, ncv)

	// Accumulation
	for c := 0; c < g.nx; c++ {
		iq := g.IntensiveQuantities(c)
		pv := g.DofTotalVolume(c)
		var acc [3]autodiff.Eval
		acc[state.Water] = iq.Saturation[state.Water].Times(iq.InvB[state.Water]).Scale(pv)
		acc[state.Oil] = iq.Saturation[state.Oil].Times(iq.InvB[state.Oil]).
			Plus(iq.Rv.Times(iq.Saturation[state.Gas]).Times(iq.InvB[state.Gas])).Scale(pv)
		acc[state.Gas] = iq.Saturation[state.Gas].Times(iq.InvB[state.Gas]).
			Plus(iq.Rs.Times(iq.Saturation[state.Oil]).Times(iq.InvB[state.Oil])).Scale(pv)
		for comp := 0; comp < 3; comp++ {
			r := acc[comp].AddValue(-g.accum0[c][comp]).Scale(1 / dt)
			g.scatter(c, comp, r, []int{c})
		}
	}

	// Interior faces, two-point flux with phase upwinding
	for c := 0; c+1 < g.nx; c++ {
		var (
			iqL = g.IntensiveQuantities(c)
			iqR = g.IntensiveQuantities(c + 1)
			dz  = g.depth[c] - g.depth[c+1]
		)
		cells := []int{c, c + 1}
		var dpsi [3]autodiff.Eval
		var up [3]int
		for ph := 0; ph < 3; ph++ {
			rhoFace := widen(iqL.Density[ph], 0, wide).
				Plus(widen(iqR.Density[ph], n, wide)).Scale(0.5)
			dpsi[ph] = widen(iqL.Pressure[ph], 0, wide).
				Minus(widen(iqR.Pressure[ph], n, wide)).
				Minus(rhoFace.Scale(g.gravity * dz))
			if dpsi[ph].Val > 0 {
				up[ph] = 0
			} else {
				up[ph] = 1
			}
		}
		iqUp := func(ph int) (*IntensiveQuantities, int) {
			if up[ph] == 0 {
				return iqL, 0
			}
			return iqR, n
		}
		phaseFlux := func(ph int) autodiff.Eval {
			iq, off := iqUp(ph)
			mobB := widen(iq.Mobility[ph].Times(iq.InvB[ph]), off, wide)
			return mobB.Times(dpsi[ph]).Scale(T)
		}
		var flux [3]autodiff.Eval
		flux[state.Water] = phaseFlux(state.Water)
		flux[state.Oil] = phaseFlux(state.Oil)
		flux[state.Gas] = phaseFlux(state.Gas)
		// Dissolved gas travels with the oil phase, vaporized oil
		// with the gas phase
		if g.caps.HasDisgas {
			iq, off := iqUp(state.Oil)
			flux[state.Gas] = flux[state.Gas].Plus(widen(iq.Rs, off, wide).Times(flux[state.Oil]))
		}
		if g.caps.HasVapoil {
			iq, off := iqUp(state.Gas)
			fg := phaseFlux(state.Gas)
			flux[state.Oil] = flux[state.Oil].Plus(widen(iq.Rv, off, wide).Times(fg))
		}
		for comp := 0; comp < 3; comp++ {
			g.scatter(c, comp, flux[comp], cells)
			g.scatter(c+1, comp, flux[comp].Neg(), cells)
		}
	}
	return
}

// scatter adds an Eval residual contribution for equation eq of a
// cell; the Eval's derivative slots map onto the unknowns of cells in
// order
func (g *BlackoilGrid) scatter(cell, eq int, v autodiff.Eval, cells []int) {
	var (
		n   = g.numEq
		row = cell*n + eq
	)
	g.res[row] += v.Val
	for k, col := range cells {
		for pv := 0; pv < n; pv++ {
			d := v.Der[k*n+pv]
			if d != 0 {
				g.jac.AddAt(row, col*n+pv, d)
			}
		}
	}
}

func (g *BlackoilGrid) Residual() []float64 { return g.res }

func (g *BlackoilGrid) AddToResidual(cell, eq int, val float64) {
	g.res[cell*g.numEq+eq] += val
}

func (g *BlackoilGrid) AddToJacobian(cell, eq, col, pv int, val float64) {
	g.jac.AddAt(cell*g.numEq+eq, col*g.numEq+pv, val)
}

func (g *BlackoilGrid) FreezeJacobian() utils.CSR {
	return g.jac.ToCSR()
}
