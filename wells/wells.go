package wells

import (
	"github.com/notargets/gores/autodiff"
	"github.com/notargets/gores/fluid"
	"github.com/notargets/gores/simulator"
	"github.com/notargets/gores/state"
	"github.com/notargets/gores/utils"
)

// Well primary variable indices within a well's equation block
const (
	XvarWell = 0 // bhp or total rate depending on the active control
	WFrac    = 1
	GFrac    = 2
	SFrac    = 3
)

// Config collects the tunables of the well model
type Config struct {
	// Relative limits on a single Newton update of the well unknowns
	DWellFractionMax float64
	DBHPMaxRel       float64
	// Convergence tolerance and divergence ceiling on the scaled well
	// flux residual
	ToleranceWells     float64
	MaxResidualAllowed float64
	// Iteration cap of the standalone well equation solve
	MaxWellEqIter        int
	SolveWellEqInitially bool
}

func DefaultConfig() Config {
	return Config{
		DWellFractionMax:     0.2,
		DBHPMaxRel:           1.0,
		ToleranceWells:       1.e-4,
		MaxResidualAllowed:   1.e7,
		MaxWellEqIter:        15,
		SolveWellEqInitially: true,
	}
}

/*
StandardWells is the fully implicit well model coupled to the
reservoir equations. Each well carries numWellEq primary variables and
the model assembles the off-diagonal coupling blocks B and C together
with the well-local block D, so that the well unknowns can be
eliminated from the linear system by a Schur complement and recovered
afterwards.

All Evals produced here live in the combined derivative space of size
numEq + numWellEq: the leading slots are the perforated cell's
unknowns, the trailing slots the well's own.
*/
type StandardWells struct {
	wells *state.Wells
	caps  state.Capabilities
	pu    state.PhaseUsage
	f     fluid.PVT
	cfg   Config
	comm  simulator.Communicator

	gravity float64

	numEq     int // reservoir equations per cell
	numWellEq int // well equations per well
	numComp   int // flux components, phases plus solvent
	nw        int

	vfp map[int]VFPTable

	// wells and connections taken out of service by economic limits;
	// the assembly skips them
	econ *EconLimited

	// perforation arrays, CSR-ordered over wells; perfStart[w] is the
	// global index of well w's first perforation
	perfStart      []int
	perfDensities  []float64
	perfPressDiffs []float64

	wellVars [][]autodiff.Eval
	f0       [][]float64 // surface volume fractions at timestep start

	// Coupled system blocks. B maps well unknowns into cell residuals,
	// C cell unknowns into well residuals, D is the well-local block.
	duneB   [][]utils.Matrix
	duneC   [][]utils.Matrix
	duneD   []utils.Matrix
	invD    []utils.Matrix
	resWell [][]float64
}

func NewStandardWells(w *state.Wells, caps state.Capabilities, pu state.PhaseUsage,
	f fluid.PVT, cfg Config, comm simulator.Communicator, gravity float64,
	vfp map[int]VFPTable) (sw *StandardWells) {
	var (
		numEq     = caps.NumEq()
		numWellEq = caps.NumEq()
		numComp   = 3
		nw        = w.NumWells()
	)
	if caps.HasSolvent {
		numComp++
	}
	sw = &StandardWells{
		wells:     w,
		caps:      caps,
		pu:        pu,
		f:         f,
		cfg:       cfg,
		comm:      comm,
		gravity:   gravity,
		numEq:     numEq,
		numWellEq: numWellEq,
		numComp:   numComp,
		nw:        nw,
		vfp:       vfp,
		econ:      NewEconLimited(),
	}
	sw.perfStart = make([]int, nw+1)
	for i := range w.W {
		sw.perfStart[i+1] = sw.perfStart[i] + w.W[i].NumPerfs()
	}
	nperf := sw.perfStart[nw]
	sw.perfDensities = make([]float64, nperf)
	sw.perfPressDiffs = make([]float64, nperf)

	sw.wellVars = make([][]autodiff.Eval, nw)
	sw.f0 = make([][]float64, nw)
	sw.duneB = make([][]utils.Matrix, nw)
	sw.duneC = make([][]utils.Matrix, nw)
	sw.duneD = make([]utils.Matrix, nw)
	sw.invD = make([]utils.Matrix, nw)
	sw.resWell = make([][]float64, nw)
	for i := 0; i < nw; i++ {
		np := w.W[i].NumPerfs()
		sw.wellVars[i] = make([]autodiff.Eval, numWellEq)
		sw.f0[i] = make([]float64, numComp)
		sw.duneB[i] = make([]utils.Matrix, np)
		sw.duneC[i] = make([]utils.Matrix, np)
		for p := 0; p < np; p++ {
			sw.duneB[i][p] = utils.NewMatrix(numEq, numWellEq)
			sw.duneC[i][p] = utils.NewMatrix(numWellEq, numEq)
		}
		sw.duneD[i] = utils.NewMatrix(numWellEq, numWellEq)
		sw.invD[i] = utils.NewMatrix(numWellEq, numWellEq)
		sw.resWell[i] = make([]float64, numWellEq)
	}
	return
}

func (sw *StandardWells) NumWells() int { return sw.nw }

func (sw *StandardWells) Config() Config { return sw.cfg }

func (sw *StandardWells) NumWellEq() int { return sw.numWellEq }

func (sw *StandardWells) Wells() *state.Wells { return sw.wells }

// PerfIndex maps a well-local perforation number to the global
// perforation index
func (sw *StandardWells) PerfIndex(well, perf int) int {
	return sw.perfStart[well] + perf
}

// SetWellVariables loads the well primary variables from the well
// state as seeded Evals in the combined derivative space
func (sw *StandardWells) SetWellVariables(ws *state.WellState) {
	var (
		wide = sw.numEq + sw.numWellEq
	)
	for w := 0; w < sw.nw; w++ {
		for eq := 0; eq < sw.numWellEq; eq++ {
			sw.wellVars[w][eq] = autodiff.Variable(ws.Solution(eq, w), sw.numEq+eq, wide)
		}
	}
}

// extendEval widens a cell quantity into the combined derivative
// space, leaving the well slots zero
func (sw *StandardWells) extendEval(e autodiff.Eval) autodiff.Eval {
	return e.Extend(sw.numEq + sw.numWellEq)
}

// wellVolumeFraction is the unscaled volume fraction of a flux
// component in the wellbore mixture; oil closes the sum to one
func (sw *StandardWells) wellVolumeFraction(w, comp int) autodiff.Eval {
	var (
		wide = sw.numEq + sw.numWellEq
	)
	switch {
	case comp == state.Water:
		return sw.wellVars[w][WFrac]
	case comp == state.Gas:
		return sw.wellVars[w][GFrac]
	case sw.caps.HasSolvent && comp == sw.caps.SolventIdx():
		return sw.wellVars[w][SFrac]
	}
	// Oil fraction
	R := autodiff.Constant(1, wide)
	R = R.Minus(sw.wellVars[w][WFrac]).Minus(sw.wellVars[w][GFrac])
	if sw.caps.HasSolvent {
		R = R.Minus(sw.wellVars[w][SFrac])
	}
	return R
}

// compScale is the default scaling applied to wellbore fractions,
// deflating the gas and solvent entries so the fractions compare on a
// liquid-like footing
var compScale = [4]float64{1, 1, 0.01, 0.01}

func (sw *StandardWells) wellVolumeFractionScaled(ws *state.WellState, w, comp int) autodiff.Eval {
	var (
		well = &sw.wells.W[w]
		ctrl = &well.Controls[ws.CurrentControls[w]]
	)
	if ctrl.Type == state.ReservoirRateControl {
		if sw.caps.HasSolvent && comp == sw.caps.SolventIdx() {
			return sw.wellVolumeFraction(w, comp)
		}
		if ctrl.Distr[comp] > 0 {
			return sw.wellVolumeFraction(w, comp).Scale(1 / ctrl.Distr[comp])
		}
		return sw.wellVolumeFraction(w, comp)
	}
	return sw.wellVolumeFraction(w, comp).Scale(1 / compScale[comp])
}

// wellSurfaceVolumeFraction normalizes the scaled fraction over all
// flux components
func (sw *StandardWells) wellSurfaceVolumeFraction(ws *state.WellState, w, comp int) autodiff.Eval {
	var (
		sum = autodiff.Constant(0, sw.numEq+sw.numWellEq)
	)
	for c := 0; c < sw.numComp; c++ {
		sum = sum.Plus(sw.wellVolumeFractionScaled(ws, w, c))
	}
	return sw.wellVolumeFractionScaled(ws, w, comp).DividedBy(sum)
}

// compFrac is the injected surface composition of a flux component;
// under active solvent the gas stream splits by WSolvent
func (sw *StandardWells) compFrac(well *state.Well, comp int) float64 {
	if sw.caps.HasSolvent {
		switch comp {
		case sw.caps.SolventIdx():
			return well.CompFrac[state.Gas] * well.WSolvent
		case state.Gas:
			return well.CompFrac[state.Gas] * (1 - well.WSolvent)
		}
	}
	return well.CompFrac[comp]
}

/*
getQs evaluates the surface volumetric rate of one flux component of a
well under its active control. For injectors only single phase surface
injection is supported so the rate follows the injected composition;
for producers the rate splits the control target by the wellbore
volume fractions.
*/
func (sw *StandardWells) getQs(ws *state.WellState, w, comp int) autodiff.Eval {
	var (
		wide = sw.numEq + sw.numWellEq
		well = &sw.wells.W[w]
		ctrl = &well.Controls[ws.CurrentControls[w]]
		qs   = autodiff.Constant(0, wide)
	)
	if well.Type == state.Injector {
		if sw.caps.HasSolvent {
			cf := sw.compFrac(well, comp)
			if cf == 0 {
				return qs
			}
			if ctrl.Type == state.BHPControl || ctrl.Type == state.THPControl {
				return sw.wellVars[w][XvarWell].Scale(cf)
			}
			return autodiff.Constant(cf*ctrl.Target, wide)
		}
		if well.CompFrac[comp] == 0 {
			return qs
		}
		if ctrl.Type == state.BHPControl || ctrl.Type == state.THPControl {
			return sw.wellVars[w][XvarWell]
		}
		return autodiff.Constant(ctrl.Target, wide)
	}

	// Producers
	switch ctrl.Type {
	case state.BHPControl, state.THPControl:
		return sw.wellVars[w][XvarWell].Times(sw.wellVolumeFractionScaled(ws, w, comp))
	case state.SurfaceRateControl:
		nUnder := 0
		for ph := 0; ph < 3; ph++ {
			if ctrl.Distr[ph] > 0 {
				nUnder++
			}
		}
		switch nUnder {
		case 1:
			phaseUnderControl := -1
			for ph := 0; ph < 3; ph++ {
				if ctrl.Distr[ph] > 0 {
					phaseUnderControl = ph
					break
				}
			}
			controlled := sw.wellVolumeFractionScaled(ws, w, phaseUnderControl)
			if sw.caps.HasSolvent && phaseUnderControl == state.Gas {
				// gas rate targets include the solvent stream
				controlled = controlled.Plus(sw.wellVolumeFractionScaled(ws, w, sw.caps.SolventIdx()))
			}
			if comp == phaseUnderControl {
				if sw.caps.HasSolvent && phaseUnderControl == state.Gas {
					frac := sw.wellVolumeFractionScaled(ws, w, state.Gas)
					return autodiff.Constant(ctrl.Target*frac.Val/controlled.Val, wide)
				}
				return autodiff.Constant(ctrl.Target, wide)
			}
			if controlled.Val < 1.e-6 {
				return qs
			}
			return sw.wellVolumeFractionScaled(ws, w, comp).Scale(ctrl.Target).DividedBy(controlled)
		case 2:
			combined := autodiff.Constant(0, wide)
			for ph := 0; ph < 3; ph++ {
				if ctrl.Distr[ph] == 1 {
					combined = combined.Plus(sw.wellVolumeFractionScaled(ws, w, ph))
				}
			}
			return sw.wellVolumeFractionScaled(ws, w, comp).Scale(ctrl.Target).DividedBy(combined)
		default:
			return sw.wellSurfaceVolumeFraction(ws, w, comp).Scale(ctrl.Target)
		}
	case state.ReservoirRateControl:
		return sw.wellVolumeFractionScaled(ws, w, comp).Scale(ctrl.Target)
	}
	panic("unknown control type for well " + well.Name)
}

// getBhp evaluates the bottom hole pressure of a well: fixed under a
// BHP control, derived through the lift table under THP, otherwise
// the XvarWell unknown itself
func (sw *StandardWells) getBhp(ws *state.WellState, w int) autodiff.Eval {
	var (
		well = &sw.wells.W[w]
		ctrl = &well.Controls[ws.CurrentControls[w]]
		wide = sw.numEq + sw.numWellEq
	)
	switch ctrl.Type {
	case state.BHPControl:
		return autodiff.Constant(ctrl.Target, wide)
	case state.THPControl:
		var (
			aqua   = sw.getQs(ws, w, state.Water)
			liquid = sw.getQs(ws, w, state.Oil)
			vapour = sw.getQs(ws, w, state.Gas)
			table  = sw.vfp[ctrl.VFPTable]
			rho    = sw.perfDensities[sw.perfStart[w]]
		)
		dp := hydrostaticCorrection(well, table.DatumDepth, rho, sw.gravity)
		return table.BHPEval(aqua, liquid, vapour, ctrl.Target, ctrl.ALQ).AddValue(-dp)
	}
	return sw.wellVars[w][XvarWell]
}

// ComputeAccumWells snapshots the surface volume fractions at the
// start of a timestep; the well storage term integrates against them
func (sw *StandardWells) ComputeAccumWells(ws *state.WellState) {
	for w := 0; w < sw.nw; w++ {
		for comp := 0; comp < sw.numComp; comp++ {
			sw.f0[w][comp] = sw.wellSurfaceVolumeFraction(ws, w, comp).Val
		}
	}
}

// ResetWellControlFromState realigns each well's active control with
// the one recorded in the well state
func (sw *StandardWells) ResetWellControlFromState(ws *state.WellState) {
	for w := 0; w < sw.nw; w++ {
		if ws.CurrentControls[w] >= len(sw.wells.W[w].Controls) {
			ws.CurrentControls[w] = 0
		}
	}
}
