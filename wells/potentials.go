package wells

import (
	"math"

	"github.com/notargets/gores/autodiff"
	"github.com/notargets/gores/simulator"
	"github.com/notargets/gores/state"
)

// mostStrictBhpFromBhpLimits picks the tightest BHP limit among a
// well's constraints: the lowest for an injector, the highest for a
// producer. Without an explicit BHP constraint the limit is open.
func (sw *StandardWells) mostStrictBhpFromBhpLimits(w int) float64 {
	var (
		well = &sw.wells.W[w]
		bhp  float64
	)
	if well.Type == state.Injector {
		bhp = math.Inf(1)
	} else {
		bhp = math.Inf(-1)
	}
	for c := range well.Controls {
		if well.Controls[c].Type != state.BHPControl {
			continue
		}
		target := well.Controls[c].Target
		if well.Type == state.Injector {
			bhp = math.Min(bhp, target)
		} else {
			bhp = math.Max(bhp, target)
		}
	}
	return bhp
}

// computeWellRatesWithBhp sums the perforation fluxes of a well at a
// prescribed bottom hole pressure, signed surface rates per phase
func (sw *StandardWells) computeWellRatesWithBhp(g simulator.GridSimulator,
	ws *state.WellState, w int, bhp float64) (rates [3]float64, err error) {
	var (
		well    = &sw.wells.W[w]
		allowCF = sw.allowCrossFlow(g, ws, w)
		bhpEval = autodiff.Constant(bhp, sw.numEq+sw.numWellEq)
	)
	for perf := 0; perf < well.NumPerfs(); perf++ {
		var (
			cell = well.Cells[perf]
			mob  = sw.getMobility(g, cell)
		)
		cqs, cwfErr := sw.computeWellFlux(g, ws, w, perf, cell, mob, bhpEval, allowCF)
		if cwfErr != nil {
			err = cwfErr
			return
		}
		for ph := 0; ph < 3; ph++ {
			rates[ph] += cqs[ph].Val
		}
	}
	return
}

/*
computeWellPotentialWithTHP iterates the well potential of a well
carrying THP constraints to a fixed point: the bhp implied by the lift
tables at the current potential feeds back into the rate calculation,
heavily damped, until the bhp settles within 1000 Pa. The iteration
failing to settle is a fatal configuration problem.
*/
func (sw *StandardWells) computeWellPotentialWithTHP(g simulator.GridSimulator,
	ws *state.WellState, w int, initialBhp float64,
	initialPotential [3]float64) (potentials [3]float64, err error) {
	const (
		maxIter      = 1000
		bhpTolerance = 1000. // Pa
		damping      = 0.001
	)
	var (
		well = &sw.wells.W[w]
		bhp  = initialBhp
	)
	potentials = initialPotential
	converged := false
	for it := 0; it < maxIter; it++ {
		oldBhp := bhp
		bhp = initialBhp
		for c := range well.Controls {
			ctrl := &well.Controls[c]
			if ctrl.Type != state.THPControl {
				continue
			}
			var (
				table = sw.vfp[ctrl.VFPTable]
				rho   = sw.perfDensities[sw.perfStart[w]]
				dp    = hydrostaticCorrection(well, table.DatumDepth, rho, sw.gravity)
				cand  = table.BHP(potentials[state.Water], potentials[state.Oil],
					potentials[state.Gas], ctrl.Target, ctrl.ALQ) - dp
			)
			if well.Type == state.Injector {
				bhp = math.Min(bhp, cand)
			} else {
				bhp = math.Max(bhp, cand)
			}
		}
		if math.IsNaN(bhp) || math.IsInf(bhp, 0) {
			err = simulator.Errf(simulator.KindFatal,
				"non-finite bhp for well %s during potential calculation", well.Name)
			return
		}
		if math.Abs(oldBhp-bhp) < bhpTolerance {
			converged = true
			break
		}
		rates, rErr := sw.computeWellRatesWithBhp(g, ws, w, bhp)
		if rErr != nil {
			err = rErr
			return
		}
		for ph := 0; ph < 3; ph++ {
			if math.IsNaN(rates[ph]) || math.IsInf(rates[ph], 0) {
				err = simulator.Errf(simulator.KindFatal,
					"non-finite potential for well %s", well.Name)
				return
			}
			potentials[ph] = damping*rates[ph] + (1-damping)*potentials[ph]
		}
	}
	if !converged {
		err = simulator.Errf(simulator.KindFatal,
			"potential calculation for well %s did not converge", well.Name)
	}
	return
}

/*
ComputeWellPotentials returns the unsigned flow potential of every
well per phase, well-major with phase stride: the rates the well would
deliver against its tightest pressure limits with the current
reservoir condition.
*/
func (sw *StandardWells) ComputeWellPotentials(g simulator.GridSimulator,
	ws *state.WellState) (potentials []float64, err error) {
	sw.SetWellVariables(ws)
	potentials = make([]float64, sw.nw*3)
	for w := 0; w < sw.nw; w++ {
		var (
			well = &sw.wells.W[w]
			bhp  = sw.mostStrictBhpFromBhpLimits(w)
			pot  [3]float64
		)
		hasTHP := false
		for c := range well.Controls {
			if well.Controls[c].Type == state.THPControl {
				hasTHP = true
				break
			}
		}
		if !hasTHP {
			if math.IsInf(bhp, 0) {
				// no pressure limit to flow against
				continue
			}
			if pot, err = sw.computeWellRatesWithBhp(g, ws, w, bhp); err != nil {
				return
			}
		} else {
			var initial [3]float64
			if ws.IsNewWell[w] && !math.IsInf(bhp, 0) {
				rates, rErr := sw.computeWellRatesWithBhp(g, ws, w, bhp)
				if rErr != nil {
					err = rErr
					return
				}
				for ph := 0; ph < 3; ph++ {
					initial[ph] = 0.00001 * rates[ph]
				}
			} else {
				for ph := 0; ph < 3; ph++ {
					initial[ph] = ws.Rate(w, ph)
				}
			}
			if pot, err = sw.computeWellPotentialWithTHP(g, ws, w, bhp, initial); err != nil {
				return
			}
		}
		for ph := 0; ph < 3; ph++ {
			potentials[w*3+ph] = math.Abs(pot[ph])
		}
	}
	return
}
