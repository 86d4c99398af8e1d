package wells

import (
	"fmt"
	"math"

	"github.com/notargets/gores/autodiff"
	"github.com/notargets/gores/simulator"
	"github.com/notargets/gores/state"
)

func limited(dx, limit float64) float64 {
	return math.Copysign(math.Min(math.Abs(dx), limit), dx)
}

/*
UpdateWellState applies a Newton update dwells, well-major with stride
numWellEq, to the well primary variables and back-calculates the well
rates, bhp and thp from the updated variables. Fraction updates are
clamped to DWellFractionMax and negative fractions are renormalized
away before the rates are formed.
*/
func (sw *StandardWells) UpdateWellState(dwells []float64, ws *state.WellState) {
	var (
		dFLimit   = sw.cfg.DWellFractionMax
		dBHPLimit = sw.cfg.DBHPMaxRel
	)
	for w := 0; w < sw.nw; w++ {
		var (
			well = &sw.wells.W[w]
			ctrl = &well.Controls[ws.CurrentControls[w]]
			dw   = dwells[w*sw.numWellEq : (w+1)*sw.numWellEq]
		)
		oldXvar := ws.Solution(XvarWell, w)

		ws.SetSolution(WFrac, w, ws.Solution(WFrac, w)-limited(dw[WFrac], dFLimit))
		ws.SetSolution(GFrac, w, ws.Solution(GFrac, w)-limited(dw[GFrac], dFLimit))
		if sw.caps.HasSolvent {
			ws.SetSolution(SFrac, w, ws.Solution(SFrac, w)-limited(dw[SFrac], dFLimit))
		}

		var F [3]float64
		F[state.Water] = ws.Solution(WFrac, w)
		F[state.Gas] = ws.Solution(GFrac, w)
		FSolvent := 0.0
		if sw.caps.HasSolvent {
			FSolvent = ws.Solution(SFrac, w)
		}
		F[state.Oil] = 1 - F[state.Water] - F[state.Gas] - FSolvent

		// A negative fraction is zeroed and the remainder renormalized
		for _, p := range []int{state.Water, state.Gas, state.Oil} {
			if F[p] >= 0 {
				continue
			}
			scale := 1 / (1 - F[p])
			for q := 0; q < 3; q++ {
				if q != p {
					F[q] *= scale
				}
			}
			FSolvent *= scale
			F[p] = 0
		}

		ws.SetSolution(WFrac, w, F[state.Water])
		ws.SetSolution(GFrac, w, F[state.Gas])
		if sw.caps.HasSolvent {
			ws.SetSolution(SFrac, w, FSolvent)
		}
		// the gas rate carries the solvent stream
		F[state.Gas] += FSolvent

		if ctrl.Type == state.ReservoirRateControl {
			for p := 0; p < 3; p++ {
				if ctrl.Distr[p] > 0 {
					F[p] /= ctrl.Distr[p]
				} else {
					F[p] = 0
				}
			}
		} else {
			for p := 0; p < 3; p++ {
				F[p] /= compScale[p]
			}
		}

		switch ctrl.Type {
		case state.BHPControl, state.THPControl:
			// total rate is the first well variable
			xvar := oldXvar - dw[XvarWell]
			ws.SetSolution(XvarWell, w, xvar)
			if well.Type == state.Injector {
				for p := 0; p < 3; p++ {
					ws.SetRate(w, p, well.CompFrac[p]*xvar)
				}
			} else {
				for p := 0; p < 3; p++ {
					ws.SetRate(w, p, xvar*F[p])
				}
			}
			if ctrl.Type == state.THPControl {
				var (
					table = sw.vfp[ctrl.VFPTable]
					rho   = sw.perfDensities[sw.perfStart[w]]
					dp    = hydrostaticCorrection(well, table.DatumDepth, rho, sw.gravity)
				)
				ws.BHP[w] = table.BHP(ws.Rate(w, state.Water), ws.Rate(w, state.Oil),
					ws.Rate(w, state.Gas), ctrl.Target, ctrl.ALQ) - dp
			}
		case state.SurfaceRateControl, state.ReservoirRateControl:
			// bhp is the first well variable
			dx1 := limited(dw[XvarWell], math.Abs(oldXvar)*dBHPLimit)
			xvar := math.Max(oldXvar-dx1, 1.e5)
			ws.SetSolution(XvarWell, w, xvar)
			ws.BHP[w] = xvar

			if ctrl.Type == state.SurfaceRateControl {
				if well.Type == state.Producer {
					FTarget := 0.0
					for p := 0; p < 3; p++ {
						FTarget += ctrl.Distr[p] * F[p]
					}
					for p := 0; p < 3; p++ {
						ws.SetRate(w, p, F[p]*ctrl.Target/FTarget)
					}
				} else {
					for p := 0; p < 3; p++ {
						ws.SetRate(w, p, well.CompFrac[p]*ctrl.Target)
					}
				}
			} else {
				for p := 0; p < 3; p++ {
					ws.SetRate(w, p, F[p]*ctrl.Target)
				}
			}
		}
	}
	sw.updateTHPFromBhp(ws)
}

// updateTHPFromBhp refreshes the thp of every well carrying a THP
// constraint; wells without one report zero
func (sw *StandardWells) updateTHPFromBhp(ws *state.WellState) {
	for w := 0; w < sw.nw; w++ {
		well := &sw.wells.W[w]
		thpIdx := -1
		for c := range well.Controls {
			if well.Controls[c].Type == state.THPControl {
				thpIdx = c
				break
			}
		}
		if thpIdx < 0 {
			ws.THP[w] = 0
			continue
		}
		if ws.CurrentControls[w] == thpIdx {
			ws.THP[w] = well.Controls[thpIdx].Target
			continue
		}
		var (
			ctrl  = &well.Controls[thpIdx]
			table = sw.vfp[ctrl.VFPTable]
			rho   = sw.perfDensities[sw.perfStart[w]]
			dp    = hydrostaticCorrection(well, table.DatumDepth, rho, sw.gravity)
		)
		ws.THP[w] = table.THP(ws.Rate(w, state.Water), ws.Rate(w, state.Oil),
			ws.Rate(w, state.Gas), ws.BHP[w]+dp, ctrl.ALQ)
	}
}

// constraintBroken checks one inactive constraint of a well against
// the current state. Rates are signed, negative for producers, so the
// comparisons flip between well types.
func (sw *StandardWells) constraintBroken(ws *state.WellState, w, ctrlIdx int) bool {
	var (
		well = &sw.wells.W[w]
		ctrl = &well.Controls[ctrlIdx]
	)
	switch ctrl.Type {
	case state.BHPControl:
		if well.Type == state.Injector {
			return ws.BHP[w] > ctrl.Target
		}
		return ws.BHP[w] < ctrl.Target
	case state.THPControl:
		if well.Type == state.Injector {
			return ws.THP[w] > ctrl.Target
		}
		return ws.THP[w] < ctrl.Target
	case state.SurfaceRateControl:
		rateSum := 0.0
		for p := 0; p < 3; p++ {
			rateSum += ctrl.Distr[p] * ws.Rate(w, p)
		}
		if well.Type == state.Injector {
			return rateSum > ctrl.Target
		}
		return rateSum < ctrl.Target
	}
	// reservoir rate constraints are not checked
	return false
}

// UpdateWellControls scans every well for broken constraints and
// switches to the first broken one; a switched well has its state
// re-seeded from the new target
func (sw *StandardWells) UpdateWellControls(ws *state.WellState) {
	for w := 0; w < sw.nw; w++ {
		var (
			well    = &sw.wells.W[w]
			current = ws.CurrentControls[w]
		)
		broken := -1
		for c := range well.Controls {
			if c == current {
				continue
			}
			if sw.constraintBroken(ws, w, c) {
				broken = c
				break
			}
		}
		if broken < 0 {
			continue
		}
		fmt.Printf("    Switching control mode for well %s from %s to %s\n",
			well.Name, well.Controls[current].Type, well.Controls[broken].Type)
		ws.CurrentControls[w] = broken
		sw.UpdateWellStateWithTarget(ws, w)
	}
}

/*
UpdateWellStateWithTarget re-seeds the rates, pressures and primary
variables of one well from the target of its active control. It runs
when a well switches control and when a new well first enters the
schedule.
*/
func (sw *StandardWells) UpdateWellStateWithTarget(ws *state.WellState, w int) {
	var (
		well = &sw.wells.W[w]
		ctrl = &well.Controls[ws.CurrentControls[w]]
	)
	switch ctrl.Type {
	case state.BHPControl:
		ws.BHP[w] = ctrl.Target
	case state.THPControl:
		ws.THP[w] = ctrl.Target
		var (
			table = sw.vfp[ctrl.VFPTable]
			rho   = sw.perfDensities[sw.perfStart[w]]
			dp    = hydrostaticCorrection(well, table.DatumDepth, rho, sw.gravity)
		)
		ws.BHP[w] = table.BHP(ws.Rate(w, state.Water), ws.Rate(w, state.Oil),
			ws.Rate(w, state.Gas), ctrl.Target, ctrl.ALQ) - dp
	case state.SurfaceRateControl, state.ReservoirRateControl:
		numUnder := 0
		for p := 0; p < 3; p++ {
			if ctrl.Distr[p] > 0 {
				numUnder++
			}
		}
		if well.Type == state.Injector {
			for p := 0; p < 3; p++ {
				if ctrl.Distr[p] > 0 {
					ws.SetRate(w, p, ctrl.Target/ctrl.Distr[p])
				} else {
					ws.SetRate(w, p, 0)
				}
			}
		} else {
			originalRates := 0.0
			for p := 0; p < 3; p++ {
				if ctrl.Distr[p] > 0 {
					originalRates += ws.Rate(w, p) * ctrl.Distr[p]
				}
			}
			if originalRates != 0 {
				// keep the phase ratio, scale to the target
				scale := ctrl.Target / originalRates
				for p := 0; p < 3; p++ {
					ws.SetRate(w, p, ws.Rate(w, p)*scale)
				}
			} else {
				divided := ctrl.Target / float64(numUnder)
				for p := 0; p < 3; p++ {
					if ctrl.Distr[p] > 0 {
						ws.SetRate(w, p, divided/ctrl.Distr[p])
					} else {
						ws.SetRate(w, p, divided)
					}
				}
			}
		}
	}

	g := [3]float64{1, 1, 0.01}
	if ctrl.Type == state.ReservoirRateControl {
		g = ctrl.Distr
	}

	switch ctrl.Type {
	case state.BHPControl, state.THPControl:
		xvar := 0.0
		if well.Type == state.Injector {
			for p := 0; p < 3; p++ {
				xvar += ws.Rate(w, p) * well.CompFrac[p]
			}
		} else {
			for p := 0; p < 3; p++ {
				xvar += g[p] * ws.Rate(w, p)
			}
		}
		ws.SetSolution(XvarWell, w, xvar)
	default:
		ws.SetSolution(XvarWell, w, ws.BHP[w])
	}

	totRate := 0.0
	for p := 0; p < 3; p++ {
		totRate += g[p] * ws.Rate(w, p)
	}
	if math.Abs(totRate) > 0 {
		ws.SetSolution(WFrac, w, g[state.Water]*ws.Rate(w, state.Water)/totRate)
		ws.SetSolution(GFrac, w, g[state.Gas]*(ws.Rate(w, state.Gas)-ws.SolventWellRate[w])/totRate)
		if sw.caps.HasSolvent {
			ws.SetSolution(SFrac, w, g[state.Gas]*ws.SolventWellRate[w]/totRate)
		}
	} else if well.Type == state.Injector {
		// single phase injection: the distr entry marks the phase,
		// zero distr controls fall back to the preferred composition
		indicator := ctrl.Distr
		if indicator[state.Water] == 0 && indicator[state.Oil] == 0 && indicator[state.Gas] == 0 {
			indicator = well.CompFrac
		}
		if indicator[state.Water] > 0 {
			ws.SetSolution(WFrac, w, 1)
		} else {
			ws.SetSolution(WFrac, w, 0)
		}
		if indicator[state.Gas] > 0 {
			ws.SetSolution(GFrac, w, 1-well.WSolvent)
			if sw.caps.HasSolvent {
				ws.SetSolution(SFrac, w, well.WSolvent)
			}
		} else {
			ws.SetSolution(GFrac, w, 0)
		}
	} else {
		ws.SetSolution(WFrac, w, 1.0/3)
		ws.SetSolution(GFrac, w, 1.0/3)
	}
}

/*
ComputeWellConnectionPressures rebuilds the wellbore mixture density
of every perforation and the hydrostatic pressure difference between
each perforation and the well's reference depth. Densities follow the
connection mixture composition, with dissolved gas and vaporized oil
limited by the saturated ratios at the connection pressure.
*/
func (sw *StandardWells) ComputeWellConnectionPressures(g simulator.GridSimulator, ws *state.WellState) {
	for w := 0; w < sw.nw; w++ {
		well := &sw.wells.W[w]
		for perf := 0; perf < well.NumPerfs(); perf++ {
			var (
				gp     = sw.PerfIndex(w, perf)
				pAbove = ws.BHP[w]
			)
			if perf > 0 {
				pAbove = ws.PerfPress[gp-1]
			}
			pAvg := (ws.PerfPress[gp] + pAbove) / 2
			sw.perfDensities[gp] = sw.connectionDensity(ws, well, w, gp, pAvg)
		}
		// hydrostatic column from the reference depth downwards
		var (
			dp        float64
			prevDepth = well.RefDepth
		)
		for perf := 0; perf < well.NumPerfs(); perf++ {
			gp := sw.PerfIndex(w, perf)
			dp += sw.perfDensities[gp] * sw.gravity * (well.PerfDepth[perf] - prevDepth)
			sw.perfPressDiffs[gp] = dp
			prevDepth = well.PerfDepth[perf]
		}
	}
}

// connectionDensity evaluates the mixture mass density at one
// perforation from its phase rates, falling back to the preferred
// composition when the connection is not flowing
func (sw *StandardWells) connectionDensity(ws *state.WellState, well *state.Well,
	w, gp int, pAvg float64) float64 {
	var (
		qw   = ws.PerfPhaseRates[gp*ws.NumPhases+state.Water]
		qo   = ws.PerfPhaseRates[gp*ws.NumPhases+state.Oil]
		qg   = ws.PerfPhaseRates[gp*ws.NumPhases+state.Gas]
		qtot = math.Abs(qw) + math.Abs(qo) + math.Abs(qg)
		mix  [3]float64
	)
	if qtot > 0 {
		mix[state.Water] = math.Abs(qw) / qtot
		mix[state.Oil] = math.Abs(qo) / qtot
		mix[state.Gas] = math.Abs(qg) / qtot
	} else {
		mix = well.CompFrac
	}

	var (
		rsMax  = sw.f.RsSat(pAvg)
		rvMax  = sw.f.RvSat(pAvg)
		rs, rv float64
	)
	if math.Abs(qo) > 0 && math.Abs(qg) > 0 {
		rs = math.Min(math.Abs(qg/qo), rsMax)
		rv = math.Min(math.Abs(qo/qg), rvMax)
	}

	var (
		pe = autodiff.Constant(pAvg, 0)
		bw = sw.f.InvBw(pe).Val
		bo = sw.f.InvBo(pe).Val
		bg = sw.f.InvBg(pe).Val
		d  = 1 - rv*rs
	)
	volRat := mix[state.Water] / bw
	tmpOil := (mix[state.Oil] - rv*mix[state.Gas]) / d
	tmpGas := (mix[state.Gas] - rs*mix[state.Oil]) / d
	volRat += tmpOil/bo + tmpGas/bg

	surfaceMass := 0.0
	for p := 0; p < 3; p++ {
		surfaceMass += mix[p] * sw.f.RhoSurface[p]
	}
	if volRat == 0 {
		return sw.f.RhoSurface[state.Oil]
	}
	return surfaceMass / volRat
}

// PrepareTimeStep realigns controls with the well state, re-seeds any
// well entering the schedule for the first time and records the flow
// potential of every well against its pressure limits
func (sw *StandardWells) PrepareTimeStep(g simulator.GridSimulator,
	ws *state.WellState) error {
	sw.ResetWellControlFromState(ws)
	for w := 0; w < sw.nw; w++ {
		sw.UpdateWellStateWithTarget(ws, w)
	}
	sw.ComputeWellConnectionPressures(g, ws)
	pot, err := sw.ComputeWellPotentials(g, ws)
	if err != nil {
		return err
	}
	copy(ws.WellPotentials, pot)
	for w := 0; w < sw.nw; w++ {
		ws.IsNewWell[w] = false
	}
	return nil
}
