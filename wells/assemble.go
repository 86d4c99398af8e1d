package wells

import (
	"github.com/notargets/gores/autodiff"
	"github.com/notargets/gores/simulator"
	"github.com/notargets/gores/state"
	"github.com/notargets/gores/utils"
)

// Wellbore storage volume, 0.1 cu ft
const wellVolume = 0.002831684659200

/*
Assemble couples the well equations to the reservoir linearization for
one Newton iteration. Every iteration starts with a constraint scan so
a well that broke a limit since the last update switches control
before the equations are formed. On the first iteration the explicit
quantities are refreshed and, when configured, the well equations are
solved standalone to give the coupled Newton a consistent starting
point.
*/
func (sw *StandardWells) Assemble(g simulator.GridSimulator, ws *state.WellState,
	dt float64, iteration int) (report simulator.Report, err error) {
	sw.UpdateWellControls(ws)
	sw.SetWellVariables(ws)
	if iteration == 0 {
		sw.ComputeWellConnectionPressures(g, ws)
		sw.ComputeAccumWells(ws)
	}
	if sw.cfg.SolveWellEqInitially && iteration == 0 {
		report, err = sw.SolveWellEq(g, ws, dt)
		if err != nil {
			return
		}
	}
	if err = sw.assembleWellEq(g, ws, dt, false); err != nil {
		return
	}
	report.Converged = true
	return
}

/*
assembleWellEq builds the well residuals and the coupling blocks. The
flux part scatters into the reservoir residual and Jacobian unless
onlyWells is set, in which case only the well-local system is formed.
The well block D is inverted in place at the end so the Schur
elimination and the standalone solve both read invD.
*/
func (sw *StandardWells) assembleWellEq(g simulator.GridSimulator, ws *state.WellState,
	dt float64, onlyWells bool) (err error) {
	var (
		numEq     = sw.numEq
		numWellEq = sw.numWellEq
		numComp   = sw.numComp
	)
	for w := 0; w < sw.nw; w++ {
		well := &sw.wells.W[w]
		for p := range sw.duneB[w] {
			sw.duneB[w][p].Zero()
			sw.duneC[w][p].Zero()
		}
		sw.duneD[w].Zero()
		utils.VecZero(sw.resWell[w])

		if sw.econ.WellShut(well.Name) {
			// a shut well keeps an identity block so the Schur
			// elimination stays well posed; it contributes nothing
			for pv := 0; pv < numWellEq; pv++ {
				sw.duneD[w].Set(pv, pv, 1)
			}
			for ph := 0; ph < 3; ph++ {
				ws.SetRate(w, ph, 0)
			}
			continue
		}
		closed := sw.econ.ClosedConnections(well.Name)

		var (
			allowCF = sw.allowCrossFlow(g, ws, w)
			bhp     = sw.getBhp(ws, w)
		)
		for perf := 0; perf < well.NumPerfs(); perf++ {
			var (
				cell    = well.Cells[perf]
				perfIdx = sw.PerfIndex(w, perf)
				mob     = sw.getMobility(g, cell)
			)
			if connectionClosed(closed, perf) {
				for ph := 0; ph < 3; ph++ {
					ws.PerfPhaseRates[perfIdx*ws.NumPhases+ph] = 0
				}
				continue
			}
			cqs, cwfErr := sw.computeWellFlux(g, ws, w, perf, cell, mob, bhp, allowCF)
			if cwfErr != nil {
				return cwfErr
			}
			for comp := 0; comp < numComp; comp++ {
				cqsEff := cqs[comp].Scale(well.EfficiencyFac)
				if !onlyWells {
					g.AddToResidual(cell, comp, -cqsEff.Val)
				}
				sw.resWell[w][comp] -= cqs[comp].Val
				for pv := 0; pv < numWellEq; pv++ {
					if !onlyWells {
						sw.duneB[w][perf].AddAt(comp, pv, -cqsEff.Deriv(numEq+pv))
					}
					sw.duneD[w].AddAt(comp, pv, -cqs[comp].Deriv(numEq+pv))
				}
				for pv := 0; pv < numEq; pv++ {
					if !onlyWells {
						g.AddToJacobian(cell, comp, cell, pv, -cqsEff.Deriv(pv))
						sw.duneC[w][perf].AddAt(comp, pv, -cqsEff.Deriv(pv))
					}
				}
			}
			for ph := 0; ph < 3; ph++ {
				ws.PerfPhaseRates[perfIdx*ws.NumPhases+ph] = cqs[ph].Val
			}
			if sw.caps.HasSolvent {
				ws.PerfRateSolvent[perfIdx] = cqs[sw.caps.SolventIdx()].Val
			}
			if sw.caps.HasPolymer {
				cqsPoly := cqs[state.Water]
				if well.Type == state.Injector {
					cqsPoly = cqsPoly.Scale(well.WPolymer)
				} else {
					iq := g.IntensiveQuantities(cell)
					corr := iq.PolymerConc.Scale(iq.PolymerViscosityMul)
					cqsPoly = cqsPoly.Times(sw.extendEval(corr))
				}
				if !onlyWells {
					polyEq := sw.caps.PolymerIdx()
					g.AddToResidual(cell, polyEq, -cqsPoly.Val)
					for pv := 0; pv < numEq; pv++ {
						g.AddToJacobian(cell, polyEq, cell, pv, -cqsPoly.Deriv(pv))
					}
				}
			}
			ws.PerfPress[perfIdx] = ws.BHP[w] + sw.perfPressDiffs[perfIdx]
		}

		// Storage plus source term of the well equations
		for comp := 0; comp < numComp; comp++ {
			resLoc := sw.wellSurfaceVolumeFraction(ws, w, comp).
				AddValue(-sw.f0[w][comp]).Scale(wellVolume / dt)
			resLoc = resLoc.Plus(sw.getQs(ws, w, comp))
			for pv := 0; pv < numWellEq; pv++ {
				sw.duneD[w].AddAt(comp, pv, resLoc.Deriv(numEq+pv))
			}
			sw.resWell[w][comp] += resLoc.Val
		}
		if sw.pu.NumPhases == 2 && !sw.pu.Used[state.Gas] {
			sw.duneD[w].Set(state.Gas, GFrac, 1)
		}
		if sw.caps.HasPolymer {
			sw.duneD[w].Set(sw.caps.PolymerIdx(), sw.caps.PolymerIdx(), 1)
		}
	}
	return sw.localInvert()
}

func connectionClosed(closed []int, perf int) bool {
	for _, p := range closed {
		if p == perf {
			return true
		}
	}
	return false
}

func (sw *StandardWells) localInvert() error {
	for w := 0; w < sw.nw; w++ {
		lup, err := utils.NewLUP(sw.duneD[w])
		if err != nil {
			return simulator.Errf(simulator.KindLinearSolverProblem,
				"well %s: singular well equation block: %v", sw.wells.W[w].Name, err)
		}
		inv, err := lup.LUPInvert()
		if err != nil {
			return simulator.Errf(simulator.KindLinearSolverProblem,
				"well %s: singular well equation block: %v", sw.wells.W[w].Name, err)
		}
		sw.invD[w] = inv
	}
	return nil
}

// getMobility widens the cell phase mobilities into the combined
// derivative space; polymer thickens the water phase
func (sw *StandardWells) getMobility(g simulator.GridSimulator, cell int) (mob []autodiff.Eval) {
	iq := g.IntensiveQuantities(cell)
	mob = make([]autodiff.Eval, sw.numComp)
	for ph := 0; ph < 3; ph++ {
		mob[ph] = sw.extendEval(iq.Mobility[ph])
	}
	if sw.caps.HasSolvent {
		mob[sw.caps.SolventIdx()] = sw.extendEval(iq.SolventMobility)
	}
	if sw.caps.HasPolymer {
		mob[state.Water] = mob[state.Water].Scale(1 / iq.PolymerViscosityMul)
	}
	return
}

/*
computeWellFlux evaluates the surface-volume flux of every component
through one perforation. A producing perforation sums upwinded phase
fluxes with dissolved gas and vaporized oil transfer; an injecting
perforation pushes the wellbore mixture at total mobility and converts
to surface volumes through the mixture volume ratio.
*/
func (sw *StandardWells) computeWellFlux(g simulator.GridSimulator, ws *state.WellState,
	w, perf, cell int, mob []autodiff.Eval, bhp autodiff.Eval,
	allowCF bool) (cqs []autodiff.Eval, err error) {
	var (
		well    = &sw.wells.W[w]
		wide    = sw.numEq + sw.numWellEq
		iq      = g.IntensiveQuantities(cell)
		numComp = sw.numComp
		Tw      = well.WI[perf]
	)
	cqs = make([]autodiff.Eval, numComp)
	for comp := range cqs {
		cqs[comp] = autodiff.Constant(0, wide)
	}

	b := make([]autodiff.Eval, numComp)
	for ph := 0; ph < 3; ph++ {
		b[ph] = sw.extendEval(iq.InvB[ph])
	}
	if sw.caps.HasSolvent {
		b[sw.caps.SolventIdx()] = sw.extendEval(iq.SolventInvB)
	}
	var (
		rs = sw.extendEval(iq.Rs)
		rv = sw.extendEval(iq.Rv)
	)

	cmix := make([]autodiff.Eval, numComp)
	for comp := 0; comp < numComp; comp++ {
		cmix[comp] = sw.wellSurfaceVolumeFraction(ws, w, comp)
	}

	cdp := sw.perfPressDiffs[sw.PerfIndex(w, perf)]
	drawdown := sw.extendEval(iq.Pressure[state.Oil]).Minus(bhp.AddValue(cdp))

	if drawdown.Val > 0 {
		// Producing perforation
		if !allowCF && well.Type == state.Injector {
			return
		}
		for comp := 0; comp < numComp; comp++ {
			cqp := mob[comp].Times(drawdown).Scale(-Tw)
			cqs[comp] = b[comp].Times(cqp)
		}
		if sw.pu.Used[state.Oil] && sw.pu.Used[state.Gas] {
			var (
				cqsOil = cqs[state.Oil].Copy()
				cqsGas = cqs[state.Gas].Copy()
			)
			cqs[state.Gas] = cqs[state.Gas].Plus(rs.Times(cqsOil))
			cqs[state.Oil] = cqs[state.Oil].Plus(rv.Times(cqsGas))
		}
		return
	}

	// Injecting perforation
	if !allowCF && well.Type == state.Producer {
		return
	}
	totalMob := mob[0].Copy()
	for comp := 1; comp < numComp; comp++ {
		totalMob = totalMob.Plus(mob[comp])
	}
	cqt := totalMob.Times(drawdown).Scale(-Tw)

	// Surface to reservoir volume ratio of the injected mixture
	volumeRatio := cmix[state.Water].DividedBy(b[state.Water])
	if sw.caps.HasSolvent {
		si := sw.caps.SolventIdx()
		volumeRatio = volumeRatio.Plus(cmix[si].DividedBy(b[si]))
	}
	if sw.pu.Used[state.Oil] && sw.pu.Used[state.Gas] {
		d := autodiff.Constant(1, wide).Minus(rv.Times(rs))
		if d.Val == 0 {
			err = simulator.NumericalProblemf(
				"zero d value obtained for well %s during flux calculation with rs %f and rv %f",
				well.Name, rs.Val, rv.Val)
			return
		}
		tmpOil := cmix[state.Oil].Minus(rv.Times(cmix[state.Gas])).DividedBy(d)
		volumeRatio = volumeRatio.Plus(tmpOil.DividedBy(b[state.Oil]))
		tmpGas := cmix[state.Gas].Minus(rs.Times(cmix[state.Oil])).DividedBy(d)
		volumeRatio = volumeRatio.Plus(tmpGas.DividedBy(b[state.Gas]))
	} else {
		volumeRatio = volumeRatio.Plus(cmix[state.Oil].DividedBy(b[state.Oil]))
		volumeRatio = volumeRatio.Plus(cmix[state.Gas].DividedBy(b[state.Gas]))
	}
	cqtSurface := cqt.DividedBy(volumeRatio)
	for comp := 0; comp < numComp; comp++ {
		cqs[comp] = cmix[comp].Times(cqtSurface)
	}
	return
}

// allowCrossFlow reports whether cross-flowing perforations of a well
// keep their flux. Wells that forbid cross flow still keep it when
// every perforation flows against the well type, since zeroing all of
// them would disconnect the well.
func (sw *StandardWells) allowCrossFlow(g simulator.GridSimulator, ws *state.WellState, w int) bool {
	well := &sw.wells.W[w]
	if well.AllowCrossFlow {
		return true
	}
	for perf := 0; perf < well.NumPerfs(); perf++ {
		var (
			cell         = well.Cells[perf]
			pressure     = g.IntensiveQuantities(cell).Pressure[state.Oil].Val
			wellPressure = ws.BHP[w] + sw.perfPressDiffs[sw.PerfIndex(w, perf)]
			drawdown     = pressure - wellPressure
		)
		if well.Type == state.Injector && drawdown < 0 {
			return false
		}
		if well.Type == state.Producer && drawdown > 0 {
			return false
		}
	}
	return true
}
