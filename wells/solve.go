package wells

import (
	"fmt"
	"math"

	"github.com/notargets/gores/simulator"
	"github.com/notargets/gores/state"
)

func componentName(comp int) string {
	if comp < 3 {
		return state.PhaseName[comp]
	}
	return "Solvent"
}

/*
SolveWellEq converges the well equations against a frozen reservoir
state. It runs the well-local Newton loop up to MaxWellEqIter times;
on failure the well state and its active controls are rolled back so
the coupled iteration continues from the pre-solve state.
*/
func (sw *StandardWells) SolveWellEq(g simulator.GridSimulator, ws *state.WellState,
	dt float64) (report simulator.Report, err error) {
	var (
		it         = 0
		wellState0 = ws.Clone()
		converged  bool
	)
	for {
		if err = sw.assembleWellEq(g, ws, dt, true); err != nil {
			return
		}
		if converged, err = sw.GetWellConvergence(g, it); err != nil {
			return
		}
		if converged {
			break
		}
		it++
		if it >= sw.cfg.MaxWellEqIter {
			break
		}
		dx := make([]float64, sw.nw*sw.numWellEq)
		for w := 0; w < sw.nw; w++ {
			copy(dx[w*sw.numWellEq:], sw.invD[w].MulVec(sw.resWell[w]))
		}
		sw.UpdateWellState(dx, ws)
		sw.UpdateWellControls(ws)
		sw.SetWellVariables(ws)
	}
	report.Converged = converged
	report.TotalWellIterations = it
	if !converged {
		fmt.Printf("  well equation solve failed in %d iterations\n", it)
		*ws = *wellState0
	}
	return
}

/*
GetWellConvergence scales the maximum well flux residual of each
component by the domain-average formation volume factor and compares
against ToleranceWells. A NaN or a residual beyond MaxResidualAllowed
aborts the solve as a numerical problem.
*/
func (sw *StandardWells) GetWellConvergence(g simulator.GridSimulator, iteration int) (bool, error) {
	var (
		numComp     = sw.numComp
		bAvg        = simulator.AverageFVB(g, sw.comm)
		maxNormWell = make([]float64, numComp)
	)
	for w := 0; w < sw.nw; w++ {
		for comp := 0; comp < numComp; comp++ {
			maxNormWell[comp] = math.Max(maxNormWell[comp], math.Abs(sw.resWell[w][comp]))
		}
	}
	sw.comm.Max(maxNormWell)

	converged := true
	fluxResidual := make([]float64, numComp)
	for comp := 0; comp < numComp; comp++ {
		fluxResidual[comp] = bAvg[comp] * maxNormWell[comp]
		if fluxResidual[comp] >= sw.cfg.ToleranceWells {
			converged = false
		}
	}

	for comp := 0; comp < numComp; comp++ {
		if math.IsNaN(fluxResidual[comp]) {
			return false, simulator.NumericalProblemf(
				"NaN residual found for %s well flux", componentName(comp))
		}
		if fluxResidual[comp] > sw.cfg.MaxResidualAllowed {
			return false, simulator.NumericalProblemf(
				"too large residual found for %s well flux", componentName(comp))
		}
	}

	if iteration == 0 {
		header := "    Iter"
		for comp := 0; comp < numComp; comp++ {
			header += fmt.Sprintf("  W-FLUX(%s)", componentName(comp)[:1])
		}
		fmt.Println(header)
	}
	line := fmt.Sprintf("    %4d", iteration)
	for comp := 0; comp < numComp; comp++ {
		line += fmt.Sprintf("  %10.3e", fluxResidual[comp])
	}
	fmt.Println(line)

	return converged, nil
}
