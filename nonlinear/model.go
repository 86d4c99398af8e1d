package nonlinear

import (
	"fmt"
	"math"

	"github.com/notargets/gores/fluid"
	"github.com/notargets/gores/linsolve"
	"github.com/notargets/gores/simulator"
	"github.com/notargets/gores/state"
	"github.com/notargets/gores/utils"
	"github.com/notargets/gores/wells"
)

// ModelConfig carries the convergence tolerances and update bounds of
// the coupled Newton model
type ModelConfig struct {
	ToleranceMB        float64
	ToleranceCNV       float64
	MaxStrictIter      int
	MaxResidualAllowed float64
	DpMaxRel           float64
	DsMax              float64
	DrMaxRel           float64

	LinearTol     float64
	LinearMaxIter int

	TerminalOutput bool
}

func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		ToleranceMB:        1.e-5,
		ToleranceCNV:       1.e-2,
		MaxStrictIter:      8,
		MaxResidualAllowed: 1.e7,
		DpMaxRel:           0.3,
		DsMax:              0.2,
		DrMaxRel:           1.e9,
		LinearTol:          1.e-8,
		LinearMaxIter:      200,
		TerminalOutput:     true,
	}
}

/*
Model couples the reservoir linearization with the well model into one
Newton iteration. It owns the per-timestep iteration bookkeeping (the
residual norm history, the relaxation factor and the previous update
vector) and the previous report step index that decides when the well
model re-seeds its targets.
*/
type Model struct {
	grid  simulator.GridSimulator
	wells *wells.StandardWells
	f     fluid.PVT
	cfg   ModelConfig
	comm  simulator.Communicator

	residualNormsHistory [][]float64
	currentRelaxation    float64
	dxOld                []float64

	prevReportStep int

	lastLinearIters int
	failureReport   simulator.Report
}

func NewModel(g simulator.GridSimulator, sw *wells.StandardWells, f fluid.PVT,
	cfg ModelConfig, comm simulator.Communicator) *Model {
	return &Model{
		grid:           g,
		wells:          sw,
		f:              f,
		cfg:            cfg,
		comm:           comm,
		prevReportStep: -1,
	}
}

func (m *Model) FailureReport() simulator.Report { return m.failureReport }

// PrepareStep pins the state as the linearization point of a new
// timestep. Entering a new report step re-seeds the well targets and
// refreshes the well potentials.
func (m *Model) PrepareStep(reportStep int, rs *state.ReservoirState,
	ws *state.WellState) error {
	m.failureReport = simulator.Report{}
	m.grid.PushState(rs)
	m.grid.BeginTimeStep()
	if reportStep != m.prevReportStep {
		if err := m.wells.PrepareTimeStep(m.grid, ws); err != nil {
			return err
		}
		m.prevReportStep = reportStep
	}
	return nil
}

// RelativeChange is the squared-norm ratio ||u_prev - u|| / ||u|| of
// the pressure and saturation unknowns, used by the PID timestep
// control as its error measure
func (m *Model) RelativeChange(previous, current *state.ReservoirState) float64 {
	var diff, norm float64
	for i := range current.Pressure {
		d := previous.Pressure[i] - current.Pressure[i]
		diff += d * d
		norm += current.Pressure[i] * current.Pressure[i]
	}
	for i := range current.Saturation {
		d := previous.Saturation[i] - current.Saturation[i]
		diff += d * d
		norm += current.Saturation[i] * current.Saturation[i]
	}
	if norm > 0 {
		return diff / norm
	}
	return 0
}

// Assemble linearizes the reservoir equations, assembles the well
// system against them and folds the eliminated well residual into the
// reservoir right hand side
func (m *Model) Assemble(rs *state.ReservoirState, ws *state.WellState,
	dt float64, iteration int) (report simulator.Report, err error) {
	if err = m.grid.Linearize(dt); err != nil {
		return
	}
	if report, err = m.wells.Assemble(m.grid, ws, dt, iteration); err != nil {
		return
	}
	m.wells.ApplyRes(m.grid.Residual())
	return
}

/*
NonlinearIteration runs one Newton iteration: assemble, convergence
check, and, when not converged, the reduced linear solve followed by
the stabilized and chopped state update. Assembly and solve failures
are recorded in the failure report and returned; the timestepping
layer decides whether they warrant a retry.
*/
func (m *Model) NonlinearIteration(iteration int, dt float64, solver *Solver,
	rs *state.ReservoirState, ws *state.WellState) (report simulator.Report, err error) {
	if iteration == 0 {
		m.residualNormsHistory = m.residualNormsHistory[:0]
		m.currentRelaxation = 1
		m.dxOld = make([]float64, m.grid.NumCells()*m.grid.NumEq())
	}
	report.TotalLinearizations = 1

	if _, err = m.Assemble(rs, ws, dt, iteration); err != nil {
		m.failureReport.AddFailed(report)
		return
	}

	var residualNorms []float64
	report.Converged, residualNorms, err = m.GetConvergence(dt, iteration)
	if err != nil {
		m.failureReport.AddFailed(report)
		return
	}
	report.Converged = report.Converged && iteration > solver.cfg.MinIter
	m.residualNormsHistory = append(m.residualNormsHistory, residualNorms)

	if report.Converged {
		return
	}
	report.TotalNewtonIterations = 1

	x, xw, linIters, solveErr := m.SolveJacobianSystem()
	report.TotalLinearIterations = linIters
	if solveErr != nil {
		err = solveErr
		m.failureReport.AddFailed(report)
		return
	}

	oscillate, _ := solver.DetectOscillations(m.residualNormsHistory, iteration)
	if oscillate {
		m.currentRelaxation -= solver.cfg.RelaxIncrement
		m.currentRelaxation = math.Max(m.currentRelaxation, solver.cfg.RelaxMax)
		if m.cfg.TerminalOutput {
			fmt.Printf("    Oscillating behavior detected: Relaxation set to %g\n",
				m.currentRelaxation)
		}
	}
	solver.StabilizeNonlinearUpdate(x, m.dxOld, m.currentRelaxation)

	if err = m.UpdateState(x, rs); err != nil {
		m.failureReport.AddFailed(report)
		return
	}
	m.wells.UpdateWellState(xw, ws)
	m.grid.PushState(rs)
	m.grid.InvalidateIntensiveQuantitiesCache()
	return
}

// SolveJacobianSystem solves the well-eliminated reservoir system and
// back-substitutes the well unknowns
func (m *Model) SolveJacobianSystem() (x, xw []float64, iters int, err error) {
	var (
		jac  = m.grid.FreezeJacobian()
		diag = make([]float64, m.grid.NumCells()*m.grid.NumEq())
	)
	jac.DoNonZero(func(i, j int, v float64) {
		if i == j {
			diag[i] = v
		}
	})
	op := coupledOperator{A: jac, wells: m.wells}
	solver := linsolve.BiCGSTAB{
		Tol:     m.cfg.LinearTol,
		MaxIter: m.cfg.LinearMaxIter,
		Diag:    diag,
	}
	rhs := utils.VecCopy(m.grid.Residual())
	if x, iters, err = solver.Solve(op, rhs); err != nil {
		err = simulator.Errf(simulator.KindLinearSolverProblem, "%v", err)
		return
	}
	m.lastLinearIters = iters
	xw = m.wells.RecoverVariable(x)
	return
}

// coupledOperator is the reservoir matrix with the Schur action of
// the eliminated well blocks folded in
type coupledOperator struct {
	A     utils.CSR
	wells *wells.StandardWells
}

func (op coupledOperator) Apply(x, y []float64) {
	op.A.MulVecTo(x, y)
	op.wells.Apply(x, y)
}

func (op coupledOperator) Size() int {
	nr, _ := op.A.Dims()
	return nr
}

/*
GetConvergence evaluates the three residual criteria: the pore-volume
weighted mass balance per component, the CNV cell-local criterion and
the scaled well flux residual. CNV is only enforced during the first
MaxStrictIter iterations. A NaN or an out-of-ceiling residual aborts
the step as a numerical problem naming the component.
*/
func (m *Model) GetConvergence(dt float64, iteration int) (converged bool,
	residualNorms []float64, err error) {
	var (
		caps    = m.grid.Caps()
		numComp = m.grid.NumEq()
		res     = m.grid.Residual()
		numEq   = m.grid.NumEq()

		rSum     = make([]float64, numComp)
		maxCoeff = make([]float64, numComp)
		pvSum    float64
	)
	for c := 0; c < m.grid.NumCells(); c++ {
		pv := m.grid.DofTotalVolume(c)
		pvSum += pv
		for comp := 0; comp < numComp; comp++ {
			r2 := res[c*numEq+comp]
			rSum[comp] += r2
			maxCoeff[comp] = math.Max(maxCoeff[comp], math.Abs(r2)/pv)
		}
	}

	bAvg := simulator.AverageFVB(m.grid, m.comm)
	if caps.HasPolymer {
		// the polymer equation scales with the water phase
		bAvg = append(bAvg, bAvg[state.Water])
	}

	maxNormWell := make([]float64, numComp)
	for w := 0; w < m.wells.NumWells(); w++ {
		rw := m.wells.ResWell(w)
		for comp := 0; comp < numComp && comp < len(rw); comp++ {
			maxNormWell[comp] = math.Max(maxNormWell[comp], math.Abs(rw[comp]))
		}
	}

	// two-buffer global reduction: sums first, maxima second
	sumBuffer := append(utils.VecCopy(rSum), pvSum)
	maxBuffer := append(utils.VecCopy(maxCoeff), maxNormWell...)
	m.comm.Sum(sumBuffer)
	m.comm.Max(maxBuffer)
	copy(rSum, sumBuffer[:numComp])
	pvSum = sumBuffer[numComp]
	copy(maxCoeff, maxBuffer[:numComp])
	copy(maxNormWell, maxBuffer[numComp:])

	var (
		cnv          = make([]float64, numComp)
		massBalance  = make([]float64, numComp)
		wellFlux     = make([]float64, numComp)
		convergedMB  = true
		convergedCNV = true
		convergedW   = true
	)
	for comp := 0; comp < numComp; comp++ {
		cnv[comp] = bAvg[comp] * dt * maxCoeff[comp]
		massBalance[comp] = math.Abs(bAvg[comp]*rSum[comp]) * dt / pvSum
		wellFlux[comp] = bAvg[comp] * maxNormWell[comp]
		convergedMB = convergedMB && massBalance[comp] < m.cfg.ToleranceMB
		convergedCNV = convergedCNV && cnv[comp] < m.cfg.ToleranceCNV
		convergedW = convergedW && wellFlux[comp] < m.wells.Config().ToleranceWells
	}
	residualNorms = cnv

	converged = convergedMB && convergedW
	// the cell-local criterion is relaxed for late iterations
	if iteration < m.cfg.MaxStrictIter {
		converged = converged && convergedCNV
	}

	for comp := 0; comp < numComp; comp++ {
		if math.IsNaN(massBalance[comp]) || math.IsNaN(cnv[comp]) {
			err = simulator.NumericalProblemf("NaN residual for %s equation",
				componentKey(caps, comp))
			return
		}
		if massBalance[comp] > m.cfg.MaxResidualAllowed ||
			cnv[comp] > m.cfg.MaxResidualAllowed {
			err = simulator.NumericalProblemf("too large residual for %s equation",
				componentKey(caps, comp))
			return
		}
	}

	if m.cfg.TerminalOutput {
		if iteration == 0 {
			msg := "Iter"
			for comp := 0; comp < numComp; comp++ {
				msg += fmt.Sprintf("    MB(%s)  ", componentKey(caps, comp)[:1])
			}
			for comp := 0; comp < numComp; comp++ {
				msg += fmt.Sprintf("    CNV(%s) ", componentKey(caps, comp)[:1])
			}
			for comp := 0; comp < numComp; comp++ {
				msg += fmt.Sprintf("  W-FLUX(%s)", componentKey(caps, comp)[:1])
			}
			fmt.Println(msg)
		}
		line := fmt.Sprintf("%4d", iteration)
		for comp := 0; comp < numComp; comp++ {
			line += fmt.Sprintf("  %9.3e", massBalance[comp])
		}
		for comp := 0; comp < numComp; comp++ {
			line += fmt.Sprintf("  %9.3e", cnv[comp])
		}
		for comp := 0; comp < numComp; comp++ {
			line += fmt.Sprintf("  %9.3e", wellFlux[comp])
		}
		fmt.Println(line)
	}
	return
}

func componentKey(caps state.Capabilities, comp int) string {
	switch {
	case comp < 3:
		return state.PhaseName[comp]
	case caps.HasSolvent && comp == caps.SolventIdx():
		return "Solvent"
	case caps.HasPolymer && comp == caps.PolymerIdx():
		return "Polymer"
	}
	return "?"
}

/*
UpdateState applies a Newton update to the reservoir state with the
update chopping policy: the pressure step is clamped relative to the
current pressure, a single scalar step keeps every saturation-like
delta within DsMax, oil closes the saturation sum, the dissolution
ratio steps are clamped to DrMaxRel of their current values, and the
hydrocarbon state machine re-labels cells whose independent variable
left its validity region.
*/
func (m *Model) UpdateState(dx []float64, rs *state.ReservoirState) error {
	var (
		caps    = m.grid.Caps()
		numEq   = m.grid.NumEq()
		epsilon = 1.e-4
	)
	for c := 0; c < m.grid.NumCells(); c++ {
		var (
			dp    = dx[c*numEq+0]
			dsw   = dx[c*numEq+1]
			dxvar = dx[c*numEq+2]
		)
		p := rs.Pressure[c]
		p -= math.Copysign(math.Min(math.Abs(dp), math.Abs(p)*m.cfg.DpMaxRel), dp)
		rs.Pressure[c] = math.Max(p, 0)

		var dso, dsg, drs, drv float64
		dso = -dsw
		switch rs.HydroCarbon[c] {
		case state.GasAndOil:
			dsg = dxvar
		case state.OilOnly:
			drs = dxvar
		case state.GasOnly:
			dsg -= dsw
			drv = dxvar
		default:
			return simulator.Errf(simulator.KindFatal,
				"unknown primary variable tag in cell %d: %d", c, rs.HydroCarbon[c])
		}
		dso -= dsg

		dss := 0.0
		if caps.HasSolvent {
			dss = dx[c*numEq+caps.SolventIdx()]
			dso -= dss
		}

		maxVal := math.Max(math.Abs(dsw), math.Abs(dsg))
		maxVal = math.Max(maxVal, math.Abs(dss))
		step := 1.0
		if maxVal > 0 {
			step = math.Min(m.cfg.DsMax/maxVal, 1)
		}

		sw := rs.Sat(c, state.Water) - step*dsw
		sg := rs.Sat(c, state.Gas) - step*dsg
		so := rs.Sat(c, state.Oil) - step*dso
		if caps.HasSolvent {
			rs.SolventSaturation[c] -= step * dss
		}
		if caps.HasPolymer {
			dc := dx[c*numEq+caps.PolymerIdx()]
			rs.PolymerConcentration[c] = math.Max(rs.PolymerConcentration[c]-step*dc, 0)
		}

		if caps.HasDisgas {
			drs = math.Copysign(math.Min(math.Abs(drs), rs.Rs[c]*m.cfg.DrMaxRel), drs)
			rs.Rs[c] = math.Max(rs.Rs[c]-drs, 0)
		}
		if caps.HasVapoil {
			drv = math.Copysign(math.Min(math.Abs(drv), rs.Rv[c]*m.cfg.DrMaxRel), drv)
			rs.Rv[c] = math.Max(rs.Rv[c]-drv, 0)
		}

		// hydrocarbon state transitions
		pNow := rs.Pressure[c]
		switch rs.HydroCarbon[c] {
		case state.GasAndOil:
			rs.Rs[c] = m.f.RsSat(pNow)
			rs.Rv[c] = m.f.RvSat(pNow)
			if sw > 1-epsilon {
				break
			}
			if sg <= 0 && caps.HasDisgas {
				rs.HydroCarbon[c] = state.OilOnly
				sg = 0
				so = 1 - sw
				if caps.HasSolvent {
					so -= rs.SolventSaturation[c]
				}
				rs.Rs[c] *= 1 - epsilon
			} else if so <= 0 && caps.HasVapoil {
				rs.HydroCarbon[c] = state.GasOnly
				so = 0
				sg = 1 - sw
				if caps.HasSolvent {
					sg -= rs.SolventSaturation[c]
				}
				rs.Rv[c] *= 1 - epsilon
			}
		case state.OilOnly:
			if sw > 1-epsilon {
				rs.Rs[c] = 0
				rs.Rv[c] = 0
				rs.HydroCarbon[c] = state.GasAndOil
				break
			}
			rsSat := m.f.RsSat(pNow)
			if rs.Rs[c] > rsSat*(1+epsilon) {
				rs.HydroCarbon[c] = state.GasAndOil
				sg = epsilon
				so -= epsilon
				rs.Rs[c] = rsSat
			}
		case state.GasOnly:
			if sw > 1-epsilon {
				rs.Rs[c] = 0
				rs.Rv[c] = 0
				rs.HydroCarbon[c] = state.GasAndOil
				break
			}
			rvSat := m.f.RvSat(pNow)
			if rs.Rv[c] > rvSat*(1+epsilon) {
				rs.HydroCarbon[c] = state.GasAndOil
				so = epsilon
				sg -= epsilon
				rs.Rv[c] = rvSat
			}
		}

		rs.SetSat(c, state.Water, sw)
		rs.SetSat(c, state.Gas, sg)
		rs.SetSat(c, state.Oil, so)
	}
	return nil
}
