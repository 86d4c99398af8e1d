package nonlinear

import (
	"math"

	"github.com/notargets/gores/simulator"
	"github.com/notargets/gores/state"
)

const (
	RelaxDampen = "dampen"
	RelaxSOR    = "sor"
)

// SolverConfig bounds the outer Newton loop and tunes the relaxation
// scheme used when the residual history oscillates
type SolverConfig struct {
	MaxIter int
	MinIter int

	RelaxMax       float64
	RelaxIncrement float64
	RelaxRelTol    float64
	RelaxType      string
}

func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		MaxIter:        15,
		MinIter:        1,
		RelaxMax:       0.5,
		RelaxIncrement: 0.1,
		RelaxRelTol:    0.2,
		RelaxType:      RelaxDampen,
	}
}

// Solver drives the Newton iterations of one timestep to convergence
type Solver struct {
	cfg   SolverConfig
	model *Model
}

func NewSolver(cfg SolverConfig, model *Model) *Solver {
	if cfg.MaxIter < cfg.MinIter {
		panic("nonlinear solver: MaxIter below MinIter")
	}
	return &Solver{cfg: cfg, model: model}
}

func (s *Solver) Model() *Model { return s.model }

func (s *Solver) FailureReport() simulator.Report {
	return s.model.failureReport
}

func (s *Solver) RelativeChange(previous, current *state.ReservoirState) float64 {
	return s.model.RelativeChange(previous, current)
}

/*
Step runs Newton iterations on the given timestep until the model
reports convergence, honoring the minimum iteration count. A step
that exhausts MaxIter fails with a too-many-iterations error so the
adaptive timestepping can chop and retry.
*/
func (s *Solver) Step(reportStep int, dt float64, rs *state.ReservoirState,
	ws *state.WellState) (report simulator.Report, err error) {
	var (
		iteration = 0
		converged = false
	)
	if err = s.model.PrepareStep(reportStep, rs, ws); err != nil {
		return
	}
	for {
		var iterReport simulator.Report
		iterReport, err = s.model.NonlinearIteration(iteration, dt, s, rs, ws)
		if err != nil {
			report.AddFailed(iterReport)
			return
		}
		report.Add(iterReport)
		converged = iterReport.Converged
		iteration++
		if (converged || iteration > s.cfg.MaxIter) && iteration >= s.cfg.MinIter {
			break
		}
	}
	if !converged {
		err = simulator.Errf(simulator.KindTooManyIterations,
			"solver convergence failure, failed to complete in %d iterations", iteration)
		return
	}
	report.Converged = true
	return
}

/*
DetectOscillations inspects the last three residual norm vectors. A
component oscillates when its norm is close to the value two
iterations back but far from the previous one; more than one
oscillating component flags the iteration. Stagnation requires every
component to have moved less than 0.1% since the previous iteration.
*/
func (s *Solver) DetectOscillations(residualHistory [][]float64,
	it int) (oscillate, stagnate bool) {
	if it < 2 {
		return false, false
	}
	var (
		f0 = residualHistory[it]
		f1 = residualHistory[it-1]
		f2 = residualHistory[it-2]

		oscillatePhase = 0
	)
	stagnate = true
	for p := range f0 {
		d1 := math.Abs((f0[p] - f2[p]) / f0[p])
		d2 := math.Abs((f0[p] - f1[p]) / f0[p])
		if d1 < s.cfg.RelaxRelTol && s.cfg.RelaxRelTol < d2 {
			oscillatePhase++
		}
		stagnate = stagnate && !(math.Abs((f1[p]-f2[p])/f2[p]) > 1.e-3)
	}
	oscillate = oscillatePhase > 1
	return
}

// StabilizeNonlinearUpdate relaxes the Newton update in place. dxOld
// always receives a copy of the incoming update so the SOR scheme can
// blend consecutive updates.
func (s *Solver) StabilizeNonlinearUpdate(dx, dxOld []float64, omega float64) {
	switch s.cfg.RelaxType {
	case RelaxDampen:
		if omega == 1 {
			copy(dxOld, dx)
			return
		}
		for i := range dx {
			dxOld[i] = dx[i]
			dx[i] *= omega
		}
	case RelaxSOR:
		if omega == 1 {
			copy(dxOld, dx)
			return
		}
		for i := range dx {
			tmp := dxOld[i]
			dxOld[i] = dx[i]
			dx[i] = dx[i]*omega + (1-omega)*tmp
		}
	default:
		panic("unknown relaxation type " + s.cfg.RelaxType)
	}
}
