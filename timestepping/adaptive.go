package timestepping

import (
	"fmt"
	"math"

	"github.com/notargets/gores/simulator"
	"github.com/notargets/gores/state"
)

// Config selects the step control policy and bounds the substep
// sizes. Durations are in seconds, day-valued inputs belong to the
// configuration file layer.
type Config struct {
	RestartFactor    float64
	GrowthFactor     float64
	MaxGrowth        float64
	MaxTimeStep      float64
	SolverRestartMax int

	// negative disables and defers to RestartFactor on the first step
	InitialTimeStep       float64
	FullTimestepInitially bool
	// substep length forced after a schedule event, negative disables
	TimeStepAfterEvent float64

	// "pid", "pid+iteration", "pid+newtoniteration", "iterationcount"
	// or "hardcoded"
	Control          string
	Tol              float64
	TargetIterations int
	DecayRate        float64
	GrowthRate       float64
	ControlFilename  string

	SolverVerbose   bool
	TimestepVerbose bool
}

func DefaultConfig() Config {
	return Config{
		RestartFactor:      0.33,
		GrowthFactor:       2.0,
		MaxGrowth:          3.0,
		MaxTimeStep:        365 * Day,
		SolverRestartMax:   10,
		InitialTimeStep:    -1,
		TimeStepAfterEvent: -1,
		Control:            "pid",
		Tol:                1.e-1,
		DecayRate:          0.75,
		GrowthRate:         1.25,
		SolverVerbose:      true,
		TimestepVerbose:    true,
	}
}

// StepSolver is what the adaptive stepping needs from the nonlinear
// solver: run one substep, account failed work and measure how much
// the solution moved
type StepSolver interface {
	Step(reportStep int, dt float64, rs *state.ReservoirState,
		ws *state.WellState) (simulator.Report, error)
	RelativeChange(previous, current *state.ReservoirState) float64
}

/*
AdaptiveTimeStepping cuts a report step into substeps sized by a
Control policy. A recoverable solver failure rolls the states back
and retries with the step chopped by RestartFactor; growth after a
recovered failure is limited by GrowthFactor. The substep size taken
last carries over as the suggestion for the next report step.
*/
type AdaptiveTimeStepping struct {
	cfg                Config
	control            Control
	useNewtonIteration bool

	suggestedNext float64
	failureReport simulator.Report
}

func NewAdaptiveTimeStepping(cfg Config) (a *AdaptiveTimeStepping, err error) {
	a = &AdaptiveTimeStepping{cfg: cfg, suggestedNext: cfg.InitialTimeStep}
	if cfg.GrowthFactor < 1 {
		return nil, fmt.Errorf("adaptive timestepping: growth factor %g below 1",
			cfg.GrowthFactor)
	}
	switch cfg.Control {
	case "pid":
		a.control = NewPIDControl(cfg.Tol)
	case "pid+iteration":
		a.control = NewPIDAndIterationCountControl(targetOrDefault(cfg, 30), cfg.Tol)
	case "pid+newtoniteration":
		a.control = NewPIDAndIterationCountControl(targetOrDefault(cfg, 8), cfg.Tol)
		a.useNewtonIteration = true
	case "iterationcount":
		a.control = NewSimpleIterationCountControl(targetOrDefault(cfg, 30),
			cfg.DecayRate, cfg.GrowthRate)
	case "hardcoded":
		if a.control, err = NewHardcodedControl(cfg.ControlFilename); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported time step control selected: %s", cfg.Control)
	}
	return
}

func targetOrDefault(cfg Config, def int) int {
	if cfg.TargetIterations > 0 {
		return cfg.TargetIterations
	}
	return def
}

func (a *AdaptiveTimeStepping) FailureReport() simulator.Report { return a.failureReport }

func (a *AdaptiveTimeStepping) SuggestedNextStep() float64 { return a.suggestedNext }

type solutionChange struct {
	solver            StepSolver
	previous, current *state.ReservoirState
}

func (s solutionChange) RelativeChange() float64 {
	return s.solver.RelativeChange(s.previous, s.current)
}

/*
Step advances the current report step of the timer with adaptively
sized substeps, mutating the states in place. Unrecoverable solver
failures propagate immediately; recoverable ones chop and retry up to
SolverRestartMax times before giving up as a numerical problem.
*/
func (a *AdaptiveTimeStepping) Step(timer *SimulatorTimer, solver StepSolver,
	rs *state.ReservoirState, ws *state.WellState,
	event bool) (report simulator.Report, err error) {
	timestep := timer.CurrentStepLength()

	if a.suggestedNext < 0 {
		a.suggestedNext = a.cfg.RestartFactor * timestep
	}
	if a.cfg.FullTimestepInitially {
		a.suggestedNext = timestep
	}
	if event && a.cfg.TimeStepAfterEvent > 0 {
		a.suggestedNext = a.cfg.TimeStepAfterEvent
	}

	substepTimer := NewAdaptiveSimulatorTimer(timer, a.suggestedNext, a.cfg.MaxTimeStep)

	lastState := rs.Clone()
	lastWellState := ws.Clone()
	a.failureReport = simulator.Report{}
	restarts := 0

	for !substepTimer.Done() {
		dt := substepTimer.CurrentStepLength()
		if a.cfg.TimestepVerbose {
			fmt.Printf("  Substep %d, stepsize %g days.\n",
				substepTimer.CurrentStepNum(), dt/Day)
		}

		substepReport, stepErr := solver.Step(timer.CurrentStepNum(), dt, rs, ws)
		if stepErr == nil {
			report.Add(substepReport)
			if a.cfg.SolverVerbose {
				fmt.Printf("Overall linear iterations used: %d\n",
					substepReport.TotalLinearIterations)
			}
			substepTimer.Advance()

			iterations := substepReport.TotalLinearIterations
			if a.useNewtonIteration {
				iterations = substepReport.TotalNewtonIterations
			}
			dtEstimate := a.control.ComputeTimeStepSize(dt, iterations,
				solutionChange{solver, lastState, rs},
				substepTimer.SimulationTimeElapsed())
			dtEstimate = math.Min(dtEstimate, a.cfg.MaxGrowth*dt)
			if restarts > 0 {
				dtEstimate = math.Min(a.cfg.GrowthFactor*dt, dtEstimate)
				restarts = 0
			}

			if a.cfg.TimestepVerbose {
				fmt.Printf("    Substep summary: well its = %2d, newton its = %2d, "+
					"linearizations = %2d, linear its = %3d\n",
					substepReport.TotalWellIterations,
					substepReport.TotalNewtonIterations,
					substepReport.TotalLinearizations,
					substepReport.TotalLinearIterations)
			}

			substepTimer.ProvideTimeStepEstimate(dtEstimate)
			lastState = rs.Clone()
			lastWellState = ws.Clone()
			report.Converged = substepTimer.Done()
			substepTimer.SetLastStepFailed(false)
			continue
		}

		if !simulator.Recoverable(stepErr) {
			err = stepErr
			return
		}
		substepTimer.SetLastStepFailed(true)
		// the substep report already carries the failed attempt, both
		// its completed iterations and the failing one
		a.failureReport.AddFailed(substepReport)
		if a.cfg.SolverVerbose {
			fmt.Printf("Caught exception: %v\n", stepErr)
		}

		if restarts >= a.cfg.SolverRestartMax {
			err = simulator.NumericalProblemf(
				"solver failed to converge after cutting timestep %d times", restarts)
			return
		}
		substepTimer.ProvideTimeStepEstimate(a.cfg.RestartFactor * dt)
		if a.cfg.SolverVerbose {
			fmt.Printf("%v\nTimestep chopped to %g days\n", stepErr,
				substepTimer.CurrentStepLength()/Day)
		}
		*rs = *lastState.Clone()
		*ws = *lastWellState.Clone()
		restarts++
	}

	a.suggestedNext = substepTimer.CurrentStepLength()
	if a.cfg.TimestepVerbose {
		substepTimer.Report()
		fmt.Printf("Suggested next step size = %g (days)\n", a.suggestedNext/Day)
	}
	if math.IsNaN(a.suggestedNext) || math.IsInf(a.suggestedNext, 0) {
		a.suggestedNext = timestep
	}
	return
}
