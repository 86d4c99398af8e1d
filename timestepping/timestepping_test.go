package timestepping

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gores/simulator"
	"github.com/notargets/gores/state"
)

type constChange float64

func (c constChange) RelativeChange() float64 { return float64(c) }

func TestSimulatorTimerWalksSchedule(t *testing.T) {
	timer := NewSimulatorTimer([]float64{10 * Day, 20 * Day})
	assert.Equal(t, 2, timer.NumSteps())
	assert.Equal(t, 30*Day, timer.TotalTime())

	assert.Equal(t, 0, timer.CurrentStepNum())
	assert.Equal(t, 10*Day, timer.CurrentStepLength())
	timer.Advance()
	assert.Equal(t, 10*Day, timer.SimulationTimeElapsed())
	assert.False(t, timer.Done())
	timer.Advance()
	assert.True(t, timer.Done())
}

func TestAdaptiveTimerSnapsToIntervalEnd(t *testing.T) {
	outer := NewSimulatorTimer([]float64{30 * Day})
	sub := NewAdaptiveSimulatorTimer(outer, 20*Day, 365*Day)

	assert.Equal(t, 20*Day, sub.CurrentStepLength())
	sub.Advance()
	// 20 days remain 10, within 5% the step stretches to the end
	sub.ProvideTimeStepEstimate(20 * Day)
	assert.Equal(t, 10*Day, sub.CurrentStepLength())
	sub.Advance()
	assert.True(t, sub.Done())
	assert.Equal(t, 30*Day, sub.SimulationTimeElapsed())
}

func TestAdaptiveTimerHalvesNearEnd(t *testing.T) {
	outer := NewSimulatorTimer([]float64{30 * Day})
	sub := NewAdaptiveSimulatorTimer(outer, 24*Day, 365*Day)
	// 1.5x the suggestion overshoots the interval, so it halves to
	// avoid a sliver at the end
	assert.Equal(t, 15*Day, sub.CurrentStepLength())
}

func TestPIDControlShrinksAboveTolerance(t *testing.T) {
	c := NewPIDControl(0.1)
	dt := c.ComputeTimeStepSize(10*Day, 5, constChange(0.2), 0)
	assert.InDelta(t, 5*Day, dt, 1.e-9)
}

func TestPIDControlMonotoneInError(t *testing.T) {
	// with identical histories a larger final error must never
	// suggest a larger step
	run := func(lastErr float64) float64 {
		c := NewPIDControl(0.1)
		c.ComputeTimeStepSize(10*Day, 5, constChange(0.05), 0)
		c.ComputeTimeStepSize(10*Day, 5, constChange(0.05), 0)
		return c.ComputeTimeStepSize(10*Day, 5, constChange(lastErr), 0)
	}
	prev := run(0.01)
	for _, e := range []float64{0.02, 0.05, 0.09, 0.2, 0.5} {
		dt := run(e)
		assert.LessOrEqual(t, dt, prev)
		prev = dt
	}
}

func TestPIDControlHoldsWithoutHistory(t *testing.T) {
	c := NewPIDControl(0.1)
	assert.Equal(t, 10*Day, c.ComputeTimeStepSize(10*Day, 5, constChange(0.05), 0))
	assert.Equal(t, 10*Day, c.ComputeTimeStepSize(10*Day, 5, constChange(0.05), 0))
	// a flat error history at tolerance leaves the step unchanged
	dt := c.ComputeTimeStepSize(10*Day, 5, constChange(0.1), 0)
	assert.InDelta(t, 10*Day*math.Pow(0.05/0.1, 0.075)*
		math.Pow(0.05*0.05/0.05/0.1, 0.01), dt, 1.e-6)
}

func TestPIDAndIterationCountReduces(t *testing.T) {
	c := NewPIDAndIterationCountControl(30, 0.1)
	dt := c.ComputeTimeStepSize(10*Day, 60, constChange(0.05), 0)
	assert.InDelta(t, 5*Day, dt, 1.e-9)
}

func TestSimpleIterationCountControl(t *testing.T) {
	c := NewSimpleIterationCountControl(30, 0.75, 1.25)
	assert.Equal(t, 7.5*Day, c.ComputeTimeStepSize(10*Day, 40, constChange(0), 0))
	assert.Equal(t, 12.5*Day, c.ComputeTimeStepSize(10*Day, 10, constChange(0), 0))
	assert.Equal(t, 10*Day, c.ComputeTimeStepSize(10*Day, 30, constChange(0), 0))
	assert.Equal(t, 10*Day, c.ComputeTimeStepSize(10*Day, 29, constChange(0), 0))
}

func TestHardcodedControlReplaysTimes(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "timesteps")
	require.NoError(t, os.WriteFile(fn, []byte("1 2 5\n"), 0o644))
	c, err := NewHardcodedControl(fn)
	require.NoError(t, err)

	assert.InDelta(t, 1*Day, c.ComputeTimeStepSize(3*Day, 0, constChange(0), 1*Day), 1.e-9)
	assert.InDelta(t, 2*Day, c.ComputeTimeStepSize(3*Day, 0, constChange(0), 3*Day), 1.e-9)
	// past the last entry the suggestion passes through
	assert.Equal(t, 3*Day, c.ComputeTimeStepSize(3*Day, 0, constChange(0), 6*Day))
}

type fakeSolver struct {
	failKind  simulator.ErrorKind
	failFirst int
	change    float64
	iters     int

	calls int
	dts   []float64
}

func (s *fakeSolver) Step(reportStep int, dt float64, rs *state.ReservoirState,
	ws *state.WellState) (simulator.Report, error) {
	s.calls++
	s.dts = append(s.dts, dt)
	rs.Pressure[0] *= 1.0001
	if s.calls <= s.failFirst {
		return simulator.Report{TotalLinearizations: 3},
			simulator.Errf(s.failKind, "no convergence")
	}
	return simulator.Report{
		Converged:             true,
		TotalNewtonIterations: 5,
		TotalLinearizations:   6,
		TotalLinearIterations: s.iters,
	}, nil
}

func (s *fakeSolver) RelativeChange(previous, current *state.ReservoirState) float64 {
	return s.change
}

func buildStepping(t *testing.T, cfg Config) (*AdaptiveTimeStepping,
	*state.ReservoirState, *state.WellState) {
	cfg.SolverVerbose = false
	cfg.TimestepVerbose = false
	a, err := NewAdaptiveTimeStepping(cfg)
	require.NoError(t, err)
	rs := state.NewReservoirState(1, 3, state.Capabilities{})
	rs.Pressure[0] = 2.e7
	ws := state.NewWellState(&state.Wells{}, rs, 3, 3)
	return a, rs, ws
}

func TestStepCompletesReportStepExactly(t *testing.T) {
	a, rs, ws := buildStepping(t, DefaultConfig())
	solver := &fakeSolver{change: 0.05, iters: 10}
	timer := NewSimulatorTimer([]float64{30 * Day})

	report, err := a.Step(timer, solver, rs, ws, false)
	require.NoError(t, err)
	assert.True(t, report.Converged)

	// first substep is the restart fraction of the report step, and
	// the substeps sum exactly to the report step
	assert.InDelta(t, 0.33*30*Day, solver.dts[0], 1.e-9)
	sum := 0.
	for _, dt := range solver.dts {
		sum += dt
	}
	assert.InDelta(t, 30*Day, sum, 1.e-6)
}

func TestStepChopsAndRetriesOnFailure(t *testing.T) {
	a, rs, ws := buildStepping(t, DefaultConfig())
	solver := &fakeSolver{
		failKind: simulator.KindTooManyIterations, failFirst: 1,
		change: 0.05, iters: 10,
	}
	timer := NewSimulatorTimer([]float64{30 * Day})

	report, err := a.Step(timer, solver, rs, ws, false)
	require.NoError(t, err)
	assert.True(t, report.Converged)
	assert.InDelta(t, 0.33*solver.dts[0], solver.dts[1], 1.e-9)
	assert.Greater(t, a.FailureReport().FailedLinearizations, 0)
}

func TestStepRestoresStateOnFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SolverRestartMax = 2
	a, rs, ws := buildStepping(t, cfg)
	solver := &fakeSolver{
		failKind: simulator.KindNumericalProblem, failFirst: 1000,
		change: 0.05,
	}
	timer := NewSimulatorTimer([]float64{30 * Day})

	_, err := a.Step(timer, solver, rs, ws, false)
	require.Error(t, err)
	assert.Equal(t, simulator.KindNumericalProblem, simulator.KindOf(err))
	assert.Equal(t, 3, solver.calls)
	// the first two failures rolled the state back, only the final
	// aborted attempt leaks its perturbation
	assert.InDelta(t, 2.e7*1.0001, rs.Pressure[0], 1)
}

func TestStepPropagatesFatalError(t *testing.T) {
	a, rs, ws := buildStepping(t, DefaultConfig())
	solver := &fakeSolver{failKind: simulator.KindFatal, failFirst: 1000}
	timer := NewSimulatorTimer([]float64{30 * Day})

	_, err := a.Step(timer, solver, rs, ws, false)
	require.Error(t, err)
	assert.Equal(t, simulator.KindFatal, simulator.KindOf(err))
	assert.Equal(t, 1, solver.calls)
}

func TestEventOverridesSuggestedStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeStepAfterEvent = 2 * Day
	a, rs, ws := buildStepping(t, cfg)
	solver := &fakeSolver{change: 0.05, iters: 10}
	timer := NewSimulatorTimer([]float64{30 * Day})

	_, err := a.Step(timer, solver, rs, ws, true)
	require.NoError(t, err)
	assert.Equal(t, 2*Day, solver.dts[0])
}

func TestUnknownControlRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Control = "magic"
	_, err := NewAdaptiveTimeStepping(cfg)
	require.Error(t, err)
}
