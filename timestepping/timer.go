package timestepping

import (
	"fmt"
	"math"
)

const Day = 86400.

// SimulatorTimer walks the report steps of a schedule
type SimulatorTimer struct {
	steps   []float64
	current int
	elapsed float64
}

func NewSimulatorTimer(stepLengths []float64) *SimulatorTimer {
	for _, dt := range stepLengths {
		if dt <= 0 {
			panic("simulator timer: non-positive report step length")
		}
	}
	return &SimulatorTimer{steps: stepLengths}
}

func (t *SimulatorTimer) CurrentStepNum() int { return t.current }

func (t *SimulatorTimer) ReportStepNum() int { return t.current }

func (t *SimulatorTimer) CurrentStepLength() float64 {
	return t.steps[t.current]
}

func (t *SimulatorTimer) SimulationTimeElapsed() float64 { return t.elapsed }

func (t *SimulatorTimer) TotalTime() (total float64) {
	for _, dt := range t.steps {
		total += dt
	}
	return
}

func (t *SimulatorTimer) NumSteps() int { return len(t.steps) }

func (t *SimulatorTimer) Done() bool { return t.current >= len(t.steps) }

func (t *SimulatorTimer) Advance() {
	t.elapsed += t.steps[t.current]
	t.current++
}

/*
AdaptiveSimulatorTimer subdivides one report step into substeps. The
substep length is whatever the controller suggests, clamped against
the configured maximum and snapped to the interval end so the last
substep lands exactly on the report time.
*/
type AdaptiveSimulatorTimer struct {
	startTime   float64
	totalTime   float64
	reportStep  int
	maxTimeStep float64

	currentTime float64
	dt          float64
	currentStep int
	steps       []float64

	lastStepFailed bool
}

func NewAdaptiveSimulatorTimer(outer *SimulatorTimer, lastStepTaken,
	maxTimeStep float64) (t *AdaptiveSimulatorTimer) {
	start := outer.SimulationTimeElapsed()
	t = &AdaptiveSimulatorTimer{
		startTime:   start,
		totalTime:   start + outer.CurrentStepLength(),
		reportStep:  outer.CurrentStepNum(),
		maxTimeStep: maxTimeStep,
		currentTime: start,
	}
	t.ProvideTimeStepEstimate(lastStepTaken)
	return
}

func (t *AdaptiveSimulatorTimer) CurrentStepNum() int { return t.currentStep }

func (t *AdaptiveSimulatorTimer) ReportStepNum() int { return t.reportStep }

func (t *AdaptiveSimulatorTimer) CurrentStepLength() float64 { return t.dt }

func (t *AdaptiveSimulatorTimer) SimulationTimeElapsed() float64 { return t.currentTime }

func (t *AdaptiveSimulatorTimer) Done() bool { return t.currentTime >= t.totalTime }

func (t *AdaptiveSimulatorTimer) Advance() {
	t.currentStep++
	t.currentTime += t.dt
	t.steps = append(t.steps, t.dt)
}

func (t *AdaptiveSimulatorTimer) SetLastStepFailed(failed bool) {
	t.lastStepFailed = failed
}

func (t *AdaptiveSimulatorTimer) LastStepFailed() bool { return t.lastStepFailed }

// ProvideTimeStepEstimate sets the next substep length. A step within
// 5% of the remaining interval is stretched to finish it; a step over
// two thirds of the remainder is halved to avoid a tiny final step.
func (t *AdaptiveSimulatorTimer) ProvideTimeStepEstimate(dtEstimate float64) {
	remaining := t.totalTime - t.currentTime
	t.dt = math.Min(dtEstimate, t.maxTimeStep)
	if remaining > 0 {
		if 1.05*t.dt > remaining {
			t.dt = remaining
			if t.dt > t.maxTimeStep {
				t.dt = 0.5 * remaining
			}
			return
		}
		if 1.5*t.dt > remaining {
			t.dt = 0.5 * remaining
		}
	}
}

func (t *AdaptiveSimulatorTimer) Report() {
	if len(t.steps) == 0 {
		return
	}
	var sum, minStep, maxStep float64
	minStep = t.steps[0]
	for _, dt := range t.steps {
		sum += dt
		minStep = math.Min(minStep, dt)
		maxStep = math.Max(maxStep, dt)
	}
	fmt.Printf("Sub steps started at time = %g (days), ended at %g (days)\n",
		t.startTime/Day, t.currentTime/Day)
	fmt.Printf("  number of substeps = %d, avg = %g, min = %g, max = %g (days)\n",
		len(t.steps), sum/float64(len(t.steps))/Day, minStep/Day, maxStep/Day)
}
