package timestepping

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// RelativeChange supplies the solution change of the last substep as
// the error measure of the PID controllers
type RelativeChange interface {
	RelativeChange() float64
}

// Control suggests the next substep length from the one just taken,
// the iterations it cost and the solution change it produced
type Control interface {
	ComputeTimeStepSize(dt float64, iterations int, relChange RelativeChange,
		simulationTimeElapsed float64) float64
}

/*
PIDControl adjusts the step so the relative solution change tracks a
tolerance. Above tolerance the step shrinks proportionally; below it
the next step comes from the PID law with the gains of the Turek
timestepping paper, fed by the last three error values.
*/
type PIDControl struct {
	tol    float64
	errors [3]float64
}

func NewPIDControl(tol float64) *PIDControl {
	return &PIDControl{tol: tol}
}

func (c *PIDControl) ComputeTimeStepSize(dt float64, iterations int,
	relChange RelativeChange, simulationTimeElapsed float64) float64 {
	c.errors[0] = c.errors[1]
	c.errors[1] = c.errors[2]
	err := relChange.RelativeChange()
	c.errors[2] = err

	if err > c.tol {
		return dt * c.tol / err
	}
	if c.errors[0] == 0 || c.errors[1] == 0 || c.errors[2] == 0 {
		// not enough history for the PID law yet
		return dt
	}
	const (
		kP = 0.075
		kI = 0.175
		kD = 0.01
	)
	return dt * math.Pow(c.errors[1]/c.errors[2], kP) *
		math.Pow(c.tol/c.errors[2], kI) *
		math.Pow(c.errors[0]*c.errors[0]/c.errors[1]/c.errors[2], kD)
}

// PIDAndIterationCountControl is the PID law with an extra reduction
// when the substep cost more iterations than the target
type PIDAndIterationCountControl struct {
	PIDControl
	targetIterations int
}

func NewPIDAndIterationCountControl(targetIterations int, tol float64) *PIDAndIterationCountControl {
	return &PIDAndIterationCountControl{
		PIDControl:       PIDControl{tol: tol},
		targetIterations: targetIterations,
	}
}

func (c *PIDAndIterationCountControl) ComputeTimeStepSize(dt float64, iterations int,
	relChange RelativeChange, simulationTimeElapsed float64) float64 {
	dtEstimate := c.PIDControl.ComputeTimeStepSize(dt, iterations, relChange,
		simulationTimeElapsed)
	if iterations > c.targetIterations {
		dtEstimate *= float64(c.targetIterations) / float64(iterations)
	}
	return dtEstimate
}

// SimpleIterationCountControl grows or decays the step by fixed rates
// around a target iteration count
type SimpleIterationCountControl struct {
	targetIterations int
	decayRate        float64
	growthRate       float64
}

func NewSimpleIterationCountControl(targetIterations int, decayRate,
	growthRate float64) *SimpleIterationCountControl {
	if decayRate > 1 {
		panic("simple iteration count control: decay rate above 1")
	}
	if growthRate < 1 {
		panic("simple iteration count control: growth rate below 1")
	}
	return &SimpleIterationCountControl{
		targetIterations: targetIterations,
		decayRate:        decayRate,
		growthRate:       growthRate,
	}
}

func (c *SimpleIterationCountControl) ComputeTimeStepSize(dt float64, iterations int,
	relChange RelativeChange, simulationTimeElapsed float64) float64 {
	switch {
	case iterations > c.targetIterations:
		return dt * c.decayRate
	case iterations < c.targetIterations-1:
		return dt * c.growthRate
	}
	return dt
}

// HardcodedControl replays substep end times read from a file of
// absolute times in days, one value per token
type HardcodedControl struct {
	subStepTime []float64
}

func NewHardcodedControl(filename string) (c *HardcodedControl, err error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("hardcoded timestep control: %w", err)
	}
	c = &HardcodedControl{}
	for _, tok := range strings.Fields(string(data)) {
		var days float64
		if days, err = strconv.ParseFloat(tok, 64); err != nil {
			return nil, fmt.Errorf("hardcoded timestep control: bad value %q: %w", tok, err)
		}
		c.subStepTime = append(c.subStepTime, days*Day)
	}
	sort.Float64s(c.subStepTime)
	return
}

func (c *HardcodedControl) ComputeTimeStepSize(dt float64, iterations int,
	relChange RelativeChange, simulationTimeElapsed float64) float64 {
	i := sort.SearchFloat64s(c.subStepTime, simulationTimeElapsed)
	for i < len(c.subStepTime) && c.subStepTime[i] <= simulationTimeElapsed {
		i++
	}
	if i == len(c.subStepTime) {
		return dt
	}
	return c.subStepTime[i] - simulationTimeElapsed
}
