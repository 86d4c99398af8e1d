package state

import "fmt"

type WellType int

const (
	Injector WellType = iota
	Producer
)

func (t WellType) String() string {
	if t == Injector {
		return "INJECTOR"
	}
	return "PRODUCER"
}

type ControlType int

const (
	BHPControl ControlType = iota
	THPControl
	SurfaceRateControl
	ReservoirRateControl
)

func (c ControlType) String() string {
	switch c {
	case BHPControl:
		return "BHP"
	case THPControl:
		return "THP"
	case SurfaceRateControl:
		return "RATE"
	case ReservoirRateControl:
		return "RESV"
	}
	return "unknown"
}

// WellControl is one constraint of a well. Distr weights the phase
// rates entering a rate constraint; for a surface-rate control of a
// single phase it is the indicator of that phase.
type WellControl struct {
	Type     ControlType
	Target   float64
	Distr    [3]float64
	VFPTable int
	ALQ      float64
}

// EconLimits holds the economic shut-in thresholds of a producer.
// Zero values disable the corresponding check.
type EconLimits struct {
	MinOilRate    float64
	MinGasRate    float64
	MinLiquidRate float64
	MaxWaterCut   float64
	EndRun        bool
}

// Well is the static description of one well: its perforation list,
// type, preferred phase split and ordered constraint set. The first
// constraint in Controls is the active one at model setup.
type Well struct {
	Name           string
	Type           WellType
	CompFrac       [3]float64
	Cells          []int     // perforated cell indices
	WI             []float64 // connection transmissibility factor per perforation
	PerfDepth      []float64
	RefDepth       float64
	Controls       []WellControl
	AllowCrossFlow bool
	Econ           EconLimits
	EfficiencyFac  float64
	// Injected solvent fraction of the gas stream and injected
	// polymer concentration. Ignored for producers.
	WSolvent float64
	WPolymer float64
}

func (w *Well) NumPerfs() int { return len(w.Cells) }

// Wells is the well set, with CSR-style access over all perforations
type Wells struct {
	W []Well
}

func (ws *Wells) NumWells() int { return len(ws.W) }

func (ws *Wells) NumPerfs() (n int) {
	for i := range ws.W {
		n += ws.W[i].NumPerfs()
	}
	return
}

func (ws *Wells) Validate(numCells int) error {
	for i := range ws.W {
		w := &ws.W[i]
		if len(w.WI) != len(w.Cells) || len(w.PerfDepth) != len(w.Cells) {
			return fmt.Errorf("well %s: perforation arrays disagree in length", w.Name)
		}
		if len(w.Controls) == 0 {
			return fmt.Errorf("well %s: no controls", w.Name)
		}
		for _, c := range w.Cells {
			if c < 0 || c >= numCells {
				return fmt.Errorf("well %s: perforated cell %d out of range", w.Name, c)
			}
		}
		if w.EfficiencyFac <= 0 {
			return fmt.Errorf("well %s: efficiency factor must be positive", w.Name)
		}
	}
	return nil
}
