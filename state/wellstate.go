package state

// WellState is the dynamic solution attached to the well set. Rates
// are surface-condition volumetric rates, well-major with phase
// stride. WellSolutions holds the well primary variables in
// variable-major order: entry [eq*nw + w] is variable eq of well w.
type WellState struct {
	BHP             []float64
	THP             []float64
	WellRates       []float64
	WellSolutions   []float64
	CurrentControls []int
	PerfPress       []float64
	PerfPhaseRates  []float64
	PerfRateSolvent []float64
	SolventWellRate []float64
	WellPotentials  []float64
	IsNewWell       []bool

	NumPhases  int
	NumWellVar int
}

// NewWellState sizes and seeds the state from the well set: bhp from
// an explicit BHP constraint when one exists, otherwise from the
// pressure of the first perforated cell; the active control is the
// first in each well's list; every well starts flagged as new so the
// first assembly re-derives its targets.
func NewWellState(wells *Wells, rs *ReservoirState, numPhases, numWellVar int) (st *WellState) {
	var (
		nw = wells.NumWells()
	)
	st = &WellState{
		BHP:             make([]float64, nw),
		THP:             make([]float64, nw),
		WellRates:       make([]float64, nw*numPhases),
		WellSolutions:   make([]float64, nw*numWellVar),
		CurrentControls: make([]int, nw),
		PerfPress:       make([]float64, wells.NumPerfs()),
		PerfPhaseRates:  make([]float64, wells.NumPerfs()*numPhases),
		PerfRateSolvent: make([]float64, wells.NumPerfs()),
		SolventWellRate: make([]float64, nw),
		WellPotentials:  make([]float64, nw*numPhases),
		IsNewWell:       make([]bool, nw),
		NumPhases:       numPhases,
		NumWellVar:      numWellVar,
	}
	perf := 0
	for w := range wells.W {
		well := &wells.W[w]
		st.BHP[w] = rs.Pressure[well.Cells[0]]
		for _, ctrl := range well.Controls {
			if ctrl.Type == BHPControl {
				st.BHP[w] = ctrl.Target
				break
			}
		}
		st.IsNewWell[w] = true
		for range well.Cells {
			st.PerfPress[perf] = st.BHP[w]
			perf++
		}
	}
	return
}

func (st *WellState) Clone() (R *WellState) {
	cp := func(v []float64) []float64 {
		o := make([]float64, len(v))
		copy(o, v)
		return o
	}
	R = &WellState{
		BHP:             cp(st.BHP),
		THP:             cp(st.THP),
		WellRates:       cp(st.WellRates),
		WellSolutions:   cp(st.WellSolutions),
		PerfPress:       cp(st.PerfPress),
		PerfPhaseRates:  cp(st.PerfPhaseRates),
		PerfRateSolvent: cp(st.PerfRateSolvent),
		SolventWellRate: cp(st.SolventWellRate),
		WellPotentials:  cp(st.WellPotentials),
		NumPhases:       st.NumPhases,
		NumWellVar:      st.NumWellVar,
	}
	R.CurrentControls = make([]int, len(st.CurrentControls))
	copy(R.CurrentControls, st.CurrentControls)
	R.IsNewWell = make([]bool, len(st.IsNewWell))
	copy(R.IsNewWell, st.IsNewWell)
	return
}

func (st *WellState) Rate(well, phase int) float64 {
	return st.WellRates[well*st.NumPhases+phase]
}

func (st *WellState) SetRate(well, phase int, val float64) {
	st.WellRates[well*st.NumPhases+phase] = val
}

// Solution accesses well primary variable eq of a well; the layout is
// variable-major so that a single variable of all wells is contiguous
func (st *WellState) Solution(eq, well int) float64 {
	nw := len(st.BHP)
	return st.WellSolutions[eq*nw+well]
}

func (st *WellState) SetSolution(eq, well int, val float64) {
	nw := len(st.BHP)
	st.WellSolutions[eq*nw+well] = val
}
