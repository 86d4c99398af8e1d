package state

// HydroCarbonState tags which hydrocarbon unknowns a cell carries:
// the third primary variable of a cell is Sg, Rs or Rv depending on
// the tag.
type HydroCarbonState int

const (
	GasAndOil HydroCarbonState = iota // Sg is primary
	GasOnly                          // Rv is primary, So = 0
	OilOnly                          // Rs is primary, Sg = 0
)

func (h HydroCarbonState) String() string {
	switch h {
	case GasAndOil:
		return "GasAndOil"
	case GasOnly:
		return "GasOnly"
	case OilOnly:
		return "OilOnly"
	}
	return "unknown"
}

// ReservoirState holds the cell-wise solution of the reservoir.
// Saturation is cell-major with the phase stride of the PhaseUsage.
type ReservoirState struct {
	Pressure    []float64
	Temperature []float64
	Saturation  []float64
	Rs          []float64
	Rv          []float64
	HydroCarbon []HydroCarbonState

	// Extension fields, allocated only when the capability is active
	SolventSaturation    []float64
	PolymerConcentration []float64

	NumPhases int
}

func NewReservoirState(numCells, numPhases int, caps Capabilities) (rs *ReservoirState) {
	rs = &ReservoirState{
		Pressure:    make([]float64, numCells),
		Temperature: make([]float64, numCells),
		Saturation:  make([]float64, numCells*numPhases),
		Rs:          make([]float64, numCells),
		Rv:          make([]float64, numCells),
		HydroCarbon: make([]HydroCarbonState, numCells),
		NumPhases:   numPhases,
	}
	if caps.HasSolvent {
		rs.SolventSaturation = make([]float64, numCells)
	}
	if caps.HasPolymer {
		rs.PolymerConcentration = make([]float64, numCells)
	}
	return
}

func (rs *ReservoirState) NumCells() int { return len(rs.Pressure) }

func (rs *ReservoirState) Clone() (R *ReservoirState) {
	cp := func(v []float64) []float64 {
		if v == nil {
			return nil
		}
		o := make([]float64, len(v))
		copy(o, v)
		return o
	}
	R = &ReservoirState{
		Pressure:             cp(rs.Pressure),
		Temperature:          cp(rs.Temperature),
		Saturation:           cp(rs.Saturation),
		Rs:                   cp(rs.Rs),
		Rv:                   cp(rs.Rv),
		SolventSaturation:    cp(rs.SolventSaturation),
		PolymerConcentration: cp(rs.PolymerConcentration),
		NumPhases:            rs.NumPhases,
	}
	R.HydroCarbon = make([]HydroCarbonState, len(rs.HydroCarbon))
	copy(R.HydroCarbon, rs.HydroCarbon)
	return
}

func (rs *ReservoirState) Sat(cell, phase int) float64 {
	return rs.Saturation[cell*rs.NumPhases+phase]
}

func (rs *ReservoirState) SetSat(cell, phase int, val float64) {
	rs.Saturation[cell*rs.NumPhases+phase] = val
}
