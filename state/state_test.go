package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilities(t *testing.T) {
	assert.Equal(t, 3, Capabilities{}.NumEq())
	assert.Equal(t, 4, Capabilities{HasSolvent: true}.NumEq())
	assert.Equal(t, 5, Capabilities{HasSolvent: true, HasPolymer: true}.NumEq())
	assert.Equal(t, 4, Capabilities{HasSolvent: true}.SolventIdx()+1)
	assert.Equal(t, 4, Capabilities{HasSolvent: true, HasPolymer: true}.PolymerIdx())
	assert.Equal(t, 3, Capabilities{HasPolymer: true}.PolymerIdx())
}

func TestReservoirStateClone(t *testing.T) {
	rs := NewReservoirState(4, 3, Capabilities{HasDisgas: true})
	rs.Pressure[2] = 2.e7
	rs.SetSat(2, Water, 0.3)
	rs.HydroCarbon[2] = OilOnly
	cl := rs.Clone()
	cl.Pressure[2] = 0
	cl.SetSat(2, Water, 0.9)
	cl.HydroCarbon[2] = GasOnly
	assert.Equal(t, 2.e7, rs.Pressure[2])
	assert.Equal(t, 0.3, rs.Sat(2, Water))
	assert.Equal(t, OilOnly, rs.HydroCarbon[2])
}

func TestWellStateInit(t *testing.T) {
	rs := NewReservoirState(10, 3, Capabilities{})
	for i := range rs.Pressure {
		rs.Pressure[i] = 1.5e7
	}
	wells := &Wells{W: []Well{
		{
			Name: "INJ", Type: Injector, Cells: []int{0, 1},
			WI: []float64{1e-12, 1e-12}, PerfDepth: []float64{1000, 1010},
			CompFrac: [3]float64{1, 0, 0}, EfficiencyFac: 1,
			Controls: []WellControl{
				{Type: BHPControl, Target: 2.e7},
				{Type: SurfaceRateControl, Target: 0.01, Distr: [3]float64{1, 0, 0}},
			},
		},
		{
			Name: "PROD", Type: Producer, Cells: []int{8},
			WI: []float64{1e-12}, PerfDepth: []float64{1020},
			EfficiencyFac: 1,
			Controls: []WellControl{
				{Type: SurfaceRateControl, Target: -0.02, Distr: [3]float64{0, 1, 0}},
			},
		},
	}}
	assert.NoError(t, wells.Validate(10))
	st := NewWellState(wells, rs, 3, 3)
	// A BHP constraint seeds the bhp even when it is not first
	assert.Equal(t, 2.e7, st.BHP[0])
	// No BHP constraint: first perforated cell pressure
	assert.Equal(t, 1.5e7, st.BHP[1])
	assert.Equal(t, 3, len(st.PerfPress))
	assert.True(t, st.IsNewWell[0])

	cl := st.Clone()
	cl.BHP[0] = 0
	cl.CurrentControls[1] = 5
	assert.Equal(t, 2.e7, st.BHP[0])
	assert.Equal(t, 0, st.CurrentControls[1])
}

func TestWellsValidate(t *testing.T) {
	wells := &Wells{W: []Well{{Name: "W", Cells: []int{50}, WI: []float64{1}, PerfDepth: []float64{1}, EfficiencyFac: 1,
		Controls: []WellControl{{Type: BHPControl, Target: 1e7}}}}}
	assert.Error(t, wells.Validate(10))
}
