package fluid

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notargets/gores/autodiff"
	"github.com/notargets/gores/state"
)

func TestInvB(t *testing.T) {
	f := Default(state.Capabilities{HasDisgas: true, HasVapoil: true})
	p := autodiff.Variable(f.PRef, 0, 1)
	// At the reference pressure invB is 1/Bref and the slopes carry
	// the compressibilities
	assert.InDelta(t, 1/f.BwRef, f.InvBw(p).Val, 1.e-14)
	assert.InDelta(t, f.CompW/f.BwRef, f.InvBw(p).Deriv(0), 1.e-20)
	assert.InDelta(t, 1/f.BoRef, f.InvBo(p).Val, 1.e-14)
	assert.InDelta(t, 1/f.BgRef, f.InvBg(p).Val, 1.e-10)
	// Gas compresses: doubling pressure doubles invBg
	p2 := autodiff.Constant(2*f.PRef, 1)
	assert.InDelta(t, 2/f.BgRef, f.InvBg(p2).Val, 1.e-10)
}

func TestSaturatedRatios(t *testing.T) {
	f := Default(state.Capabilities{HasDisgas: true, HasVapoil: true})
	assert.InDelta(t, f.RsSatRef, f.RsSat(f.PRef), 1.e-12)
	assert.InDelta(t, f.RsSatRef/2, f.RsSat(f.PRef/2), 1.e-12)
	assert.Equal(t, 0., f.RsSat(-1.e5))

	// Capabilities gate the ratios entirely
	dead := Default(state.Capabilities{})
	assert.Equal(t, 0., dead.RsSat(f.PRef))
	assert.Equal(t, 0., dead.RvSat(f.PRef))
	assert.Equal(t, 0., dead.RsSatEval(autodiff.Variable(f.PRef, 0, 1)).Deriv(0))
}

func TestMobility(t *testing.T) {
	f := Default(state.Capabilities{})
	s := autodiff.Variable(0.5, 1, 3)
	m := f.Mobility(state.Water, s)
	assert.InDelta(t, 0.25/f.MuW, m.Val, 1.e-10)
	assert.InDelta(t, 1./f.MuW, m.Deriv(1), 1.e-10)
	// Negative saturation clamps to zero mobility
	neg := autodiff.Constant(-0.1, 3)
	assert.Equal(t, 0., f.Mobility(state.Gas, neg).Val)
}

func TestDensity(t *testing.T) {
	f := Default(state.Capabilities{HasDisgas: true})
	p := autodiff.Constant(f.PRef, 1)
	rs := autodiff.Constant(50, 1)
	rv := autodiff.Constant(0, 1)
	rhoO := f.Density(state.Oil, p, rs, rv)
	expected := (f.RhoSurface[state.Oil] + 50*f.RhoSurface[state.Gas]) / f.BoRef
	assert.InDelta(t, expected, rhoO.Val, 1.e-10)
}
