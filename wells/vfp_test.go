package wells

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notargets/gores/autodiff"
	"github.com/notargets/gores/state"
)

func TestVFPRoundTrip(t *testing.T) {
	table := VFPTable{DatumDepth: 2500, RateCoeff: 1.e6}
	var (
		thp = 5.e6
		bhp = table.BHP(-0.001, -0.01, -0.002, thp, 0)
	)
	assert.Greater(t, bhp, thp)
	assert.InDelta(t, thp, table.THP(-0.001, -0.01, -0.002, bhp, 0), 1.e-6)
}

func TestVFPEvalMatchesScalar(t *testing.T) {
	table := VFPTable{DatumDepth: 2500, RateCoeff: 2.e6}
	var (
		aqua   = autodiff.Variable(-0.001, 0, 3)
		liquid = autodiff.Constant(-0.01, 3)
		vapour = autodiff.Constant(-0.002, 3)
	)
	got := table.BHPEval(aqua, liquid, vapour, 5.e6, 0)
	assert.InDelta(t, table.BHP(-0.001, -0.01, -0.002, 5.e6, 0), got.Val, 1.e-6)
	// total rate is negative so |q| decreases with aqua
	assert.InDelta(t, -2.e6, got.Deriv(0), 1.e-6)
}

func TestHydrostaticCorrectionSign(t *testing.T) {
	well := state.Well{RefDepth: 2600}
	dp := hydrostaticCorrection(&well, 2500, 800, 9.81)
	assert.InDelta(t, 800*9.81*100, dp, 1.e-9)
}
