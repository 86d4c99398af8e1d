package wells

import (
	"math"

	"github.com/notargets/gores/autodiff"
	"github.com/notargets/gores/state"
)

/*
VFPTable is a vertical flow performance relation between tubing head
and bottom hole pressure. The model here is a linear friction term on
the total volumetric rate around a datum depth; the interface mirrors
what the control logic needs so a table-interpolating implementation
can replace it without touching the callers.
*/
type VFPTable struct {
	DatumDepth float64
	// Friction pressure drop per unit total rate, Pa/(m3/s)
	RateCoeff float64
}

// BHP converts a tubing head pressure to bottom hole pressure at the
// datum depth for the given surface phase rates
func (t VFPTable) BHP(aqua, liquid, vapour, thp, alq float64) float64 {
	q := math.Abs(aqua + liquid + vapour)
	return thp + t.RateCoeff*q
}

// THP is the inverse relation of BHP
func (t VFPTable) THP(aqua, liquid, vapour, bhp, alq float64) float64 {
	q := math.Abs(aqua + liquid + vapour)
	return bhp - t.RateCoeff*q
}

// BHPEval propagates derivatives of the rates through the relation
func (t VFPTable) BHPEval(aqua, liquid, vapour autodiff.Eval, thp, alq float64) autodiff.Eval {
	q := aqua.Plus(liquid).Plus(vapour).Abs()
	return q.Scale(t.RateCoeff).AddValue(thp)
}

// hydrostaticCorrection is the pressure difference between the well
// reference depth and the VFP datum depth for a fluid column of the
// given density
func hydrostaticCorrection(well *state.Well, datumDepth, rho, gravity float64) float64 {
	return rho * gravity * (well.RefDepth - datumDepth)
}
