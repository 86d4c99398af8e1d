package fluid

import (
	"github.com/notargets/gores/autodiff"
	"github.com/notargets/gores/state"
)

/*
PVT carries the black-oil fluid description: linear-compressibility
formation volume factors for water and oil, a pressure-proportional
inverse gas FVF, saturated dissolution ratios that grow linearly with
pressure, constant viscosities and quadratic relative permeability.
All pressures are Pa, densities kg/m3, ratios sm3/sm3.
*/
type PVT struct {
	RhoSurface [3]float64 // surface densities in canonical phase order

	PRef  float64 // reference pressure for the linear FVF forms
	BwRef float64
	CompW float64
	BoRef float64
	CompO float64
	BgRef float64 // Bg at PRef; Bg(p) = BgRef * PRef / p

	MuW, MuO, MuG float64

	RsSatRef float64 // Rs_sat at PRef, linear in p
	RvSatRef float64 // Rv_sat at PRef, linear in p

	Caps state.Capabilities
}

// Default is a light live-oil description usable for testing and the
// bundled model cases
func Default(caps state.Capabilities) PVT {
	return PVT{
		RhoSurface: [3]float64{1000, 860, 0.9},
		PRef:       2.e7,
		BwRef:      1.01,
		CompW:      4.e-10,
		BoRef:      1.2,
		CompO:      1.e-9,
		BgRef:      0.005,
		MuW:        3.e-4,
		MuO:        1.e-3,
		MuG:        1.5e-5,
		RsSatRef:   100,
		RvSatRef:   1.e-4,
		Caps:       caps,
	}
}

func (f PVT) InvBw(p autodiff.Eval) autodiff.Eval {
	// invBw = (1 + cw (p - pref)) / BwRef
	return p.AddValue(-f.PRef).Scale(f.CompW).AddValue(1).Scale(1 / f.BwRef)
}

func (f PVT) InvBo(p autodiff.Eval) autodiff.Eval {
	return p.AddValue(-f.PRef).Scale(f.CompO).AddValue(1).Scale(1 / f.BoRef)
}

func (f PVT) InvBg(p autodiff.Eval) autodiff.Eval {
	// Bg shrinks inversely with pressure
	return p.Scale(1 / (f.BgRef * f.PRef))
}

func (f PVT) InvB(phase int, p autodiff.Eval) autodiff.Eval {
	switch phase {
	case state.Water:
		return f.InvBw(p)
	case state.Oil:
		return f.InvBo(p)
	default:
		return f.InvBg(p)
	}
}

// RsSat is the saturated dissolved gas-oil ratio at pressure p
func (f PVT) RsSat(p float64) float64 {
	if !f.Caps.HasDisgas {
		return 0
	}
	rs := f.RsSatRef * p / f.PRef
	if rs < 0 {
		rs = 0
	}
	return rs
}

// RvSat is the saturated vaporized oil-gas ratio at pressure p
func (f PVT) RvSat(p float64) float64 {
	if !f.Caps.HasVapoil {
		return 0
	}
	rv := f.RvSatRef * p / f.PRef
	if rv < 0 {
		rv = 0
	}
	return rv
}

func (f PVT) RsSatEval(p autodiff.Eval) autodiff.Eval {
	if !f.Caps.HasDisgas {
		return autodiff.Constant(0, p.Len())
	}
	return p.Scale(f.RsSatRef / f.PRef)
}

func (f PVT) RvSatEval(p autodiff.Eval) autodiff.Eval {
	if !f.Caps.HasVapoil {
		return autodiff.Constant(0, p.Len())
	}
	return p.Scale(f.RvSatRef / f.PRef)
}

func (f PVT) Viscosity(phase int) float64 {
	switch phase {
	case state.Water:
		return f.MuW
	case state.Oil:
		return f.MuO
	default:
		return f.MuG
	}
}

// RelPerm is a quadratic Corey curve without residual saturations
func (f PVT) RelPerm(s autodiff.Eval) autodiff.Eval {
	zero := autodiff.Constant(0, s.Len())
	sc := autodiff.Max(s, zero)
	return sc.Times(sc)
}

// Mobility is relperm over viscosity for one phase
func (f PVT) Mobility(phase int, s autodiff.Eval) autodiff.Eval {
	return f.RelPerm(s).Scale(1 / f.Viscosity(phase))
}

// Density at reservoir conditions. For oil and gas the dissolved /
// vaporized partner phase mass is carried along.
func (f PVT) Density(phase int, p, rs, rv autodiff.Eval) autodiff.Eval {
	switch phase {
	case state.Water:
		return f.InvBw(p).Scale(f.RhoSurface[state.Water])
	case state.Oil:
		// rho_o = (rho_os + Rs rho_gs) * invBo
		mass := rs.Scale(f.RhoSurface[state.Gas]).AddValue(f.RhoSurface[state.Oil])
		return mass.Times(f.InvBo(p))
	default:
		mass := rv.Scale(f.RhoSurface[state.Oil]).AddValue(f.RhoSurface[state.Gas])
		return mass.Times(f.InvBg(p))
	}
}
