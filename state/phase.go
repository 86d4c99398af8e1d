package state

// Canonical phase / component ordering used throughout the simulator
const (
	Water = iota
	Oil
	Gas
)

// Capabilities selects the active extensions of the black-oil model
// at construction time. NumEq is the per-cell (and per-well) equation
// count implied by the selection.
type Capabilities struct {
	HasSolvent bool
	HasPolymer bool
	HasDisgas  bool
	HasVapoil  bool
}

func (c Capabilities) NumEq() (n int) {
	n = 3
	if c.HasSolvent {
		n++
	}
	if c.HasPolymer {
		n++
	}
	return
}

// SolventIdx and PolymerIdx are the equation slots of the extension
// components; they are only meaningful when the capability is active.
func (c Capabilities) SolventIdx() int { return 3 }

func (c Capabilities) PolymerIdx() (n int) {
	n = 3
	if c.HasSolvent {
		n++
	}
	return
}

// PhaseUsage describes which of the three canonical phases a run
// carries. Pos maps a canonical phase to its compact position.
type PhaseUsage struct {
	NumPhases int
	Used      [3]bool
	Pos       [3]int
}

func NewPhaseUsage(water, oil, gas bool) (pu PhaseUsage) {
	var pos int
	for p, used := range []bool{water, oil, gas} {
		pu.Used[p] = used
		if used {
			pu.Pos[p] = pos
			pos++
		} else {
			pu.Pos[p] = -1
		}
	}
	pu.NumPhases = pos
	return
}

func AllPhases() PhaseUsage {
	return NewPhaseUsage(true, true, true)
}

var PhaseName = [3]string{"Water", "Oil", "Gas"}
