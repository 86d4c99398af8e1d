package wells

import (
	"fmt"
	"math"

	"github.com/notargets/gores/state"
)

/*
EconLimited records the production wells and connections taken out of
service by economic limits. The list persists across timesteps; the
assembly consults it so a shut well stops contributing.
*/
type EconLimited struct {
	shutWells         map[string]bool
	stoppedWells      map[string]bool
	closedConnections map[string][]int
}

func NewEconLimited() *EconLimited {
	return &EconLimited{
		shutWells:         make(map[string]bool),
		stoppedWells:      make(map[string]bool),
		closedConnections: make(map[string][]int),
	}
}

func (l *EconLimited) WellShut(name string) bool    { return l.shutWells[name] }
func (l *EconLimited) WellStopped(name string) bool { return l.stoppedWells[name] }

func (l *EconLimited) ClosedConnections(name string) []int {
	return l.closedConnections[name]
}

func (l *EconLimited) shutWell(name string) { l.shutWells[name] = true }

func (l *EconLimited) stopWell(name string) { l.stoppedWells[name] = true }

func (l *EconLimited) closeConnection(name string, perf int) {
	l.closedConnections[name] = append(l.closedConnections[name], perf)
}

// checkRateEconLimits reports whether any minimum-rate limit of a
// producer is violated. Rates are signed, so magnitudes compare.
func (sw *StandardWells) checkRateEconLimits(econ *state.EconLimits,
	ws *state.WellState, w int) bool {
	if econ.MinOilRate > 0 {
		if math.Abs(ws.Rate(w, state.Oil)) < econ.MinOilRate {
			return true
		}
	}
	if econ.MinGasRate > 0 {
		if math.Abs(ws.Rate(w, state.Gas)) < econ.MinGasRate {
			return true
		}
	}
	if econ.MinLiquidRate > 0 {
		liquid := ws.Rate(w, state.Oil) + ws.Rate(w, state.Water)
		if math.Abs(liquid) < econ.MinLiquidRate {
			return true
		}
	}
	return false
}

/*
checkMaxWaterCutLimit evaluates the water cut limit of a producer.
When violated it identifies the worst offending connection by
per-perforation water cut; a single-perforation well reports
lastConnection so the caller shuts the whole well.
*/
func (sw *StandardWells) checkMaxWaterCutLimit(econ *state.EconLimits,
	ws *state.WellState, w int) (violated, lastConnection bool, worstPerf int, extent float64) {
	var (
		well      = &sw.wells.W[w]
		oilRate   = ws.Rate(w, state.Oil)
		waterRate = ws.Rate(w, state.Water)
		liquid    = oilRate + waterRate
		waterCut  float64
	)
	worstPerf = -1
	extent = -1
	if math.Abs(liquid) != 0 {
		waterCut = waterRate / liquid
	}
	if waterCut <= econ.MaxWaterCut {
		return
	}
	violated = true

	np := ws.NumPhases
	perfCut := make([]float64, well.NumPerfs())
	for perf := 0; perf < well.NumPerfs(); perf++ {
		var (
			gp      = sw.PerfIndex(w, perf)
			oil     = ws.PerfPhaseRates[gp*np+state.Oil]
			water   = ws.PerfPhaseRates[gp*np+state.Water]
			pliquid = oil + water
		)
		if math.Abs(pliquid) != 0 {
			perfCut[perf] = water / pliquid
		}
	}

	if well.NumPerfs() == 1 {
		lastConnection = true
		worstPerf = 0
		extent = perfCut[0] / econ.MaxWaterCut
		return
	}

	maxCut := 0.0
	for perf := range perfCut {
		if perfCut[perf] > maxCut {
			worstPerf = perf
			maxCut = perfCut[perf]
		}
	}
	extent = maxCut / econ.MaxWaterCut
	return
}

/*
UpdateListEconLimited applies the economic limits of every producer to
the list of shut wells and closed connections. A broken minimum-rate
limit takes the whole well out; a broken water cut limit closes the
worst offending connection, shutting the well when it was the last one.
The list becomes the one the assembly consults from then on.
*/
func (sw *StandardWells) UpdateListEconLimited(ws *state.WellState, list *EconLimited) {
	sw.econ = list
	for w := 0; w < sw.nw; w++ {
		well := &sw.wells.W[w]
		if well.Type != state.Producer || list.WellShut(well.Name) {
			continue
		}
		econ := &well.Econ

		if sw.checkRateEconLimits(econ, ws, w) {
			if econ.EndRun {
				list.stopWell(well.Name)
				fmt.Printf("    Well %s stopped due to economic limits\n", well.Name)
			} else {
				list.shutWell(well.Name)
				fmt.Printf("    Well %s shut due to economic limits\n", well.Name)
			}
			continue
		}

		if econ.MaxWaterCut > 0 {
			violated, lastConnection, worstPerf, extent := sw.checkMaxWaterCutLimit(econ, ws, w)
			if !violated {
				continue
			}
			if lastConnection {
				list.shutWell(well.Name)
				fmt.Printf("    Well %s shut, water cut limit broken on last connection\n",
					well.Name)
				continue
			}
			list.closeConnection(well.Name, worstPerf)
			fmt.Printf("    Well %s: closing connection %d, water cut %.2f times the limit\n",
				well.Name, worstPerf, extent)
		}
	}
}
