package simulator

// NumFluxComponents is the number of components carrying a formation
// volume factor: the three phases plus solvent when active
func NumFluxComponents(g GridSimulator) int {
	n := 3
	if g.Caps().HasSolvent {
		n++
	}
	return n
}

// AverageFVB computes the domain-average formation volume factor per
// component, the scaling that makes surface-volume residuals
// comparable across components. The reduction runs through the
// communicator so distributed ranks agree on the result.
func AverageFVB(g GridSimulator, comm Communicator) (bAvg []float64) {
	numComp := NumFluxComponents(g)
	bAvg = make([]float64, numComp)
	for c := 0; c < g.NumCells(); c++ {
		iq := g.IntensiveQuantities(c)
		for ph := 0; ph < 3; ph++ {
			bAvg[ph] += 1 / iq.InvB[ph].Val
		}
		if g.Caps().HasSolvent {
			bAvg[3] += 1 / iq.SolventInvB.Val
		}
	}
	comm.Sum(bAvg)
	nc := []float64{float64(g.NumCells())}
	comm.Sum(nc)
	for i := range bAvg {
		bAvg[i] /= nc[0]
	}
	return
}
