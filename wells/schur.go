package wells

import (
	"github.com/notargets/gores/utils"
)

/*
The well unknowns are eliminated from the coupled linear system by a
Schur complement. With the blocks assembled as

	[ A  B ] [ x  ]   [ r  ]
	[ C  D ] [ xw ] = [ rw ]

the reservoir solve runs on (A - B invD C) with right hand side
r - B invD rw, realized matrix-free through ApplyRes and Apply; the
well unknowns are recovered afterwards from RecoverVariable.

Reservoir vectors are cell-major with equation stride numEq; well
vectors are well-major with stride numWellEq.
*/

// ApplyRes folds the well residual into the reservoir right hand
// side: r -= B invD rw
func (sw *StandardWells) ApplyRes(r []float64) {
	for w := 0; w < sw.nw; w++ {
		invDrw := sw.invD[w].MulVec(sw.resWell[w])
		well := &sw.wells.W[w]
		for perf := 0; perf < well.NumPerfs(); perf++ {
			var (
				cell = well.Cells[perf]
				bx   = sw.duneB[w][perf].MulVec(invDrw)
			)
			utils.VecAxpy(-1, bx, r[cell*sw.numEq:(cell+1)*sw.numEq])
		}
	}
}

// Apply subtracts the well coupling from a reservoir matrix-vector
// product: Ax -= B invD C x
func (sw *StandardWells) Apply(x, Ax []float64) {
	cx := make([]float64, sw.numWellEq)
	for w := 0; w < sw.nw; w++ {
		utils.VecZero(cx)
		well := &sw.wells.W[w]
		for perf := 0; perf < well.NumPerfs(); perf++ {
			cell := well.Cells[perf]
			cxp := sw.duneC[w][perf].MulVec(x[cell*sw.numEq : (cell+1)*sw.numEq])
			utils.VecAxpy(1, cxp, cx)
		}
		invDCx := sw.invD[w].MulVec(cx)
		for perf := 0; perf < well.NumPerfs(); perf++ {
			var (
				cell = well.Cells[perf]
				bx   = sw.duneB[w][perf].MulVec(invDCx)
			)
			utils.VecAxpy(-1, bx, Ax[cell*sw.numEq:(cell+1)*sw.numEq])
		}
	}
}

// ApplyScaleAdd accumulates Ax += alpha * (well coupling applied to x)
func (sw *StandardWells) ApplyScaleAdd(alpha float64, x, Ax []float64) {
	scratch := make([]float64, len(Ax))
	sw.Apply(x, scratch)
	utils.VecAxpy(alpha, scratch, Ax)
}

// RecoverVariable back-substitutes the well unknowns from a converged
// reservoir solution: xw = invD (rw - C x)
func (sw *StandardWells) RecoverVariable(x []float64) (xw []float64) {
	xw = make([]float64, sw.nw*sw.numWellEq)
	for w := 0; w < sw.nw; w++ {
		y := utils.VecCopy(sw.resWell[w])
		well := &sw.wells.W[w]
		for perf := 0; perf < well.NumPerfs(); perf++ {
			cell := well.Cells[perf]
			cxp := sw.duneC[w][perf].MulVec(x[cell*sw.numEq : (cell+1)*sw.numEq])
			utils.VecAxpy(-1, cxp, y)
		}
		copy(xw[w*sw.numWellEq:], sw.invD[w].MulVec(y))
	}
	return
}

// ResWell exposes the assembled well residual of one well
func (sw *StandardWells) ResWell(w int) []float64 { return sw.resWell[w] }
