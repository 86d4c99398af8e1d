package simulator

import "fmt"

// Report accumulates iteration counts and wall-clock accounting over
// nonlinear solves and substeps. Failed work is tracked separately so
// wasted effort stays visible in the end-of-run summary.
type Report struct {
	Converged bool

	AssembleTime    float64
	LinearSolveTime float64
	UpdateTime      float64
	SolverTime      float64
	TotalTime       float64

	TotalLinearizations   int
	TotalNewtonIterations int
	TotalLinearIterations int
	TotalWellIterations   int

	FailedLinearizations   int
	FailedNewtonIterations int
	FailedLinearIterations int
}

func (r *Report) Add(other Report) {
	r.AssembleTime += other.AssembleTime
	r.LinearSolveTime += other.LinearSolveTime
	r.UpdateTime += other.UpdateTime
	r.SolverTime += other.SolverTime
	r.TotalTime += other.TotalTime
	r.TotalLinearizations += other.TotalLinearizations
	r.TotalNewtonIterations += other.TotalNewtonIterations
	r.TotalLinearIterations += other.TotalLinearIterations
	r.TotalWellIterations += other.TotalWellIterations
	r.FailedLinearizations += other.FailedLinearizations
	r.FailedNewtonIterations += other.FailedNewtonIterations
	r.FailedLinearIterations += other.FailedLinearIterations
}

// AddFailed books the work of a rejected attempt into the failed
// counters
func (r *Report) AddFailed(other Report) {
	r.AssembleTime += other.AssembleTime
	r.LinearSolveTime += other.LinearSolveTime
	r.UpdateTime += other.UpdateTime
	r.SolverTime += other.SolverTime
	r.TotalTime += other.TotalTime
	r.FailedLinearizations += other.TotalLinearizations + other.FailedLinearizations
	r.FailedNewtonIterations += other.TotalNewtonIterations + other.FailedNewtonIterations
	r.FailedLinearIterations += other.TotalLinearIterations + other.FailedLinearIterations
}

func (r Report) Print() {
	fmt.Printf("Newton iterations: %6d (failed: %d)\n", r.TotalNewtonIterations, r.FailedNewtonIterations)
	fmt.Printf("Linear iterations: %6d (failed: %d)\n", r.TotalLinearIterations, r.FailedLinearIterations)
	fmt.Printf("Well   iterations: %6d\n", r.TotalWellIterations)
	fmt.Printf("Linearizations:    %6d (failed: %d)\n", r.TotalLinearizations, r.FailedLinearizations)
	fmt.Printf("Assembly time:     %8.3f s, linear solve time: %8.3f s, update time: %8.3f s\n",
		r.AssembleTime, r.LinearSolveTime, r.UpdateTime)
}
