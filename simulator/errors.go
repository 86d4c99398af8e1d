package simulator

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed solve attempt. Recoverable kinds are
// retried by the adaptive timestepping with a chopped substep; fatal
// kinds abort the run.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindTooManyIterations
	KindLinearSolverProblem
	KindNumericalProblem
	KindRuntime
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindTooManyIterations:
		return "Solver convergence failure"
	case KindLinearSolverProblem:
		return "Linear solver problem"
	case KindNumericalProblem:
		return "Numerical problem"
	case KindRuntime:
		return "Runtime error"
	case KindFatal:
		return "Fatal error"
	}
	return "No error"
}

type SolverError struct {
	Kind ErrorKind
	Msg  string
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func Errf(kind ErrorKind, format string, args ...interface{}) error {
	return &SolverError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func NumericalProblemf(format string, args ...interface{}) error {
	return Errf(KindNumericalProblem, format, args...)
}

func KindOf(err error) ErrorKind {
	var se *SolverError
	if errors.As(err, &se) {
		return se.Kind
	}
	if err != nil {
		return KindRuntime
	}
	return KindNone
}

// Recoverable reports whether the failure can be retried with a
// smaller timestep
func Recoverable(err error) bool {
	switch KindOf(err) {
	case KindTooManyIterations, KindLinearSolverProblem, KindNumericalProblem, KindRuntime:
		return true
	}
	return false
}
