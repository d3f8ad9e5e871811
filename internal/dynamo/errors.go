package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrShape indicates mismatched matrix or vector dimensions.
	ErrShape = errors.New("dynamo: dimension mismatch")

	// ErrNonFinite indicates a NaN or Inf in a computed state or parameter.
	ErrNonFinite = errors.New("dynamo: non-finite value (NaN or Inf detected)")

	// ErrPrecondition indicates degenerate input such as an empty sequence,
	// a window that is too short or a non-positive step size.
	ErrPrecondition = errors.New("dynamo: precondition violated")
)

// StepError wraps an error with simulation context.
type StepError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}

// ShapeError returns an error wrapping ErrShape that names the offending operand.
func ShapeError(operand string, gotR, gotC, wantR, wantC int) error {
	return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrShape, operand, gotR, gotC, wantR, wantC)
}
