package dynamo

import (
	"errors"
	"math"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"normal", State{1.0, 2.0, 3.0}, true},
		{"zeros", State{0.0, 0.0}, true},
		{"with NaN", State{1.0, math.NaN()}, false},
		{"with +Inf", State{1.0, math.Inf(1)}, false},
		{"with -Inf", State{1.0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestState_Norm(t *testing.T) {
	tests := []struct {
		state    State
		expected float64
	}{
		{State{3, 4}, 5.0},
		{State{1, 0}, 1.0},
		{State{0, 0}, 0.0},
		{State{1, 1, 1, 1}, 2.0},
	}

	for _, tt := range tests {
		if got := tt.state.Norm(); math.Abs(got-tt.expected) > 1e-10 {
			t.Errorf("Norm(%v) = %v, want %v", tt.state, got, tt.expected)
		}
	}
}

func TestState_Arithmetic(t *testing.T) {
	a := State{1, 2, 3}
	b := State{4, 5, 6}

	diff := b.Sub(a)
	if diff[0] != 3 || diff[1] != 3 || diff[2] != 3 {
		t.Errorf("Sub failed: got %v", diff)
	}

	scaled := a.Scale(2)
	if scaled[0] != 2 || scaled[1] != 4 || scaled[2] != 6 {
		t.Errorf("Scale failed: got %v", scaled)
	}

	c := a.Clone()
	c[0] = 99
	if a[0] == 99 {
		t.Error("Clone did not create independent copy")
	}
}

func TestState_SubLengthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Sub of unequal lengths should panic")
		}
	}()
	State{1, 2}.Sub(State{1})
}

func TestStepError(t *testing.T) {
	err := &StepError{Time: 1.5, Step: 150, Wrapped: ErrNonFinite}
	expected := "step 150 (t=1.5000): dynamo: non-finite value (NaN or Inf detected)"
	if err.Error() != expected {
		t.Errorf("StepError.Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, ErrNonFinite) {
		t.Error("StepError should unwrap to ErrNonFinite")
	}
}

func TestShapeError(t *testing.T) {
	err := ShapeError("B", 3, 2, 3, 1)
	if !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
	if err.Error() != "dynamo: dimension mismatch: B is 3x2, want 3x1" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
