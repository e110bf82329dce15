package statemachine

import (
	"fmt"
	"math"
)

// StageWidth is the progress range reserved for each stage. Child steps
// live in [0, StageWidth).
const StageWidth = 100

// Stage is a position in a flow's ordered list of phases. Flows declare their
// stages as an iota enumeration so the order is explicit.
type Stage int

// Base is the progress value at which the stage starts.
func (s Stage) Base() float64 {
	return float64(s) * StageWidth
}

// Progress combines the stage with a child step. It panics with
// ErrStageOverflow when child falls outside [0, StageWidth), which would make
// progress overlap the next stage.
func (s Stage) Progress(child float64) float64 {
	if child < 0 || child >= StageWidth || math.IsNaN(child) {
		panic(fmt.Errorf("%w: stage %d, step %v", ErrStageOverflow, s, child))
	}

	return s.Base() + child
}

// StageOf recovers the stage from a progress value.
func StageOf(progress float64) Stage {
	return Stage(math.Floor(progress / StageWidth))
}

// Stepper is implemented by states that report a progress value.
type Stepper interface {
	Step() float64
}

// Continuable is implemented by states that report whether the flow can be
// resumed after the user leaves it.
type Continuable interface {
	Continuable() bool
}

// StepOf returns v's progress, or 0 for values that do not report one.
func StepOf(v any) float64 {
	if s, ok := v.(Stepper); ok {
		return s.Step()
	}

	return 0
}

// ContinuableOf reports v's continuability, false when it does not say.
func ContinuableOf(v any) bool {
	c, ok := v.(Continuable)

	return ok && c.Continuable()
}
