package neck

import (
	"errors"
	"fmt"

	"github.com/born-ml/born/tensor"
)

// ErrShapeMismatch is matched by every *ShapeError via errors.Is.
var ErrShapeMismatch = errors.New("shape mismatch")

// Axis names used in ShapeError.
const (
	AxisRank    = "rank"
	AxisBatch   = "batch"
	AxisChannel = "channel"
	AxisHeight  = "height"
	AxisWidth   = "width"
	AxisTime    = "time"
)

// ShapeError reports an input whose shape violates a decoder precondition.
type ShapeError struct {
	Op       string       // decoder or operation name, e.g. "CNNDecoder"
	Axis     string       // offending axis, one of the Axis* constants
	Expected int          // required size (or rank for AxisRank)
	Actual   int          // size found
	Shape    tensor.Shape // full input shape
}

func (e *ShapeError) Error() string {
	if e.Axis == AxisRank {
		return fmt.Sprintf("%s: expected rank %d input, got rank %d (shape %v)", e.Op, e.Expected, e.Actual, e.Shape)
	}
	return fmt.Sprintf("%s: expected %s %d, got %d (shape %v)", e.Op, e.Axis, e.Expected, e.Actual, e.Shape)
}

// Is reports whether target is ErrShapeMismatch.
func (e *ShapeError) Is(target error) bool {
	return target == ErrShapeMismatch
}

// checkRank returns a *ShapeError unless shape has the given rank.
func checkRank(op string, shape tensor.Shape, rank int) error {
	if len(shape) != rank {
		return &ShapeError{Op: op, Axis: AxisRank, Expected: rank, Actual: len(shape), Shape: shape.Clone()}
	}
	return nil
}

// checkAxis returns a *ShapeError unless shape[dim] == want.
func checkAxis(op string, shape tensor.Shape, dim int, axis string, want int) error {
	if shape[dim] != want {
		return &ShapeError{Op: op, Axis: axis, Expected: want, Actual: shape[dim], Shape: shape.Clone()}
	}
	return nil
}
