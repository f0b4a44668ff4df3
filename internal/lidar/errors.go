package lidar

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when a point cloud contains no points.
	ErrEmptyInput = errors.New("point cloud contains no points")

	// ErrNonFiniteElevation is returned when a point has a NaN or infinite
	// Z value, which leaves the height normalization undefined.
	ErrNonFiniteElevation = errors.New("point cloud contains a non-finite elevation")

	// ErrInsufficientData is returned when no points fall inside the
	// configured height band.
	ErrInsufficientData = errors.New("no points found in target height range")

	// ErrFitConvergence is returned when the circle fit cannot produce a
	// usable circle: too few or collinear points, a solver that does not
	// converge, or a non-finite or non-positive radius.
	ErrFitConvergence = errors.New("circle fit did not converge")
)

// FitError describes why a circle fit was rejected. It unwraps to
// ErrFitConvergence.
type FitError struct {
	Reason     string
	Iterations int
	Cost       float64
}

func (e *FitError) Error() string {
	if e.Iterations == 0 {
		return fmt.Sprintf("%v: %s", ErrFitConvergence, e.Reason)
	}
	return fmt.Sprintf("%v: %s (after %d iterations, cost %.3g)", ErrFitConvergence, e.Reason, e.Iterations, e.Cost)
}

func (e *FitError) Unwrap() error { return ErrFitConvergence }
