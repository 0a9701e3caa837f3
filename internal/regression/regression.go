// Package regression fits subscriber-count curves over tariff evaluations.
//
// Two engines are provided: locally weighted linear regression and polynomial
// ridge regression. Both choose their hyperparameter by leave-one-out
// cross-validation and produce an immutable Model tied to one timeslot.
package regression

import (
	"errors"
	"math"
	"sort"
)

var (
	// ErrSingular reports a (near) singular normal-equation matrix.
	ErrSingular = errors.New("regression: singular normal equations")
	// ErrNoPrediction reports that no hyperparameter produced a usable model.
	ErrNoPrediction = errors.New("regression: no prediction available")
	// ErrTooFewPoints reports fewer training points than the engine needs.
	ErrTooFewPoints = errors.New("regression: too few training points")
)

// MinPoints is the number of distinct evaluations needed before a regression is attempted.
const MinPoints = 3

// singularQuality is the reciprocal condition number at or below which a
// matrix is treated as singular.
const singularQuality = 1e-8

// Point is one training sample: evaluation -> subscriber count.
type Point struct {
	X float64
	Y float64
}

// Model is a fitted regression snapshot.
type Model interface {
	Predict(x float64) (float64, error)
	Hyperparameter() float64
	Timeslot() int
	Points() []Point
}

// Engine fits a Model to training points.
type Engine interface {
	Name() string
	Fit(points []Point, timeslot int) (Model, error)
}

// DistinctX counts distinct X values.
func DistinctX(points []Point) int {
	seen := make(map[float64]struct{}, len(points))
	for _, p := range points {
		seen[p.X] = struct{}{}
	}
	return len(seen)
}

func sortedCopy(points []Point) []Point {
	out := append([]Point(nil), points...)
	sort.Slice(out, func(i, j int) bool { return out[i].X < out[j].X })
	return out
}

func samePoints(a, b []Point) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func without(points []Point, i int) []Point {
	out := make([]Point, 0, len(points)-1)
	out = append(out, points[:i]...)
	return append(out, points[i+1:]...)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
