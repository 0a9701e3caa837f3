package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	lwrLow  = 0.1
	lwrHigh = 0.9
)

// LWR is locally weighted linear regression over a single scalar feature.
type LWR struct {
	Bandwidths []float64
	Intercept  bool
}

func NewLWR(bandwidths []float64, intercept bool) *LWR {
	return &LWR{Bandwidths: bandwidths, Intercept: intercept}
}

func (e *LWR) Name() string { return "lwr" }

// minMax maps raw evaluations into [lwrLow, lwrHigh].
type minMax struct {
	Min float64
	Max float64
}

func (m minMax) apply(x float64) float64 {
	if m.Max == m.Min {
		return (lwrLow + lwrHigh) / 2
	}
	return lwrLow + (lwrHigh-lwrLow)*(x-m.Min)/(m.Max-m.Min)
}

// LWRModel keeps the normalized training set; coefficients are solved per query.
type LWRModel struct {
	features  *mat.Dense
	targets   *mat.VecDense
	scale     minMax
	tau       float64
	cvError   float64
	timeslot  int
	points    []Point
	intercept bool
}

func (m *LWRModel) Hyperparameter() float64 { return m.tau }
func (m *LWRModel) CVError() float64 { return m.cvError }
func (m *LWRModel) Timeslot() int { return m.timeslot }
func (m *LWRModel) Points() []Point { return m.points }

// Predict returns the local fit at x, floored at 0.
func (m *LWRModel) Predict(x float64) (float64, error) {
	v, err := lwrSolve(m.features, m.targets, m.row(m.scale.apply(x)), m.tau)
	if err != nil {
		return 0, err
	}
	return math.Max(0, v), nil
}

func (m *LWRModel) row(xn float64) []float64 {
	if m.intercept {
		return []float64{1, xn}
	}
	return []float64{xn}
}

func (e *LWR) Fit(points []Point, timeslot int) (Model, error) {
	if DistinctX(points) < MinPoints {
		return nil, ErrTooFewPoints
	}
	points = sortedCopy(points)
	scale := minMax{Min: points[0].X, Max: points[len(points)-1].X}
	base := &LWRModel{
		scale:     scale,
		timeslot:  timeslot,
		points:    points,
		intercept: e.Intercept,
	}
	base.features, base.targets = base.design(points)

	best := math.Inf(1)
	bestTau := 0.0
	for _, tau := range e.Bandwidths {
		mse, err := e.crossValidate(points, scale, tau)
		if err != nil {
			// A singular fold rules out this bandwidth only.
			continue
		}
		if mse < best {
			best = mse
			bestTau = tau
		}
	}
	if bestTau == 0 {
		return nil, ErrNoPrediction
	}
	base.tau = bestTau
	base.cvError = best
	return base, nil
}

// crossValidate returns the leave-one-out mean squared error for tau.
func (e *LWR) crossValidate(points []Point, scale minMax, tau float64) (float64, error) {
	held := &LWRModel{scale: scale, intercept: e.Intercept}
	sum := 0.0
	for i := range points {
		x, y := held.design(without(points, i))
		pred, err := lwrSolve(x, y, held.row(scale.apply(points[i].X)), tau)
		if err != nil {
			return 0, fmt.Errorf("tau %.2f fold %d: %w", tau, i, err)
		}
		d := pred - points[i].Y
		sum += d * d
	}
	return sum / float64(len(points)), nil
}

func (m *LWRModel) design(points []Point) (*mat.Dense, *mat.VecDense) {
	cols := 1
	if m.intercept {
		cols = 2
	}
	x := mat.NewDense(len(points), cols, nil)
	y := mat.NewVecDense(len(points), nil)
	for i, p := range points {
		x.SetRow(i, m.row(m.scale.apply(p.X)))
		y.SetVec(i, p.Y)
	}
	return x, y
}

// lwrSolve computes theta = (XᵀWX)⁻¹XᵀWy for the query row q and returns thetaᵀq.
func lwrSolve(x *mat.Dense, y *mat.VecDense, q []float64, tau float64) (float64, error) {
	n, p := x.Dims()
	xq := q[len(q)-1]
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		d := x.At(i, p-1) - xq
		w[i] = math.Exp(-d * d / (2 * tau))
	}
	wm := mat.NewDiagDense(n, w)

	var xtw mat.Dense
	xtw.Mul(x.T(), wm)
	var a mat.Dense
	a.Mul(&xtw, x)
	var b mat.VecDense
	b.MulVec(&xtw, y)

	var lu mat.LU
	lu.Factorize(&a)
	cond := lu.Cond()
	if !finite(cond) || 1/cond <= singularQuality {
		return 0, ErrSingular
	}
	var theta mat.VecDense
	if err := lu.SolveVecTo(&theta, false, &b); err != nil {
		return 0, ErrSingular
	}
	v := mat.Dot(&theta, mat.NewVecDense(len(q), append([]float64(nil), q...)))
	if !finite(v) {
		return 0, ErrSingular
	}
	return v, nil
}
