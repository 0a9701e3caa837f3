package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// RidgeDegree is the highest power of the evaluation used as a feature.
const RidgeDegree = 8

// Ridge is polynomial ridge regression on powers 1..RidgeDegree of the evaluation.
type Ridge struct {
	Lambdas []float64
}

func NewRidge(lambdas []float64) *Ridge {
	return &Ridge{Lambdas: lambdas}
}

func (e *Ridge) Name() string { return "ridge" }

// standardization holds per-column mean and spread of the training features.
type standardization struct {
	Mean  []float64
	Scale []float64
}

// RidgeModel is a fitted polynomial ridge model.
type RidgeModel struct {
	features     *mat.Dense
	targets      *mat.VecDense
	coefficients *mat.VecDense
	std          standardization
	yMean        float64
	lambda       float64
	cvError      float64
	timeslot     int
	points       []Point
}

func (m *RidgeModel) Hyperparameter() float64 { return m.lambda }
func (m *RidgeModel) CVError() float64 { return m.cvError }
func (m *RidgeModel) Timeslot() int { return m.timeslot }
func (m *RidgeModel) Points() []Point { return m.points }

// Predict returns the fitted count at x, floored at 0 and rounded.
func (m *RidgeModel) Predict(x float64) (float64, error) {
	v := m.raw(x)
	if !finite(v) {
		return 0, ErrSingular
	}
	return math.Max(0, math.Round(v)), nil
}

func (m *RidgeModel) raw(x float64) float64 {
	z := m.std.row(powers(x))
	return m.yMean + mat.Dot(m.coefficients, mat.NewVecDense(len(z), z))
}

func (e *Ridge) Fit(points []Point, timeslot int) (Model, error) {
	if DistinctX(points) < MinPoints {
		return nil, ErrTooFewPoints
	}
	points = sortedCopy(points)

	best := math.Inf(1)
	bestLambda := -1.0
	for _, lambda := range e.Lambdas {
		mse, err := e.crossValidate(points, lambda)
		if err != nil {
			continue
		}
		if mse < best {
			best = mse
			bestLambda = lambda
		}
	}
	if bestLambda < 0 {
		return nil, ErrNoPrediction
	}
	m, err := fitRidge(points, bestLambda)
	if err != nil {
		return nil, err
	}
	m.cvError = best
	m.timeslot = timeslot
	return m, nil
}

func (e *Ridge) crossValidate(points []Point, lambda float64) (float64, error) {
	sum := 0.0
	for i := range points {
		m, err := fitRidge(without(points, i), lambda)
		if err != nil {
			return 0, fmt.Errorf("lambda %g fold %d: %w", lambda, i, err)
		}
		d := m.raw(points[i].X) - points[i].Y
		if !finite(d) {
			return 0, ErrSingular
		}
		sum += d * d
	}
	return sum / float64(len(points)), nil
}

func fitRidge(points []Point, lambda float64) (*RidgeModel, error) {
	n := len(points)
	raw := make([][]float64, n)
	ys := make([]float64, n)
	for i, p := range points {
		raw[i] = powers(p.X)
		ys[i] = p.Y
	}
	std := standardize(raw)

	z := mat.NewDense(n, RidgeDegree, nil)
	for i := range raw {
		z.SetRow(i, std.row(raw[i]))
	}
	yMean := stat.Mean(ys, nil)
	yc := mat.NewVecDense(n, nil)
	for i, y := range ys {
		yc.SetVec(i, y-yMean)
	}

	// (ZᵀZ + λI) β = Zᵀ(y - ȳ)
	var ztz mat.Dense
	ztz.Mul(z.T(), z)
	sym := mat.NewSymDense(RidgeDegree, nil)
	for i := 0; i < RidgeDegree; i++ {
		for j := 0; j <= i; j++ {
			v := ztz.At(i, j)
			if i == j {
				v += lambda
			}
			sym.SetSym(i, j, v)
		}
	}
	var zty mat.VecDense
	zty.MulVec(z.T(), yc)

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, ErrSingular
	}
	if cond := chol.Cond(); !finite(cond) || 1/cond <= singularQuality {
		return nil, ErrSingular
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &zty); err != nil {
		return nil, ErrSingular
	}
	return &RidgeModel{
		features:     z,
		targets:      mat.NewVecDense(n, ys),
		coefficients: &beta,
		std:          std,
		yMean:        yMean,
		lambda:       lambda,
		points:       points,
	}, nil
}

func powers(x float64) []float64 {
	out := make([]float64, RidgeDegree)
	v := 1.0
	for i := range out {
		v *= x
		out[i] = v
	}
	return out
}

func standardize(rows [][]float64) standardization {
	s := standardization{
		Mean:  make([]float64, RidgeDegree),
		Scale: make([]float64, RidgeDegree),
	}
	col := make([]float64, len(rows))
	for j := 0; j < RidgeDegree; j++ {
		for i := range rows {
			col[i] = rows[i][j]
		}
		mean, sd := stat.MeanStdDev(col, nil)
		if !finite(sd) || sd < 1e-12 {
			sd = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = sd
	}
	return s
}

func (s standardization) row(raw []float64) []float64 {
	out := make([]float64, len(raw))
	for j, v := range raw {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out
}
