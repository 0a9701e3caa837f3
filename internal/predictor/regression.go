package predictor

import (
	"fmt"
	"log"
	"math"
	"sort"

	"tariff-migration/internal/config"
	"tariff-migration/internal/evaluator"
	"tariff-migration/internal/metrics"
	"tariff-migration/internal/model"
	"tariff-migration/internal/regression"
)

// overPopulationTolerance is how far a renormalized total may exceed the
// population before it is reported.
const overPopulationTolerance = 1e-6

// RegressionBased predicts the candidate's subscriber count from the
// customer's current evaluation -> subscribers curve.
type RegressionBased struct {
	// regressor is nil when regression is disabled; interpolation is used then.
	regressor *regression.Regressor
}

func NewRegressionBased(regressor *regression.Regressor) *RegressionBased {
	return &RegressionBased{regressor: regressor}
}

func (p *RegressionBased) Name() string { return config.PredictorRegression }

func (p *RegressionBased) TryPredict(in Input) (model.CustomerSubscriptions, error) {
	if in.Candidate == nil {
		return nil, ErrNoCandidate
	}
	row := in.row()
	defaultCost, ok := row[in.Default.ID]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", in.Customer.ID, evaluator.ErrNoDefaultCost)
	}
	candidateCost, ok := row[in.Candidate.ID]
	if !ok {
		return nil, fmt.Errorf("customer %s: no evaluation for candidate %d", in.Customer.ID, in.Candidate.ID)
	}
	production := in.Customer.PowerType.IsProduction()

	points := trainingPoints(in, defaultCost, production)
	if len(points) == 0 {
		return nil, fmt.Errorf("customer %s: %w", in.Customer.ID, ErrNoData)
	}
	x := evaluator.NormalizedDifference(candidateCost, defaultCost, production)
	predicted := p.predict(in, points, x)

	out := in.Current.Clone()
	out[in.Candidate.ID] = predicted
	Renormalize(out, float64(in.Customer.Population), string(in.Customer.ID))
	return out, nil
}

func (p *RegressionBased) predict(in Input, points []regression.Point, x float64) float64 {
	if p.regressor != nil && regression.DistinctX(points) >= regression.MinPoints {
		v, err := p.regressor.Predict(string(in.Customer.ID), in.Timeslot, points, x)
		if err == nil {
			return v
		}
		log.Printf("RegressionPredictor: %v, falling back to interpolation", err)
		metrics.RegressionFallback(p.regressor.Engine())
	}
	return Interpolate(points, x)
}

// trainingPoints pairs each subscribed tariff's normalized evaluation with
// its subscriber count. Zero counts may be stale and are dropped; equal
// evaluations are merged.
func trainingPoints(in Input, defaultCost float64, production bool) []regression.Point {
	row := in.row()
	byX := map[float64]float64{}
	for tid, n := range in.Current {
		if n <= 0 || tid == in.Candidate.ID {
			continue
		}
		cost, ok := row[tid]
		if !ok {
			continue
		}
		byX[evaluator.NormalizedDifference(cost, defaultCost, production)] += n
	}
	points := make([]regression.Point, 0, len(byX))
	for x, y := range byX {
		points = append(points, regression.Point{X: x, Y: y})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].X < points[j].X })
	return points
}

// Interpolate reads the count at x off points sorted by X. Beyond either end
// it takes the nearest point's count, one higher above the range and one
// lower below it. Between points it interpolates linearly. The result is
// truncated toward zero and never negative.
func Interpolate(points []regression.Point, x float64) float64 {
	if len(points) == 0 {
		return 0
	}
	first, last := points[0], points[len(points)-1]
	var v float64
	switch {
	case x > last.X:
		v = last.Y + 1
	case x < first.X:
		v = first.Y - 1
	default:
		i := sort.Search(len(points), func(i int) bool { return points[i].X >= x })
		hi := points[i]
		if hi.X == x || i == 0 {
			v = hi.Y
			break
		}
		lo := points[i-1]
		v = lo.Y + (hi.Y-lo.Y)*(x-lo.X)/(hi.X-lo.X)
	}
	return math.Max(0, math.Trunc(v))
}

// Renormalize scales every entry so the total equals population. Entries
// are processed largest first to keep accumulated rounding small.
func Renormalize(subs model.CustomerSubscriptions, population float64, customer string) {
	total := subs.Total()
	if total <= 0 {
		return
	}
	k := population / total
	sum := 0.0
	for _, tid := range subs.SortedByCountDesc() {
		subs[tid] *= k
		sum += subs[tid]
	}
	if sum > population+overPopulationTolerance {
		metrics.ConsistencyViolation()
		log.Printf("RegressionPredictor: customer %s predicted %.9f subscribers for population %.0f", customer, sum, population)
	}
}
