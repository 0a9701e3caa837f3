package regression

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearPoints() []Point {
	return []Point{{X: 1, Y: 2}, {X: 2, Y: 4}, {X: 3, Y: 6}}
}

func TestLWRCrossValidation(t *testing.T) {
	t.Run("colinear points give zero error at tau 0.1", func(t *testing.T) {
		e := NewLWR([]float64{0.1}, true)
		pts := sortedCopy(linearPoints())
		mse, err := e.crossValidate(pts, minMax{Min: 1, Max: 3}, 0.1)
		require.NoError(t, err)
		assert.InDelta(t, 0, mse, 1e-9)
	})

	t.Run("colinear points give zero error for every candidate bandwidth", func(t *testing.T) {
		e := NewLWR(nil, true)
		pts := sortedCopy(linearPoints())
		for _, tau := range []float64{0.05, 0.25, 0.5, 1.0} {
			mse, err := e.crossValidate(pts, minMax{Min: 1, Max: 3}, tau)
			require.NoError(t, err, "tau=%v", tau)
			assert.InDelta(t, 0, mse, 1e-9, "tau=%v", tau)
		}
	})
}

func TestLWRFit(t *testing.T) {
	t.Run("predicts on the line", func(t *testing.T) {
		m, err := NewLWR([]float64{0.05, 0.1, 0.5}, true).Fit(linearPoints(), 7)
		require.NoError(t, err)
		assert.Equal(t, 7, m.Timeslot())
		assert.Contains(t, []float64{0.05, 0.1, 0.5}, m.Hyperparameter())

		v, err := m.Predict(2.5)
		require.NoError(t, err)
		assert.InDelta(t, 5.0, v, 1e-6)
	})

	t.Run("prediction is floored at zero", func(t *testing.T) {
		pts := []Point{{X: 1, Y: 6}, {X: 2, Y: 4}, {X: 3, Y: 2}}
		m, err := NewLWR([]float64{0.5}, true).Fit(pts, 1)
		require.NoError(t, err)
		v, err := m.Predict(10)
		require.NoError(t, err)
		assert.Equal(t, 0.0, v)
	})

	t.Run("too few distinct points", func(t *testing.T) {
		pts := []Point{{X: 1, Y: 1}, {X: 1, Y: 2}, {X: 2, Y: 3}}
		_, err := NewLWR(testBandwidths(), true).Fit(pts, 1)
		assert.ErrorIs(t, err, ErrTooFewPoints)
	})

	t.Run("no bandwidths means no prediction", func(t *testing.T) {
		_, err := NewLWR(nil, true).Fit(linearPoints(), 1)
		assert.ErrorIs(t, err, ErrNoPrediction)
	})
}

func TestLWRSolveSingular(t *testing.T) {
	m := &LWRModel{scale: minMax{Min: 0, Max: 1}, intercept: true}
	// Two identical rows cannot determine slope and intercept.
	x, y := m.design([]Point{{X: 0.5, Y: 1}, {X: 0.5, Y: 2}})
	_, err := lwrSolve(x, y, []float64{1, 0.5}, 0.1)
	assert.ErrorIs(t, err, ErrSingular)
}

func TestRidgeFit(t *testing.T) {
	t.Run("fits a quadratic", func(t *testing.T) {
		var pts []Point
		for x := -3.0; x <= 3; x++ {
			pts = append(pts, Point{X: x, Y: x * x})
		}
		m, err := NewRidge(testLambdas()).Fit(pts, 3)
		require.NoError(t, err)
		v, err := m.Predict(2)
		require.NoError(t, err)
		assert.InDelta(t, 4.0, v, 1.0)
		assert.Equal(t, math.Round(v), v, "ridge predictions are rounded")
	})

	t.Run("prediction is non-negative", func(t *testing.T) {
		pts := []Point{{X: 0, Y: 10}, {X: 1, Y: 5}, {X: 2, Y: 1}, {X: 3, Y: 0}}
		m, err := NewRidge(testLambdas()).Fit(pts, 3)
		require.NoError(t, err)
		for _, x := range []float64{-5, 0.5, 4, 10} {
			v, err := m.Predict(x)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, v, 0.0)
		}
	})

	t.Run("too few distinct points", func(t *testing.T) {
		_, err := NewRidge(testLambdas()).Fit([]Point{{X: 1, Y: 1}, {X: 2, Y: 2}}, 1)
		assert.ErrorIs(t, err, ErrTooFewPoints)
	})
}

func TestModelCache(t *testing.T) {
	cache, err := NewModelCache(4)
	require.NoError(t, err)

	m, err := NewLWR([]float64{0.5}, true).Fit(linearPoints(), 10)
	require.NoError(t, err)
	cache.Put("alice", m)

	got, ok := cache.Get("alice", 10, linearPoints())
	require.True(t, ok)
	assert.Same(t, m, got)

	_, ok = cache.Get("alice", 10, []Point{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 4}})
	assert.False(t, ok, "different training data must miss")

	_, ok = cache.Get("alice", 11, linearPoints())
	assert.False(t, ok, "new timeslot must miss")
	assert.Equal(t, 0, cache.Len(), "new timeslot purges the cache")

	hits, misses := cache.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(2), misses)
}

func TestModelCacheLenDuringPurge(t *testing.T) {
	cache, err := NewModelCache(4)
	require.NoError(t, err)

	const slots = 50
	models := make([]Model, slots)
	for i := range models {
		m, err := NewLWR([]float64{0.5}, true).Fit(linearPoints(), i)
		require.NoError(t, err)
		models[i] = m
	}
	cache.Put("alice", models[0])

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, m := range models[1:] {
			cache.Put("alice", m)
		}
	}()
	for i := 0; i < slots; i++ {
		assert.Equal(t, 1, cache.Len(), "a purge and its refill are never observed apart")
	}
	wg.Wait()
	assert.Equal(t, 1, cache.Len())
}

type countingEngine struct {
	Engine
	fits int
}

func (e *countingEngine) Fit(points []Point, timeslot int) (Model, error) {
	e.fits++
	return e.Engine.Fit(points, timeslot)
}

func TestRegressorReusesModelWithinTimeslot(t *testing.T) {
	cache, err := NewModelCache(4)
	require.NoError(t, err)
	eng := &countingEngine{Engine: NewLWR([]float64{0.1, 0.5}, true)}
	r := NewRegressor(eng, cache)

	for i := 0; i < 3; i++ {
		v, err := r.Predict("bob", 5, linearPoints(), 1.5)
		require.NoError(t, err)
		assert.InDelta(t, 3.0, v, 1e-6)
	}
	assert.Equal(t, 1, eng.fits)

	_, err = r.Predict("bob", 6, linearPoints(), 1.5)
	require.NoError(t, err)
	assert.Equal(t, 2, eng.fits)
}

func testBandwidths() []float64 { return []float64{0.05, 0.1, 0.5, 1.0} }

func testLambdas() []float64 { return []float64{1e-5, 1e-3, 1e-1, 1, 10, 100} }
