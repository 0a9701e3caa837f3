package regression

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ModelCache keeps fitted models per customer for the current timeslot.
// Advancing the timeslot drops every entry: models are not assumed to be
// stationary across publication cycles.
type ModelCache struct {
	mu       sync.Mutex
	models   *lru.Cache[string, Model]
	timeslot int
	hits     uint64
	misses   uint64
}

func NewModelCache(size int) (*ModelCache, error) {
	c, err := lru.New[string, Model](size)
	if err != nil {
		return nil, fmt.Errorf("model cache: %w", err)
	}
	return &ModelCache{models: c, timeslot: -1}, nil
}

// Get returns the cached model for key when it was fitted in timeslot on the same points.
func (c *ModelCache) Get(key string, timeslot int, points []Point) (Model, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance(timeslot)
	m, ok := c.models.Get(key)
	if !ok || m.Timeslot() != timeslot || !samePoints(m.Points(), sortedCopy(points)) {
		c.misses++
		return nil, false
	}
	c.hits++
	return m, true
}

func (c *ModelCache) Put(key string, m Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance(m.Timeslot())
	c.models.Add(key, m)
}

// advance purges when the timeslot moves. Caller holds mu.
func (c *ModelCache) advance(timeslot int) {
	if timeslot == c.timeslot {
		return
	}
	c.models.Purge()
	c.timeslot = timeslot
}

// Stats returns hit and miss counts.
func (c *ModelCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len counts the models cached for the current timeslot.
func (c *ModelCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.models.Len()
}

// Regressor pairs an engine with a model cache.
type Regressor struct {
	engine Engine
	cache  *ModelCache
}

func NewRegressor(engine Engine, cache *ModelCache) *Regressor {
	return &Regressor{engine: engine, cache: cache}
}

func (r *Regressor) Engine() string { return r.engine.Name() }

// Predict fits (or reuses) the model for key and evaluates it at x.
func (r *Regressor) Predict(key string, timeslot int, points []Point, x float64) (float64, error) {
	m, ok := r.cache.Get(key, timeslot, points)
	if !ok {
		fitted, err := r.engine.Fit(points, timeslot)
		if err != nil {
			return 0, fmt.Errorf("%s fit for %s: %w", r.engine.Name(), key, err)
		}
		r.cache.Put(key, fitted)
		m = fitted
	}
	v, err := m.Predict(x)
	if err != nil {
		return 0, fmt.Errorf("%s predict for %s: %w", r.engine.Name(), key, err)
	}
	return v, nil
}
