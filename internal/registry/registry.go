// Package registry holds the tariffs and customers the engine reasons about.
// Persistence lives with the host agent; this is the in-process view.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"tariff-migration/internal/model"
)

// TariffRepository is the registry contract the engine consumes.
type TariffRepository interface {
	// FindActiveTariffs returns up to depth active tariffs usable by powerType,
	// most recently added first. depth <= 0 means no limit.
	FindActiveTariffs(depth int, powerType model.PowerType) []*model.Tariff
	FindTariffByID(id model.TariffID) (*model.Tariff, bool)
	// DefaultTariff returns the fallback tariff for powerType.
	DefaultTariff(powerType model.PowerType) (*model.Tariff, bool)
	AddSpecification(t *model.Tariff) error
	RemoveTemporary(t *model.Tariff)
}

// CustomerDirectory lists the customer classes of the market.
type CustomerDirectory interface {
	Customers() []model.CustomerClass
	Customer(id model.CustomerID) (model.CustomerClass, bool)
}

var ErrDuplicateTariff = errors.New("tariff already registered")

// Tariffs is an in-memory TariffRepository safe for concurrent use.
type Tariffs struct {
	mu    sync.RWMutex
	byID  map[model.TariffID]*model.Tariff
	order []model.TariffID
}

func NewTariffs() *Tariffs {
	return &Tariffs{byID: map[model.TariffID]*model.Tariff{}}
}

func (r *Tariffs) AddSpecification(t *model.Tariff) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[t.ID]; exists {
		return fmt.Errorf("tariff %d: %w", t.ID, ErrDuplicateTariff)
	}
	if t.State == "" {
		t.State = model.TariffActive
	}
	r.byID[t.ID] = t
	r.order = append(r.order, t.ID)
	return nil
}

func (r *Tariffs) RemoveTemporary(t *model.Tariff) {
	if t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[t.ID]; !exists {
		return
	}
	delete(r.byID, t.ID)
	for i, id := range r.order {
		if id == t.ID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Tariffs) FindTariffByID(id model.TariffID) (*model.Tariff, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	return t, ok
}

func (r *Tariffs) FindActiveTariffs(depth int, powerType model.PowerType) []*model.Tariff {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Tariff
	for i := len(r.order) - 1; i >= 0; i-- {
		t := r.byID[r.order[i]]
		if t.IsRevoked() || !powerType.CanUse(t.PowerType) {
			continue
		}
		out = append(out, t)
		if depth > 0 && len(out) >= depth {
			break
		}
	}
	return out
}

func (r *Tariffs) DefaultTariff(powerType model.PowerType) (*model.Tariff, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var fallback *model.Tariff
	for _, id := range r.order {
		t := r.byID[id]
		if !t.IsDefault || !powerType.CanUse(t.PowerType) {
			continue
		}
		if t.PowerType == powerType {
			return t, true
		}
		if fallback == nil {
			fallback = t
		}
	}
	return fallback, fallback != nil
}

// Len reports the number of registered tariffs.
func (r *Tariffs) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// AddTemporary registers t and returns a release func that removes it again.
// If a tariff with the same id is already registered nothing is added and
// release is a no-op, so the caller never removes a tariff it does not own.
// release is safe to call more than once.
func AddTemporary(repo TariffRepository, t *model.Tariff) (release func(), err error) {
	if t == nil {
		return func() {}, nil
	}
	if _, exists := repo.FindTariffByID(t.ID); exists {
		return func() {}, nil
	}
	if err := repo.AddSpecification(t); err != nil {
		return func() {}, err
	}
	var once sync.Once
	return func() {
		once.Do(func() { repo.RemoveTemporary(t) })
	}, nil
}
