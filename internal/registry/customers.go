package registry

import (
	"fmt"
	"sort"
	"sync"

	"tariff-migration/internal/model"
)

// Customers is an in-memory CustomerDirectory.
type Customers struct {
	mu   sync.RWMutex
	byID map[model.CustomerID]model.CustomerClass
}

func NewCustomers(classes ...model.CustomerClass) (*Customers, error) {
	d := &Customers{byID: make(map[model.CustomerID]model.CustomerClass, len(classes))}
	for _, c := range classes {
		if err := d.Add(c); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Customers) Add(c model.CustomerClass) error {
	if err := c.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byID[c.ID]; exists {
		return fmt.Errorf("customer %q already registered", c.ID)
	}
	d.byID[c.ID] = c
	return nil
}

func (d *Customers) Customer(id model.CustomerID) (model.CustomerClass, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.byID[id]
	return c, ok
}

// Customers returns all classes sorted by id so iteration order is stable.
func (d *Customers) Customers() []model.CustomerClass {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.CustomerClass, 0, len(d.byID))
	for _, c := range d.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
