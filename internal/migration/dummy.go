package migration

import (
	"fmt"
	"sort"

	"tariff-migration/internal/config"
	"tariff-migration/internal/model"
)

// DummyPolicy picks the competing tariff that absorbs a customer's
// unobserved subscribers. ok is false when no competitor qualifies.
type DummyPolicy func(customer model.CustomerClass, competitors []*model.Tariff, row map[model.TariffID]float64) (t *model.Tariff, ok bool)

// PolicyFor resolves a configured policy name.
func PolicyFor(name string) (DummyPolicy, error) {
	switch name {
	case config.DummyBest:
		return BestCompetitor, nil
	case config.DummyWorst:
		return WorstCompetitor, nil
	case config.DummyMedian:
		return MedianCompetitor, nil
	default:
		return nil, fmt.Errorf("unknown dummy policy %q", name)
	}
}

// BestCompetitor picks the highest-evaluated usable competitor.
func BestCompetitor(customer model.CustomerClass, competitors []*model.Tariff, row map[model.TariffID]float64) (*model.Tariff, bool) {
	ranked := rankCompetitors(customer, competitors, row)
	if len(ranked) == 0 {
		return nil, false
	}
	return ranked[len(ranked)-1], true
}

// WorstCompetitor picks the lowest-evaluated usable competitor.
func WorstCompetitor(customer model.CustomerClass, competitors []*model.Tariff, row map[model.TariffID]float64) (*model.Tariff, bool) {
	ranked := rankCompetitors(customer, competitors, row)
	if len(ranked) == 0 {
		return nil, false
	}
	return ranked[0], true
}

// MedianCompetitor picks the upper median of the usable competitors.
func MedianCompetitor(customer model.CustomerClass, competitors []*model.Tariff, row map[model.TariffID]float64) (*model.Tariff, bool) {
	ranked := rankCompetitors(customer, competitors, row)
	if len(ranked) == 0 {
		return nil, false
	}
	return ranked[len(ranked)/2], true
}

// rankCompetitors orders usable, evaluated competitors by ascending
// evaluation, ties by id.
func rankCompetitors(customer model.CustomerClass, competitors []*model.Tariff, row map[model.TariffID]float64) []*model.Tariff {
	out := make([]*model.Tariff, 0, len(competitors))
	for _, t := range competitors {
		if t == nil || !customer.PowerType.CanUse(t.PowerType) {
			continue
		}
		if _, ok := row[t.ID]; !ok {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := row[out[i].ID], row[out[j].ID]
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}
