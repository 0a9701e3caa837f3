package model

import "sort"

// EvaluationMap holds per-week cost estimates: customer -> tariff -> cost.
// Negative values mean the customer pays.
type EvaluationMap map[CustomerID]map[TariffID]float64

// Get returns the evaluation for a customer/tariff pair.
func (m EvaluationMap) Get(c CustomerID, t TariffID) (float64, bool) {
	row, ok := m[c]
	if !ok {
		return 0, false
	}
	v, ok := row[t]
	return v, ok
}

// Set writes one evaluation, creating the customer row if needed.
func (m EvaluationMap) Set(c CustomerID, t TariffID, v float64) {
	row, ok := m[c]
	if !ok {
		row = map[TariffID]float64{}
		m[c] = row
	}
	row[t] = v
}

// Subscriptions is the observed tariff -> customer -> subscriber count.
type Subscriptions map[TariffID]map[CustomerID]int

// Predicted is the expected tariff -> customer -> subscriber count.
type Predicted map[TariffID]map[CustomerID]float64

// CustomerSubscriptions is one customer's view: tariff -> (expected) count.
type CustomerSubscriptions map[TariffID]float64

// Total sums all counts.
func (s CustomerSubscriptions) Total() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v
	}
	return sum
}

// Clone returns a shallow copy.
func (s CustomerSubscriptions) Clone() CustomerSubscriptions {
	out := make(CustomerSubscriptions, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// SortedByCountDesc returns tariff ids ordered by descending count, ties by id.
func (s CustomerSubscriptions) SortedByCountDesc() []TariffID {
	ids := make([]TariffID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if s[ids[i]] != s[ids[j]] {
			return s[ids[i]] > s[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// ByCustomer inverts tariff -> customer into customer -> tariff.
func (s Subscriptions) ByCustomer() map[CustomerID]CustomerSubscriptions {
	out := map[CustomerID]CustomerSubscriptions{}
	for tid, row := range s {
		for cid, n := range row {
			cs, ok := out[cid]
			if !ok {
				cs = CustomerSubscriptions{}
				out[cid] = cs
			}
			cs[tid] += float64(n)
		}
	}
	return out
}

// SubscribedTo sums a customer's subscriptions over all listed tariffs.
func (s Subscriptions) SubscribedTo(c CustomerID) int {
	n := 0
	for _, row := range s {
		n += row[c]
	}
	return n
}

// ToPredicted converts observed counts to expectations.
func (s Subscriptions) ToPredicted() Predicted {
	out := Predicted{}
	for tid, row := range s {
		pr := make(map[CustomerID]float64, len(row))
		for cid, n := range row {
			pr[cid] = float64(n)
		}
		out[tid] = pr
	}
	return out
}

// Add accumulates one customer's map into the tariff-keyed form.
func (p Predicted) Add(c CustomerID, cs CustomerSubscriptions) {
	for tid, v := range cs {
		row, ok := p[tid]
		if !ok {
			row = map[CustomerID]float64{}
			p[tid] = row
		}
		row[c] += v
	}
}

// CustomerTotal sums a customer's expected subscriptions over all tariffs.
func (p Predicted) CustomerTotal(c CustomerID) float64 {
	sum := 0.0
	for _, row := range p {
		sum += row[c]
	}
	return sum
}
