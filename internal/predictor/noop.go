package predictor

import "tariff-migration/internal/model"

// Noop predicts no migration at all. It never fails.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) TryPredict(in Input) (model.CustomerSubscriptions, error) {
	out := model.CustomerSubscriptions{}
	for tid, n := range in.Current {
		if in.isCompetitor(tid) {
			continue
		}
		out[tid] = n
	}
	return out, nil
}
