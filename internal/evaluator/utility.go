package evaluator

import (
	"math"

	"tariff-migration/internal/config"
	"tariff-migration/internal/model"
)

// NormalizedDifference is the relative advantage of cost over the default
// tariff's cost. Positive means better than default. Producers earn money, so
// the sign flips for them. A zero default cost carries no migration signal.
func NormalizedDifference(cost, defaultCost float64, production bool) float64 {
	if defaultCost == 0 {
		return 0
	}
	d := (defaultCost - cost) / defaultCost
	if production {
		return -d
	}
	return d
}

// ConstrainUtility bounds u to [-ceiling, 2*ceiling], compressing values
// above the ceiling logarithmically so one dominant alternative cannot blow
// up the logit.
func ConstrainUtility(u, ceiling float64) float64 {
	switch {
	case u > ceiling:
		r := ceiling + math.Log10(u-ceiling)
		if r < ceiling {
			r = ceiling
		}
		return math.Min(r, 2*ceiling)
	case u < -ceiling:
		return -ceiling
	default:
		return u
	}
}

// Lambda is the logit sharpness for a rationality in [0, 1].
func Lambda(cfg config.EvaluatorConfig) float64 {
	return math.Pow(cfg.RationalityExponentBase, cfg.Rationality) - 1
}

// TariffUtility is one alternative's score and resulting choice probability.
type TariffUtility struct {
	TariffID    model.TariffID
	Utility     float64
	Probability float64
}

// rationalChoice spreads probability evenly over every alternative tied for
// the maximum utility. It reports false when every utility is NaN.
func rationalChoice(utils []TariffUtility) bool {
	best := math.Inf(-1)
	for _, u := range utils {
		if !math.IsNaN(u.Utility) && u.Utility > best {
			best = u.Utility
		}
	}
	k := 0
	for _, u := range utils {
		if u.Utility == best {
			k++
		}
	}
	for i := range utils {
		utils[i].Probability = 0
		if k > 0 && utils[i].Utility == best {
			utils[i].Probability = 1 / float64(k)
		}
	}
	return k > 0
}

// logitChoice sets P(t) = exp(λU(t)) / Σ exp(λU(t')). Alternatives whose
// term is not a number get probability 0. It reports false when no
// alternative received any probability mass.
func logitChoice(utils []TariffUtility, lambda float64, onNaN func(TariffUtility)) bool {
	// Shift by the max utility; the ratio is unchanged and exp cannot overflow.
	shift := math.Inf(-1)
	for _, u := range utils {
		if !math.IsNaN(u.Utility) && u.Utility > shift {
			shift = u.Utility
		}
	}
	sum := 0.0
	terms := make([]float64, len(utils))
	for i, u := range utils {
		v := math.Exp(lambda * (u.Utility - shift))
		if math.IsNaN(v) {
			onNaN(u)
			v = 0
		}
		terms[i] = v
		sum += v
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return false
	}
	for i := range utils {
		utils[i].Probability = terms[i] / sum
	}
	return true
}
