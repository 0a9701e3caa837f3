// Package evaluator predicts how one customer class redistributes over a set
// of tariffs using a logit choice model.
package evaluator

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"tariff-migration/internal/config"
	"tariff-migration/internal/model"
)

var ErrNoDefaultCost = errors.New("evaluator: no evaluation for the default tariff")

// EvalData is the cost and inconvenience of one tariff for the customer
// being evaluated.
type EvalData struct {
	CostEstimate  float64
	Inconvenience float64
}

// Input is everything needed to redistribute one customer.
type Input struct {
	Customer model.CustomerClass
	// Current is the customer's tariff -> count, including unobserved subscribers.
	Current model.CustomerSubscriptions
	Default *model.Tariff
	// Alternatives are the tariffs the customer may move to besides the
	// default and its current tariffs.
	Alternatives []*model.Tariff
	// Evaluations is the customer's row of the evaluation map (per-week cost).
	Evaluations map[model.TariffID]float64
	// Lookup resolves tariffs referenced by Current or SupersededBy.
	Lookup func(model.TariffID) (*model.Tariff, bool)
}

// Evaluator applies the choice model for a single set of constants.
type Evaluator struct {
	cfg    config.EvaluatorConfig
	lambda float64
}

func New(cfg config.EvaluatorConfig) *Evaluator {
	return &Evaluator{cfg: cfg, lambda: Lambda(cfg)}
}

// ScaleFactor converts a per-profile cost to the standard evaluation horizon.
func (e *Evaluator) ScaleFactor() float64 {
	return e.cfg.StdDurationDays * 24 / e.cfg.ProfileLengthHours * e.cfg.CostCorrection
}

// session is the scratch state of one Evaluate call. It is never shared.
type session struct {
	in          Input
	production  bool
	defaultCost float64
	evalData    map[model.TariffID]EvalData
	tariffs     map[model.TariffID]*model.Tariff
	// order is the stable iteration order of alternatives.
	order     []model.TariffID
	utilities map[model.TariffID][]TariffUtility
}

// Evaluate returns the expected redistribution of the customer's population.
// Tariffs without an evaluation are skipped.
func (e *Evaluator) Evaluate(in Input) (model.CustomerSubscriptions, error) {
	s, err := e.newSession(in)
	if err != nil {
		return nil, err
	}
	current := in.Current.Clone()
	for step := 0; step < e.cfg.RelaxationSteps; step++ {
		current = e.step(s, current)
	}
	return current, nil
}

// Utilities exposes the alternatives scored for each current tariff during
// the last relaxation step of an Evaluate call.
func (e *Evaluator) Utilities(in Input) (map[model.TariffID][]TariffUtility, error) {
	s, err := e.newSession(in)
	if err != nil {
		return nil, err
	}
	e.step(s, in.Current.Clone())
	return s.utilities, nil
}

func (e *Evaluator) newSession(in Input) (*session, error) {
	if in.Default == nil {
		return nil, fmt.Errorf("customer %s: default tariff is nil", in.Customer.ID)
	}
	s := &session{
		in:         in,
		production: in.Customer.PowerType.IsProduction(),
		evalData:   map[model.TariffID]EvalData{},
		tariffs:    map[model.TariffID]*model.Tariff{},
		utilities:  map[model.TariffID][]TariffUtility{},
	}
	raw, ok := in.Evaluations[in.Default.ID]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", in.Customer.ID, ErrNoDefaultCost)
	}
	s.defaultCost = raw*e.ScaleFactor() + e.signupCost(in.Default) + e.withdrawCost(in.Default)

	e.consider(s, in.Default)
	for _, t := range in.Alternatives {
		e.consider(s, t)
	}
	for tid := range in.Current {
		if t, ok := s.resolve(tid); ok {
			e.consider(s, t)
		}
	}
	sort.Slice(s.order, func(i, j int) bool { return s.order[i] < s.order[j] })
	return s, nil
}

// consider computes EvalData for t once; revoked or unevaluated tariffs are skipped.
func (e *Evaluator) consider(s *session, t *model.Tariff) {
	if t == nil || t.IsRevoked() {
		return
	}
	if _, done := s.tariffs[t.ID]; done {
		return
	}
	if !s.in.Customer.PowerType.CanUse(t.PowerType) {
		return
	}
	raw, ok := s.in.Evaluations[t.ID]
	if !ok {
		log.Printf("TariffEvaluator: customer %s has no evaluation for tariff %d, skipping", s.in.Customer.ID, t.ID)
		return
	}
	s.tariffs[t.ID] = t
	s.order = append(s.order, t.ID)
	s.evalData[t.ID] = EvalData{
		CostEstimate:  raw*e.ScaleFactor() + e.signupCost(t) + e.withdrawCost(t),
		Inconvenience: e.inconvenience(t),
	}
}

func (s *session) resolve(id model.TariffID) (*model.Tariff, bool) {
	if t, ok := s.tariffs[id]; ok {
		return t, true
	}
	if s.in.Default != nil && s.in.Default.ID == id {
		return s.in.Default, true
	}
	if s.in.Lookup == nil {
		return nil, false
	}
	return s.in.Lookup(id)
}

// replacement returns the tariff a revoked tariff's subscribers land on.
func (s *session) replacement(t *model.Tariff) *model.Tariff {
	if t.SupersededBy != 0 {
		if next, ok := s.resolve(t.SupersededBy); ok && !next.IsRevoked() {
			if _, evaluated := s.evalData[next.ID]; evaluated {
				return next
			}
		}
	}
	return s.in.Default
}

// step runs one round of the choice model over every current subscriber group.
func (e *Evaluator) step(s *session, current model.CustomerSubscriptions) model.CustomerSubscriptions {
	out := model.CustomerSubscriptions{}
	for _, tid := range current.SortedByCountDesc() {
		n := current[tid]
		if n <= 0 {
			continue
		}
		from, ok := s.resolve(tid)
		if !ok {
			// Nothing known about the tariff; its subscribers stay put.
			out[tid] += n
			continue
		}
		revoked := from.IsRevoked()
		if revoked {
			// Leaving a revoked tariff is free: it never enters the session,
			// so its withdrawal payment is not charged. The replacement keeps
			// its own terms.
			from = s.replacement(from)
		}
		if _, evaluated := s.evalData[from.ID]; !evaluated {
			out[tid] += n
			continue
		}
		utils := e.score(s, from, revoked)
		s.utilities[tid] = utils
		if !e.choose(s, utils) {
			out[from.ID] += n
			continue
		}
		for _, u := range utils {
			if u.Probability > 0 {
				out[u.TariffID] += n * u.Probability
			}
		}
	}
	return out
}

func (e *Evaluator) score(s *session, from *model.Tariff, fromRevoked bool) []TariffUtility {
	utils := make([]TariffUtility, 0, len(s.order))
	for _, tid := range s.order {
		t := s.tariffs[tid]
		ed := s.evalData[tid]
		cost := ed.CostEstimate
		inconvenience := ed.Inconvenience
		if tid != from.ID {
			inconvenience += e.cfg.TariffSwitchFactor
			if t.Broker != from.Broker && !fromRevoked {
				inconvenience += e.cfg.BrokerSwitchFactor
			}
		}
		u := NormalizedDifference(cost, s.defaultCost, s.production) - e.cfg.InconvenienceWeight*inconvenience
		utils = append(utils, TariffUtility{
			TariffID: tid,
			Utility:  ConstrainUtility(u, e.cfg.UtilityCeiling),
		})
	}
	return utils
}

func (e *Evaluator) choose(s *session, utils []TariffUtility) bool {
	if e.cfg.FullyRational {
		return rationalChoice(utils)
	}
	return logitChoice(utils, e.lambda, func(u TariffUtility) {
		log.Printf("TariffEvaluator: customer %s tariff %d produced NaN (utility=%v), probability set to 0",
			s.in.Customer.ID, u.TariffID, u.Utility)
	})
}

func (e *Evaluator) inconvenience(t *model.Tariff) float64 {
	result := 0.0
	if t.IsTimeOfUse() {
		result += e.cfg.TOUFactor
	}
	if t.IsTiered() {
		result += e.cfg.TieredRateFactor
	}
	if t.IsVariableRate() {
		result += e.cfg.VariablePricingFactor
	}
	if t.IsInterruptible() {
		result += e.cfg.InterruptibilityFactor
	}
	return result
}

// signupCost weighs fees more heavily than bonuses: a fee is inflated to the
// preferred contract duration, a bonus is scaled down to the standard horizon.
func (e *Evaluator) signupCost(t *model.Tariff) float64 {
	p := t.SignupPayment
	if p < 0 {
		return p * e.cfg.PreferredDurationDays / e.cfg.SignupFeePeriodDays
	}
	return p * e.cfg.StdDurationDays / e.cfg.PreferredDurationDays
}

// withdrawCost applies only to tariffs with a minimum duration; penalties are
// discounted by how much of the preferred duration they cover.
func (e *Evaluator) withdrawCost(t *model.Tariff) float64 {
	if t.MinDuration <= 0 {
		return 0
	}
	p := t.EarlyWithdrawPayment
	if p < 0 {
		minDays := t.MinDuration.Hours() / 24
		p *= minDays / e.cfg.PreferredDurationDays
	}
	return p
}
