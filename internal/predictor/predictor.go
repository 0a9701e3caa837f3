// Package predictor holds the per-customer migration strategies and the
// chain that tries them in priority order.
package predictor

import (
	"errors"
	"fmt"
	"log"

	"tariff-migration/internal/metrics"
	"tariff-migration/internal/model"
)

var (
	ErrNoCandidate = errors.New("no candidate tariff")
	ErrNoProfile   = errors.New("no customer profile")
	ErrNoData      = errors.New("no usable subscription data")
)

// Input is the per-customer view handed to every strategy.
type Input struct {
	Candidate   *model.Tariff
	Evaluations model.EvaluationMap
	Competitors []*model.Tariff
	Timeslot    int
	// Current is the customer's tariff -> count, including the dummy
	// subscription standing in for unobserved competitor customers.
	Current  model.CustomerSubscriptions
	Customer model.CustomerClass
	Default  *model.Tariff
	Lookup   func(model.TariffID) (*model.Tariff, bool)
}

// row returns the customer's evaluation row.
func (in Input) row() map[model.TariffID]float64 {
	return in.Evaluations[in.Customer.ID]
}

func (in Input) isCompetitor(id model.TariffID) bool {
	for _, t := range in.Competitors {
		if t.ID == id {
			return true
		}
	}
	return false
}

// SingleCustomerPredictor predicts one customer's redistribution.
// Any error means "no prediction"; the chain moves on to the next strategy.
type SingleCustomerPredictor interface {
	Name() string
	TryPredict(in Input) (model.CustomerSubscriptions, error)
}

// Chain tries its predictors in order and returns the first result.
type Chain struct {
	predictors []SingleCustomerPredictor
	fallback   SingleCustomerPredictor
}

func NewChain(predictors ...SingleCustomerPredictor) *Chain {
	return &Chain{predictors: predictors, fallback: Noop{}}
}

// Names lists the strategies in priority order.
func (c *Chain) Names() []string {
	out := make([]string, 0, len(c.predictors))
	for _, p := range c.predictors {
		out = append(out, p.Name())
	}
	return out
}

// Predict always returns a result: when every strategy declines, the
// current subscriptions (without competitor entries) are returned.
func (c *Chain) Predict(in Input) (model.CustomerSubscriptions, string) {
	for _, p := range c.predictors {
		out, err := try(p, in)
		if err == nil && out != nil {
			metrics.ObserveStrategy(p.Name(), metrics.OutcomeHit)
			return out, p.Name()
		}
		log.Printf("PredictorChain: %s declined customer %s: %v", p.Name(), in.Customer.ID, err)
	}
	out, _ := c.fallback.TryPredict(in)
	return out, c.fallback.Name()
}

// try runs one strategy, turning a panic into an error.
func try(p SingleCustomerPredictor, in Input) (out model.CustomerSubscriptions, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ObserveStrategy(p.Name(), metrics.OutcomePanic)
			out, err = nil, fmt.Errorf("%s panicked: %v", p.Name(), r)
		}
	}()
	out, err = p.TryPredict(in)
	if err != nil {
		metrics.ObserveStrategy(p.Name(), metrics.OutcomeMiss)
	}
	return out, err
}
