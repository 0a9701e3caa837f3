// Package migration predicts how customers redistribute over tariffs when a
// new tariff is published or an existing one is revoked.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tariff-migration/internal/config"
	"tariff-migration/internal/metrics"
	"tariff-migration/internal/model"
	"tariff-migration/internal/predictor"
	"tariff-migration/internal/registry"
	"tariff-migration/internal/regression"
)

// Prediction kinds, used for metrics and tracing.
const (
	KindPublish = "publish"
	KindRevoke  = "revoke"
)

var (
	ErrNoEvaluations   = errors.New("migration: evaluations are required")
	ErrUnknownCustomer = errors.New("migration: unknown customer")
)

// Request is one migration question.
type Request struct {
	// Candidate is the tariff being considered; nil asks for the status quo.
	Candidate   *model.Tariff
	Evaluations model.EvaluationMap
	// Current holds our own tariffs' subscriber counts.
	Current     model.Subscriptions
	Competitors []*model.Tariff
	Timeslot    int
}

// Orchestrator runs the per-customer predictor chain for every customer
// class. Calls are serialized.
type Orchestrator struct {
	mu        sync.Mutex
	cfg       *config.Config
	tariffs   registry.TariffRepository
	customers registry.CustomerDirectory
	chain     *predictor.Chain
	dummy     DummyPolicy
	tracer    trace.Tracer
}

func New(cfg *config.Config, tariffs registry.TariffRepository, customers registry.CustomerDirectory) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("migration: config is nil")
	}
	dummy, err := PolicyFor(cfg.Predictor.DummyPolicy)
	if err != nil {
		return nil, err
	}
	chain, err := BuildChain(cfg)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:       cfg,
		tariffs:   tariffs,
		customers: customers,
		chain:     chain,
		dummy:     dummy,
		tracer:    otel.Tracer("tariff-migration/migration"),
	}, nil
}

// BuildChain assembles the predictor chain named by cfg.Predictor.Chain.
func BuildChain(cfg *config.Config) (*predictor.Chain, error) {
	var regressor *regression.Regressor
	if !cfg.Predictor.DisableRegression {
		var engine regression.Engine
		switch cfg.Regression.Engine {
		case config.EngineLWR:
			engine = regression.NewLWR(cfg.Regression.Bandwidths, !cfg.Regression.NoIntercept)
		case config.EngineRidge:
			engine = regression.NewRidge(cfg.Regression.Lambdas)
		default:
			return nil, fmt.Errorf("unknown regression engine %q", cfg.Regression.Engine)
		}
		cache, err := regression.NewModelCache(cfg.Regression.CacheSize)
		if err != nil {
			return nil, err
		}
		regressor = regression.NewRegressor(engine, cache)
	}

	strategies := make([]predictor.SingleCustomerPredictor, 0, len(cfg.Predictor.Chain))
	for _, name := range cfg.Predictor.Chain {
		switch name {
		case config.PredictorServer:
			strategies = append(strategies, predictor.NewServerBased(cfg))
		case config.PredictorRegression:
			strategies = append(strategies, predictor.NewRegressionBased(regressor))
		case config.PredictorNoop:
			strategies = append(strategies, predictor.Noop{})
		default:
			return nil, fmt.Errorf("unknown predictor %q", name)
		}
	}
	return predictor.NewChain(strategies...), nil
}

// Strategies lists the chain in priority order.
func (o *Orchestrator) Strategies() []string {
	return o.chain.Names()
}

// PredictMigration predicts subscriptions after publishing req.Candidate.
func (o *Orchestrator) PredictMigration(ctx context.Context, req Request) (model.Predicted, error) {
	return o.predict(ctx, req, KindPublish)
}

// PredictMigrationForRevoke is PredictMigration with the candidate's
// evaluation doubled relative to the default tariff, so the signal stays
// clear of noise in the cost estimates.
func (o *Orchestrator) PredictMigrationForRevoke(ctx context.Context, req Request) (model.Predicted, error) {
	return o.predict(ctx, req, KindRevoke)
}

func (o *Orchestrator) predict(ctx context.Context, req Request, kind string) (out model.Predicted, err error) {
	start := time.Now()
	_, span := o.tracer.Start(ctx, "migration."+kind, trace.WithAttributes(
		attribute.Int("timeslot", req.Timeslot),
		attribute.Int("competitors", len(req.Competitors)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	o.mu.Lock()
	defer o.mu.Unlock()

	if req.Evaluations == nil {
		return nil, ErrNoEvaluations
	}
	for _, row := range req.Current {
		for cid := range row {
			if _, ok := o.customers.Customer(cid); !ok {
				return nil, fmt.Errorf("%w %q", ErrUnknownCustomer, cid)
			}
		}
	}
	if req.Candidate == nil {
		return req.Current.ToPredicted(), nil
	}
	span.SetAttributes(attribute.Int64("candidate", int64(req.Candidate.ID)))

	release, err := o.inject(req)
	defer release()
	if err != nil {
		return nil, err
	}
	if kind == KindRevoke {
		restore := o.amplify(req)
		defer restore()
	}

	out = o.run(req)
	metrics.ObservePrediction(kind, time.Since(start).Seconds())
	return out, nil
}

// inject registers the candidate and competitors that the registry does not
// know yet. The returned func removes them again and is always non-nil.
func (o *Orchestrator) inject(req Request) (func(), error) {
	var releases []func()
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, t := range append([]*model.Tariff{req.Candidate}, req.Competitors...) {
		release, err := registry.AddTemporary(o.tariffs, t)
		if err != nil {
			return releaseAll, fmt.Errorf("register tariff %d: %w", t.ID, err)
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// amplify rewrites the candidate's evaluation for every customer that has
// one to default + 2*(candidate - default). The returned func restores the
// original values.
func (o *Orchestrator) amplify(req Request) func() {
	cid := req.Candidate.ID
	saved := map[model.CustomerID]float64{}
	for customer, row := range req.Evaluations {
		v, ok := row[cid]
		if !ok {
			continue
		}
		class, ok := o.customers.Customer(customer)
		if !ok {
			continue
		}
		def, ok := o.tariffs.DefaultTariff(class.PowerType)
		if !ok {
			continue
		}
		d, ok := row[def.ID]
		if !ok {
			continue
		}
		saved[customer] = v
		row[cid] = d + 2*(v-d)
	}
	return func() {
		for customer, v := range saved {
			req.Evaluations[customer][cid] = v
		}
	}
}

// run predicts every customer class and keeps only our tariffs and the candidate.
func (o *Orchestrator) run(req Request) model.Predicted {
	byCustomer := req.Current.ByCustomer()
	keep := map[model.TariffID]bool{req.Candidate.ID: true}
	for tid := range req.Current {
		keep[tid] = true
	}

	result := model.Predicted{}
	for _, customer := range o.customers.Customers() {
		current := byCustomer[customer.ID]
		if current == nil {
			current = model.CustomerSubscriptions{}
		}
		def, ok := o.tariffs.DefaultTariff(customer.PowerType)
		if !ok {
			log.Printf("MigrationOrchestrator: no default tariff for %s (%s), keeping current subscriptions", customer.ID, customer.PowerType)
			result.Add(customer.ID, filter(current, keep))
			continue
		}
		o.addUnobserved(req, customer, def, current)
		if len(current) == 0 {
			continue
		}

		predicted, strategy := o.chain.Predict(predictor.Input{
			Candidate:   req.Candidate,
			Evaluations: req.Evaluations,
			Competitors: req.Competitors,
			Timeslot:    req.Timeslot,
			Current:     current,
			Customer:    customer,
			Default:     def,
			Lookup:      o.lookup(req),
		})
		if strategy == config.PredictorNoop {
			log.Printf("MigrationOrchestrator: customer %s kept current subscriptions", customer.ID)
		}
		result.Add(customer.ID, filter(predicted, keep))
	}
	return result
}

// addUnobserved attributes the customers we cannot see (population minus
// our subscribers) to one competing tariff, or to the default tariff when
// no competitor qualifies.
func (o *Orchestrator) addUnobserved(req Request, customer model.CustomerClass, def *model.Tariff, current model.CustomerSubscriptions) {
	rest := float64(customer.Population - req.Current.SubscribedTo(customer.ID))
	if rest <= 0 {
		return
	}
	if t, ok := o.dummy(customer, req.Competitors, req.Evaluations[customer.ID]); ok {
		current[t.ID] += rest
		return
	}
	current[def.ID] += rest
}

// lookup resolves competitors first, then the registry.
func (o *Orchestrator) lookup(req Request) func(model.TariffID) (*model.Tariff, bool) {
	return func(id model.TariffID) (*model.Tariff, bool) {
		for _, t := range req.Competitors {
			if t.ID == id {
				return t, true
			}
		}
		if req.Candidate != nil && req.Candidate.ID == id {
			return req.Candidate, true
		}
		return o.tariffs.FindTariffByID(id)
	}
}

func filter(cs model.CustomerSubscriptions, keep map[model.TariffID]bool) model.CustomerSubscriptions {
	out := make(model.CustomerSubscriptions, len(cs))
	for tid, v := range cs {
		if keep[tid] {
			out[tid] = v
		}
	}
	return out
}
