package migration

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tariff-migration/internal/config"
	"tariff-migration/internal/model"
	"tariff-migration/internal/predictor"
	"tariff-migration/internal/registry"
)

const (
	defaultID   model.TariffID = 1
	lowID       model.TariffID = 10
	highID      model.TariffID = 11
	candidateID model.TariffID = 20
	rivalID     model.TariffID = 30
	cheapID     model.TariffID = 31
	solarID     model.TariffID = 32
)

func tariff(id model.TariffID, broker string, pt model.PowerType) *model.Tariff {
	return &model.Tariff{
		ID:        id,
		Broker:    broker,
		PowerType: pt,
		Rates:     []model.Rate{model.FlatRate(-0.1)},
	}
}

type fixture struct {
	tariffs   *registry.Tariffs
	customers *registry.Customers
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	tariffs := registry.NewTariffs()
	def := tariff(defaultID, "default", model.PowerConsumption)
	def.IsDefault = true
	require.NoError(t, tariffs.AddSpecification(def))
	require.NoError(t, tariffs.AddSpecification(tariff(lowID, "me", model.PowerConsumption)))
	require.NoError(t, tariffs.AddSpecification(tariff(highID, "me", model.PowerConsumption)))

	customers, err := registry.NewCustomers(
		model.CustomerClass{ID: "village", Population: 18, PowerType: model.PowerConsumption},
		model.CustomerClass{ID: "town", Population: 30, PowerType: model.PowerConsumption},
		model.CustomerClass{ID: "farm", Population: 5, PowerType: model.PowerSolarProduction},
	)
	require.NoError(t, err)
	return fixture{tariffs: tariffs, customers: customers}
}

func evaluations() model.EvaluationMap {
	row := func() map[model.TariffID]float64 {
		return map[model.TariffID]float64{
			defaultID: -1, lowID: -5, highID: -3, candidateID: -4, rivalID: -2, cheapID: -6, solarID: 5,
		}
	}
	return model.EvaluationMap{"village": row(), "town": row()}
}

func request() Request {
	return Request{
		Candidate:   tariff(candidateID, "me", model.PowerConsumption),
		Evaluations: evaluations(),
		Current: model.Subscriptions{
			lowID:  {"village": 6, "town": 4},
			highID: {"village": 12, "town": 6},
		},
		Competitors: []*model.Tariff{
			tariff(rivalID, "rival", model.PowerConsumption),
			tariff(cheapID, "rival", model.PowerConsumption),
			tariff(solarID, "rival", model.PowerProduction),
		},
		Timeslot: 360,
	}
}

// interpolationConfig skips the choice model and regression so expected
// values can be worked out by hand.
func interpolationConfig() *config.Config {
	cfg := config.Default()
	cfg.Predictor.Chain = []string{config.PredictorRegression, config.PredictorNoop}
	cfg.Predictor.DisableRegression = true
	return cfg
}

func newOrchestrator(t *testing.T, cfg *config.Config, f fixture) *Orchestrator {
	t.Helper()
	o, err := New(cfg, f.tariffs, f.customers)
	require.NoError(t, err)
	return o
}

func TestPredictMigration(t *testing.T) {
	f := newFixture(t)
	o := newOrchestrator(t, interpolationConfig(), f)

	out, err := o.PredictMigration(context.Background(), request())
	require.NoError(t, err)

	t.Run("renormalizes to the population", func(t *testing.T) {
		assert.InDelta(t, 4.0, out[lowID]["village"], 1e-9)
		assert.InDelta(t, 8.0, out[highID]["village"], 1e-9)
		assert.InDelta(t, 6.0, out[candidateID]["village"], 1e-9)
		assert.InDelta(t, 18.0, out.CustomerTotal("village"), 1e-6)
	})

	t.Run("unobserved customers go to the best competitor", func(t *testing.T) {
		// town: 10 ours plus 20 on the rival tariff, candidate interpolated
		// to 5, total 35 scaled to 30.
		assert.InDelta(t, 4.0*30/35, out[lowID]["town"], 1e-9)
		assert.InDelta(t, 6.0*30/35, out[highID]["town"], 1e-9)
		assert.InDelta(t, 5.0*30/35, out[candidateID]["town"], 1e-9)
	})

	t.Run("no competitor entries", func(t *testing.T) {
		for _, id := range []model.TariffID{rivalID, cheapID, solarID, defaultID} {
			assert.NotContains(t, out, id)
		}
	})

	t.Run("temporary tariffs are removed", func(t *testing.T) {
		assert.Equal(t, 3, f.tariffs.Len())
		for _, id := range []model.TariffID{candidateID, rivalID, cheapID, solarID} {
			_, ok := f.tariffs.FindTariffByID(id)
			assert.False(t, ok, "tariff %d", id)
		}
	})
}

func TestPredictMigrationWithoutCandidate(t *testing.T) {
	f := newFixture(t)
	o := newOrchestrator(t, config.Default(), f)
	req := request()
	req.Candidate = nil

	out, err := o.PredictMigration(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, req.Current.ToPredicted(), out)
	assert.NotContains(t, out, candidateID)
}

func TestPredictMigrationForRevoke(t *testing.T) {
	f := newFixture(t)
	o := newOrchestrator(t, interpolationConfig(), f)
	req := request()

	out, err := o.PredictMigrationForRevoke(context.Background(), req)
	require.NoError(t, err)

	// -4 against a default of -1 is amplified to -7, which normalizes to -6:
	// below the lowest point (6 at -4) so 5 before scaling by 18/23.
	assert.InDelta(t, 5.0*18/23, out[candidateID]["village"], 1e-9)
	assert.InDelta(t, 18.0, out.CustomerTotal("village"), 1e-6)
	assert.Equal(t, -4.0, req.Evaluations["village"][candidateID], "evaluation restored")
	assert.Equal(t, -4.0, req.Evaluations["town"][candidateID], "evaluation restored")
}

type recorder struct {
	tariffs registry.TariffRepository
	seen    map[model.CustomerID]float64
	visible bool
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) TryPredict(in predictor.Input) (model.CustomerSubscriptions, error) {
	r.seen[in.Customer.ID] = in.Evaluations[in.Customer.ID][in.Candidate.ID]
	_, r.visible = r.tariffs.FindTariffByID(in.Candidate.ID)
	panic("recorder never predicts")
}

func TestTemporaryStateDuringCall(t *testing.T) {
	f := newFixture(t)
	o := newOrchestrator(t, interpolationConfig(), f)
	rec := &recorder{tariffs: f.tariffs, seen: map[model.CustomerID]float64{}}
	o.chain = predictor.NewChain(rec, predictor.Noop{})

	req := request()
	out, err := o.PredictMigrationForRevoke(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, rec.visible, "candidate registered while predicting")
	assert.Equal(t, -7.0, rec.seen["village"])
	assert.Equal(t, -4.0, req.Evaluations["village"][candidateID])
	_, ok := f.tariffs.FindTariffByID(candidateID)
	assert.False(t, ok)

	// noop keeps our current subscriptions.
	assert.InDelta(t, 6.0, out[lowID]["village"], 1e-9)
	assert.InDelta(t, 12.0, out[highID]["village"], 1e-9)
}

func TestPredictMigrationErrors(t *testing.T) {
	f := newFixture(t)
	o := newOrchestrator(t, config.Default(), f)

	t.Run("missing evaluations", func(t *testing.T) {
		req := request()
		req.Evaluations = nil
		_, err := o.PredictMigration(context.Background(), req)
		assert.ErrorIs(t, err, ErrNoEvaluations)
	})

	t.Run("unknown customer", func(t *testing.T) {
		req := request()
		req.Current[lowID]["ghost"] = 1
		_, err := o.PredictMigration(context.Background(), req)
		assert.ErrorIs(t, err, ErrUnknownCustomer)
	})

	t.Run("invalid competitor still releases the candidate", func(t *testing.T) {
		req := request()
		req.Competitors[1].State = "BOGUS"
		_, err := o.PredictMigration(context.Background(), req)
		require.Error(t, err)
		_, ok := f.tariffs.FindTariffByID(candidateID)
		assert.False(t, ok)
		_, ok = f.tariffs.FindTariffByID(rivalID)
		assert.False(t, ok)
	})
}

func TestExistingCandidateStaysRegistered(t *testing.T) {
	f := newFixture(t)
	o := newOrchestrator(t, interpolationConfig(), f)
	req := request()
	req.Candidate, _ = f.tariffs.FindTariffByID(highID)

	_, err := o.PredictMigration(context.Background(), req)
	require.NoError(t, err)
	_, ok := f.tariffs.FindTariffByID(highID)
	assert.True(t, ok)
}

func TestDefaultChain(t *testing.T) {
	f := newFixture(t)
	o := newOrchestrator(t, config.Default(), f)
	assert.Equal(t, []string{"server", "regression", "noop"}, o.Strategies())

	out, err := o.PredictMigration(context.Background(), request())
	require.NoError(t, err)
	assert.Contains(t, out, candidateID)
	for tid, row := range out {
		assert.NotContains(t, []model.TariffID{rivalID, cheapID, solarID}, tid)
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0.0)
		}
	}
	assert.LessOrEqual(t, out.CustomerTotal("village"), 18.0+1e-6)
}

func TestCustomerWithoutProfileFallsThroughToRegression(t *testing.T) {
	f := newFixture(t)
	want, err := newOrchestrator(t, interpolationConfig(), f).PredictMigration(context.Background(), request())
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Profiles["town"] = config.ProfileOverride{Rationality: config.Ptr(0.5)}
	got, err := newOrchestrator(t, cfg, f).PredictMigration(context.Background(), request())
	require.NoError(t, err)

	for tid, row := range want {
		assert.InDelta(t, row["village"], got[tid]["village"], 1e-9, "tariff %d", tid)
	}
	assert.InDelta(t, 6.0, got[candidateID]["village"], 1e-9)

	cfg.Predictor.AllowGenericProfile = true
	generic, err := newOrchestrator(t, cfg, f).PredictMigration(context.Background(), request())
	require.NoError(t, err)
	assert.NotEqual(t, got[candidateID]["village"], generic[candidateID]["village"],
		"with a generic profile the server predictor handles the customer")
}

func TestConcurrentCalls(t *testing.T) {
	f := newFixture(t)
	o := newOrchestrator(t, interpolationConfig(), f)

	var wg sync.WaitGroup
	results := make([]model.Predicted, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := o.PredictMigration(context.Background(), request())
			assert.NoError(t, err)
			results[i] = out
		}(i)
	}
	wg.Wait()
	for _, r := range results[1:] {
		assert.Equal(t, results[0], r)
	}
	assert.Equal(t, 3, f.tariffs.Len())
}

func TestBuildChain(t *testing.T) {
	cfg := config.Default()
	cfg.Regression.Engine = config.EngineRidge
	cfg.Predictor.Chain = []string{config.PredictorRegression, config.PredictorNoop}
	chain, err := BuildChain(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"regression", "noop"}, chain.Names())

	cfg.Predictor.Chain = []string{"oracle"}
	_, err = BuildChain(cfg)
	assert.Error(t, err)
}
