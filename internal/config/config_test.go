package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"server", "regression", "noop"}, cfg.Predictor.Chain)
	assert.Len(t, cfg.Regression.Bandwidths, 20)
	assert.InDelta(t, 0.05, cfg.Regression.Bandwidths[0], 1e-12)
	assert.InDelta(t, 1.0, cfg.Regression.Bandwidths[19], 1e-12)
	assert.Equal(t, 12, cfg.Evaluator.RelaxationSteps)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "profiles.yaml", `
profiles:
  village:
    rationality: 0.5
  town:
    fully_rational: true
`)
	path := write(t, dir, "config.yaml", `
profiles_file: profiles.yaml
evaluator:
  inconvenience_weight: 0.3
profiles:
  village:
    tou_factor: 0.2
predictor:
  chain: [regression, noop]
  dummy_policy: worst
regression:
  engine: ridge
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.3, cfg.Evaluator.InconvenienceWeight)
	assert.Equal(t, 0.9, cfg.Evaluator.Rationality, "defaults fill the rest")
	assert.Equal(t, []string{"regression", "noop"}, cfg.Predictor.Chain)
	assert.Equal(t, DummyWorst, cfg.Predictor.DummyPolicy)
	assert.Equal(t, EngineRidge, cfg.Regression.Engine)
	assert.Equal(t, DefaultLambdas(), cfg.Regression.Lambdas)
	assert.Equal(t, []string{"town", "village"}, cfg.ProfileNames())

	village, ok := cfg.Profile("village")
	require.True(t, ok)
	assert.Equal(t, 0.5, village.Rationality, "from the profiles file")
	assert.Equal(t, 0.2, village.TOUFactor, "inline overrides merge on top")
	assert.Equal(t, 0.3, village.InconvenienceWeight, "inherited from the evaluator section")

	town, ok := cfg.Profile("town")
	require.True(t, ok)
	assert.True(t, town.FullyRational)

	other, ok := cfg.Profile("city")
	assert.False(t, ok)
	assert.Equal(t, cfg.Evaluator, other)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(write(t, dir, "bad.yaml", "evaluator: [1, 2"))
	assert.Error(t, err)

	_, err = Load(write(t, dir, "noprofiles.yaml", "profiles_file: nowhere.yaml\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(c *Config)
	}{
		{"chain without noop", func(c *Config) { c.Predictor.Chain = []string{PredictorServer} }},
		{"unknown predictor", func(c *Config) { c.Predictor.Chain = []string{"oracle", PredictorNoop} }},
		{"empty chain", func(c *Config) { c.Predictor.Chain = nil }},
		{"unknown dummy policy", func(c *Config) { c.Predictor.DummyPolicy = "random" }},
		{"unknown engine", func(c *Config) { c.Regression.Engine = "svm" }},
		{"zero cache", func(c *Config) { c.Regression.CacheSize = 0 }},
		{"negative bandwidth", func(c *Config) { c.Regression.Bandwidths = []float64{-1} }},
		{"negative lambda", func(c *Config) { c.Regression.Lambdas = []float64{-1} }},
		{"rationality above one", func(c *Config) { c.Evaluator.Rationality = 1.5 }},
		{"exponent base", func(c *Config) { c.Evaluator.RationalityExponentBase = 1 }},
		{"bad profile", func(c *Config) { c.Profiles["village"] = ProfileOverride{Rationality: Ptr(2.0)} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}

func TestMergeEvaluator(t *testing.T) {
	base := DefaultEvaluator()
	merged := MergeEvaluator(base, EvaluatorConfig{Rationality: 0.1, RelaxationSteps: 3})
	assert.Equal(t, 0.1, merged.Rationality)
	assert.Equal(t, 3, merged.RelaxationSteps)
	assert.Equal(t, base.InconvenienceWeight, merged.InconvenienceWeight)
	assert.False(t, merged.FullyRational)
}

func TestProfileOverride(t *testing.T) {
	t.Run("explicit zero is kept", func(t *testing.T) {
		dir := t.TempDir()
		path := write(t, dir, "config.yaml", `
profiles:
  indifferent:
    rationality: 0
    tou_factor: 0
  plain:
    tou_factor: 0.3
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		p, ok := cfg.Profile("indifferent")
		require.True(t, ok)
		assert.Equal(t, 0.0, p.Rationality)
		assert.Equal(t, 0.0, p.TOUFactor)
		assert.Equal(t, cfg.Evaluator.InconvenienceWeight, p.InconvenienceWeight)

		plain, ok := cfg.Profile("plain")
		require.True(t, ok)
		assert.Equal(t, 0.9, plain.Rationality, "unset fields inherit")
		assert.Equal(t, 0.3, plain.TOUFactor)
	})

	t.Run("fully rational can be switched off", func(t *testing.T) {
		base := DefaultEvaluator()
		base.FullyRational = true
		out := ProfileOverride{FullyRational: Ptr(false)}.Apply(base)
		assert.False(t, out.FullyRational)
		assert.True(t, ProfileOverride{}.Apply(base).FullyRational)
	})

	t.Run("merge keeps set fields of both layers", func(t *testing.T) {
		file := ProfileOverride{Rationality: Ptr(0.5), TOUFactor: Ptr(0.1)}
		inline := ProfileOverride{TOUFactor: Ptr(0.0)}
		merged := file.Merge(inline)
		require.NotNil(t, merged.Rationality)
		assert.Equal(t, 0.5, *merged.Rationality)
		require.NotNil(t, merged.TOUFactor)
		assert.Equal(t, 0.0, *merged.TOUFactor)
		assert.Nil(t, merged.RelaxationSteps)
	})
}

func TestExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "examples", "config.yaml"))
	require.NoError(t, err)
	assert.Len(t, cfg.Profiles, 4)
	assert.False(t, cfg.Predictor.AllowGenericProfile)
	p, ok := cfg.Profile("BrooksideHomes")
	require.True(t, ok)
	assert.Equal(t, 0.8, p.Rationality)
	assert.Equal(t, 0.1, p.TOUFactor)
}
