package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	// Optional: load per-customer profiles from a separate YAML (e.g. examples/profiles.yaml).
	// Profiles listed inline override the ones loaded from ProfilesFile.
	ProfilesFile string                     `yaml:"profiles_file"`
	Evaluator    EvaluatorConfig            `yaml:"evaluator"`
	Profiles     map[string]ProfileOverride `yaml:"profiles"`
	Predictor    PredictorConfig            `yaml:"predictor"`
	Regression   RegressionConfig           `yaml:"regression"`
}

// EvaluatorConfig holds the customer choice-model constants.
// Zero fields in the top-level evaluator section take the built-in defaults.
type EvaluatorConfig struct {
	InconvenienceWeight    float64 `yaml:"inconvenience_weight"`
	TariffSwitchFactor     float64 `yaml:"tariff_switch_factor"`
	BrokerSwitchFactor     float64 `yaml:"broker_switch_factor"`
	TOUFactor              float64 `yaml:"tou_factor"`
	TieredRateFactor       float64 `yaml:"tiered_rate_factor"`
	VariablePricingFactor  float64 `yaml:"variable_pricing_factor"`
	InterruptibilityFactor float64 `yaml:"interruptibility_factor"`

	Rationality             float64 `yaml:"rationality"`
	RationalityExponentBase float64 `yaml:"rationality_exponent_base"`
	FullyRational           bool    `yaml:"fully_rational"`

	PreferredDurationDays float64 `yaml:"preferred_duration_days"`
	SignupFeePeriodDays   float64 `yaml:"signup_fee_period_days"`
	StdDurationDays       float64 `yaml:"std_duration_days"`
	ProfileLengthHours    float64 `yaml:"profile_length_hours"`
	CostCorrection        float64 `yaml:"cost_correction"`

	UtilityCeiling  float64 `yaml:"utility_ceiling"`
	RelaxationSteps int     `yaml:"relaxation_steps"`
}

type PredictorConfig struct {
	// Chain lists strategy names in priority order: server, regression, noop.
	Chain []string `yaml:"chain"`
	// DummyPolicy picks the competitor that absorbs unobserved customers: best, worst, median.
	DummyPolicy string `yaml:"dummy_policy"`
	// DisableRegression forces interpolation even when enough points exist.
	DisableRegression bool `yaml:"disable_regression"`
	// AllowGenericProfile lets the server-based predictor evaluate customers
	// without a profile using the top-level evaluator section. Off by default:
	// such customers fall through to the next strategy.
	AllowGenericProfile bool `yaml:"allow_generic_profile"`
}

type RegressionConfig struct {
	// Engine is "lwr" or "ridge".
	Engine      string    `yaml:"engine"`
	NoIntercept bool      `yaml:"no_intercept"`
	CacheSize   int       `yaml:"cache_size"`
	Bandwidths  []float64 `yaml:"bandwidths"`
	Lambdas     []float64 `yaml:"lambdas"`
}

const (
	PredictorServer     = "server"
	PredictorRegression = "regression"
	PredictorNoop       = "noop"

	DummyBest   = "best"
	DummyWorst  = "worst"
	DummyMedian = "median"

	EngineLWR   = "lwr"
	EngineRidge = "ridge"
)

// DefaultEvaluator returns the choice-model constants used when nothing is configured.
func DefaultEvaluator() EvaluatorConfig {
	return EvaluatorConfig{
		InconvenienceWeight:     0.2,
		TariffSwitchFactor:      0.04,
		BrokerSwitchFactor:      0.02,
		TOUFactor:               0.05,
		TieredRateFactor:        0.1,
		VariablePricingFactor:   0.1,
		InterruptibilityFactor:  0.2,
		Rationality:             0.9,
		RationalityExponentBase: 50.0,
		PreferredDurationDays:   6,
		SignupFeePeriodDays:     3,
		StdDurationDays:         2,
		ProfileLengthHours:      7 * 24,
		CostCorrection:          1.0,
		UtilityCeiling:          3.0,
		RelaxationSteps:         12,
	}
}

// Default returns a complete, valid configuration.
func Default() *Config {
	return &Config{
		Evaluator: DefaultEvaluator(),
		Profiles:  map[string]ProfileOverride{},
		Predictor: PredictorConfig{
			Chain:       []string{PredictorServer, PredictorRegression, PredictorNoop},
			DummyPolicy: DummyBest,
		},
		Regression: RegressionConfig{
			Engine:     EngineLWR,
			CacheSize:  512,
			Bandwidths: DefaultBandwidths(),
			Lambdas:    DefaultLambdas(),
		},
	}
}

// DefaultBandwidths is {0.05, 0.10, ..., 1.00}.
func DefaultBandwidths() []float64 {
	out := make([]float64, 0, 20)
	for i := 1; i <= 20; i++ {
		out = append(out, float64(i)*0.05)
	}
	return out
}

// DefaultLambdas is {1e-5, 1e-4, ..., 1e2}.
func DefaultLambdas() []float64 {
	return []float64{1e-5, 1e-4, 1e-3, 1e-2, 1e-1, 1, 10, 100}
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config, but does not apply defaults or validate it.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if c.ProfilesFile != "" {
		profilesPath := c.ProfilesFile
		if !filepath.IsAbs(profilesPath) {
			// Relative paths resolve against the config file first, then cwd.
			cand := filepath.Join(filepath.Dir(path), profilesPath)
			if _, err := os.Stat(cand); err == nil {
				profilesPath = cand
			}
		}
		loaded, err := loadProfilesFile(profilesPath)
		if err != nil {
			return nil, err
		}
		merged := make(map[string]ProfileOverride, len(loaded)+len(c.Profiles))
		for name, p := range loaded {
			merged[name] = p
		}
		for name, p := range c.Profiles {
			merged[name] = merged[name].Merge(p)
		}
		c.Profiles = merged
	}
	return &c, nil
}

// ApplyDefaults fills every zero field from Default().
func (c *Config) ApplyDefaults() {
	d := Default()
	c.Evaluator = MergeEvaluator(d.Evaluator, c.Evaluator)
	if c.Profiles == nil {
		c.Profiles = map[string]ProfileOverride{}
	}
	if len(c.Predictor.Chain) == 0 {
		c.Predictor.Chain = d.Predictor.Chain
	}
	if c.Predictor.DummyPolicy == "" {
		c.Predictor.DummyPolicy = d.Predictor.DummyPolicy
	}
	if c.Regression.Engine == "" {
		c.Regression.Engine = d.Regression.Engine
	}
	if c.Regression.CacheSize == 0 {
		c.Regression.CacheSize = d.Regression.CacheSize
	}
	if len(c.Regression.Bandwidths) == 0 {
		c.Regression.Bandwidths = d.Regression.Bandwidths
	}
	if len(c.Regression.Lambdas) == 0 {
		c.Regression.Lambdas = d.Regression.Lambdas
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := c.Evaluator.Validate(); err != nil {
		return fmt.Errorf("evaluator config invalid: %w", err)
	}
	for name, p := range c.Profiles {
		if err := p.Apply(c.Evaluator).Validate(); err != nil {
			return fmt.Errorf("profile %q invalid: %w", name, err)
		}
	}
	if len(c.Predictor.Chain) == 0 {
		return errors.New("predictor.chain must not be empty")
	}
	for _, name := range c.Predictor.Chain {
		switch name {
		case PredictorServer, PredictorRegression, PredictorNoop:
		default:
			return fmt.Errorf("predictor.chain: unknown predictor %q", name)
		}
	}
	if c.Predictor.Chain[len(c.Predictor.Chain)-1] != PredictorNoop {
		return errors.New("predictor.chain must end with noop")
	}
	switch c.Predictor.DummyPolicy {
	case DummyBest, DummyWorst, DummyMedian:
	default:
		return fmt.Errorf("predictor.dummy_policy: unknown policy %q", c.Predictor.DummyPolicy)
	}
	switch c.Regression.Engine {
	case EngineLWR, EngineRidge:
	default:
		return fmt.Errorf("regression.engine: unknown engine %q", c.Regression.Engine)
	}
	if c.Regression.CacheSize <= 0 {
		return errors.New("regression.cache_size must be > 0")
	}
	for _, b := range c.Regression.Bandwidths {
		if b <= 0 {
			return errors.New("regression.bandwidths must be > 0")
		}
	}
	for _, l := range c.Regression.Lambdas {
		if l < 0 {
			return errors.New("regression.lambdas must be >= 0")
		}
	}
	return nil
}

func (e EvaluatorConfig) Validate() error {
	if e.Rationality < 0 || e.Rationality > 1 {
		return errors.New("rationality must be in [0, 1]")
	}
	if e.RationalityExponentBase <= 1 {
		return errors.New("rationality_exponent_base must be > 1")
	}
	if e.PreferredDurationDays <= 0 || e.SignupFeePeriodDays <= 0 || e.StdDurationDays <= 0 {
		return errors.New("preferred_duration_days, signup_fee_period_days and std_duration_days must be > 0")
	}
	if e.ProfileLengthHours <= 0 {
		return errors.New("profile_length_hours must be > 0")
	}
	if e.UtilityCeiling <= 0 {
		return errors.New("utility_ceiling must be > 0")
	}
	if e.RelaxationSteps <= 0 {
		return errors.New("relaxation_steps must be > 0")
	}
	if e.InconvenienceWeight < 0 || e.TariffSwitchFactor < 0 || e.BrokerSwitchFactor < 0 {
		return errors.New("inconvenience weights must be >= 0")
	}
	return nil
}

// Profile returns the evaluator constants for one customer.
// The bool is false when no profile row exists; the returned config is then
// the top-level evaluator section.
func (c *Config) Profile(customer string) (EvaluatorConfig, bool) {
	p, ok := c.Profiles[customer]
	if !ok {
		return c.Evaluator, false
	}
	return p.Apply(c.Evaluator), true
}

// ProfileNames lists configured profiles in sorted order.
func (c *Config) ProfileNames() []string {
	out := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type profilesFileWrapper struct {
	Profiles map[string]ProfileOverride `yaml:"profiles"`
}

func loadProfilesFile(path string) (map[string]ProfileOverride, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var w profilesFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return w.Profiles, nil
}

// MergeEvaluator overlays non-zero fields from override onto base. It fills
// defaults; per-customer overrides go through ProfileOverride instead.
func MergeEvaluator(base, override EvaluatorConfig) EvaluatorConfig {
	out := base
	overlay := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	overlay(&out.InconvenienceWeight, override.InconvenienceWeight)
	overlay(&out.TariffSwitchFactor, override.TariffSwitchFactor)
	overlay(&out.BrokerSwitchFactor, override.BrokerSwitchFactor)
	overlay(&out.TOUFactor, override.TOUFactor)
	overlay(&out.TieredRateFactor, override.TieredRateFactor)
	overlay(&out.VariablePricingFactor, override.VariablePricingFactor)
	overlay(&out.InterruptibilityFactor, override.InterruptibilityFactor)
	overlay(&out.Rationality, override.Rationality)
	overlay(&out.RationalityExponentBase, override.RationalityExponentBase)
	overlay(&out.PreferredDurationDays, override.PreferredDurationDays)
	overlay(&out.SignupFeePeriodDays, override.SignupFeePeriodDays)
	overlay(&out.StdDurationDays, override.StdDurationDays)
	overlay(&out.ProfileLengthHours, override.ProfileLengthHours)
	overlay(&out.CostCorrection, override.CostCorrection)
	overlay(&out.UtilityCeiling, override.UtilityCeiling)
	if override.RelaxationSteps != 0 {
		out.RelaxationSteps = override.RelaxationSteps
	}
	if override.FullyRational {
		out.FullyRational = true
	}
	return out
}

// ProfileOverride is one customer's deviation from the top-level evaluator
// section. Nil fields inherit; an explicit zero is kept, so a profile can set
// rationality 0 or switch an inconvenience term off.
type ProfileOverride struct {
	InconvenienceWeight    *float64 `yaml:"inconvenience_weight,omitempty"`
	TariffSwitchFactor     *float64 `yaml:"tariff_switch_factor,omitempty"`
	BrokerSwitchFactor     *float64 `yaml:"broker_switch_factor,omitempty"`
	TOUFactor              *float64 `yaml:"tou_factor,omitempty"`
	TieredRateFactor       *float64 `yaml:"tiered_rate_factor,omitempty"`
	VariablePricingFactor  *float64 `yaml:"variable_pricing_factor,omitempty"`
	InterruptibilityFactor *float64 `yaml:"interruptibility_factor,omitempty"`

	Rationality             *float64 `yaml:"rationality,omitempty"`
	RationalityExponentBase *float64 `yaml:"rationality_exponent_base,omitempty"`
	FullyRational           *bool    `yaml:"fully_rational,omitempty"`

	PreferredDurationDays *float64 `yaml:"preferred_duration_days,omitempty"`
	SignupFeePeriodDays   *float64 `yaml:"signup_fee_period_days,omitempty"`
	StdDurationDays       *float64 `yaml:"std_duration_days,omitempty"`
	ProfileLengthHours    *float64 `yaml:"profile_length_hours,omitempty"`
	CostCorrection        *float64 `yaml:"cost_correction,omitempty"`

	UtilityCeiling  *float64 `yaml:"utility_ceiling,omitempty"`
	RelaxationSteps *int     `yaml:"relaxation_steps,omitempty"`
}

// Ptr returns a pointer to v, for building overrides in code.
func Ptr[T any](v T) *T { return &v }

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func pick[T any](base, over *T) *T {
	if over != nil {
		return over
	}
	return base
}

// Apply returns base with every set field of p written over it.
func (p ProfileOverride) Apply(base EvaluatorConfig) EvaluatorConfig {
	out := base
	set(&out.InconvenienceWeight, p.InconvenienceWeight)
	set(&out.TariffSwitchFactor, p.TariffSwitchFactor)
	set(&out.BrokerSwitchFactor, p.BrokerSwitchFactor)
	set(&out.TOUFactor, p.TOUFactor)
	set(&out.TieredRateFactor, p.TieredRateFactor)
	set(&out.VariablePricingFactor, p.VariablePricingFactor)
	set(&out.InterruptibilityFactor, p.InterruptibilityFactor)
	set(&out.Rationality, p.Rationality)
	set(&out.RationalityExponentBase, p.RationalityExponentBase)
	set(&out.FullyRational, p.FullyRational)
	set(&out.PreferredDurationDays, p.PreferredDurationDays)
	set(&out.SignupFeePeriodDays, p.SignupFeePeriodDays)
	set(&out.StdDurationDays, p.StdDurationDays)
	set(&out.ProfileLengthHours, p.ProfileLengthHours)
	set(&out.CostCorrection, p.CostCorrection)
	set(&out.UtilityCeiling, p.UtilityCeiling)
	set(&out.RelaxationSteps, p.RelaxationSteps)
	return out
}

// Merge layers over on top of p; fields set in over win.
func (p ProfileOverride) Merge(over ProfileOverride) ProfileOverride {
	return ProfileOverride{
		InconvenienceWeight:     pick(p.InconvenienceWeight, over.InconvenienceWeight),
		TariffSwitchFactor:      pick(p.TariffSwitchFactor, over.TariffSwitchFactor),
		BrokerSwitchFactor:      pick(p.BrokerSwitchFactor, over.BrokerSwitchFactor),
		TOUFactor:               pick(p.TOUFactor, over.TOUFactor),
		TieredRateFactor:        pick(p.TieredRateFactor, over.TieredRateFactor),
		VariablePricingFactor:   pick(p.VariablePricingFactor, over.VariablePricingFactor),
		InterruptibilityFactor:  pick(p.InterruptibilityFactor, over.InterruptibilityFactor),
		Rationality:             pick(p.Rationality, over.Rationality),
		RationalityExponentBase: pick(p.RationalityExponentBase, over.RationalityExponentBase),
		FullyRational:           pick(p.FullyRational, over.FullyRational),
		PreferredDurationDays:   pick(p.PreferredDurationDays, over.PreferredDurationDays),
		SignupFeePeriodDays:     pick(p.SignupFeePeriodDays, over.SignupFeePeriodDays),
		StdDurationDays:         pick(p.StdDurationDays, over.StdDurationDays),
		ProfileLengthHours:      pick(p.ProfileLengthHours, over.ProfileLengthHours),
		CostCorrection:          pick(p.CostCorrection, over.CostCorrection),
		UtilityCeiling:          pick(p.UtilityCeiling, over.UtilityCeiling),
		RelaxationSteps:         pick(p.RelaxationSteps, over.RelaxationSteps),
	}
}
