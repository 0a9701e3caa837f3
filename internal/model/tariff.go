package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TariffID is the broker-assigned tariff specification id.
type TariffID int64

// TariffState is the lifecycle state tracked by the tariff registry.
type TariffState string

const (
	TariffActive     TariffState = "ACTIVE"
	TariffKilled     TariffState = "KILLED"
	TariffSuperseded TariffState = "SUPERSEDED"
)

// Rate is one rate rule of a tariff. The zero value is a fixed flat rate.
// Units:
// - Window fields are hours (daily 0..23, weekly 1..7); nil means unset
// - Values are money per kWh, negative when the customer pays
// - MaxCurtailment is a fraction 0..1
type Rate struct {
	WeeklyBegin    *int    `json:"weekly_begin,omitempty" yaml:"weekly_begin,omitempty"`
	WeeklyEnd      *int    `json:"weekly_end,omitempty" yaml:"weekly_end,omitempty"`
	DailyBegin     *int    `json:"daily_begin,omitempty" yaml:"daily_begin,omitempty"`
	DailyEnd       *int    `json:"daily_end,omitempty" yaml:"daily_end,omitempty"`
	TierThreshold  float64 `json:"tier_threshold" yaml:"tier_threshold"`
	Variable       bool    `json:"variable" yaml:"variable"`
	MinValue       float64 `json:"min_value" yaml:"min_value"`
	MaxValue       float64 `json:"max_value" yaml:"max_value"`
	ExpectedMean   float64 `json:"expected_mean" yaml:"expected_mean"`
	MaxCurtailment float64 `json:"max_curtailment" yaml:"max_curtailment"`
}

// FlatRate returns a fixed rate with no time window or tier.
func FlatRate(value float64) Rate {
	return Rate{MinValue: value, MaxValue: value}
}

// WithDailyWindow returns a copy of r applying between the given hours of day.
func (r Rate) WithDailyWindow(begin, end int) Rate {
	r.DailyBegin, r.DailyEnd = &begin, &end
	return r
}

// WithWeeklyWindow returns a copy of r applying between the given days of week.
func (r Rate) WithWeeklyWindow(begin, end int) Rate {
	r.WeeklyBegin, r.WeeklyEnd = &begin, &end
	return r
}

// A negative hour is accepted as unset for older inputs.
func windowSet(h *int) bool {
	return h != nil && *h >= 0
}

func (r Rate) hasWindow() bool {
	return windowSet(r.DailyBegin) || windowSet(r.DailyEnd) || windowSet(r.WeeklyBegin) || windowSet(r.WeeklyEnd)
}

func (r Rate) validate() error {
	for _, h := range []*int{r.DailyBegin, r.DailyEnd} {
		if windowSet(h) && *h > 23 {
			return fmt.Errorf("daily window hour %d out of range [0, 23]", *h)
		}
	}
	for _, d := range []*int{r.WeeklyBegin, r.WeeklyEnd} {
		if windowSet(d) && (*d < 1 || *d > 7) {
			return fmt.Errorf("weekly window day %d out of range [1, 7]", *d)
		}
	}
	if r.MaxCurtailment < 0 || r.MaxCurtailment > 1 {
		return errors.New("max_curtailment must be in [0, 1]")
	}
	return nil
}

// Tariff is a priced contract offered by a broker.
type Tariff struct {
	ID                   TariffID      `json:"id" yaml:"id"`
	Broker               string        `json:"broker" yaml:"broker"`
	PowerType            PowerType     `json:"power_type" yaml:"power_type"`
	Rates                []Rate        `json:"rates" yaml:"rates"`
	SignupPayment        float64       `json:"signup_payment" yaml:"signup_payment"`
	EarlyWithdrawPayment float64       `json:"early_withdraw_payment" yaml:"early_withdraw_payment"`
	MinDuration          time.Duration `json:"min_duration" yaml:"min_duration"`
	State                TariffState   `json:"state" yaml:"state"`
	// SupersededBy names the replacement once the tariff is revoked.
	SupersededBy TariffID `json:"superseded_by,omitempty" yaml:"superseded_by,omitempty"`
	IsDefault    bool     `json:"is_default,omitempty" yaml:"is_default,omitempty"`
}

func (t *Tariff) Validate() error {
	if t == nil {
		return errors.New("tariff is nil")
	}
	if t.ID == 0 {
		return errors.New("tariff id must be non-zero")
	}
	if t.PowerType == "" {
		return fmt.Errorf("tariff %d: power_type is required", t.ID)
	}
	if t.MinDuration < 0 {
		return fmt.Errorf("tariff %d: min_duration must be >= 0", t.ID)
	}
	switch t.State {
	case "", TariffActive, TariffKilled, TariffSuperseded:
	default:
		return fmt.Errorf("tariff %d: unknown state %q", t.ID, t.State)
	}
	for i, r := range t.Rates {
		if err := r.validate(); err != nil {
			return fmt.Errorf("tariff %d rate %d: %w", t.ID, i, err)
		}
	}
	return nil
}

// IsRevoked reports whether the tariff is no longer offered.
func (t *Tariff) IsRevoked() bool {
	return t.State == TariffKilled || t.State == TariffSuperseded
}

func (t *Tariff) IsTimeOfUse() bool {
	for _, r := range t.Rates {
		if r.hasWindow() {
			return true
		}
	}
	return false
}

func (t *Tariff) IsTiered() bool {
	for _, r := range t.Rates {
		if r.TierThreshold > 0 {
			return true
		}
	}
	return false
}

func (t *Tariff) IsVariableRate() bool {
	for _, r := range t.Rates {
		if r.Variable {
			return true
		}
	}
	return false
}

func (t *Tariff) IsInterruptible() bool {
	for _, r := range t.Rates {
		if r.MaxCurtailment > 0 {
			return true
		}
	}
	return false
}

type tariffJSON Tariff

// UnmarshalJSON accepts min_duration either as a duration string such as
// "168h" or as integer nanoseconds.
func (t *Tariff) UnmarshalJSON(b []byte) error {
	aux := struct {
		*tariffJSON
		MinDuration json.RawMessage `json:"min_duration"`
	}{tariffJSON: (*tariffJSON)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	d, err := parseDuration(aux.MinDuration)
	if err != nil {
		return fmt.Errorf("tariff %d: min_duration: %w", t.ID, err)
	}
	t.MinDuration = d
	return nil
}

// MarshalJSON writes min_duration as a duration string.
func (t Tariff) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		tariffJSON
		MinDuration string `json:"min_duration"`
	}{tariffJSON: tariffJSON(t), MinDuration: t.MinDuration.String()})
}

func parseDuration(raw json.RawMessage) (time.Duration, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return time.ParseDuration(s)
	}
	var ns int64
	if err := json.Unmarshal(raw, &ns); err != nil {
		return 0, errors.New("want a duration string or integer nanoseconds")
	}
	return time.Duration(ns), nil
}

// Clone returns a deep copy so callers can mutate state without touching the registry's copy.
func (t *Tariff) Clone() *Tariff {
	if t == nil {
		return nil
	}
	out := *t
	if t.Rates != nil {
		out.Rates = make([]Rate, len(t.Rates))
		for i, r := range t.Rates {
			out.Rates[i] = r.clone()
		}
	}
	return &out
}

func (r Rate) clone() Rate {
	for _, p := range []**int{&r.WeeklyBegin, &r.WeeklyEnd, &r.DailyBegin, &r.DailyEnd} {
		if *p != nil {
			v := **p
			*p = &v
		}
	}
	return r
}
