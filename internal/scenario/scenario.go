// Package scenario loads a self-contained migration question from disk so
// the engine can be run offline.
package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"tariff-migration/internal/migration"
	"tariff-migration/internal/model"
	"tariff-migration/internal/registry"
)

// Scenario is one timeslot's view of the market.
type Scenario struct {
	Timeslot  int                   `json:"timeslot" yaml:"timeslot"`
	Customers []model.CustomerClass `json:"customers" yaml:"customers"`
	// Tariffs seeds the registry: the default tariffs and our published ones.
	Tariffs     []*model.Tariff `json:"tariffs" yaml:"tariffs"`
	Competitors []*model.Tariff `json:"competitors,omitempty" yaml:"competitors,omitempty"`
	// Candidate is optional; without it the prediction is the status quo.
	Candidate     *model.Tariff       `json:"candidate,omitempty" yaml:"candidate,omitempty"`
	Evaluations   model.EvaluationMap `json:"evaluations" yaml:"evaluations"`
	Subscriptions model.Subscriptions `json:"subscriptions" yaml:"subscriptions"`
}

// Load reads a scenario; .json files are parsed as JSON, everything else as YAML.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s *Scenario
	if strings.EqualFold(filepath.Ext(path), ".json") {
		s, err = DecodeJSON(raw)
	} else {
		s, err = DecodeYAML(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return s, nil
}

func DecodeYAML(raw []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, s.Validate()
}

func DecodeJSON(raw []byte) (*Scenario, error) {
	var s Scenario
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, s.Validate()
}

func (s *Scenario) Validate() error {
	if len(s.Customers) == 0 {
		return errors.New("scenario: at least one customer is required")
	}
	if len(s.Evaluations) == 0 {
		return errors.New("scenario: evaluations are required")
	}
	known := map[model.CustomerID]bool{}
	for _, c := range s.Customers {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("scenario: %w", err)
		}
		known[c.ID] = true
	}
	for tid, row := range s.Subscriptions {
		for cid, n := range row {
			if !known[cid] {
				return fmt.Errorf("scenario: subscriptions to tariff %d name unknown customer %q", tid, cid)
			}
			if n < 0 {
				return fmt.Errorf("scenario: negative subscription count for %q on tariff %d", cid, tid)
			}
		}
	}
	hasDefault := false
	for _, t := range s.Tariffs {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("scenario: %w", err)
		}
		hasDefault = hasDefault || t.IsDefault
	}
	if !hasDefault {
		return errors.New("scenario: no default tariff")
	}
	for _, t := range s.Competitors {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("scenario: competitor: %w", err)
		}
	}
	if s.Candidate != nil {
		if err := s.Candidate.Validate(); err != nil {
			return fmt.Errorf("scenario: candidate: %w", err)
		}
	}
	return nil
}

// Build creates the registry and customer directory the scenario describes.
func (s *Scenario) Build() (*registry.Tariffs, *registry.Customers, error) {
	tariffs := registry.NewTariffs()
	for _, t := range s.Tariffs {
		if err := tariffs.AddSpecification(t.Clone()); err != nil {
			return nil, nil, err
		}
	}
	customers, err := registry.NewCustomers(s.Customers...)
	if err != nil {
		return nil, nil, err
	}
	return tariffs, customers, nil
}

// Request converts the scenario into an orchestrator request. Evaluations
// are copied so a scenario can be reused across calls.
func (s *Scenario) Request() migration.Request {
	evals := make(model.EvaluationMap, len(s.Evaluations))
	for cid, row := range s.Evaluations {
		for tid, v := range row {
			evals.Set(cid, tid, v)
		}
	}
	competitors := make([]*model.Tariff, 0, len(s.Competitors))
	for _, t := range s.Competitors {
		competitors = append(competitors, t.Clone())
	}
	return migration.Request{
		Candidate:   s.Candidate.Clone(),
		Evaluations: evals,
		Current:     s.Subscriptions,
		Competitors: competitors,
		Timeslot:    s.Timeslot,
	}
}
