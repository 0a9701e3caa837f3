package predictor

import (
	"fmt"

	"tariff-migration/internal/config"
	"tariff-migration/internal/evaluator"
	"tariff-migration/internal/model"
)

// ServerBased runs the customer choice model with the customer's profile.
type ServerBased struct {
	cfg *config.Config
}

func NewServerBased(cfg *config.Config) *ServerBased {
	return &ServerBased{cfg: cfg}
}

func (p *ServerBased) Name() string { return config.PredictorServer }

func (p *ServerBased) TryPredict(in Input) (model.CustomerSubscriptions, error) {
	if in.Candidate == nil {
		return nil, ErrNoCandidate
	}
	profile, ok := p.cfg.Profile(string(in.Customer.ID))
	if !ok && !p.cfg.Predictor.AllowGenericProfile {
		return nil, fmt.Errorf("customer %s: %w", in.Customer.ID, ErrNoProfile)
	}
	alternatives := make([]*model.Tariff, 0, len(in.Competitors)+1)
	alternatives = append(alternatives, in.Candidate)
	alternatives = append(alternatives, in.Competitors...)

	out, err := evaluator.New(profile).Evaluate(evaluator.Input{
		Customer:     in.Customer,
		Current:      in.Current,
		Default:      in.Default,
		Alternatives: alternatives,
		Evaluations:  in.row(),
		Lookup:       in.Lookup,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
