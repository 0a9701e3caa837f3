package models

import "tariff-migration/internal/scenario"

// PredictRequest is the body of POST /api/v1/migration/predict and /revoke.
// It carries a complete scenario: customers, tariffs, evaluations and the
// current subscriptions.
type PredictRequest struct {
	scenario.Scenario
	IncludeRows bool `json:"include_rows,omitempty"` // default: false
}
