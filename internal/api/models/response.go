package models

import "tariff-migration/internal/model"

// PredictResponse is the result of one migration prediction
type PredictResponse struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"` // "publish" or "revoke"
	Timeslot  int             `json:"timeslot"`
	Candidate *model.TariffID `json:"candidate,omitempty"`
	Predicted model.Predicted `json:"predicted"`
	Totals    []TariffTotal   `json:"totals"`
	Rows      []PredictionRow `json:"rows,omitempty"`
}

// TariffTotal is one tariff's subscriber count over all customers
type TariffTotal struct {
	TariffID  model.TariffID `json:"tariff_id"`
	Current   float64        `json:"current"`
	Predicted float64        `json:"predicted"`
}

// PredictionRow is one tariff x customer cell
type PredictionRow struct {
	TariffID  model.TariffID   `json:"tariff_id"`
	Customer  model.CustomerID `json:"customer"`
	Candidate bool             `json:"candidate"`
	Current   float64          `json:"current"`
	Predicted float64          `json:"predicted"`
	Delta     float64          `json:"delta"`
}

// ProfileInfo summarizes one customer evaluator profile
type ProfileInfo struct {
	Name                string  `json:"name"`
	Rationality         float64 `json:"rationality"`
	FullyRational       bool    `json:"fully_rational"`
	InconvenienceWeight float64 `json:"inconvenience_weight"`
	TariffSwitchFactor  float64 `json:"tariff_switch_factor"`
	BrokerSwitchFactor  float64 `json:"broker_switch_factor"`
}

// PredictorInfo represents one strategy of the predictor chain
type PredictorInfo struct {
	Name        string `json:"name"`
	Position    int    `json:"position"`
	Description string `json:"description"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
