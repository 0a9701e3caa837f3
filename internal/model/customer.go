package model

import "errors"

// CustomerID identifies a customer class (the server's customer name).
type CustomerID string

// CustomerClass is a population of identical customers.
type CustomerClass struct {
	ID         CustomerID `json:"id" yaml:"id"`
	Population int        `json:"population" yaml:"population"`
	PowerType  PowerType  `json:"power_type" yaml:"power_type"`
}

func (c CustomerClass) Validate() error {
	if c.ID == "" {
		return errors.New("customer id is required")
	}
	if c.Population < 0 {
		return errors.New("customer population must be >= 0")
	}
	if c.PowerType == "" {
		return errors.New("customer power_type is required")
	}
	return nil
}
