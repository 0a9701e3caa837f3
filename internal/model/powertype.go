package model

import (
	"fmt"
	"strings"
)

// PowerType classifies what a customer (or tariff) does with energy.
// Keep these values stable; they appear in scenario files and API payloads.
type PowerType string

const (
	PowerConsumption               PowerType = "CONSUMPTION"
	PowerInterruptibleConsumption  PowerType = "INTERRUPTIBLE_CONSUMPTION"
	PowerThermalStorageConsumption PowerType = "THERMAL_STORAGE_CONSUMPTION"
	PowerProduction                PowerType = "PRODUCTION"
	PowerSolarProduction           PowerType = "SOLAR_PRODUCTION"
	PowerWindProduction            PowerType = "WIND_PRODUCTION"
	PowerStorage                   PowerType = "STORAGE"
)

var powerTypes = []PowerType{
	PowerConsumption,
	PowerInterruptibleConsumption,
	PowerThermalStorageConsumption,
	PowerProduction,
	PowerSolarProduction,
	PowerWindProduction,
	PowerStorage,
}

// ParsePowerType accepts the canonical names case-insensitively.
func ParsePowerType(s string) (PowerType, error) {
	up := PowerType(strings.ToUpper(strings.TrimSpace(s)))
	for _, pt := range powerTypes {
		if pt == up {
			return pt, nil
		}
	}
	return "", fmt.Errorf("unknown power type %q", s)
}

func (p PowerType) IsConsumption() bool {
	switch p {
	case PowerConsumption, PowerInterruptibleConsumption, PowerThermalStorageConsumption:
		return true
	default:
		return false
	}
}

func (p PowerType) IsProduction() bool {
	switch p {
	case PowerProduction, PowerSolarProduction, PowerWindProduction:
		return true
	default:
		return false
	}
}

func (p PowerType) IsStorage() bool { return p == PowerStorage }

// generic returns the umbrella type a specialised type falls back to.
func (p PowerType) generic() PowerType {
	switch {
	case p.IsConsumption():
		return PowerConsumption
	case p.IsProduction():
		return PowerProduction
	default:
		return p
	}
}

// CanUse reports whether a customer of type p may subscribe to a tariff
// published for tariffType. A specialised customer can always use the
// generic tariff of its family; the reverse does not hold.
func (p PowerType) CanUse(tariffType PowerType) bool {
	return p == tariffType || tariffType == p.generic()
}
