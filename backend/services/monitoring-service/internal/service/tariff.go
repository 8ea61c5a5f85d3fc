package service

import (
	"math"
	"strings"
)

// Default tariff used by configuration defaults.
const (
	DefaultRatePerKWh = 1500
	DefaultCurrency   = "IDR"
)

// Tariff converts energy into cost. It is passed explicitly to every
// aggregation so that no rate is hidden in package state.
type Tariff struct {
	RatePerKWh float64 `json:"rate_per_kwh"`
	Currency   string  `json:"currency"`
}

// DefaultTariff returns the flat 1500 IDR/kWh tariff.
func DefaultTariff() Tariff {
	return Tariff{RatePerKWh: DefaultRatePerKWh, Currency: DefaultCurrency}
}

// NewTariff builds a tariff from an explicit rate and currency. A zero rate is
// honoured; negative or non-finite rates and an empty currency are rejected.
func NewTariff(rate float64, currency string) (Tariff, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return Tariff{}, invalidInput("tariff rate must be a non-negative number")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return Tariff{}, invalidInput("tariff currency is required")
	}
	return Tariff{RatePerKWh: rate, Currency: currency}, nil
}

// Cost prices energy at the tariff rate, rounded to two decimals.
func (t Tariff) Cost(kwh float64) float64 {
	return roundTo(kwh*t.RatePerKWh, 2)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
