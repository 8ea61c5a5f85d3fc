package service

import (
	"math/rand/v2"
	"sync"
	"time"

	"energymonitor/backend/services/monitoring-service/internal/models"
)

// Reading is one instantaneous electrical measurement without its bookkeeping.
type Reading struct {
	VoltageV float64             `json:"voltage_v"`
	CurrentA float64             `json:"current_a"`
	PowerW   float64             `json:"active_power_w"`
	EnergyWh float64             `json:"energy_wh"`
	Status   models.DeviceStatus `json:"device_status"`
}

// SampleSource produces synthetic readings for a session.
type SampleSource interface {
	Next(session models.Session) Reading
}

// FixedSource returns the same reading every time.
type FixedSource Reading

// Next implements SampleSource.
func (f FixedSource) Next(models.Session) Reading { return Reading(f) }

// Bounds of the random model.
const (
	NominalVoltageV       = 220.0
	VoltageSpreadV        = 5.0
	MinCurrentA           = 1.0
	MaxCurrentA           = 5.0
	DefaultSampleInterval = 5 * time.Second
)

// RandomSource draws voltage around the nominal mains value and a current in a
// household range, then derives power and the energy used over one interval.
type RandomSource struct {
	mu       sync.Mutex
	rng      *rand.Rand
	interval time.Duration
}

// NewRandomSource returns a source for the given sampling interval. A zero
// seed draws a random one.
func NewRandomSource(interval time.Duration, seed uint64) *RandomSource {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &RandomSource{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		interval: interval,
	}
}

// Next implements SampleSource.
func (r *RandomSource) Next(models.Session) Reading {
	r.mu.Lock()
	voltage := NominalVoltageV + (r.rng.Float64()*2-1)*VoltageSpreadV
	current := MinCurrentA + r.rng.Float64()*(MaxCurrentA-MinCurrentA)
	r.mu.Unlock()

	voltage = roundTo(voltage, 2)
	current = roundTo(current, 3)
	power := roundTo(voltage*current, 2)
	return Reading{
		VoltageV: voltage,
		CurrentA: current,
		PowerW:   power,
		EnergyWh: roundTo(power*r.interval.Seconds()/3600, 6),
		Status:   models.DeviceOn,
	}
}
