package sensor

import (
	"math"
	"sync"
)

// SimulatedClimate produces a slow humidity wave for bench runs without
// hardware.
type SimulatedClimate struct {
	mu          sync.Mutex
	step        int
	temperature float64
	baseline    float64
	amplitude   float64
}

// NewSimulatedClimate returns a climate source whose humidity swings around
// baseline by amplitude.
func NewSimulatedClimate(temperature, baseline, amplitude float64) *SimulatedClimate {
	return &SimulatedClimate{temperature: temperature, baseline: baseline, amplitude: amplitude}
}

func (s *SimulatedClimate) Temperature() float64 {
	return s.temperature
}

func (s *SimulatedClimate) Humidity() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step++
	return s.baseline + s.amplitude*math.Sin(float64(s.step)/30)
}

// StaticPresence always reports the same presence signal.
type StaticPresence bool

func (p StaticPresence) Present() (bool, error) {
	return bool(p), nil
}
