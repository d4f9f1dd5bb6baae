package sensor

import (
	"math"

	"github.com/janael-pinheiro/sos-agent/pkg/entities"
	"github.com/sirupsen/logrus"
)

// ClimateSensor reads temperature and humidity independently. A failed
// read is reported as NaN.
type ClimateSensor interface {
	Temperature() float64
	Humidity() float64
}

// PresenceInput reads a binary contact signal such as a water probe.
type PresenceInput interface {
	Present() (bool, error)
}

// Sampler combines a climate source and a presence source into snapshots.
type Sampler struct {
	climate  ClimateSensor
	presence PresenceInput
	log      *logrus.Entry
}

// NewSampler creates a sampler that owns the climate sensor and the
// presence input.
func NewSampler(climate ClimateSensor, presence PresenceInput, log *logrus.Entry) *Sampler {
	return &Sampler{climate: climate, presence: presence, log: log}
}

// Sample takes one snapshot. It never retries; the caller's tick is the
// retry cadence.
func (s *Sampler) Sample() entities.SensorSnapshot {
	temperature := s.climate.Temperature()
	humidity := s.climate.Humidity()

	present, err := s.presence.Present()
	if err != nil {
		s.log.Warnf("presence read failed: %v", err)
		present = false
	}

	snapshot := entities.NewSensorSnapshot(temperature, humidity, present)
	if !snapshot.Valid {
		s.log.Warnln("Failed to read from climate sensor")
		return snapshot
	}
	s.log.Debugf("%.2f degrees %.0f humidity", temperature, humidity)
	return snapshot
}

func invalidReading() float64 {
	return math.NaN()
}
