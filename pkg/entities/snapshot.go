package entities

import "math"

// SensorSnapshot is one set of readings taken for a single tick. It is
// never mutated after creation.
type SensorSnapshot struct {
	Temperature      float64
	Humidity         float64
	PresenceDetected bool
	Valid            bool
}

func NewSensorSnapshot(temperature, humidity float64, presence bool) SensorSnapshot {
	return SensorSnapshot{
		Temperature:      temperature,
		Humidity:         humidity,
		PresenceDetected: presence,
		Valid:            !math.IsNaN(temperature) && !math.IsNaN(humidity),
	}
}
