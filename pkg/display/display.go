package display

import (
	"fmt"

	"github.com/janael-pinheiro/sos-agent/pkg/entities"
)

type Level int

const (
	Normal Level = iota
	Warning
	Critical
)

const retryMessage = "Unable to fetch temp/humidity readings, trying again"

type Line struct {
	Text  string
	Level Level
}

// Sink accepts status lines for the local screen.
type Sink interface {
	Render(lines []Line) error
}

// StatusLines formats the readings and connection status of one tick.
func StatusLines(snapshot entities.SensorSnapshot, state entities.ConnectionState, fault error) []Line {
	var lines []Line
	if snapshot.Valid {
		lines = append(lines,
			Line{Text: fmt.Sprintf("Temperature = %.2fC", snapshot.Temperature)},
			Line{Text: fmt.Sprintf("Humidity = %.0f", snapshot.Humidity)},
		)
	} else {
		lines = append(lines, Line{Text: retryMessage, Level: Warning})
	}

	if snapshot.PresenceDetected {
		lines = append(lines,
			Line{Text: "Water Reading = HIGH"},
			Line{Text: "Water detected!!!!!!", Level: Critical},
		)
	} else {
		lines = append(lines,
			Line{Text: "Water Reading = LOW"},
			Line{Text: "No Water detected"},
		)
	}

	switch {
	case state == entities.Faulted && fault != nil:
		lines = append(lines, Line{Text: fmt.Sprintf("Broker: FAULTED (%v)", fault), Level: Critical})
	case state == entities.Faulted:
		lines = append(lines, Line{Text: "Broker: FAULTED", Level: Critical})
	case state == entities.Ready:
		lines = append(lines, Line{Text: "Broker: connected"})
	default:
		lines = append(lines, Line{Text: fmt.Sprintf("Broker: %s", state), Level: Warning})
	}
	return lines
}
