package alert

import "github.com/janael-pinheiro/sos-agent/pkg/entities"

// Engine is a level-triggered humidity alarm: one StartAlert per
// continuous excursion above the threshold and one StopAlert on
// recovery.
type Engine struct {
	threshold float64
}

// NewEngine creates an engine that alerts strictly above threshold.
func NewEngine(threshold float64) *Engine {
	return &Engine{threshold: threshold}
}

func (e *Engine) Threshold() float64 {
	return e.threshold
}

func (e *Engine) Evaluate(snapshot entities.SensorSnapshot, current entities.AlertState) (entities.AlertState, entities.AlertAction) {
	if !snapshot.Valid {
		return current, entities.AlertNone
	}

	above := snapshot.Humidity > e.threshold
	next := current
	switch {
	case above && !current.Triggered:
		next.Triggered = true
		return next, entities.StartAlert
	case !above && current.Triggered:
		next.Triggered = false
		return next, entities.StopAlert
	default:
		return current, entities.AlertNone
	}
}
