package alert

import "github.com/janael-pinheiro/sos-agent/pkg/indicator"

// IndicatorAlert lights the status LED while the alarm is raised.
type IndicatorAlert struct {
	indicator indicator.Indicator
	active    bool
}

// NewIndicatorAlert creates a channel that lights led while an alert runs.
func NewIndicatorAlert(led indicator.Indicator) *IndicatorAlert {
	return &IndicatorAlert{indicator: led}
}

func (i *IndicatorAlert) Start() error {
	if err := i.indicator.Set(true); err != nil {
		return err
	}
	i.active = true
	return nil
}

func (i *IndicatorAlert) Stop() error {
	if err := i.indicator.Set(false); err != nil {
		return err
	}
	i.active = false
	return nil
}

func (i *IndicatorAlert) IsActive() bool {
	return i.active
}
