package alert

import "errors"

// Channel is one alert delivery output.
type Channel interface {
	Start() error
	Stop() error
	IsActive() bool
}

// Stepper is implemented by channels that need a slice of work every
// tick, such as frame-driven audio playback.
type Stepper interface {
	Step() error
}

// Channels fans a single alert decision out to every configured output.
type Channels []Channel

// Start starts every channel and returns the ones that failed, so a
// caller can retry them without restarting the ones already running.
func (c Channels) Start() (Channels, error) {
	var failed Channels
	var errs []error
	for _, channel := range c {
		if err := channel.Start(); err != nil {
			failed = append(failed, channel)
			errs = append(errs, err)
		}
	}
	return failed, errors.Join(errs...)
}

func (c Channels) Stop() error {
	var errs []error
	for _, channel := range c {
		if err := channel.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c Channels) IsActive() bool {
	for _, channel := range c {
		if channel.IsActive() {
			return true
		}
	}
	return false
}

func (c Channels) Step() error {
	var errs []error
	for _, channel := range c {
		stepper, ok := channel.(Stepper)
		if !ok || !channel.IsActive() {
			continue
		}
		if err := stepper.Step(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
