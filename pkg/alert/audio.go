package alert

import (
	"github.com/pkg/errors"
)

// Player is an audio playback device driven one frame at a time.
type Player interface {
	Start() error
	Stop() error
	IsPlaying() bool
	Step() error
	Close() error
}

// AudioAlert owns the playback device for the alarm clip.
type AudioAlert struct {
	player Player
}

// NewAudioAlert creates a channel that plays the clip through player.
func NewAudioAlert(player Player) *AudioAlert {
	return &AudioAlert{player: player}
}

// Start rewinds and starts the clip, interrupting a clip that is
// still playing.
func (a *AudioAlert) Start() error {
	if a.player.IsPlaying() {
		if err := a.player.Stop(); err != nil {
			return errors.Wrap(err, "restart audio alert")
		}
	}
	return errors.Wrap(a.player.Start(), "start audio alert")
}

func (a *AudioAlert) Stop() error {
	if !a.player.IsPlaying() {
		return nil
	}
	return errors.Wrap(a.player.Stop(), "stop audio alert")
}

func (a *AudioAlert) IsActive() bool {
	return a.player.IsPlaying()
}

func (a *AudioAlert) Step() error {
	return errors.Wrap(a.player.Step(), "step audio alert")
}

func (a *AudioAlert) Close() error {
	return a.player.Close()
}
