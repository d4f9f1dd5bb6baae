package indicator

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Indicator is the decorative status LED. It has no effect on the
// alerting or connection state.
type Indicator interface {
	Set(on bool) error
	On() bool
}

// SysfsLED drives /sys/class/leds/<name>/brightness.
type SysfsLED struct {
	mu             sync.Mutex
	brightnessPath string
	maxBrightness  int
	on             bool
}

// NewSysfsLED drives the LED through its brightness file.
func NewSysfsLED(brightnessPath string) *SysfsLED {
	led := &SysfsLED{brightnessPath: brightnessPath, maxBrightness: 1}
	content, err := os.ReadFile(filepath.Join(filepath.Dir(brightnessPath), "max_brightness"))
	if err == nil {
		if value, err := strconv.Atoi(strings.TrimSpace(string(content))); err == nil && value > 0 {
			led.maxBrightness = value
		}
	}
	return led
}

func (l *SysfsLED) Set(on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	value := 0
	if on {
		value = l.maxBrightness
	}
	if err := os.WriteFile(filepath.Clean(l.brightnessPath), []byte(strconv.Itoa(value)), 0600); err != nil {
		return errors.Wrap(err, "write led brightness")
	}
	l.on = on
	return nil
}

func (l *SysfsLED) On() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

// Memory keeps the LED state in memory, for hosts without an LED.
type Memory struct {
	mu sync.Mutex
	on bool
}

func (m *Memory) Set(on bool) error {
	m.mu.Lock()
	m.on = on
	m.mu.Unlock()
	return nil
}

func (m *Memory) On() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.on
}
