package sensor

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	iioTemperatureFile = "in_temp_input"
	iioHumidityFile    = "in_humidityrelative_input"
	iioMilliScale      = 1000.0
)

// IIOClimate reads a DHT-class sensor exposed through the Linux
// industrial I/O sysfs interface, where values are in milli-units.
type IIOClimate struct {
	device string
}

// NewIIOClimate reads the IIO device directory at device.
func NewIIOClimate(device string) *IIOClimate {
	return &IIOClimate{device: device}
}

func (c *IIOClimate) Temperature() float64 {
	return c.read(iioTemperatureFile)
}

func (c *IIOClimate) Humidity() float64 {
	return c.read(iioHumidityFile)
}

func (c *IIOClimate) read(name string) float64 {
	content, err := os.ReadFile(filepath.Join(c.device, name))
	if err != nil {
		return invalidReading()
	}
	raw, err := strconv.ParseFloat(strings.TrimSpace(string(content)), 64)
	if err != nil {
		return invalidReading()
	}
	return raw / iioMilliScale
}
