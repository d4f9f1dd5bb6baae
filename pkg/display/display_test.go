package display

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/fatih/color"
	"github.com/janael-pinheiro/sos-agent/pkg/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(lines []Line) []string {
	var result []string
	for _, line := range lines {
		result = append(result, line.Text)
	}
	return result
}

func TestGivenValidSnapshotThenReadingsRendered(t *testing.T) {
	lines := StatusLines(entities.NewSensorSnapshot(22.456, 50.4, true), entities.Ready, nil)

	assert.Equal(t, []string{
		"Temperature = 22.46C",
		"Humidity = 50",
		"Water Reading = HIGH",
		"Water detected!!!!!!",
		"Broker: connected",
	}, texts(lines))
	assert.Equal(t, Critical, lines[3].Level)
}

func TestGivenInvalidSnapshotThenRetryMessage(t *testing.T) {
	lines := StatusLines(entities.NewSensorSnapshot(math.NaN(), 50, false), entities.NetworkAttaching, nil)

	assert.Equal(t, []string{
		retryMessage,
		"Water Reading = LOW",
		"No Water detected",
		"Broker: networkAttaching",
	}, texts(lines))
}

func TestGivenFaultThenRenderedAsCritical(t *testing.T) {
	lines := StatusLines(entities.NewSensorSnapshot(20, 40, false), entities.Faulted, errors.New("bad key"))

	last := lines[len(lines)-1]
	assert.Equal(t, "Broker: FAULTED (bad key)", last.Text)
	assert.Equal(t, Critical, last.Level)
}

func TestConsoleRender(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	console := NewConsole(&out)

	err := console.Render([]Line{{Text: "Temperature = 20.00C"}, {Text: "Water detected!!!!!!", Level: Critical}})

	require.NoError(t, err)
	assert.Equal(t, separator+"\nTemperature = 20.00C\nWater detected!!!!!!\n", out.String())
}
