package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/janael-pinheiro/sos-agent/pkg/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfiguration = `
device:
  name: basement
broker:
  host: broker.example.com
  clientId: sos-core2
  caFile: /etc/sos/ca.pem
  certFile: /etc/sos/client.pem
  keyFile: /etc/sos/client.key
  publishTopic: sos/basement/telemetry
  subscribeTopic: sos/basement/commands
alert:
  humidityThreshold: 60
  audioAsset: /etc/sos/alarm.pcm
sensor:
  source: simulated
telemetry:
  intervalSec: 30
`

func writeConfiguration(t *testing.T, content string) string {
	filename := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(content), 0600))
	return filename
}

func TestGivenValidFileThenLoadAgentConfig(t *testing.T) {
	conf, err := LoadAgentConfig(writeConfiguration(t, validConfiguration))

	require.NoError(t, err)
	assert.Equal(t, "broker.example.com", conf.Broker.Host)
	assert.Equal(t, 60.0, *conf.Alert.HumidityThreshold)
	assert.Equal(t, 30, conf.Telemetry.IntervalSec)
	assert.Equal(t, entities.ProtocolMQTT, conf.Broker.Protocol)
	assert.Equal(t, defaultMQTTPort, conf.Broker.Port)
	assert.Equal(t, defaultMaxPayloadBytes, conf.Telemetry.MaxPayloadBytes)
	assert.Equal(t, defaultTickMs, conf.Loop.TickMs)
}

func TestGivenMissingFileThenError(t *testing.T) {
	_, err := LoadAgentConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGivenMalformedYAMLThenError(t *testing.T) {
	_, err := LoadAgentConfig(writeConfiguration(t, "broker: [unterminated"))
	assert.Error(t, err)
}

func TestGivenAMQPProtocolThenDefaultTLSPort(t *testing.T) {
	conf := entities.AgentConfig{Broker: entities.BrokerConfig{Protocol: entities.ProtocolAMQP}}
	ApplyDefaults(&conf)
	assert.Equal(t, defaultAMQPPort, conf.Broker.Port)
	assert.Equal(t, defaultExchange, conf.Broker.Exchange)
}

func TestGivenEnvironmentOverridesThenApplied(t *testing.T) {
	t.Setenv("SOS_BROKER_HOST", "override.example.com")
	t.Setenv("SOS_BROKER_PORT", "18883")
	t.Setenv("SOS_LOG_LEVEL", "debug")

	conf, err := LoadAgentConfig(writeConfiguration(t, validConfiguration))

	require.NoError(t, err)
	assert.Equal(t, "override.example.com", conf.Broker.Host)
	assert.Equal(t, 18883, conf.Broker.Port)
	assert.Equal(t, "debug", conf.Log.Level)
}

func TestGivenInvalidPortEnvironmentThenError(t *testing.T) {
	t.Setenv("SOS_BROKER_PORT", "eighty")
	_, err := LoadAgentConfig(writeConfiguration(t, validConfiguration))
	assert.Error(t, err)
}

type validationCase struct {
	name   string
	mutate func(*entities.AgentConfig)
}

var validationCases = []validationCase{
	{"unknown protocol", func(c *entities.AgentConfig) { c.Broker.Protocol = "coap" }},
	{"missing host", func(c *entities.AgentConfig) { c.Broker.Host = "" }},
	{"missing key", func(c *entities.AgentConfig) { c.Broker.KeyFile = "" }},
	{"missing subscribe topic", func(c *entities.AgentConfig) { c.Broker.SubscribeTopic = "" }},
	{"missing audio asset", func(c *entities.AgentConfig) { c.Alert.AudioAsset = "" }},
	{"port out of range", func(c *entities.AgentConfig) { c.Broker.Port = 70000 }},
	{"negative interval", func(c *entities.AgentConfig) { c.Telemetry.IntervalSec = -1 }},
	{"unknown sensor", func(c *entities.AgentConfig) { c.Sensor.Source = "dht22" }},
	{"iio without device", func(c *entities.AgentConfig) { c.Sensor.Source = entities.SensorSourceIIO }},
	{"shrinking backoff", func(c *entities.AgentConfig) { c.Broker.Backoff.Multiplier = 0.5 }},
	{"threshold above saturation", func(c *entities.AgentConfig) { *c.Alert.HumidityThreshold = 120 }},
}

func TestValidateConfig(t *testing.T) {
	for _, test := range validationCases {
		conf, err := ConfigurationParser[entities.AgentConfig](writeConfiguration(t, validConfiguration))
		require.NoError(t, err)
		ApplyDefaults(&conf)
		require.NoError(t, ValidateConfig(conf), test.name)

		test.mutate(&conf)
		assert.Error(t, ValidateConfig(conf), test.name)
	}
}

func TestShippedExampleConfigIsValid(t *testing.T) {
	conf, err := LoadAgentConfig(filepath.Join("..", "..", "configs", "sosagent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, entities.SensorSourceIIO, conf.Sensor.Source)
	assert.True(t, conf.Command.Dedup)
}

func TestGivenZeroThresholdThenKept(t *testing.T) {
	conf, err := LoadAgentConfig(writeConfiguration(t,
		strings.Replace(validConfiguration, "humidityThreshold: 60", "humidityThreshold: 0", 1)))

	require.NoError(t, err)
	assert.Equal(t, 0.0, *conf.Alert.HumidityThreshold)
}

func TestGivenNoThresholdThenDefault(t *testing.T) {
	conf := entities.AgentConfig{}
	ApplyDefaults(&conf)

	require.NotNil(t, conf.Alert.HumidityThreshold)
	assert.Equal(t, defaultHumidityThreshold, *conf.Alert.HumidityThreshold)
}
