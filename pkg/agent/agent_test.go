package agent

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/janael-pinheiro/sos-agent/pkg/display"
	"github.com/janael-pinheiro/sos-agent/pkg/entities"
	"github.com/janael-pinheiro/sos-agent/pkg/gateways/broker"
	"github.com/janael-pinheiro/sos-agent/pkg/indicator"
	"github.com/janael-pinheiro/sos-agent/pkg/logging"
	"github.com/janael-pinheiro/sos-agent/pkg/utils"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) entities.AgentConfig {
	asset := filepath.Join(t.TempDir(), "siren.raw")
	require.NoError(t, os.WriteFile(asset, bytes.Repeat([]byte{0x7f}, 64), 0o600))

	conf := entities.AgentConfig{
		Broker: entities.BrokerConfig{
			Protocol:       entities.ProtocolMQTT,
			Host:           "broker.local",
			ClientID:       "sos-1",
			CAFile:         "ca.pem",
			CertFile:       "client.pem",
			KeyFile:        "client.key",
			PublishTopic:   "sos/telemetry",
			SubscribeTopic: "sos/commands",
		},
		Alert:   entities.AlertConfig{AudioAsset: asset, UseIndicator: true},
		Sensor:  entities.SensorConfig{Source: entities.SensorSourceSimulated},
		Command: entities.CommandConfig{Dedup: true},
	}
	utils.ApplyDefaults(&conf)
	return conf
}

func TestGivenValidConfigThenAgentAssembled(t *testing.T) {
	agent, err := New(testConfig(t), logging.NewLogrus("info", io.Discard), display.NewConsole(io.Discard))

	require.NoError(t, err)
	assert.NotNil(t, agent.Loop)
	assert.Len(t, agent.Loop.channels, 2)
	assert.Equal(t, entities.Disconnected, agent.Loop.connection.State())
	require.NoError(t, agent.Loop.Close())
}

func TestGivenMissingAudioAssetThenStartupAborted(t *testing.T) {
	conf := testConfig(t)
	conf.Alert.AudioAsset = filepath.Join(t.TempDir(), "absent.raw")

	_, err := New(conf, logging.NewLogrus("info", io.Discard), display.NewConsole(io.Discard))

	assert.True(t, errors.Is(err, ErrStartup))
}

func TestIndicatorCommands(t *testing.T) {
	log, _ := test.NewNullLogger()
	led := &indicator.Memory{}
	handler := indicatorCommands{led: led, log: log.WithField("Context", "testing")}
	on, off := true, false

	require.NoError(t, handler.Apply(entities.Command{LED: &on}))
	assert.True(t, led.On())
	require.NoError(t, handler.Apply(entities.Command{LED: &off}))
	assert.False(t, led.On())
	assert.ErrorIs(t, handler.Apply(entities.Command{}), broker.ErrUnknownCommand)
}
