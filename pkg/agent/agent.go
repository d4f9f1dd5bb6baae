package agent

import (
	"context"
	"io"
	"time"

	"github.com/janael-pinheiro/sos-agent/pkg/alert"
	"github.com/janael-pinheiro/sos-agent/pkg/display"
	"github.com/janael-pinheiro/sos-agent/pkg/entities"
	"github.com/janael-pinheiro/sos-agent/pkg/gateways/broker"
	"github.com/janael-pinheiro/sos-agent/pkg/gateways/broker/network"
	"github.com/janael-pinheiro/sos-agent/pkg/indicator"
	"github.com/janael-pinheiro/sos-agent/pkg/logging"
	"github.com/janael-pinheiro/sos-agent/pkg/metrics"
	"github.com/janael-pinheiro/sos-agent/pkg/sensor"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrStartup marks conditions that must abort the agent before the first
// tick, such as a missing audio asset.
var ErrStartup = errors.New("startup aborted")

const (
	simulatedTemperature = 22.5
	simulatedHumidity    = 42.0
	simulatedAmplitude   = 8.0
)

// Agent is a fully assembled monitoring loop plus its metrics endpoint.
type Agent struct {
	Loop     *Loop
	metrics  *metrics.Prometheus
	listen   string
	log      *logrus.Entry
}

// indicatorCommands applies inbound LED commands to the indicator.
type indicatorCommands struct {
	led indicator.Indicator
	log *logrus.Entry
}

func (c indicatorCommands) Apply(command entities.Command) error {
	if command.LED == nil {
		return broker.ErrUnknownCommand
	}
	c.log.Infof("indicator set to %t by command", *command.LED)
	return c.led.Set(*command.LED)
}

// New assembles the agent from a validated config. A missing audio
// asset or output device fails with ErrStartup.
func New(conf entities.AgentConfig, logger *logging.Logrus, sink display.Sink) (*Agent, error) {
	prometheus := metrics.NewPrometheus()

	led := newIndicator(conf.Indicator)
	channels, err := newChannels(conf.Alert, led)
	if err != nil {
		return nil, err
	}

	transport, err := network.NewTransport(conf.Broker, logger.Get("Transport"))
	if err != nil {
		_ = channels.Stop()
		closeChannels(channels)
		return nil, errors.Wrap(err, "create transport")
	}

	var filter *broker.CommandFilter
	if conf.Command.Dedup {
		filter = broker.NewCommandFilter(conf.Command.FilterCapacity, conf.Command.DuplicationProbability, conf.Command.ResetUsagePercentage)
	}

	manager := broker.NewConnectionManager(transport, broker.ManagerConfig{
		SubscribeTopic:    conf.Broker.SubscribeTopic,
		StepTimeout:       seconds(conf.Broker.StepTimeoutSec),
		MaxAuthRejections: conf.Broker.MaxAuthRejections,
		BackOff: broker.NewExponentialBackOff(
			time.Duration(conf.Broker.Backoff.InitialMs)*time.Millisecond,
			time.Duration(conf.Broker.Backoff.MaxMs)*time.Millisecond,
			conf.Broker.Backoff.Multiplier,
		),
	}, indicatorCommands{led: led, log: logger.Get("Commands")}, filter, prometheus, logger.Get("ConnectionManager"))

	publisher := broker.NewTelemetryPublisher(manager, broker.PublisherConfig{
		Topic:           conf.Broker.PublishTopic,
		Kind:            conf.Telemetry.Kind,
		Interval:        seconds(conf.Telemetry.IntervalSec),
		Timeout:         seconds(conf.Broker.PublishTimeoutSec),
		MaxPayloadBytes: conf.Telemetry.MaxPayloadBytes,
	}, prometheus, logger.Get("Telemetry"))

	sampler := sensor.NewSampler(newClimate(conf.Sensor), newPresence(conf.Sensor), logger.Get("Sampler"))

	loop := NewLoop(LoopConfig{
		Tick:   time.Duration(conf.Loop.TickMs) * time.Millisecond,
		Settle: time.Duration(conf.Loop.SettleMs) * time.Millisecond,
	}, sampler, sink, alert.NewEngine(*conf.Alert.HumidityThreshold), channels, manager, publisher, prometheus, logger.Get("ControlLoop"))

	return &Agent{
		Loop:     loop,
		metrics:  prometheus,
		listen:   conf.Metrics.Listen,
		log:      logger.Get("Agent"),
	}, nil
}

// Run serves metrics when configured and blocks in the control loop.
func (a *Agent) Run(ctx context.Context) error {
	if a.listen != "" {
		go a.metrics.Serve(ctx, a.listen, a.log)
	}
	a.log.Infoln("monitoring started")
	return a.Loop.Run(ctx)
}

func newChannels(conf entities.AlertConfig, led indicator.Indicator) (alert.Channels, error) {
	output, err := alert.OpenAudioDevice(conf.AudioDevice)
	if err != nil {
		return nil, errors.Wrap(ErrStartup, err.Error())
	}
	player, err := alert.NewFilePlayer(conf.AudioAsset, output, conf.FrameBytes)
	if err != nil {
		output.Close()
		return nil, errors.Wrap(ErrStartup, err.Error())
	}
	channels := alert.Channels{alert.NewAudioAlert(player)}
	if conf.UseIndicator {
		channels = append(channels, alert.NewIndicatorAlert(led))
	}
	return channels, nil
}

func newIndicator(conf entities.IndicatorConfig) indicator.Indicator {
	if conf.BrightnessPath == "" {
		return &indicator.Memory{}
	}
	return indicator.NewSysfsLED(conf.BrightnessPath)
}

func newClimate(conf entities.SensorConfig) sensor.ClimateSensor {
	if conf.Source == entities.SensorSourceSimulated {
		return sensor.NewSimulatedClimate(simulatedTemperature, simulatedHumidity, simulatedAmplitude)
	}
	return sensor.NewIIOClimate(conf.IIODevice)
}

func newPresence(conf entities.SensorConfig) sensor.PresenceInput {
	if conf.Source == entities.SensorSourceSimulated || conf.PresencePath == "" {
		return sensor.StaticPresence(false)
	}
	return sensor.NewGPIOPresence(conf.PresencePath)
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

func closeChannels(channels alert.Channels) {
	for _, channel := range channels {
		if closer, ok := channel.(io.Closer); ok {
			_ = closer.Close()
		}
	}
}
