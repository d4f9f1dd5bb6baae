package utils

import (
	"os"
	"strconv"

	"github.com/janael-pinheiro/sos-agent/pkg/entities"
	"github.com/pkg/errors"
)

const (
	defaultMQTTPort               = 8883
	defaultAMQPPort               = 5671
	defaultKeepAliveSec           = 30
	defaultStepTimeoutSec         = 10
	defaultPublishTimeoutSec      = 5
	defaultMaxAuthRejections      = 3
	defaultBackoffInitialMs       = 1000
	defaultBackoffMaxMs           = 60000
	defaultBackoffMultiplier      = 2.0
	defaultHumidityThreshold      = 45.0
	defaultFrameBytes             = 4096
	defaultPublishIntervalSec     = 60
	defaultMaxPayloadBytes        = 512
	defaultTelemetryKind          = "sensor"
	defaultTickMs                 = 1000
	defaultSettleMs               = 500
	defaultLogLevel               = "info"
	defaultFilterCapacity         = 1000000
	defaultDuplicationProbability = 0.01
	defaultResetUsagePercentage   = 75
	defaultExchange               = "amq.topic"
)

// LoadAgentConfig parses the YAML file, applies environment overrides
// and defaults, then validates the result.
func LoadAgentConfig(filepathName string) (entities.AgentConfig, error) {
	conf, err := ConfigurationParser[entities.AgentConfig](filepathName)
	if err != nil {
		return conf, errors.Wrap(err, "parse configuration")
	}
	if err = ApplyEnvironment(&conf); err != nil {
		return conf, err
	}
	ApplyDefaults(&conf)
	return conf, ValidateConfig(conf)
}

// ApplyEnvironment overrides selected settings from SOS_* variables.
func ApplyEnvironment(conf *entities.AgentConfig) error {
	conf.Log.Level = getValueFromEnvironmentVariable("SOS_LOG_LEVEL", conf.Log.Level)
	conf.Broker.Host = getValueFromEnvironmentVariable("SOS_BROKER_HOST", conf.Broker.Host)
	conf.Metrics.Listen = getValueFromEnvironmentVariable("SOS_METRICS_LISTEN", conf.Metrics.Listen)
	if port := os.Getenv("SOS_BROKER_PORT"); port != "" {
		value, err := strconv.Atoi(port)
		if err != nil {
			return errors.Wrap(err, "SOS_BROKER_PORT environment variable with invalid value")
		}
		conf.Broker.Port = value
	}
	return nil
}

func ApplyDefaults(conf *entities.AgentConfig) {
	b := &conf.Broker
	if b.Protocol == "" {
		b.Protocol = entities.ProtocolMQTT
	}
	if b.Port == 0 {
		b.Port = defaultMQTTPort
		if b.Protocol == entities.ProtocolAMQP {
			b.Port = defaultAMQPPort
		}
	}
	if b.Exchange == "" {
		b.Exchange = defaultExchange
	}
	setIntDefault(&b.KeepAliveSec, defaultKeepAliveSec)
	setIntDefault(&b.StepTimeoutSec, defaultStepTimeoutSec)
	setIntDefault(&b.PublishTimeoutSec, defaultPublishTimeoutSec)
	setIntDefault(&b.MaxAuthRejections, defaultMaxAuthRejections)
	setIntDefault(&b.Backoff.InitialMs, defaultBackoffInitialMs)
	setIntDefault(&b.Backoff.MaxMs, defaultBackoffMaxMs)
	if b.Backoff.Multiplier == 0 {
		b.Backoff.Multiplier = defaultBackoffMultiplier
	}

	if conf.Alert.HumidityThreshold == nil {
		threshold := defaultHumidityThreshold
		conf.Alert.HumidityThreshold = &threshold
	}
	setIntDefault(&conf.Alert.FrameBytes, defaultFrameBytes)

	setIntDefault(&conf.Telemetry.IntervalSec, defaultPublishIntervalSec)
	setIntDefault(&conf.Telemetry.MaxPayloadBytes, defaultMaxPayloadBytes)
	if conf.Telemetry.Kind == "" {
		conf.Telemetry.Kind = defaultTelemetryKind
	}

	if conf.Sensor.Source == "" {
		conf.Sensor.Source = entities.SensorSourceIIO
	}

	if conf.Command.FilterCapacity == 0 {
		conf.Command.FilterCapacity = defaultFilterCapacity
	}
	if conf.Command.DuplicationProbability == 0 {
		conf.Command.DuplicationProbability = defaultDuplicationProbability
	}
	if conf.Command.ResetUsagePercentage == 0 {
		conf.Command.ResetUsagePercentage = defaultResetUsagePercentage
	}

	setIntDefault(&conf.Loop.TickMs, defaultTickMs)
	setIntDefault(&conf.Loop.SettleMs, defaultSettleMs)

	if conf.Log.Level == "" {
		conf.Log.Level = defaultLogLevel
	}
}

func ValidateConfig(conf entities.AgentConfig) error {
	b := conf.Broker
	switch b.Protocol {
	case entities.ProtocolMQTT, entities.ProtocolAMQP:
	default:
		return errors.Errorf("unknown broker protocol %q", b.Protocol)
	}
	required := []struct{ key, value string }{
		{"broker.host", b.Host},
		{"broker.clientId", b.ClientID},
		{"broker.caFile", b.CAFile},
		{"broker.certFile", b.CertFile},
		{"broker.keyFile", b.KeyFile},
		{"broker.publishTopic", b.PublishTopic},
		{"broker.subscribeTopic", b.SubscribeTopic},
		{"alert.audioAsset", conf.Alert.AudioAsset},
	}
	for _, field := range required {
		if field.value == "" {
			return errors.Errorf("%s is required", field.key)
		}
	}
	if t := conf.Alert.HumidityThreshold; t == nil || *t < 0 || *t > 100 {
		return errors.Errorf("alert.humidityThreshold must be between 0 and 100")
	}
	if b.Port <= 0 || b.Port > 65535 {
		return errors.Errorf("broker.port %d out of range", b.Port)
	}
	if b.Backoff.Multiplier < 1 {
		return errors.Errorf("broker.backoff.multiplier must be >= 1")
	}
	if conf.Telemetry.IntervalSec <= 0 || conf.Loop.TickMs <= 0 || conf.Loop.SettleMs < 0 {
		return errors.Errorf("intervals must be positive")
	}
	switch conf.Sensor.Source {
	case entities.SensorSourceIIO:
		if conf.Sensor.IIODevice == "" {
			return errors.Errorf("sensor.iioDevice is required for the iio source")
		}
	case entities.SensorSourceSimulated:
	default:
		return errors.Errorf("unknown sensor source %q", conf.Sensor.Source)
	}
	return nil
}

func setIntDefault(value *int, defaultValue int) {
	if *value == 0 {
		*value = defaultValue
	}
}

func getValueFromEnvironmentVariable(variableName, defaultValue string) string {
	value := os.Getenv(variableName)
	if value != "" {
		return value
	}
	return defaultValue
}
