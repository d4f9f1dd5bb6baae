package entities

const (
	ProtocolMQTT = "mqtt"
	ProtocolAMQP = "amqp"

	SensorSourceIIO       = "iio"
	SensorSourceSimulated = "simulated"
)

type AgentConfig struct {
	Device    DeviceConfig    `yaml:"device"`
	Broker    BrokerConfig    `yaml:"broker"`
	Alert     AlertConfig     `yaml:"alert"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Command   CommandConfig   `yaml:"command"`
	Loop      LoopConfig      `yaml:"loop"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type DeviceConfig struct {
	Name string `yaml:"name"`
}

type BrokerConfig struct {
	Protocol          string        `yaml:"protocol"`
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	ClientID          string        `yaml:"clientId"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	CAFile            string        `yaml:"caFile"`
	CertFile          string        `yaml:"certFile"`
	KeyFile           string        `yaml:"keyFile"`
	ServerName        string        `yaml:"serverName"`
	PublishTopic      string        `yaml:"publishTopic"`
	SubscribeTopic    string        `yaml:"subscribeTopic"`
	Exchange          string        `yaml:"exchange"`
	KeepAliveSec      int           `yaml:"keepAliveSec"`
	StepTimeoutSec    int           `yaml:"stepTimeoutSec"`
	PublishTimeoutSec int           `yaml:"publishTimeoutSec"`
	MaxAuthRejections int           `yaml:"maxAuthRejections"`
	Backoff           BackoffConfig `yaml:"backoff"`
}

type BackoffConfig struct {
	InitialMs  int     `yaml:"initialMs"`
	MaxMs      int     `yaml:"maxMs"`
	Multiplier float64 `yaml:"multiplier"`
}

type AlertConfig struct {
	HumidityThreshold *float64 `yaml:"humidityThreshold"`
	AudioAsset        string  `yaml:"audioAsset"`
	AudioDevice       string  `yaml:"audioDevice"`
	FrameBytes        int     `yaml:"frameBytes"`
	UseIndicator      bool    `yaml:"useIndicator"`
}

type TelemetryConfig struct {
	IntervalSec     int    `yaml:"intervalSec"`
	MaxPayloadBytes int    `yaml:"maxPayloadBytes"`
	Kind            string `yaml:"kind"`
}

type SensorConfig struct {
	Source       string `yaml:"source"`
	IIODevice    string `yaml:"iioDevice"`
	PresencePath string `yaml:"presencePath"`
}

type IndicatorConfig struct {
	BrightnessPath string `yaml:"brightnessPath"`
}

type CommandConfig struct {
	Dedup                  bool    `yaml:"dedup"`
	FilterCapacity         uint    `yaml:"filterCapacity"`
	DuplicationProbability float64 `yaml:"duplicationProbability"`
	ResetUsagePercentage   float32 `yaml:"resetUsagePercentage"`
}

type LoopConfig struct {
	TickMs   int `yaml:"tickMs"`
	SettleMs int `yaml:"settleMs"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}
