package metrics

const (
	Ticks             = "sos_ticks_total"
	InvalidSamples    = "sos_invalid_samples_total"
	AlertsStarted     = "sos_alerts_started_total"
	AlertsStopped     = "sos_alerts_stopped_total"
	AlertFailures     = "sos_alert_failures_total"
	Published         = "sos_telemetry_published_total"
	PublishFailures   = "sos_telemetry_publish_failures_total"
	PublishSkipped    = "sos_telemetry_skipped_total"
	ConnectRetries    = "sos_connect_retries_total"
	Reconnects        = "sos_reconnects_total"
	CommandsApplied   = "sos_commands_applied_total"
	CommandsDiscarded = "sos_commands_discarded_total"

	ConnectionState = "sos_connection_state"
	Temperature     = "sos_temperature_celsius"
	Humidity        = "sos_humidity_percent"
	WaterDetected   = "sos_water_detected"
	AlertTriggered  = "sos_alert_triggered"
)

// Observer receives counters and gauges from the control loop.
type Observer interface {
	IncCounter(name string, v float64)
	SetGauge(name string, v float64)
}

type Nop struct{}

func (Nop) IncCounter(string, float64) {}

func (Nop) SetGauge(string, float64) {}
