package entities

const (
	WaterDetectedMessage   = "Water detected"
	NoWaterDetectedMessage = "No water detected"
)

type TelemetryMessage struct {
	ID          string  `json:"id"`
	Kind        string  `json:"type"`
	Message     string  `json:"message"`
	Temperature float64 `json:"temp"`
	Humidity    float64 `json:"humidity"`
}

// TelemetryEnvelope is the outbound wire shape: {"body": {...}}.
type TelemetryEnvelope struct {
	Body TelemetryMessage `json:"body"`
}

// Command is an inbound instruction. Fields absent from the payload
// stay nil.
type Command struct {
	ID  string `json:"id,omitempty"`
	LED *bool  `json:"LED,omitempty"`
}
