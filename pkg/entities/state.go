package entities

type ConnectionState string

const (
	Disconnected        ConnectionState = "disconnected"
	NetworkAttaching    ConnectionState = "networkAttaching"
	SessionEstablishing ConnectionState = "sessionEstablishing"
	Subscribing         ConnectionState = "subscribing"
	Ready               ConnectionState = "ready"
	Faulted             ConnectionState = "faulted"
)

// ConnectionStates lists every state in lifecycle order.
var ConnectionStates = []ConnectionState{
	Disconnected,
	NetworkAttaching,
	SessionEstablishing,
	Subscribing,
	Ready,
	Faulted,
}

type AlertAction string

const (
	AlertNone  AlertAction = "none"
	StartAlert AlertAction = "startAlert"
	StopAlert  AlertAction = "stopAlert"
)

// AlertState is owned by the alert engine. Armed has no external
// disable and is always true.
type AlertState struct {
	Armed     bool
	Triggered bool
}

func NewAlertState() AlertState {
	return AlertState{Armed: true}
}
