package broker

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/janael-pinheiro/sos-agent/pkg/entities"
	"github.com/janael-pinheiro/sos-agent/pkg/gateways/broker/network"
	"github.com/janael-pinheiro/sos-agent/pkg/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const maxCommandsPerTick = 16

// ErrFaulted wraps the terminal error of a connection that needs
// operator intervention.
var ErrFaulted = errors.New("connection faulted")

// CommandHandler applies a decoded inbound command.
type CommandHandler interface {
	Apply(command entities.Command) error
}

// ManagerConfig holds the session settings read once at startup.
type ManagerConfig struct {
	SubscribeTopic    string
	StepTimeout       time.Duration
	MaxAuthRejections int
	BackOff           backoff.BackOff
}

// ConnectionManager advances the broker session one step per call so
// that reconnection never stalls the sampling loop.
type ConnectionManager struct {
	transport      network.Transport
	conf           ManagerConfig
	commands       CommandHandler
	filter         *CommandFilter
	observer       metrics.Observer
	log            *logrus.Entry
	now            func() time.Time
	steps          map[entities.ConnectionState]func(context.Context) error
	mu             sync.RWMutex
	state          entities.ConnectionState
	fault          error
	nextAttempt    time.Time
	authRejections int
	retries        int
	reconnects     int
}

// NewExponentialBackOff never gives up; MaxElapsedTime is disabled.
func NewExponentialBackOff(initial, max time.Duration, multiplier float64) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.Multiplier = multiplier
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// NewConnectionManager creates a manager in the Disconnected state. A nil
// observer disables metrics and a nil filter disables replay checks.
func NewConnectionManager(transport network.Transport, conf ManagerConfig, commands CommandHandler, filter *CommandFilter, observer metrics.Observer, log *logrus.Entry) *ConnectionManager {
	if conf.BackOff == nil {
		conf.BackOff = &backoff.ZeroBackOff{}
	}
	if observer == nil {
		observer = metrics.Nop{}
	}
	m := &ConnectionManager{
		transport: transport,
		conf:      conf,
		commands:  commands,
		filter:    filter,
		observer:  observer,
		log:       log,
		now:       time.Now,
		state:     entities.Disconnected,
	}
	m.steps = map[entities.ConnectionState]func(context.Context) error{
		entities.NetworkAttaching:    m.attach,
		entities.SessionEstablishing: m.establish,
		entities.Subscribing:         m.subscribe,
	}
	return m
}

// State returns the current connection state.
func (m *ConnectionManager) State() entities.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether the session is Ready.
func (m *ConnectionManager) IsConnected() bool {
	return m.State() == entities.Ready
}

// Fault returns the terminal error once the manager is Faulted.
func (m *ConnectionManager) Fault() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fault
}

func (m *ConnectionManager) Retries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.retries
}

func (m *ConnectionManager) Reconnects() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reconnects
}

// EnsureConnected performs at most one connection attempt and returns
// the resulting state. A Disconnected manager moves to NetworkAttaching
// and makes the attach attempt in the same call.
func (m *ConnectionManager) EnsureConnected(ctx context.Context) entities.ConnectionState {
	state := m.State()
	switch state {
	case entities.Faulted:
		return state
	case entities.Ready:
		if !m.transport.IsConnected() {
			m.mu.Lock()
			m.reconnects++
			m.mu.Unlock()
			m.observer.IncCounter(metrics.Reconnects, 1)
			m.log.Warnln("broker connection lost, reconnecting")
			m.conf.BackOff.Reset()
			m.nextAttempt = time.Time{}
			return m.setState(entities.Disconnected)
		}
		return state
	case entities.Disconnected:
		m.log.Infoln("attaching to network")
		state = m.setState(entities.NetworkAttaching)
	}

	if m.now().Before(m.nextAttempt) {
		return state
	}

	stepCtx, cancel := context.WithTimeout(ctx, m.conf.StepTimeout)
	defer cancel()
	err := m.steps[state](stepCtx)
	if err == nil {
		m.conf.BackOff.Reset()
		m.nextAttempt = time.Time{}
		return m.State()
	}
	if m.State() == entities.Faulted {
		return entities.Faulted
	}

	m.mu.Lock()
	m.retries++
	m.mu.Unlock()
	m.observer.IncCounter(metrics.ConnectRetries, 1)
	wait := m.conf.BackOff.NextBackOff()
	if wait == backoff.Stop {
		wait = 0
	}
	m.nextAttempt = m.now().Add(wait)
	m.log.Warnf("%s failed, retrying in %s: %v", state, wait, err)
	return m.State()
}

func (m *ConnectionManager) attach(ctx context.Context) error {
	if err := m.transport.Attach(ctx); err != nil {
		return err
	}
	m.setState(entities.SessionEstablishing)
	return nil
}

// establish consumes the attached link, so every failure other than a
// fault goes back to NetworkAttaching and the session is retried on a
// fresh link.
func (m *ConnectionManager) establish(ctx context.Context) error {
	err := m.transport.Establish(ctx)
	switch {
	case err == nil:
		m.authRejections = 0
		m.log.Infoln("secure session established")
		m.setState(entities.Subscribing)
		return nil
	case errors.Is(err, network.ErrCredentials):
		m.toFaulted(err)
		return err
	case errors.Is(err, network.ErrAuthRejected):
		m.authRejections++
		if m.authRejections >= m.conf.MaxAuthRejections {
			m.toFaulted(errors.Wrapf(err, "rejected %d times", m.authRejections))
			return err
		}
	}
	m.setState(entities.NetworkAttaching)
	return err
}

func (m *ConnectionManager) subscribe(ctx context.Context) error {
	if err := m.transport.Subscribe(ctx, m.conf.SubscribeTopic); err != nil {
		if !m.transport.IsConnected() {
			m.setState(entities.Disconnected)
		}
		return err
	}
	m.log.Infof("subscribed to %s", m.conf.SubscribeTopic)
	m.setState(entities.Ready)
	return nil
}

func (m *ConnectionManager) toFaulted(err error) {
	m.mu.Lock()
	m.fault = errors.Wrap(ErrFaulted, err.Error())
	m.mu.Unlock()
	m.setState(entities.Faulted)
	m.log.Errorf("connection faulted, operator intervention required: %v", err)
	if closeErr := m.transport.Close(); closeErr != nil {
		m.log.Warnf("close transport: %v", closeErr)
	}
}

func (m *ConnectionManager) setState(state entities.ConnectionState) entities.ConnectionState {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	m.observer.SetGauge(metrics.ConnectionState, float64(stateIndex(state)))
	return state
}

// ProcessIncoming drains queued inbound messages without blocking and
// returns how many commands were applied.
func (m *ConnectionManager) ProcessIncoming() int {
	if m.State() != entities.Ready {
		return 0
	}
	applied := 0
	for i := 0; i < maxCommandsPerTick; i++ {
		select {
		case msg := <-m.transport.Incoming():
			if m.handle(msg) {
				applied++
			}
		default:
			return applied
		}
	}
	return applied
}

func (m *ConnectionManager) handle(msg network.InMsg) bool {
	command, err := DecodeCommand(msg.Body)
	if err != nil {
		m.log.Warnf("discarding message on %s: %v", msg.Topic, err)
		m.observer.IncCounter(metrics.CommandsDiscarded, 1)
		return false
	}
	if m.filter != nil && command.ID != "" && m.filter.Seen(command.ID) {
		m.log.Infof("discarding replayed command %s", command.ID)
		m.observer.IncCounter(metrics.CommandsDiscarded, 1)
		return false
	}
	if m.commands == nil {
		return false
	}
	if err = m.commands.Apply(command); err != nil {
		m.log.Errorf("apply command: %v", err)
		return false
	}
	m.observer.IncCounter(metrics.CommandsApplied, 1)
	return true
}

// Publish sends a payload on the live session.
func (m *ConnectionManager) Publish(ctx context.Context, topic string, payload []byte) error {
	if !m.IsConnected() {
		return network.ErrNotConnected
	}
	return m.transport.Publish(ctx, topic, payload)
}

func (m *ConnectionManager) Close() error {
	return m.transport.Close()
}

func stateIndex(state entities.ConnectionState) int {
	for i, s := range entities.ConnectionStates {
		if s == state {
			return i
		}
	}
	return -1
}
