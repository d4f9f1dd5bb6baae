package agent

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	"github.com/janael-pinheiro/sos-agent/pkg/alert"
	"github.com/janael-pinheiro/sos-agent/pkg/display"
	"github.com/janael-pinheiro/sos-agent/pkg/entities"
	"github.com/janael-pinheiro/sos-agent/pkg/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Sampler produces one snapshot per tick.
type Sampler interface {
	Sample() entities.SensorSnapshot
}

// Connection is the broker session as seen by the loop.
type Connection interface {
	EnsureConnected(ctx context.Context) entities.ConnectionState
	ProcessIncoming() int
	State() entities.ConnectionState
	Fault() error
	Close() error
}

// Publisher sends telemetry at most once per interval.
type Publisher interface {
	MaybePublish(ctx context.Context, now time.Time, snapshot entities.SensorSnapshot) bool
}

// LoopConfig paces the loop: Tick between iterations, Settle between
// sampling and rendering.
type LoopConfig struct {
	Tick   time.Duration
	Settle time.Duration
}

// Loop drives sampling, alerting and broker upkeep one tick at a time.
type Loop struct {
	conf          LoopConfig
	sampler       Sampler
	sink          display.Sink
	engine        *alert.Engine
	channels      alert.Channels
	connection    Connection
	publisher     Publisher
	observer      metrics.Observer
	log           *logrus.Entry
	alertState    entities.AlertState
	pending       alert.Channels
	faultReported bool
}

// NewLoop creates a loop with no alert in progress. A nil
// observer disables metrics.
func NewLoop(conf LoopConfig, sampler Sampler, sink display.Sink, engine *alert.Engine, channels alert.Channels,
	connection Connection, publisher Publisher, observer metrics.Observer, log *logrus.Entry) *Loop {
	if observer == nil {
		observer = metrics.Nop{}
	}
	return &Loop{
		conf:       conf,
		sampler:    sampler,
		sink:       sink,
		engine:     engine,
		channels:   channels,
		connection: connection,
		publisher:  publisher,
		observer:   observer,
		log:        log,
		alertState: entities.NewAlertState(),
	}
}

func (l *Loop) AlertState() entities.AlertState {
	return l.alertState
}

// Tick runs one iteration. The returned error is non-nil only while the
// connection is faulted; local monitoring has still completed.
func (l *Loop) Tick(ctx context.Context, now time.Time) error {
	l.observer.IncCounter(metrics.Ticks, 1)
	snapshot := l.sampler.Sample()
	l.record(snapshot)

	if err := pause(ctx, l.conf.Settle); err != nil {
		return nil
	}
	if err := l.sink.Render(display.StatusLines(snapshot, l.connection.State(), l.connection.Fault())); err != nil {
		l.log.Warnf("render display: %v", err)
	}

	l.applyAlert(snapshot)
	if err := l.channels.Step(); err != nil {
		l.log.Warnf("alert playback: %v", err)
		l.observer.IncCounter(metrics.AlertFailures, 1)
	}

	state := l.connection.EnsureConnected(ctx)
	if state == entities.Faulted {
		fault := l.connection.Fault()
		if !l.faultReported {
			l.log.Errorf("broker connection faulted, continuing local monitoring: %v", fault)
			l.faultReported = true
		}
		return fault
	}
	if state == entities.Ready {
		l.connection.ProcessIncoming()
	}
	l.publisher.MaybePublish(ctx, now, snapshot)
	return nil
}

func (l *Loop) record(snapshot entities.SensorSnapshot) {
	if !snapshot.Valid {
		l.observer.IncCounter(metrics.InvalidSamples, 1)
		l.log.Warnln("Unable to fetch temp/humidity readings, trying again")
	} else {
		l.log.Debugf("%.2f degrees", snapshot.Temperature)
		l.log.Debugf("%.0f humidity", snapshot.Humidity)
		l.observer.SetGauge(metrics.Temperature, snapshot.Temperature)
		l.observer.SetGauge(metrics.Humidity, snapshot.Humidity)
	}
	if snapshot.PresenceDetected {
		l.log.Debugln("Water sensor reading: HIGH")
		l.observer.SetGauge(metrics.WaterDetected, 1)
	} else {
		l.log.Debugln("Water sensor reading: LOW")
		l.observer.SetGauge(metrics.WaterDetected, 0)
	}
}

// applyAlert commits the triggered state as soon as one channel is
// raising the alarm. Channels that failed to start are retried on later
// ticks of the same excursion; the ones already running are left alone.
// When no channel starts the state is not committed and the next tick
// yields StartAlert again.
func (l *Loop) applyAlert(snapshot entities.SensorSnapshot) {
	next, action := l.engine.Evaluate(snapshot, l.alertState)
	switch action {
	case entities.StartAlert:
		failed, err := l.channels.Start()
		if len(l.channels) > 0 && len(failed) == len(l.channels) {
			l.log.Errorf("start alert: %v", err)
			l.observer.IncCounter(metrics.AlertFailures, 1)
			return
		}
		if err != nil {
			l.log.Warnf("alert raised with %d channel(s) down: %v", len(failed), err)
			l.observer.IncCounter(metrics.AlertFailures, 1)
		}
		l.pending = failed
		l.log.Warnf("humidity %.0f above %.0f, alert started", snapshot.Humidity, l.engine.Threshold())
		l.observer.IncCounter(metrics.AlertsStarted, 1)
	case entities.StopAlert:
		l.pending = nil
		if err := l.channels.Stop(); err != nil {
			l.log.Warnf("stop alert: %v", err)
		}
		l.log.Infoln("humidity back below threshold, alert stopped")
		l.observer.IncCounter(metrics.AlertsStopped, 1)
	default:
		l.retryPending()
	}
	l.alertState = next
	if next.Triggered {
		l.observer.SetGauge(metrics.AlertTriggered, 1)
	} else {
		l.observer.SetGauge(metrics.AlertTriggered, 0)
	}
}

func (l *Loop) retryPending() {
	if len(l.pending) == 0 {
		return
	}
	failed, err := l.pending.Start()
	if err != nil {
		l.log.Debugf("alert channel still down: %v", err)
	}
	l.pending = failed
}

// Run ticks until ctx is cancelled and then releases every channel and
// the broker session.
func (l *Loop) Run(ctx context.Context) error {
	var fault error
	for {
		if err := pause(ctx, l.conf.Tick); err != nil {
			break
		}
		if err := l.Tick(ctx, time.Now()); err != nil {
			fault = err
		}
	}
	if err := l.Close(); err != nil {
		l.log.Warnf("shutdown: %v", err)
	}
	if fault != nil {
		return errors.Wrap(fault, "stopped with faulted connection")
	}
	return nil
}

func (l *Loop) Close() error {
	var errs []error
	if err := l.channels.Stop(); err != nil {
		errs = append(errs, err)
	}
	for _, channel := range l.channels {
		if closer, ok := channel.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := l.connection.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.WithStack(stderrors.Join(errs...))
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
