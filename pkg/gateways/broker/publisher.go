package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/janael-pinheiro/sos-agent/pkg/entities"
	"github.com/janael-pinheiro/sos-agent/pkg/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrPayloadTooLarge is returned when a message does not fit MaxPayloadBytes.
var ErrPayloadTooLarge = errors.New("telemetry payload exceeds buffer")

// Connection is the part of the connection manager the publisher needs.
type Connection interface {
	IsConnected() bool
	Publish(ctx context.Context, topic string, payload []byte) error
}

// PublisherConfig holds the outbound topic, message kind, pacing and
// payload bound.
type PublisherConfig struct {
	Topic           string
	Kind            string
	Interval        time.Duration
	Timeout         time.Duration
	MaxPayloadBytes int
}

// TelemetryPublisher sends at most one status message per interval.
type TelemetryPublisher struct {
	connection  Connection
	conf        PublisherConfig
	observer    metrics.Observer
	log         *logrus.Entry
	newID       func() string
	mu          sync.Mutex
	lastPublish time.Time
}

// NewTelemetryPublisher creates a publisher that has never published, so
// the first eligible call sends immediately.
func NewTelemetryPublisher(connection Connection, conf PublisherConfig, observer metrics.Observer, log *logrus.Entry) *TelemetryPublisher {
	if observer == nil {
		observer = metrics.Nop{}
	}
	return &TelemetryPublisher{
		connection: connection,
		conf:       conf,
		observer:   observer,
		log:        log,
		newID:      uuid.NewString,
	}
}

// MaybePublish returns true when a message was handed to the transport.
// Any attempt, accepted or not, starts a new interval.
func (p *TelemetryPublisher) MaybePublish(ctx context.Context, now time.Time, snapshot entities.SensorSnapshot) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !snapshot.Valid {
		return false
	}
	if !p.lastPublish.IsZero() && now.Sub(p.lastPublish) < p.conf.Interval {
		return false
	}
	if !p.connection.IsConnected() {
		return false
	}
	p.lastPublish = now

	payload, err := p.encode(snapshot)
	if err != nil {
		p.log.Errorf("skipping telemetry: %v", err)
		p.observer.IncCounter(metrics.PublishSkipped, 1)
		return false
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.conf.Timeout)
	defer cancel()
	if err = p.connection.Publish(publishCtx, p.conf.Topic, payload); err != nil {
		p.log.Warnf("publish telemetry: %v", err)
		p.observer.IncCounter(metrics.PublishFailures, 1)
		return false
	}
	p.log.Debugf("published %s", payload)
	p.observer.IncCounter(metrics.Published, 1)
	return true
}

func (p *TelemetryPublisher) encode(snapshot entities.SensorSnapshot) ([]byte, error) {
	message := entities.NoWaterDetectedMessage
	if snapshot.PresenceDetected {
		message = entities.WaterDetectedMessage
	}
	envelope := entities.TelemetryEnvelope{Body: entities.TelemetryMessage{
		ID:          p.newID(),
		Kind:        p.conf.Kind,
		Message:     message,
		Temperature: snapshot.Temperature,
		Humidity:    snapshot.Humidity,
	}}

	buffer := &boundedBuffer{limit: p.conf.MaxPayloadBytes}
	if err := json.NewEncoder(buffer).Encode(envelope); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// boundedBuffer fails writes that would grow past limit. The newline
// json.Encoder terminates each value with is not part of the payload
// and does not count.
type boundedBuffer struct {
	data  []byte
	limit int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	size := len(b.data) + len(bytes.TrimSuffix(p, []byte("\n")))
	if size > b.limit {
		return 0, errors.Wrapf(ErrPayloadTooLarge, "%d bytes", size)
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

// Bytes drops the encoder's trailing newline.
func (b *boundedBuffer) Bytes() []byte {
	if n := len(b.data); n > 0 && b.data[n-1] == '\n' {
		return b.data[:n-1]
	}
	return b.data
}
