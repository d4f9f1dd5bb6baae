package network

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	exchangeTypeTopic = "topic"
	durable           = true
	deleteWhenUnused  = true
	exclusive         = true
	noWait            = false
	internal          = false
	noAck             = true
	noLocal           = false
	defaultLocale     = "en_US"
	defaultVhost      = "/"
)

// AMQPTransport speaks AMQP 0-9-1 over the mutual-TLS link. Topics use
// MQTT-style slashes and are mapped to dotted routing keys, matching
// the RabbitMQ MQTT plugin, so one configuration serves both protocols.
type AMQPTransport struct {
	mu        sync.Mutex
	link      *tlsLink
	clientID  string
	username  string
	password  string
	exchange  string
	heartbeat time.Duration
	conn      *amqp.Connection
	channel   *amqp.Channel
	channelUp atomic.Bool
	incoming  chan InMsg
	log       *logrus.Entry
}

// NewAMQPTransport creates an AMQP transport over link. An empty
// username selects EXTERNAL (client certificate) authentication.
func NewAMQPTransport(link *tlsLink, clientID, username, password, exchange string, heartbeat time.Duration, log *logrus.Entry) *AMQPTransport {
	return &AMQPTransport{
		link:      link,
		clientID:  clientID,
		username:  username,
		password:  password,
		exchange:  exchange,
		heartbeat: heartbeat,
		incoming:  make(chan InMsg, incomingQueueSize),
		log:       log,
	}
}

func (a *AMQPTransport) Attach(ctx context.Context) error {
	a.teardown()
	return a.link.attach(ctx)
}

func (a *AMQPTransport) Establish(ctx context.Context) error {
	conn, err := a.link.handshake(ctx)
	if err != nil {
		return err
	}

	var auth amqp.Authentication = &amqp.ExternalAuth{}
	if a.username != "" {
		auth = &amqp.PlainAuth{Username: a.username, Password: a.password}
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	connection, err := amqp.Open(conn, amqp.Config{
		SASL:      []amqp.Authentication{auth},
		Vhost:     defaultVhost,
		Heartbeat: a.heartbeat,
		Locale:    defaultLocale,
		Properties: amqp.Table{
			"connection_name": a.clientID,
		},
	})
	if err != nil {
		_ = conn.Close()
		if isAMQPAuthError(err) {
			return errors.Wrapf(ErrAuthRejected, "amqp open: %v", err)
		}
		return errors.Wrapf(ErrLinkDown, "amqp open: %v", err)
	}
	_ = conn.SetDeadline(time.Time{})

	channel, err := connection.Channel()
	if err != nil {
		_ = connection.Close()
		return errors.Wrapf(ErrLinkDown, "amqp channel: %v", err)
	}
	if !strings.HasPrefix(a.exchange, "amq.") {
		err = channel.ExchangeDeclare(a.exchange, exchangeTypeTopic, durable, false, internal, noWait, nil)
		if err != nil {
			_ = connection.Close()
			return errors.Wrapf(ErrLinkDown, "declare exchange %s: %v", a.exchange, err)
		}
	}

	a.mu.Lock()
	a.conn = connection
	a.channel = channel
	a.mu.Unlock()
	a.channelUp.Store(true)
	go a.notifyWhenClosed(channel.NotifyClose(make(chan *amqp.Error, 1)))
	return nil
}

func (a *AMQPTransport) Subscribe(_ context.Context, topic string) error {
	channel, err := a.activeChannel()
	if err != nil {
		return err
	}
	queueName := a.clientID + ".commands"
	queue, err := channel.QueueDeclare(queueName, !durable, deleteWhenUnused, exclusive, noWait, nil)
	if err != nil {
		return errors.Wrapf(err, "declare queue %s", queueName)
	}
	if err = channel.QueueBind(queue.Name, routingKey(topic), a.exchange, noWait, nil); err != nil {
		return errors.Wrapf(err, "bind %s", topic)
	}
	deliveries, err := channel.Consume(queue.Name, a.clientID, noAck, exclusive, noLocal, noWait, nil)
	if err != nil {
		return errors.Wrapf(err, "consume %s", queue.Name)
	}
	go a.convertDeliveryToInMsg(deliveries, topic)
	return nil
}

func (a *AMQPTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	channel, err := a.activeChannel()
	if err != nil {
		return err
	}
	err = channel.PublishWithContext(ctx, a.exchange, routingKey(topic), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Body:         payload,
	})
	return errors.Wrapf(err, "publish %s", topic)
}

// IsConnected reports whether the AMQP channel is open.
func (a *AMQPTransport) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn != nil && !a.conn.IsClosed() && a.channelUp.Load()
}

func (a *AMQPTransport) Incoming() <-chan InMsg {
	return a.incoming
}

func (a *AMQPTransport) Close() error {
	err := a.teardown()
	a.link.close()
	return err
}

func (a *AMQPTransport) activeChannel() (*amqp.Channel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.channel == nil || a.conn == nil || a.conn.IsClosed() || !a.channelUp.Load() {
		return nil, ErrNotConnected
	}
	return a.channel, nil
}

func (a *AMQPTransport) notifyWhenClosed(closed <-chan *amqp.Error) {
	reason, ok := <-closed
	a.channelUp.Store(false)
	if ok && reason != nil {
		a.log.Warnf("amqp channel closed: %v", reason)
	}
}

func (a *AMQPTransport) convertDeliveryToInMsg(deliveries <-chan amqp.Delivery, topic string) {
	for d := range deliveries {
		deliver(a.incoming, InMsg{Topic: topic, Body: d.Body}, a.log)
	}
}

func (a *AMQPTransport) teardown() error {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.channel = nil
	a.mu.Unlock()
	a.channelUp.Store(false)
	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

func routingKey(topic string) string {
	return strings.ReplaceAll(topic, "/", ".")
}

func isAMQPAuthError(err error) bool {
	if errors.Is(err, amqp.ErrSASL) || errors.Is(err, amqp.ErrCredentials) {
		return true
	}
	var amqpErr *amqp.Error
	return errors.As(err, &amqpErr) && amqpErr.Code == amqp.AccessRefused
}
