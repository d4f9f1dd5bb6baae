package network

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	mqttCommandQoS   = 1
	mqttTelemetryQoS = 0

	reasonBadUserNameOrPassword = 0x86
	reasonNotAuthorized         = 0x87
	reasonBanned                = 0x8A
	reasonBadAuthMethod         = 0x8C
	reasonFailureThreshold      = 0x80
)

// MQTTTransport speaks MQTT v5 over the mutual-TLS link.
type MQTTTransport struct {
	mu        sync.Mutex
	link      *tlsLink
	secure    func(ctx context.Context) (net.Conn, error)
	clientID  string
	username  string
	password  []byte
	keepAlive uint16
	client    *paho.Client
	connected atomic.Bool
	incoming  chan InMsg
	log       *logrus.Entry
}

// NewMQTTTransport creates an MQTT transport over link.
func NewMQTTTransport(link *tlsLink, clientID, username, password string, keepAlive time.Duration, log *logrus.Entry) *MQTTTransport {
	return &MQTTTransport{
		link: link,
		secure: func(ctx context.Context) (net.Conn, error) {
			conn, err := link.handshake(ctx)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
		clientID:  clientID,
		username:  username,
		password:  []byte(password),
		keepAlive: uint16(keepAlive / time.Second),
		incoming:  make(chan InMsg, incomingQueueSize),
		log:       log,
	}
}

func (t *MQTTTransport) Attach(ctx context.Context) error {
	t.teardown()
	return t.link.attach(ctx)
}

func (t *MQTTTransport) Establish(ctx context.Context) error {
	conn, err := t.secure(ctx)
	if err != nil {
		return err
	}

	client := paho.NewClient(paho.ClientConfig{
		ClientID: t.clientID,
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			t.onPublishReceived,
		},
		OnClientError: func(err error) {
			t.log.Warnf("mqtt client error: %v", err)
			t.connected.Store(false)
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			t.log.Warnf("mqtt server disconnect, reason code %d", d.ReasonCode)
			t.connected.Store(false)
		},
	})

	connect := &paho.Connect{
		ClientID:   t.clientID,
		KeepAlive:  t.keepAlive,
		CleanStart: true,
	}
	if t.username != "" {
		connect.Username = t.username
		connect.UsernameFlag = true
		connect.Password = t.password
		connect.PasswordFlag = true
	}

	connack, err := client.Connect(ctx, connect)
	if err != nil {
		_ = conn.Close()
		if connack != nil && isAuthReason(connack.ReasonCode) {
			return errors.Wrapf(ErrAuthRejected, "mqtt connect refused with reason code %d", connack.ReasonCode)
		}
		return errors.Wrapf(ErrLinkDown, "mqtt connect: %v", err)
	}

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()
	t.connected.Store(true)
	return nil
}

func (t *MQTTTransport) Subscribe(ctx context.Context, topic string) error {
	client, err := t.activeClient()
	if err != nil {
		return err
	}
	suback, err := client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: mqttCommandQoS}},
	})
	if err != nil {
		return errors.Wrapf(err, "subscribe %s", topic)
	}
	if len(suback.Reasons) > 0 && suback.Reasons[0] >= reasonFailureThreshold {
		return errors.Errorf("subscribe %s refused with reason code %d", topic, suback.Reasons[0])
	}
	return nil
}

func (t *MQTTTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	client, err := t.activeClient()
	if err != nil {
		return err
	}
	_, err = client.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     mqttTelemetryQoS,
		Payload: payload,
	})
	return errors.Wrapf(err, "publish %s", topic)
}

// IsConnected reports whether the MQTT session is up.
func (t *MQTTTransport) IsConnected() bool {
	return t.connected.Load()
}

func (t *MQTTTransport) Incoming() <-chan InMsg {
	return t.incoming
}

func (t *MQTTTransport) Close() error {
	err := t.teardown()
	t.link.close()
	return err
}

func (t *MQTTTransport) onPublishReceived(received paho.PublishReceived) (bool, error) {
	deliver(t.incoming, InMsg{Topic: received.Packet.Topic, Body: received.Packet.Payload}, t.log)
	return true, nil
}

func (t *MQTTTransport) activeClient() (*paho.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil || !t.connected.Load() {
		return nil, ErrNotConnected
	}
	return t.client, nil
}

func (t *MQTTTransport) teardown() error {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.mu.Unlock()
	wasConnected := t.connected.Swap(false)
	if client == nil || !wasConnected {
		return nil
	}
	return client.Disconnect(&paho.Disconnect{ReasonCode: 0})
}

func isAuthReason(code byte) bool {
	switch code {
	case reasonBadUserNameOrPassword, reasonNotAuthorized, reasonBanned, reasonBadAuthMethod:
		return true
	}
	return false
}
