package network

import (
	"context"
	"fmt"
	"time"

	"github.com/janael-pinheiro/sos-agent/pkg/entities"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// ErrLinkDown reports that the underlying network link is gone and
	// must be re-attached before a session can be established.
	ErrLinkDown = errors.New("network link down")
	// ErrCredentials reports unusable certificate or key material. It
	// cannot heal without operator intervention.
	ErrCredentials = errors.New("invalid credential material")
	// ErrAuthRejected reports that the broker refused our identity.
	ErrAuthRejected = errors.New("authentication rejected")
	ErrNotConnected = errors.New("transport not connected")
)

const incomingQueueSize = 32

// InMsg is a message received on a subscribed topic.
type InMsg struct {
	Topic string
	Body  []byte
}

// Transport is a broker session split into the phases the connection
// manager drives one at a time.
type Transport interface {
	Attach(ctx context.Context) error
	Establish(ctx context.Context) error
	Subscribe(ctx context.Context, topic string) error
	Publish(ctx context.Context, topic string, payload []byte) error
	IsConnected() bool
	Incoming() <-chan InMsg
	Close() error
}

// NewTransport builds the transport for conf.Protocol over a mutual-TLS
// link. Nothing is dialled until Attach.
func NewTransport(conf entities.BrokerConfig, log *logrus.Entry) (Transport, error) {
	link := newTLSLink(
		fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Credentials{
			CAFile:     conf.CAFile,
			CertFile:   conf.CertFile,
			KeyFile:    conf.KeyFile,
			ServerName: conf.ServerName,
		},
	)
	keepAlive := time.Duration(conf.KeepAliveSec) * time.Second

	switch conf.Protocol {
	case entities.ProtocolMQTT:
		return NewMQTTTransport(link, conf.ClientID, conf.Username, conf.Password, keepAlive, log), nil
	case entities.ProtocolAMQP:
		return NewAMQPTransport(link, conf.ClientID, conf.Username, conf.Password, conf.Exchange, keepAlive, log), nil
	default:
		return nil, fmt.Errorf("unknown broker protocol %q", conf.Protocol)
	}
}

// deliver queues an inbound message without ever blocking the network
// goroutine that received it.
func deliver(incoming chan InMsg, msg InMsg, log *logrus.Entry) {
	select {
	case incoming <- msg:
	default:
		log.Warnf("inbound queue full, dropping message on %s", msg.Topic)
	}
}
