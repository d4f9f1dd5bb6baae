package mocks

import (
	"context"

	"github.com/janael-pinheiro/sos-agent/pkg/gateways/broker/network"
	"github.com/stretchr/testify/mock"
)

type TransportMock struct {
	mock.Mock
	Inbound chan network.InMsg
}

func NewTransportMock() *TransportMock {
	return &TransportMock{Inbound: make(chan network.InMsg, 16)}
}

func (t *TransportMock) Attach(ctx context.Context) error {
	args := t.Called(ctx)
	return args.Error(0)
}

func (t *TransportMock) Establish(ctx context.Context) error {
	args := t.Called(ctx)
	return args.Error(0)
}

func (t *TransportMock) Subscribe(ctx context.Context, topic string) error {
	args := t.Called(ctx, topic)
	return args.Error(0)
}

func (t *TransportMock) Publish(ctx context.Context, topic string, payload []byte) error {
	args := t.Called(ctx, topic, payload)
	return args.Error(0)
}

func (t *TransportMock) IsConnected() bool {
	args := t.Called()
	return args.Bool(0)
}

func (t *TransportMock) Incoming() <-chan network.InMsg {
	return t.Inbound
}

func (t *TransportMock) Close() error {
	args := t.Called()
	return args.Error(0)
}
