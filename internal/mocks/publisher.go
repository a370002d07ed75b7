package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// SinkMock records emitted domain events.
type SinkMock struct {
	mock.Mock
}

func (m *SinkMock) Emit(ctx context.Context, routingKey, eventType string, payload any) {
	m.Called(ctx, routingKey, eventType, payload)
}
