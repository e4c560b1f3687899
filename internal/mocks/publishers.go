package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/kirinyoku/cinebook/internal/broker"
	"github.com/stretchr/testify/mock"
)

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishBookingCreated(ctx context.Context, ev broker.BookingEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishBookingDeleted(ctx context.Context, ev broker.BookingEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

type MockChangeNotifier struct {
	mock.Mock
}

func (m *MockChangeNotifier) PublishBookingsChanged(ctx context.Context, kind string, userID, movieID uuid.UUID) error {
	args := m.Called(ctx, kind, userID, movieID)
	return args.Error(0)
}
