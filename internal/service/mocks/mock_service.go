package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/tmet/flightbook/internal/booking"
	"github.com/tmet/flightbook/internal/database"
)

// MockBookingService is a mock implementation of service.BookingService
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) SearchFlights(ctx context.Context, filter database.FlightFilter) ([]database.Flight, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.Flight), args.Error(1)
}

func (m *MockBookingService) GetFlight(ctx context.Context, flightID uuid.UUID) (*database.Flight, error) {
	args := m.Called(ctx, flightID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Flight), args.Error(1)
}

func (m *MockBookingService) CreateFlight(ctx context.Context, f *database.Flight) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockBookingService) UpdateFlight(ctx context.Context, f *database.Flight) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockBookingService) DeleteFlight(ctx context.Context, flightID uuid.UUID) error {
	args := m.Called(ctx, flightID)
	return args.Error(0)
}

func (m *MockBookingService) BookTicket(ctx context.Context, req booking.BookingRequest) (*booking.BookingResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.BookingResult), args.Error(1)
}

func (m *MockBookingService) CancelTicket(ctx context.Context, ticketID uuid.UUID) (*booking.CancelResult, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.CancelResult), args.Error(1)
}

func (m *MockBookingService) GetTicket(ctx context.Context, ticketID uuid.UUID) (*database.TicketWithFlight, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.TicketWithFlight), args.Error(1)
}

func (m *MockBookingService) ListTicketsByEmail(ctx context.Context, email string) ([]database.TicketWithFlight, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.TicketWithFlight), args.Error(1)
}
