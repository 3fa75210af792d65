package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tmet/flightbook/internal/booking"
	"github.com/tmet/flightbook/internal/database"
)

// BookingService defines the caller-facing API of the system
type BookingService interface {
	SearchFlights(ctx context.Context, filter database.FlightFilter) ([]database.Flight, error)
	GetFlight(ctx context.Context, flightID uuid.UUID) (*database.Flight, error)
	CreateFlight(ctx context.Context, f *database.Flight) error
	UpdateFlight(ctx context.Context, f *database.Flight) error
	DeleteFlight(ctx context.Context, flightID uuid.UUID) error

	BookTicket(ctx context.Context, req booking.BookingRequest) (*booking.BookingResult, error)
	CancelTicket(ctx context.Context, ticketID uuid.UUID) (*booking.CancelResult, error)
	GetTicket(ctx context.Context, ticketID uuid.UUID) (*database.TicketWithFlight, error)
	ListTicketsByEmail(ctx context.Context, email string) ([]database.TicketWithFlight, error)
}

// Store is the slice of the repository the service needs
type Store interface {
	CreateFlight(ctx context.Context, f *database.Flight) error
	GetFlightByID(ctx context.Context, id uuid.UUID) (*database.Flight, error)
	SearchFlights(ctx context.Context, filter database.FlightFilter) ([]database.Flight, error)
	UpdateFlight(ctx context.Context, f *database.Flight) error
	DeleteFlight(ctx context.Context, id uuid.UUID) error
	GetTicketWithFlight(ctx context.Context, id uuid.UUID) (*database.TicketWithFlight, error)
	ListTicketsByEmail(ctx context.Context, email string) ([]database.TicketWithFlight, error)
}

// Coordinator is the booking saga the service delegates seat mutations to
type Coordinator interface {
	BookTicket(ctx context.Context, req booking.BookingRequest) (*booking.BookingResult, error)
	CancelTicket(ctx context.Context, ticketID uuid.UUID) (*booking.CancelResult, error)
}

// SeatBroadcaster pushes live seat-count updates to watching clients
type SeatBroadcaster interface {
	BroadcastSeatUpdate(flightID uuid.UUID, available, total int)
}

// InventorySeeder keeps an external seat-counter store in step with admin
// flight edits. Nil when the counters live in the same database as flights.
type InventorySeeder interface {
	SeedFlightSeats(ctx context.Context, flightID uuid.UUID, available, total int) error
	DropFlightSeats(ctx context.Context, flightID uuid.UUID) error
}

// bookingServiceImpl implements BookingService
type bookingServiceImpl struct {
	store       Store
	coordinator Coordinator
	broadcaster SeatBroadcaster
	seeder      InventorySeeder
}

// NewBookingService creates a new BookingService. broadcaster and seeder may
// be nil.
func NewBookingService(store Store, coordinator Coordinator, broadcaster SeatBroadcaster, seeder InventorySeeder) BookingService {
	return &bookingServiceImpl{
		store:       store,
		coordinator: coordinator,
		broadcaster: broadcaster,
		seeder:      seeder,
	}
}

func (s *bookingServiceImpl) SearchFlights(ctx context.Context, filter database.FlightFilter) ([]database.Flight, error) {
	return s.store.SearchFlights(ctx, filter)
}

func (s *bookingServiceImpl) GetFlight(ctx context.Context, flightID uuid.UUID) (*database.Flight, error) {
	return s.store.GetFlightByID(ctx, flightID)
}

func (s *bookingServiceImpl) CreateFlight(ctx context.Context, f *database.Flight) error {
	if err := validateFlight(f); err != nil {
		return err
	}

	if err := s.store.CreateFlight(ctx, f); err != nil {
		return err
	}

	if s.seeder != nil {
		if err := s.seeder.SeedFlightSeats(ctx, f.ID, f.SeatsAvailable, f.SeatsTotal); err != nil {
			return fmt.Errorf("seed seat counters: %w", err)
		}
	}

	return nil
}

func (s *bookingServiceImpl) UpdateFlight(ctx context.Context, f *database.Flight) error {
	if err := validateFlight(f); err != nil {
		return err
	}

	if err := s.store.UpdateFlight(ctx, f); err != nil {
		return err
	}

	if s.seeder != nil {
		if err := s.seeder.SeedFlightSeats(ctx, f.ID, f.SeatsAvailable, f.SeatsTotal); err != nil {
			return fmt.Errorf("seed seat counters: %w", err)
		}
	}

	s.broadcastSeats(f.ID, f.SeatsAvailable, f.SeatsTotal)
	return nil
}

func (s *bookingServiceImpl) DeleteFlight(ctx context.Context, flightID uuid.UUID) error {
	if err := s.store.DeleteFlight(ctx, flightID); err != nil {
		return err
	}

	if s.seeder != nil {
		if err := s.seeder.DropFlightSeats(ctx, flightID); err != nil {
			return fmt.Errorf("drop seat counters: %w", err)
		}
	}

	return nil
}

func (s *bookingServiceImpl) BookTicket(ctx context.Context, req booking.BookingRequest) (*booking.BookingResult, error) {
	res, err := s.coordinator.BookTicket(ctx, req)
	if err != nil {
		return nil, err
	}

	s.broadcastSeats(req.FlightID, res.SeatsRemaining, res.SeatsTotal)
	return res, nil
}

func (s *bookingServiceImpl) CancelTicket(ctx context.Context, ticketID uuid.UUID) (*booking.CancelResult, error) {
	res, err := s.coordinator.CancelTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	s.broadcastSeats(res.FlightID, res.SeatsRemaining, res.SeatsTotal)
	return res, nil
}

func (s *bookingServiceImpl) GetTicket(ctx context.Context, ticketID uuid.UUID) (*database.TicketWithFlight, error) {
	return s.store.GetTicketWithFlight(ctx, ticketID)
}

func (s *bookingServiceImpl) ListTicketsByEmail(ctx context.Context, email string) ([]database.TicketWithFlight, error) {
	return s.store.ListTicketsByEmail(ctx, email)
}

func (s *bookingServiceImpl) broadcastSeats(flightID uuid.UUID, available, total int) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastSeatUpdate(flightID, available, total)
	}
}

func validateFlight(f *database.Flight) error {
	if f.FromCity == "" || f.ToCity == "" {
		return fmt.Errorf("%w: from_city and to_city are required", booking.ErrInvalidInput)
	}
	if f.SeatsTotal <= 0 {
		return fmt.Errorf("%w: seats_total must be positive", booking.ErrInvalidInput)
	}
	if f.SeatsAvailable < 0 || f.SeatsAvailable > f.SeatsTotal {
		return fmt.Errorf("%w: seats_available must be between 0 and seats_total", booking.ErrInvalidInput)
	}
	if !f.ArrivalTime.After(f.DepartureTime) {
		return fmt.Errorf("%w: arrival_time must be after departure_time", booking.ErrInvalidInput)
	}
	return nil
}
