// Package booking coordinates ticket creation and cancellation against the
// ticket and inventory stores. The two writes are not covered by a single
// transaction, so each operation runs as a small saga: mutate the ticket,
// then apply a conditional seat-count update guarded by the previously read
// value, and compensate the ticket mutation if the guard trips.
package booking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/tmet/flightbook/internal/database"
)

var (
	// ErrInvalidInput marks malformed booking requests. Rejected before any
	// store is touched.
	ErrInvalidInput = errors.New("invalid input")
	// ErrFlightNotFound means the referenced flight does not exist.
	ErrFlightNotFound = errors.New("flight not found")
	// ErrTicketNotFound means the referenced ticket does not exist.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrNoSeatsAvailable means the flight is sold out.
	ErrNoSeatsAvailable = errors.New("no seats available")
	// ErrSeatUpdateConflict means a concurrent operation changed the seat
	// count between the read and the conditional update. The operation was
	// rolled back; the caller may retry.
	ErrSeatUpdateConflict = errors.New("seat count conflict")
	// ErrInventoryInconsistent means the compensating action itself failed,
	// leaving the ticket and flight stores out of step. Not retryable.
	ErrInventoryInconsistent = errors.New("inventory inconsistent")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// InventoryStore is the flight seat-count side of the coordinator's store
// boundary. ConditionalUpdateSeats must set seats_available to next only if
// it still equals expected, reporting a lost race with
// database.ErrSeatConflict and a missing flight with database.ErrNotFound.
type InventoryStore interface {
	ReadFlightSeats(ctx context.Context, flightID uuid.UUID) (available, total int, err error)
	ConditionalUpdateSeats(ctx context.Context, flightID uuid.UUID, expected, next int) error
}

// TicketStore is the ticket side of the store boundary. CreateTicket must
// honor a caller-supplied ID and CreatedAt so snapshots can be restored.
type TicketStore interface {
	CreateTicket(ctx context.Context, t *database.Ticket) error
	ReadTicket(ctx context.Context, id uuid.UUID) (*database.Ticket, error)
	DeleteTicket(ctx context.Context, id uuid.UUID) error
}

// Coordinator orchestrates bookings and cancellations. It holds no state of
// its own; all synchronization happens through the inventory store's
// compare-and-swap, so concurrent calls for the same flight are safe.
type Coordinator struct {
	inventory InventoryStore
	tickets   TicketStore
}

// NewCoordinator creates a new Coordinator
func NewCoordinator(inventory InventoryStore, tickets TicketStore) *Coordinator {
	return &Coordinator{inventory: inventory, tickets: tickets}
}

// BookingRequest carries the passenger details for a booking
type BookingRequest struct {
	FlightID         uuid.UUID
	PassengerName    string
	PassengerSurname string
	PassengerEmail   string
	SeatNumber       *string
}

func (r BookingRequest) validate() error {
	if r.FlightID == uuid.Nil {
		return fmt.Errorf("%w: flight_id is required", ErrInvalidInput)
	}
	if r.PassengerName == "" {
		return fmt.Errorf("%w: passenger_name is required", ErrInvalidInput)
	}
	if r.PassengerSurname == "" {
		return fmt.Errorf("%w: passenger_surname is required", ErrInvalidInput)
	}
	if r.PassengerEmail == "" {
		return fmt.Errorf("%w: passenger_email is required", ErrInvalidInput)
	}
	if !emailPattern.MatchString(r.PassengerEmail) {
		return fmt.Errorf("%w: passenger_email is not a valid address", ErrInvalidInput)
	}
	return nil
}

// BookingResult is the outcome of a successful booking
type BookingResult struct {
	Ticket         *database.Ticket
	SeatsRemaining int
	SeatsTotal     int
}

// CancelResult is the outcome of a successful cancellation
type CancelResult struct {
	TicketID       uuid.UUID
	FlightID       uuid.UUID
	SeatsRemaining int
	SeatsTotal     int
}

// BookTicket books one seat on a flight. On success exactly one new ticket
// exists and the flight's available count dropped by one. If the seat guard
// trips, the just-created ticket is deleted and ErrSeatUpdateConflict is
// returned, leaving the stores as if the call never happened.
func (c *Coordinator) BookTicket(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	available, total, err := c.inventory.ReadFlightSeats(ctx, req.FlightID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrFlightNotFound
		}
		return nil, fmt.Errorf("read flight seats: %w", err)
	}
	if available <= 0 {
		return nil, ErrNoSeatsAvailable
	}

	ticket := &database.Ticket{
		ID:               uuid.New(),
		FlightID:         req.FlightID,
		PassengerName:    req.PassengerName,
		PassengerSurname: req.PassengerSurname,
		PassengerEmail:   req.PassengerEmail,
		SeatNumber:       req.SeatNumber,
		CreatedAt:        time.Now().UTC(),
	}
	if err := c.tickets.CreateTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	if err := c.inventory.ConditionalUpdateSeats(ctx, req.FlightID, available, available-1); err != nil {
		// The ticket must not outlive a failed seat update.
		if delErr := c.tickets.DeleteTicket(ctx, ticket.ID); delErr != nil {
			return nil, fmt.Errorf("%w: ticket %s stranded after failed seat update: %v",
				ErrInventoryInconsistent, ticket.ID, delErr)
		}
		switch {
		case errors.Is(err, database.ErrSeatConflict):
			return nil, ErrSeatUpdateConflict
		case errors.Is(err, database.ErrNotFound):
			return nil, ErrFlightNotFound
		default:
			return nil, fmt.Errorf("update flight seats: %w", err)
		}
	}

	return &BookingResult{Ticket: ticket, SeatsRemaining: available - 1, SeatsTotal: total}, nil
}

// CancelTicket cancels a booking. The full ticket record is snapshotted
// before deletion; if the seat guard trips the snapshot is restored verbatim
// (same id, seat number and created_at) and ErrSeatUpdateConflict is
// returned.
func (c *Coordinator) CancelTicket(ctx context.Context, ticketID uuid.UUID) (*CancelResult, error) {
	ticket, err := c.tickets.ReadTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("read ticket: %w", err)
	}

	available, total, err := c.inventory.ReadFlightSeats(ctx, ticket.FlightID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// A ticket pointing at a vanished flight is a data-integrity
			// anomaly; surface it rather than deleting blind.
			return nil, ErrFlightNotFound
		}
		return nil, fmt.Errorf("read flight seats: %w", err)
	}

	snapshot := *ticket

	if err := c.tickets.DeleteTicket(ctx, ticketID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("delete ticket: %w", err)
	}

	if err := c.inventory.ConditionalUpdateSeats(ctx, ticket.FlightID, available, available+1); err != nil {
		if restoreErr := c.tickets.CreateTicket(ctx, &snapshot); restoreErr != nil {
			return nil, fmt.Errorf("%w: ticket %s lost after failed seat update: %v",
				ErrInventoryInconsistent, ticketID, restoreErr)
		}
		switch {
		case errors.Is(err, database.ErrSeatConflict):
			return nil, ErrSeatUpdateConflict
		case errors.Is(err, database.ErrNotFound):
			return nil, ErrFlightNotFound
		default:
			return nil, fmt.Errorf("update flight seats: %w", err)
		}
	}

	return &CancelResult{
		TicketID:       ticketID,
		FlightID:       ticket.FlightID,
		SeatsRemaining: available + 1,
		SeatsTotal:     total,
	}, nil
}
