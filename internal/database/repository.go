package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrSeatConflict = errors.New("seat count changed concurrently")
)

// Repository handles all database operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// --- Flight Operations ---

// CreateFlight inserts a new flight. SeatsAvailable starts at SeatsTotal.
func (r *Repository) CreateFlight(ctx context.Context, f *Flight) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.SeatsAvailable == 0 {
		f.SeatsAvailable = f.SeatsTotal
	}

	query := `
		INSERT INTO flights (id, from_city, to_city, departure_time, arrival_time, price, seats_total, seats_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		f.ID, f.FromCity, f.ToCity, f.DepartureTime, f.ArrivalTime,
		f.Price, f.SeatsTotal, f.SeatsAvailable,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create flight: %w", err)
	}

	return nil
}

// GetFlightByID returns a flight by ID
func (r *Repository) GetFlightByID(ctx context.Context, id uuid.UUID) (*Flight, error) {
	query := `
		SELECT id, from_city, to_city, departure_time, arrival_time,
		       price, seats_total, seats_available, created_at, updated_at
		FROM flights
		WHERE id = $1
	`

	var f Flight
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&f.ID, &f.FromCity, &f.ToCity, &f.DepartureTime, &f.ArrivalTime,
		&f.Price, &f.SeatsTotal, &f.SeatsAvailable, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get flight: %w", err)
	}

	return &f, nil
}

// SearchFlights returns flights matching the filter, soonest departure first
func (r *Repository) SearchFlights(ctx context.Context, filter FlightFilter) ([]Flight, error) {
	query := `
		SELECT id, from_city, to_city, departure_time, arrival_time,
		       price, seats_total, seats_available, created_at, updated_at
		FROM flights
		WHERE ($1 = '' OR from_city = $1)
		  AND ($2 = '' OR to_city = $2)
		  AND ($3::timestamptz IS NULL OR (departure_time >= $3 AND departure_time < $3::timestamptz + interval '1 day'))
		ORDER BY departure_time ASC
	`

	var dayStart *time.Time
	if filter.Date != nil {
		d := filter.Date.Truncate(24 * time.Hour)
		dayStart = &d
	}

	rows, err := r.pool.Query(ctx, query, filter.FromCity, filter.ToCity, dayStart)
	if err != nil {
		return nil, fmt.Errorf("failed to query flights: %w", err)
	}
	defer rows.Close()

	var flights []Flight
	for rows.Next() {
		var f Flight
		err := rows.Scan(
			&f.ID, &f.FromCity, &f.ToCity, &f.DepartureTime, &f.ArrivalTime,
			&f.Price, &f.SeatsTotal, &f.SeatsAvailable, &f.CreatedAt, &f.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flight: %w", err)
		}
		flights = append(flights, f)
	}

	return flights, rows.Err()
}

// UpdateFlight replaces the editable fields of a flight. Admin-only caller;
// the seat counts are written as given, without the booking guard.
func (r *Repository) UpdateFlight(ctx context.Context, f *Flight) error {
	query := `
		UPDATE flights
		SET from_city = $2, to_city = $3, departure_time = $4, arrival_time = $5,
		    price = $6, seats_total = $7, seats_available = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		f.ID, f.FromCity, f.ToCity, f.DepartureTime, f.ArrivalTime,
		f.Price, f.SeatsTotal, f.SeatsAvailable,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update flight: %w", err)
	}

	return nil
}

// DeleteFlight removes a flight
func (r *Repository) DeleteFlight(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM flights WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete flight: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Seat Operations ---

// ReadFlightSeats returns the current available and total seat counts
func (r *Repository) ReadFlightSeats(ctx context.Context, flightID uuid.UUID) (available, total int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT seats_available, seats_total FROM flights WHERE id = $1
	`, flightID).Scan(&available, &total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrNotFound
		}
		return 0, 0, fmt.Errorf("failed to read flight seats: %w", err)
	}
	return available, total, nil
}

// WriteFlightSeats sets seats_available unconditionally. Used as the
// write-through target when the counters are served from Redis; the Redis
// compare-and-swap is the synchronization point, so no guard is needed here.
func (r *Repository) WriteFlightSeats(ctx context.Context, flightID uuid.UUID, available int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE flights
		SET seats_available = $2, updated_at = NOW()
		WHERE id = $1
	`, flightID, available)
	if err != nil {
		return fmt.Errorf("failed to write flight seats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ConditionalUpdateSeats sets seats_available to next only if it still equals
// expected. Returns ErrSeatConflict when another writer got there first.
func (r *Repository) ConditionalUpdateSeats(ctx context.Context, flightID uuid.UUID, expected, next int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE flights
		SET seats_available = $3, updated_at = NOW()
		WHERE id = $1 AND seats_available = $2
	`, flightID, expected, next)
	if err != nil {
		return fmt.Errorf("failed to update flight seats: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Zero rows means either the guard failed or the flight is gone.
		var exists bool
		err := r.pool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM flights WHERE id = $1)
		`, flightID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to probe flight: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrSeatConflict
	}

	return nil
}

// --- Ticket Operations ---

// CreateTicket inserts a ticket. The caller supplies the ID and CreatedAt so
// that a snapshot taken before deletion can be restored verbatim.
func (r *Repository) CreateTicket(ctx context.Context, t *Ticket) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO tickets (id, flight_id, passenger_name, passenger_surname, passenger_email, seat_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.FlightID, t.PassengerName, t.PassengerSurname, t.PassengerEmail, t.SeatNumber, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	return nil
}

// ReadTicket returns a ticket by ID
func (r *Repository) ReadTicket(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	var t Ticket
	err := r.pool.QueryRow(ctx, `
		SELECT id, flight_id, passenger_name, passenger_surname, passenger_email, seat_number, created_at
		FROM tickets
		WHERE id = $1
	`, id).Scan(
		&t.ID, &t.FlightID, &t.PassengerName, &t.PassengerSurname,
		&t.PassengerEmail, &t.SeatNumber, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	return &t, nil
}

// DeleteTicket removes a ticket
func (r *Repository) DeleteTicket(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTicketWithFlight returns a ticket joined with its flight summary
func (r *Repository) GetTicketWithFlight(ctx context.Context, id uuid.UUID) (*TicketWithFlight, error) {
	var tw TicketWithFlight
	err := r.pool.QueryRow(ctx, `
		SELECT t.id, t.flight_id, t.passenger_name, t.passenger_surname, t.passenger_email, t.seat_number, t.created_at,
		       f.from_city, f.to_city, f.departure_time, f.arrival_time, f.price
		FROM tickets t
		JOIN flights f ON f.id = t.flight_id
		WHERE t.id = $1
	`, id).Scan(
		&tw.ID, &tw.FlightID, &tw.PassengerName, &tw.PassengerSurname,
		&tw.PassengerEmail, &tw.SeatNumber, &tw.CreatedAt,
		&tw.Flight.FromCity, &tw.Flight.ToCity, &tw.Flight.DepartureTime,
		&tw.Flight.ArrivalTime, &tw.Flight.Price,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	return &tw, nil
}

// ListTicketsByEmail returns a passenger's tickets, newest first
func (r *Repository) ListTicketsByEmail(ctx context.Context, email string) ([]TicketWithFlight, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.flight_id, t.passenger_name, t.passenger_surname, t.passenger_email, t.seat_number, t.created_at,
		       f.from_city, f.to_city, f.departure_time, f.arrival_time, f.price
		FROM tickets t
		JOIN flights f ON f.id = t.flight_id
		WHERE t.passenger_email = $1
		ORDER BY t.created_at DESC
	`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []TicketWithFlight
	for rows.Next() {
		var tw TicketWithFlight
		err := rows.Scan(
			&tw.ID, &tw.FlightID, &tw.PassengerName, &tw.PassengerSurname,
			&tw.PassengerEmail, &tw.SeatNumber, &tw.CreatedAt,
			&tw.Flight.FromCity, &tw.Flight.ToCity, &tw.Flight.DepartureTime,
			&tw.Flight.ArrivalTime, &tw.Flight.Price,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, tw)
	}

	return tickets, rows.Err()
}

// CountTicketsForFlight returns how many tickets currently reference a flight
func (r *Repository) CountTicketsForFlight(ctx context.Context, flightID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM tickets WHERE flight_id = $1
	`, flightID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}
	return count, nil
}
