// Package cache provides a Redis-backed inventory store. Seat counters live
// in a per-flight hash and the conditional update runs as a Lua script, so
// the compare-and-swap is atomic on the server. Tickets stay in Postgres;
// this backend only replaces the seat-count side, and every successful
// update is written through to the flight row so relational reads stay
// accurate.
package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tmet/flightbook/internal/database"
)

const seatKeyPrefix = "flight:seats:"

var conditionalUpdateScript = redis.NewScript(`
local avail = redis.call('HGET', KEYS[1], 'available')
if not avail then
	return -1
end
if tonumber(avail) ~= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'available', ARGV[2])
return 1
`)

// SeatWriter receives every successful seat update so the flight row keeps
// serving the real count while Redis owns the compare-and-swap.
type SeatWriter interface {
	WriteFlightSeats(ctx context.Context, flightID uuid.UUID, available int) error
}

// FlightStore is the relational side the counters are rebuilt from
type FlightStore interface {
	SearchFlights(ctx context.Context, filter database.FlightFilter) ([]database.Flight, error)
	CountTicketsForFlight(ctx context.Context, flightID uuid.UUID) (int, error)
	WriteFlightSeats(ctx context.Context, flightID uuid.UUID, available int) error
}

// SeatInventory implements the coordinator's inventory store on Redis
type SeatInventory struct {
	client *redis.Client
	writer SeatWriter
}

// NewSeatInventory creates a new SeatInventory. When writer is non-nil,
// successful conditional updates are written through to it.
func NewSeatInventory(client *redis.Client, writer SeatWriter) *SeatInventory {
	return &SeatInventory{client: client, writer: writer}
}

func seatKey(flightID uuid.UUID) string {
	return seatKeyPrefix + flightID.String()
}

// SeedFlightSeats writes a flight's counters, used to sync from Postgres at
// startup and after admin flight edits.
func (s *SeatInventory) SeedFlightSeats(ctx context.Context, flightID uuid.UUID, available, total int) error {
	err := s.client.HSet(ctx, seatKey(flightID), "available", available, "total", total).Err()
	if err != nil {
		return fmt.Errorf("seed flight seats: %w", err)
	}
	return nil
}

// DropFlightSeats removes a flight's counters
func (s *SeatInventory) DropFlightSeats(ctx context.Context, flightID uuid.UUID) error {
	if err := s.client.Del(ctx, seatKey(flightID)).Err(); err != nil {
		return fmt.Errorf("drop flight seats: %w", err)
	}
	return nil
}

// ReadFlightSeats returns the current available and total seat counts
func (s *SeatInventory) ReadFlightSeats(ctx context.Context, flightID uuid.UUID) (available, total int, err error) {
	vals, err := s.client.HMGet(ctx, seatKey(flightID), "available", "total").Result()
	if err != nil {
		return 0, 0, fmt.Errorf("read flight seats: %w", err)
	}
	if vals[0] == nil || vals[1] == nil {
		return 0, 0, database.ErrNotFound
	}

	available, err = toInt(vals[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parse available: %w", err)
	}
	total, err = toInt(vals[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse total: %w", err)
	}
	return available, total, nil
}

// ConditionalUpdateSeats sets the available count to next only if it still
// equals expected. The new count is then written through to the flight row;
// if that write fails the counter is reverted so the two stores do not
// diverge.
func (s *SeatInventory) ConditionalUpdateSeats(ctx context.Context, flightID uuid.UUID, expected, next int) error {
	result, err := conditionalUpdateScript.Run(ctx, s.client, []string{seatKey(flightID)}, expected, next).Int()
	if err != nil {
		return fmt.Errorf("update flight seats: %w", err)
	}

	switch result {
	case -1:
		return database.ErrNotFound
	case 0:
		return database.ErrSeatConflict
	}

	if s.writer != nil {
		if err := s.writer.WriteFlightSeats(ctx, flightID, next); err != nil {
			if _, revertErr := conditionalUpdateScript.Run(ctx, s.client, []string{seatKey(flightID)}, next, expected).Int(); revertErr != nil {
				return fmt.Errorf("write through flight seats: %w (revert failed: %v)", err, revertErr)
			}
			return fmt.Errorf("write through flight seats: %w", err)
		}
	}

	return nil
}

// SyncFromStore rebuilds every flight's counter and returns how many flights
// were synced. The stored seats_available column may lag behind the counters
// after a crash, so the sold-ticket count is the source of truth; a lagging
// column is corrected in the store as well.
func (s *SeatInventory) SyncFromStore(ctx context.Context, store FlightStore) (int, error) {
	flights, err := store.SearchFlights(ctx, database.FlightFilter{})
	if err != nil {
		return 0, fmt.Errorf("list flights: %w", err)
	}

	for _, f := range flights {
		sold, err := store.CountTicketsForFlight(ctx, f.ID)
		if err != nil {
			return 0, fmt.Errorf("count tickets for flight %s: %w", f.ID, err)
		}
		available := f.SeatsTotal - sold
		if available < 0 {
			available = 0
		}
		if available != f.SeatsAvailable {
			if err := store.WriteFlightSeats(ctx, f.ID, available); err != nil {
				return 0, fmt.Errorf("correct flight seats for %s: %w", f.ID, err)
			}
		}
		if err := s.SeedFlightSeats(ctx, f.ID, available, f.SeatsTotal); err != nil {
			return 0, err
		}
	}

	return len(flights), nil
}

func toInt(v interface{}) (int, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected redis value %T", v)
	}
	return strconv.Atoi(s)
}
