package database

import (
	"time"

	"github.com/google/uuid"
)

// Flight represents a flight in the database
type Flight struct {
	ID             uuid.UUID `json:"id"`
	FromCity       string    `json:"fromCity"`
	ToCity         string    `json:"toCity"`
	DepartureTime  time.Time `json:"departureTime"`
	ArrivalTime    time.Time `json:"arrivalTime"`
	Price          float64   `json:"price"`
	SeatsTotal     int       `json:"seatsTotal"`
	SeatsAvailable int       `json:"seatsAvailable"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Ticket represents a booked ticket in the database
type Ticket struct {
	ID               uuid.UUID `json:"id"`
	FlightID         uuid.UUID `json:"flightId"`
	PassengerName    string    `json:"passengerName"`
	PassengerSurname string    `json:"passengerSurname"`
	PassengerEmail   string    `json:"passengerEmail"`
	SeatNumber       *string   `json:"seatNumber,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// FlightSummary is the flight data joined onto ticket reads
type FlightSummary struct {
	FromCity      string    `json:"fromCity"`
	ToCity        string    `json:"toCity"`
	DepartureTime time.Time `json:"departureTime"`
	ArrivalTime   time.Time `json:"arrivalTime"`
	Price         float64   `json:"price"`
}

// TicketWithFlight is a ticket together with its flight summary
type TicketWithFlight struct {
	Ticket
	Flight FlightSummary `json:"flight"`
}

// FlightFilter narrows a flight search. Zero values mean no filter.
// Date matches any departure within that calendar day.
type FlightFilter struct {
	FromCity string
	ToCity   string
	Date     *time.Time
}
