package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/tmet/flightbook/internal/booking"
	"github.com/tmet/flightbook/internal/database"
	"github.com/tmet/flightbook/internal/service"
)

// Handler contains HTTP handlers for the API
type Handler struct {
	bookingService service.BookingService
}

// NewHandler creates a new Handler instance
func NewHandler(bookingService service.BookingService) *Handler {
	return &Handler{
		bookingService: bookingService,
	}
}

// BookTicketRequest is the payload for POST /api/tickets
type BookTicketRequest struct {
	FlightID         string  `json:"flightId"`
	PassengerName    string  `json:"passengerName"`
	PassengerSurname string  `json:"passengerSurname"`
	PassengerEmail   string  `json:"passengerEmail"`
	SeatNumber       *string `json:"seatNumber,omitempty"`
}

// FlightRequest is the payload for creating or updating a flight
type FlightRequest struct {
	FromCity       string    `json:"fromCity"`
	ToCity         string    `json:"toCity"`
	DepartureTime  time.Time `json:"departureTime"`
	ArrivalTime    time.Time `json:"arrivalTime"`
	Price          float64   `json:"price"`
	SeatsTotal     int       `json:"seatsTotal"`
	SeatsAvailable *int      `json:"seatsAvailable,omitempty"`
}

// BookTicketResponse is returned on a successful booking
type BookTicketResponse struct {
	TicketID       uuid.UUID        `json:"ticketId"`
	SeatsRemaining int              `json:"seatsRemaining"`
	Ticket         *database.Ticket `json:"ticket"`
	Message        string           `json:"message"`
}

// CancelTicketResponse is returned on a successful cancellation
type CancelTicketResponse struct {
	TicketID       uuid.UUID `json:"ticketId"`
	SeatsRemaining int       `json:"seatsRemaining"`
	Message        string    `json:"message"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string, retryable bool) {
	respondJSON(w, status, errorResponse{Error: message, Code: code, Retryable: retryable})
}

// respondServiceError maps domain failures onto HTTP statuses. The body
// always tells the caller whether retrying can help.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid_input", err.Error(), false)
	case errors.Is(err, booking.ErrFlightNotFound):
		respondError(w, http.StatusNotFound, "flight_not_found", "Flight not found", false)
	case errors.Is(err, booking.ErrTicketNotFound):
		respondError(w, http.StatusNotFound, "ticket_not_found", "Ticket not found", false)
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "Not found", false)
	case errors.Is(err, booking.ErrNoSeatsAvailable):
		respondError(w, http.StatusConflict, "no_seats_available", "No seats available for this flight", false)
	case errors.Is(err, booking.ErrSeatUpdateConflict):
		respondError(w, http.StatusConflict, "seat_update_conflict", "Seat count changed concurrently, please retry", true)
	case errors.Is(err, booking.ErrInventoryInconsistent):
		respondError(w, http.StatusInternalServerError, "inventory_inconsistent", "Booking state is inconsistent, contact support", false)
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "Internal server error", false)
	}
}

// --- Flights ---

// GetFlights handles GET /api/flights
func (h *Handler) GetFlights(w http.ResponseWriter, r *http.Request) {
	filter := database.FlightFilter{
		FromCity: r.URL.Query().Get("from_city"),
		ToCity:   r.URL.Query().Get("to_city"),
	}
	if raw := r.URL.Query().Get("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_input", "date must be formatted YYYY-MM-DD", false)
			return
		}
		filter.Date = &date
	}

	flights, err := h.bookingService.SearchFlights(r.Context(), filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if flights == nil {
		flights = []database.Flight{}
	}
	respondJSON(w, http.StatusOK, flights)
}

// GetFlight handles GET /api/flights/{id}
func (h *Handler) GetFlight(w http.ResponseWriter, r *http.Request) {
	flightID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input", "Invalid flight id", false)
		return
	}

	flight, err := h.bookingService.GetFlight(r.Context(), flightID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, flight)
}

// CreateFlight handles POST /api/flights
func (h *Handler) CreateFlight(w http.ResponseWriter, r *http.Request) {
	var req FlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input", "Invalid request body", false)
		return
	}

	flight := flightFromRequest(uuid.Nil, req)
	if err := h.bookingService.CreateFlight(r.Context(), flight); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, flight)
}

// UpdateFlight handles PUT /api/flights/{id}
func (h *Handler) UpdateFlight(w http.ResponseWriter, r *http.Request) {
	flightID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input", "Invalid flight id", false)
		return
	}

	var req FlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input", "Invalid request body", false)
		return
	}
	// Defaulting to seats_total here would refill a flight with live
	// tickets, so updates must state the count explicitly.
	if req.SeatsAvailable == nil {
		respondError(w, http.StatusBadRequest, "invalid_input", "seatsAvailable is required", false)
		return
	}

	flight := flightFromRequest(flightID, req)
	if err := h.bookingService.UpdateFlight(r.Context(), flight); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, flight)
}

// DeleteFlight handles DELETE /api/flights/{id}
func (h *Handler) DeleteFlight(w http.ResponseWriter, r *http.Request) {
	flightID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input", "Invalid flight id", false)
		return
	}

	if err := h.bookingService.DeleteFlight(r.Context(), flightID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- Tickets ---

// BookTicket handles POST /api/tickets
func (h *Handler) BookTicket(w http.ResponseWriter, r *http.Request) {
	var req BookTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input", "Invalid request body", false)
		return
	}

	flightID, err := uuid.Parse(req.FlightID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input", "Invalid flight id", false)
		return
	}

	result, err := h.bookingService.BookTicket(r.Context(), booking.BookingRequest{
		FlightID:         flightID,
		PassengerName:    req.PassengerName,
		PassengerSurname: req.PassengerSurname,
		PassengerEmail:   req.PassengerEmail,
		SeatNumber:       req.SeatNumber,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, BookTicketResponse{
		TicketID:       result.Ticket.ID,
		SeatsRemaining: result.SeatsRemaining,
		Ticket:         result.Ticket,
		Message:        "Ticket booked successfully",
	})
}

// GetTicket handles GET /api/tickets/{id}
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input", "Invalid ticket id", false)
		return
	}

	ticket, err := h.bookingService.GetTicket(r.Context(), ticketID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ticket)
}

// ListTickets handles GET /api/tickets?email=
func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		respondError(w, http.StatusBadRequest, "invalid_input", "Email is required", false)
		return
	}

	tickets, err := h.bookingService.ListTicketsByEmail(r.Context(), email)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if tickets == nil {
		tickets = []database.TicketWithFlight{}
	}
	respondJSON(w, http.StatusOK, tickets)
}

// CancelTicket handles DELETE /api/tickets/{id}
func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_input", "Invalid ticket id", false)
		return
	}

	result, err := h.bookingService.CancelTicket(r.Context(), ticketID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CancelTicketResponse{
		TicketID:       result.TicketID,
		SeatsRemaining: result.SeatsRemaining,
		Message:        "Ticket cancelled successfully",
	})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func flightFromRequest(id uuid.UUID, req FlightRequest) *database.Flight {
	available := req.SeatsTotal
	if req.SeatsAvailable != nil {
		available = *req.SeatsAvailable
	}
	return &database.Flight{
		ID:             id,
		FromCity:       req.FromCity,
		ToCity:         req.ToCity,
		DepartureTime:  req.DepartureTime,
		ArrivalTime:    req.ArrivalTime,
		Price:          req.Price,
		SeatsTotal:     req.SeatsTotal,
		SeatsAvailable: available,
	}
}
