package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tmet/flightbook/internal/booking"
	"github.com/tmet/flightbook/internal/database"
	"github.com/tmet/flightbook/internal/service/mocks"
)

func setupTestRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/flights", h.GetFlights).Methods(http.MethodGet)
	api.HandleFunc("/flights", h.CreateFlight).Methods(http.MethodPost)
	api.HandleFunc("/flights/{id}", h.GetFlight).Methods(http.MethodGet)
	api.HandleFunc("/flights/{id}", h.UpdateFlight).Methods(http.MethodPut)
	api.HandleFunc("/flights/{id}", h.DeleteFlight).Methods(http.MethodDelete)
	api.HandleFunc("/tickets", h.ListTickets).Methods(http.MethodGet)
	api.HandleFunc("/tickets", h.BookTicket).Methods(http.MethodPost)
	api.HandleFunc("/tickets/{id}", h.GetTicket).Methods(http.MethodGet)
	api.HandleFunc("/tickets/{id}", h.CancelTicket).Methods(http.MethodDelete)
	return r
}

func TestHandler_GetFlights(t *testing.T) {
	mockService := new(mocks.MockBookingService)
	handler := NewHandler(mockService)
	router := setupTestRouter(handler)

	flightID := uuid.New()
	expectedFlights := []database.Flight{
		{
			ID:             flightID,
			FromCity:       "Tallinn",
			ToCity:         "Berlin",
			Price:          89.00,
			SeatsTotal:     180,
			SeatsAvailable: 120,
		},
	}

	mockService.On("SearchFlights", mock.Anything, mock.AnythingOfType("database.FlightFilter")).Return(expectedFlights, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/flights?from_city=Tallinn&to_city=Berlin", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response []database.Flight
	err := json.NewDecoder(rec.Body).Decode(&response)
	require.NoError(t, err)
	assert.Len(t, response, 1)
	assert.Equal(t, "Tallinn", response[0].FromCity)

	mockService.AssertExpectations(t)
}

func TestHandler_GetFlights_BadDate(t *testing.T) {
	mockService := new(mocks.MockBookingService)
	handler := NewHandler(mockService)
	router := setupTestRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/flights?date=tomorrow", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_GetFlight(t *testing.T) {
	flightID := uuid.New()

	tests := []struct {
		name           string
		flightID       string
		mockReturn     *database.Flight
		mockError      error
		expectedStatus int
		shouldCallMock bool
	}{
		{
			name:           "flight found",
			flightID:       flightID.String(),
			mockReturn:     &database.Flight{ID: flightID, FromCity: "Tallinn", ToCity: "Berlin"},
			expectedStatus: http.StatusOK,
			shouldCallMock: true,
		},
		{
			name:           "flight not found",
			flightID:       uuid.New().String(),
			mockError:      database.ErrNotFound,
			expectedStatus: http.StatusNotFound,
			shouldCallMock: true,
		},
		{
			name:           "malformed id",
			flightID:       "not-a-uuid",
			expectedStatus: http.StatusBadRequest,
			shouldCallMock: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(mocks.MockBookingService)
			handler := NewHandler(mockService)
			router := setupTestRouter(handler)

			if tt.shouldCallMock {
				mockService.On("GetFlight", mock.Anything, mock.AnythingOfType("uuid.UUID")).Return(tt.mockReturn, tt.mockError)
			}

			req := httptest.NewRequest(http.MethodGet, "/api/flights/"+tt.flightID, nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_CreateFlight(t *testing.T) {
	departure := time.Now().Add(24 * time.Hour).UTC()

	tests := []struct {
		name           string
		requestBody    interface{}
		mockError      error
		expectedStatus int
		shouldCallMock bool
	}{
		{
			name: "valid flight",
			requestBody: FlightRequest{
				FromCity:      "Tallinn",
				ToCity:        "Berlin",
				DepartureTime: departure,
				ArrivalTime:   departure.Add(2 * time.Hour),
				Price:         89.00,
				SeatsTotal:    180,
			},
			expectedStatus: http.StatusCreated,
			shouldCallMock: true,
		},
		{
			name: "rejected by validation",
			requestBody: FlightRequest{
				FromCity:      "",
				ToCity:        "Berlin",
				DepartureTime: departure,
				ArrivalTime:   departure.Add(2 * time.Hour),
				SeatsTotal:    180,
			},
			mockError:      booking.ErrInvalidInput,
			expectedStatus: http.StatusBadRequest,
			shouldCallMock: true,
		},
		{
			name:           "garbage body",
			requestBody:    "not json",
			expectedStatus: http.StatusBadRequest,
			shouldCallMock: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(mocks.MockBookingService)
			handler := NewHandler(mockService)
			router := setupTestRouter(handler)

			var body []byte
			if s, ok := tt.requestBody.(string); ok {
				body = []byte(s)
			} else {
				body, _ = json.Marshal(tt.requestBody)
			}

			if tt.shouldCallMock {
				mockService.On("CreateFlight", mock.Anything, mock.AnythingOfType("*database.Flight")).Return(tt.mockError)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/flights", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestHandler_UpdateFlight(t *testing.T) {
	flightID := uuid.New()
	departure := time.Now().Add(24 * time.Hour).UTC()
	available := 30

	tests := []struct {
		name           string
		flightID       string
		requestBody    FlightRequest
		expectedStatus int
		shouldCallMock bool
	}{
		{
			name:     "valid update",
			flightID: flightID.String(),
			requestBody: FlightRequest{
				FromCity:       "Tallinn",
				ToCity:         "Berlin",
				DepartureTime:  departure,
				ArrivalTime:    departure.Add(2 * time.Hour),
				Price:          99.00,
				SeatsTotal:     180,
				SeatsAvailable: &available,
			},
			expectedStatus: http.StatusOK,
			shouldCallMock: true,
		},
		{
			// Omitting the count must not silently refill the flight.
			name:     "missing seatsAvailable",
			flightID: flightID.String(),
			requestBody: FlightRequest{
				FromCity:      "Tallinn",
				ToCity:        "Berlin",
				DepartureTime: departure,
				ArrivalTime:   departure.Add(2 * time.Hour),
				Price:         99.00,
				SeatsTotal:    180,
			},
			expectedStatus: http.StatusBadRequest,
			shouldCallMock: false,
		},
		{
			name:           "malformed id",
			flightID:       "not-a-uuid",
			requestBody:    FlightRequest{},
			expectedStatus: http.StatusBadRequest,
			shouldCallMock: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(mocks.MockBookingService)
			handler := NewHandler(mockService)
			router := setupTestRouter(handler)

			if tt.shouldCallMock {
				mockService.On("UpdateFlight", mock.Anything, mock.MatchedBy(func(f *database.Flight) bool {
					return f.ID == flightID && f.SeatsAvailable == available
				})).Return(nil)
			}

			body, _ := json.Marshal(tt.requestBody)
			req := httptest.NewRequest(http.MethodPut, "/api/flights/"+tt.flightID, bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_BookTicket(t *testing.T) {
	flightID := uuid.New()
	ticketID := uuid.New()

	validBody := BookTicketRequest{
		FlightID:         flightID.String(),
		PassengerName:    "Ada",
		PassengerSurname: "Lovelace",
		PassengerEmail:   "ada@example.com",
	}

	tests := []struct {
		name           string
		requestBody    interface{}
		mockReturn     *booking.BookingResult
		mockError      error
		expectedStatus int
		expectedCode   string
		retryable      bool
		shouldCallMock bool
	}{
		{
			name:        "successful booking",
			requestBody: validBody,
			mockReturn: &booking.BookingResult{
				Ticket:         &database.Ticket{ID: ticketID, FlightID: flightID},
				SeatsRemaining: 4,
				SeatsTotal:     5,
			},
			expectedStatus: http.StatusCreated,
			shouldCallMock: true,
		},
		{
			name:           "no seats available",
			requestBody:    validBody,
			mockError:      booking.ErrNoSeatsAvailable,
			expectedStatus: http.StatusConflict,
			expectedCode:   "no_seats_available",
			retryable:      false,
			shouldCallMock: true,
		},
		{
			name:           "lost the seat race",
			requestBody:    validBody,
			mockError:      booking.ErrSeatUpdateConflict,
			expectedStatus: http.StatusConflict,
			expectedCode:   "seat_update_conflict",
			retryable:      true,
			shouldCallMock: true,
		},
		{
			name:           "flight not found",
			requestBody:    validBody,
			mockError:      booking.ErrFlightNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   "flight_not_found",
			shouldCallMock: true,
		},
		{
			name:           "invalid passenger data",
			requestBody:    validBody,
			mockError:      booking.ErrInvalidInput,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "invalid_input",
			shouldCallMock: true,
		},
		{
			name:           "inconsistent after failed rollback",
			requestBody:    validBody,
			mockError:      booking.ErrInventoryInconsistent,
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "inventory_inconsistent",
			shouldCallMock: true,
		},
		{
			name: "malformed flight id",
			requestBody: BookTicketRequest{
				FlightID:       "nope",
				PassengerName:  "Ada",
				PassengerEmail: "ada@example.com",
			},
			expectedStatus: http.StatusBadRequest,
			shouldCallMock: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(mocks.MockBookingService)
			handler := NewHandler(mockService)
			router := setupTestRouter(handler)

			body, _ := json.Marshal(tt.requestBody)

			if tt.shouldCallMock {
				mockService.On("BookTicket", mock.Anything, mock.AnythingOfType("booking.BookingRequest")).Return(tt.mockReturn, tt.mockError)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)

			if tt.expectedStatus == http.StatusCreated {
				var resp BookTicketResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, ticketID, resp.TicketID)
				assert.Equal(t, 4, resp.SeatsRemaining)
			} else if tt.expectedCode != "" {
				var resp map[string]interface{}
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, tt.expectedCode, resp["code"])
				assert.Equal(t, tt.retryable, resp["retryable"])
			}

			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_CancelTicket(t *testing.T) {
	ticketID := uuid.New()
	flightID := uuid.New()

	tests := []struct {
		name           string
		ticketID       string
		mockReturn     *booking.CancelResult
		mockError      error
		expectedStatus int
		shouldCallMock bool
	}{
		{
			name:     "successful cancellation",
			ticketID: ticketID.String(),
			mockReturn: &booking.CancelResult{
				TicketID:       ticketID,
				FlightID:       flightID,
				SeatsRemaining: 3,
				SeatsTotal:     5,
			},
			expectedStatus: http.StatusOK,
			shouldCallMock: true,
		},
		{
			name:           "ticket not found",
			ticketID:       uuid.New().String(),
			mockError:      booking.ErrTicketNotFound,
			expectedStatus: http.StatusNotFound,
			shouldCallMock: true,
		},
		{
			name:           "seat update conflict",
			ticketID:       ticketID.String(),
			mockError:      booking.ErrSeatUpdateConflict,
			expectedStatus: http.StatusConflict,
			shouldCallMock: true,
		},
		{
			name:           "malformed id",
			ticketID:       "not-a-uuid",
			expectedStatus: http.StatusBadRequest,
			shouldCallMock: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(mocks.MockBookingService)
			handler := NewHandler(mockService)
			router := setupTestRouter(handler)

			if tt.shouldCallMock {
				mockService.On("CancelTicket", mock.Anything, mock.AnythingOfType("uuid.UUID")).Return(tt.mockReturn, tt.mockError)
			}

			req := httptest.NewRequest(http.MethodDelete, "/api/tickets/"+tt.ticketID, nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)

			if tt.expectedStatus == http.StatusOK {
				var resp CancelTicketResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, ticketID, resp.TicketID)
				assert.Equal(t, 3, resp.SeatsRemaining)
			}

			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_ListTickets(t *testing.T) {
	mockService := new(mocks.MockBookingService)
	handler := NewHandler(mockService)
	router := setupTestRouter(handler)

	expected := []database.TicketWithFlight{
		{
			Ticket: database.Ticket{
				ID:             uuid.New(),
				PassengerEmail: "ada@example.com",
			},
			Flight: database.FlightSummary{FromCity: "Tallinn", ToCity: "Berlin"},
		},
	}
	mockService.On("ListTicketsByEmail", mock.Anything, "ada@example.com").Return(expected, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tickets?email=ada@example.com", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response []database.TicketWithFlight
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Len(t, response, 1)

	mockService.AssertExpectations(t)
}

func TestHandler_ListTickets_MissingEmail(t *testing.T) {
	mockService := new(mocks.MockBookingService)
	handler := NewHandler(mockService)
	router := setupTestRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/tickets", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
