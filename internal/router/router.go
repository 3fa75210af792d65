package router

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/tmet/flightbook/internal/handlers"
	"github.com/tmet/flightbook/internal/websocket"
)

// SetupRouter creates and configures the HTTP router
func SetupRouter(h *handlers.Handler, hub *websocket.Hub) *mux.Router {
	r := mux.NewRouter()

	// CORS middleware
	r.Use(corsMiddleware)

	// API routes
	api := r.PathPrefix("/api").Subrouter()

	// Flights
	api.HandleFunc("/flights", h.GetFlights).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flights", h.CreateFlight).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/flights/{id}", h.GetFlight).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flights/{id}", h.UpdateFlight).Methods(http.MethodPut, http.MethodOptions)
	api.HandleFunc("/flights/{id}", h.DeleteFlight).Methods(http.MethodDelete, http.MethodOptions)

	// Tickets
	api.HandleFunc("/tickets", h.ListTickets).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/tickets", h.BookTicket).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/tickets/{id}", h.GetTicket).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/tickets/{id}", h.CancelTicket).Methods(http.MethodDelete, http.MethodOptions)

	// WebSocket for live seat counts
	api.HandleFunc("/flights/{id}/ws", websocket.ServeWS(hub))

	// Health check
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
