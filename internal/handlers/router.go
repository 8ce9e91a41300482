package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/visrodeck/relaygo/internal/relay"
)

// Router wraps the mux router and the relay service
type Router struct {
	*mux.Router
	relay *relay.Service
}

// NewRouter creates a new HTTP router with all relay routes
func NewRouter(svc *relay.Service) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		relay:  svc,
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", r.healthCheck).Methods("GET")
	api.HandleFunc("/message", r.sendMessage).Methods("POST")
	api.HandleFunc("/messages/{deviceKey}", r.getMessages).Methods("GET")
	api.HandleFunc("/messages/{deviceKey}", r.deleteMessages).Methods("DELETE")
	api.HandleFunc("/nodes/count", r.nodeCount).Methods("GET")

	return r
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
