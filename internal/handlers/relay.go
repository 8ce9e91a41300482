package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/visrodeck/relaygo/internal/relay"
)

// healthCheck reports that the relay is up and its storage answers
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	if err := r.relay.Ping(req.Context()); err != nil {
		log.Printf("Health probe failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Storage unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "online",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// sendMessage accepts one message, re-seals it server-side and stores it
func (r *Router) sendMessage(w http.ResponseWriter, req *http.Request) {
	var submitReq relay.SubmitRequest
	if err := json.NewDecoder(req.Body).Decode(&submitReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	result, err := r.relay.Submit(req.Context(), submitReq)
	if err != nil {
		switch {
		case errors.Is(err, relay.ErrMissingFields):
			respondError(w, http.StatusBadRequest, "Missing required fields")
		case errors.Is(err, relay.ErrInvalidKey):
			respondError(w, http.StatusBadRequest, "Invalid key format")
		case errors.Is(err, relay.ErrInvalidTimestamp):
			respondError(w, http.StatusBadRequest, "Invalid timestamp")
		default:
			log.Printf("Message send failed: %v", err)
			respondError(w, http.StatusInternalServerError, "Failed to send message")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"messageId": result.MessageID,
		"timestamp": result.Timestamp.Format(time.RFC3339),
	})
}

// getMessages returns the recent history for a device key, decrypted
func (r *Router) getMessages(w http.ResponseWriter, req *http.Request) {
	deviceKey := mux.Vars(req)["deviceKey"]

	messages, err := r.relay.Fetch(req.Context(), deviceKey)
	if err != nil {
		if errors.Is(err, relay.ErrInvalidKey) {
			respondError(w, http.StatusBadRequest, "Invalid device key")
			return
		}
		log.Printf("Message retrieval failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to retrieve messages")
		return
	}

	respondJSON(w, http.StatusOK, messages)
}

// deleteMessages wipes the history for a device key
func (r *Router) deleteMessages(w http.ResponseWriter, req *http.Request) {
	deviceKey := mux.Vars(req)["deviceKey"]

	if err := r.relay.Purge(req.Context(), deviceKey); err != nil {
		if errors.Is(err, relay.ErrInvalidKey) {
			respondError(w, http.StatusBadRequest, "Invalid device key")
			return
		}
		log.Printf("Message deletion failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete messages")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Messages deleted",
	})
}

// nodeCount returns how many device keys were active in the last five minutes
func (r *Router) nodeCount(w http.ResponseWriter, req *http.Request) {
	count, err := r.relay.ActiveCount(req.Context())
	if err != nil {
		log.Printf("Node count failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to get node count")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{
		"activeNodes": count,
	})
}
