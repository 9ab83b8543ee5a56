package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/models"
)

// Directory resolves the role of a connecting user
type Directory interface {
	Actor(ctx context.Context, userID string) (models.Actor, error)
}

// WebSocketHandler handles WebSocket upgrade requests for tracker sessions
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	world             string
	directory         Directory
	openSession       func(conn *Connection, actor models.Actor) error
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, world string, directory Directory, openSession func(*Connection, models.Actor) error) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		world:             world,
		directory:         directory,
		openSession:       openSession,
	}
}

// HandleTrackerConnection handles GET /ws/tracker?world=&user_id=&relay=
func (h *WebSocketHandler) HandleTrackerConnection(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	world := query.Get("world")
	if world == "" {
		world = h.world
	}
	if world != h.world {
		http.Error(w, "unknown world", http.StatusNotFound)
		return
	}

	userID := query.Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	actor, err := h.directory.Actor(r.Context(), userID)
	if errors.Is(err, models.ErrNotFound) {
		http.Error(w, "unknown user", http.StatusForbidden)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to resolve connecting user")
		http.Error(w, "failed to resolve user", http.StatusInternalServerError)
		return
	}

	relay, _ := strconv.ParseBool(query.Get("relay"))

	setup := func(conn *Connection) error {
		return h.openSession(conn, actor)
	}
	if err := h.connectionManager.UpgradeConnection(w, r, userID, world, relay, setup); err != nil {
		// The upgrader has already answered the request
		log.Error().
			Err(err).
			Str("world", world).
			Str("user_id", userID).
			Msg("failed to open tracker session")
		return
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	stats := h.connectionManager.GetConnectionStats()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/tracker", h.HandleTrackerConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
