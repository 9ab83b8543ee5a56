package listapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/flags"
	"github.com/mcdev12/challengetracker/go/internal/models"
)

// Directory resolves the acting user of a request
type Directory interface {
	Actor(ctx context.Context, userID string) (models.Actor, error)
}

// Handler handles HTTP requests for tracker lists
type Handler struct {
	app       *App
	directory Directory
}

// NewHandler creates a new list handler
func NewHandler(app *App, directory Directory) *Handler {
	return &Handler{
		app:       app,
		directory: directory,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type openResponse struct {
	ID string `json:"id"`
}

// RegisterRoutes registers the list routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/trackers", h.HandleView)
	mux.HandleFunc("POST /api/trackers", h.HandleEdit)
	mux.HandleFunc("GET /api/trackers/new", h.HandleCreate)
	mux.HandleFunc("GET /api/trackers/{id}", h.HandleForm)
	mux.HandleFunc("DELETE /api/trackers/{id}", h.HandleDelete)
	mux.HandleFunc("POST /api/trackers/{id}/copy", h.HandleCopy)
	mux.HandleFunc("POST /api/trackers/{id}/move/{direction}", h.HandleMove)
	mux.HandleFunc("POST /api/trackers/{id}/open", h.HandleOpen)
}

// actor reads the user id from the X-User-ID header or the user_id query parameter
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "user_id is required"})
		return models.Actor{}, false
	}
	actor, err := h.directory.Actor(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return models.Actor{}, false
	}
	return actor, true
}

// HandleView handles GET /api/trackers?owner={id}
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	view, err := h.app.View(r.Context(), actor, r.URL.Query().Get("owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleCreate handles GET /api/trackers/new
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	form, err := h.app.Create(r.Context(), actor, r.URL.Query().Get("owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// HandleForm handles GET /api/trackers/{id}
func (h *Handler) HandleForm(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	form, err := h.app.Form(r.Context(), actor, r.URL.Query().Get("owner"), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// HandleEdit handles POST /api/trackers with an edit form body
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var form EditForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	saved, err := h.app.Edit(r.Context(), actor, r.URL.Query().Get("owner"), form)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// HandleDelete handles DELETE /api/trackers/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.app.Delete(r.Context(), actor, r.URL.Query().Get("owner"), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCopy handles POST /api/trackers/{id}/copy
func (h *Handler) HandleCopy(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	cp, err := h.app.Copy(r.Context(), actor, r.URL.Query().Get("owner"), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cp)
}

// HandleMove handles POST /api/trackers/{id}/move/{up|down}
func (h *Handler) HandleMove(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	owner, id := r.URL.Query().Get("owner"), r.PathValue("id")

	var err error
	switch flags.Direction(r.PathValue("direction")) {
	case flags.DirectionUp:
		err = h.app.MoveUp(r.Context(), actor, owner, id)
	case flags.DirectionDown:
		err = h.app.MoveDown(r.Context(), actor, owner, id)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "direction must be up or down"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleOpen handles POST /api/trackers/{id}/open
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := h.app.OpenTracker(r.Context(), actor, r.URL.Query().Get("owner"), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, openResponse{ID: id})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNotOwned), errors.Is(err, models.ErrNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrMissingParameter), errors.Is(err, ErrInvalidForm):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoSession):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("tracker list request failed")
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
