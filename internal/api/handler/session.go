package handler

import (
	"errors"
	"net/http"

	"github.com/Rrens/smart-chat/internal/api/response"
	"github.com/Rrens/smart-chat/internal/domain"
	"github.com/Rrens/smart-chat/internal/service"
	"github.com/go-chi/chi/v5"
)

// SessionHandler exposes the session list of the conversation controller
type SessionHandler struct {
	controller *service.Controller
}

func NewSessionHandler(controller *service.Controller) *SessionHandler {
	return &SessionHandler{controller: controller}
}

type sessionSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
	Current      bool   `json:"current"`
}

func summarize(sess domain.Session, currentID string) sessionSummary {
	return sessionSummary{
		ID:           sess.ID,
		Title:        sess.Title,
		MessageCount: len(sess.Messages),
		Current:      sess.ID == currentID,
	}
}

// List returns all sessions in display order
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	currentID := h.controller.CurrentSessionID()
	sessions := h.controller.Sessions()

	out := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, summarize(s, currentID))
	}

	response.OK(w, map[string]any{
		"sessions":   out,
		"current_id": currentID,
	})
}

// Create starts a new session and makes it current
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess := h.controller.NewSession(r.Context())
	response.Created(w, summarize(sess, sess.ID))
}

type renameRequest struct {
	Title string `json:"title" validate:"max=500"`
}

// Rename sets a session title. A blank title leaves it unchanged.
func (h *SessionHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var input renameRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	id := chi.URLParam(r, "sessionID")
	if err := h.controller.RenameSession(r.Context(), id, input.Title); err != nil {
		writeSessionError(w, err)
		return
	}

	h.List(w, r)
}

// Delete removes a session
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := h.controller.DeleteSession(r.Context(), id); err != nil {
		writeSessionError(w, err)
		return
	}
	response.NoContent(w)
}

// Select makes a session current and returns its transcript
func (h *SessionHandler) Select(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := h.controller.SelectSession(r.Context(), id); err != nil {
		writeSessionError(w, err)
		return
	}
	response.OK(w, h.controller.Transcript())
}

func writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrSessionNotFound) {
		response.NotFound(w, "session not found")
		return
	}
	response.InternalError(w, err.Error())
}
