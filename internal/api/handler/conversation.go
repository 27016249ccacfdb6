package handler

import (
	"net/http"
	"strings"

	"github.com/Rrens/smart-chat/internal/api/response"
	"github.com/Rrens/smart-chat/internal/markdown"
	"github.com/Rrens/smart-chat/internal/service"
)

// ConversationHandler drives the current session
type ConversationHandler struct {
	controller *service.Controller
}

func NewConversationHandler(controller *service.Controller) *ConversationHandler {
	return &ConversationHandler{controller: controller}
}

// Transcript returns the rendered current session
func (h *ConversationHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.controller.Transcript())
}

type sendRequest struct {
	Text string `json:"text" validate:"required,max=32000"`
}

// Send submits a user turn and answers once the reply is complete
func (h *ConversationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var input sendRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	if strings.TrimSpace(input.Text) == "" {
		response.BadRequest(w, map[string]string{"Text": "field is required"})
		return
	}

	sent, err := h.controller.Send(r.Context(), input.Text)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if !sent {
		response.Conflict(w, "a reply is already in progress")
		return
	}

	response.OK(w, h.controller.Transcript())
}

type inputRequest struct {
	Text string `json:"text" validate:"max=32000"`
}

// SetInput stores the draft text
func (h *ConversationHandler) SetInput(w http.ResponseWriter, r *http.Request) {
	var input inputRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	h.controller.SetInput(input.Text)
	response.OK(w, map[string]string{"input": h.controller.Input()})
}

// Cancel aborts the reply in flight
func (h *ConversationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]bool{"cancelled": h.controller.Cancel()})
}

// Reset clears the current session back to the greeting
func (h *ConversationHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Reset(r.Context()); err != nil {
		writeSessionError(w, err)
		return
	}
	response.OK(w, h.controller.Transcript())
}

type renderRequest struct {
	Markdown string `json:"markdown" validate:"max=200000"`
}

// Render converts markdown to the same safe HTML the transcript uses
func Render(w http.ResponseWriter, r *http.Request) {
	var input renderRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	response.OK(w, map[string]string{"html": markdown.Render(input.Markdown)})
}
