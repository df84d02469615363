package handler

import (
	"net/http"

	"github.com/Rrens/docqa/internal/api/response"
	"github.com/Rrens/docqa/internal/domain"
)

// ChatHandler handles the conversation endpoints
type ChatHandler struct{}

// NewChatHandler creates a new chat handler
func NewChatHandler() *ChatHandler {
	return &ChatHandler{}
}

// Transcript returns the ordered conversation
func (h *ChatHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controller(w, r)
	if !ok {
		return
	}
	entries, err := ctrl.Transcript()
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, map[string]any{"entries": entries})
}

// Ask submits a question against the bound document and waits for its turn
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controller(w, r)
	if !ok {
		return
	}

	var input domain.QuestionRequest
	if !decodeAndValidate(w, r, &input) {
		return
	}

	t, err := ctrl.SubmitQuestion(r.Context(), input.Text)
	if err != nil {
		response.FromError(w, err)
		return
	}
	waitTurn(w, r, t, http.StatusOK)
}

// Reconcile merges the authoritative history into the transcript now
func (h *ChatHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controller(w, r)
	if !ok {
		return
	}
	res, err := ctrl.Reconcile(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, map[string]any{"result": res})
}
