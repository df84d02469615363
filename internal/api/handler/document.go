package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Rrens/docqa/internal/api/response"
	"github.com/Rrens/docqa/internal/domain"
	"github.com/go-chi/chi/v5"
)

const defaultMaxUploadBytes = 20 << 20

// DocumentHandler handles document catalog endpoints
type DocumentHandler struct {
	maxUploadBytes int64
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(maxUploadBytes int64) *DocumentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &DocumentHandler{maxUploadBytes: maxUploadBytes}
}

// SelectDocumentRequest binds a catalog member
type SelectDocumentRequest struct {
	DocumentID string `json:"document_id" validate:"required"`
}

// List returns the current binding and catalog
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controller(w, r)
	if !ok {
		return
	}
	snap, err := ctrl.Documents()
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, snap)
}

// Refresh reloads the catalog from the QA service
func (h *DocumentHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controller(w, r)
	if !ok {
		return
	}
	snap, err := ctrl.RefreshDocuments(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, snap)
}

// Select binds a document from the catalog
func (h *DocumentHandler) Select(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controller(w, r)
	if !ok {
		return
	}

	var input SelectDocumentRequest
	if !decodeAndValidate(w, r, &input) {
		return
	}

	doc, err := ctrl.SelectDocument(input.DocumentID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, doc)
}

// Delete removes a document. The caller confirms with ?confirm=true;
// anything else declines the turn without touching the QA service.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controller(w, r)
	if !ok {
		return
	}

	documentID := chi.URLParam(r, "documentID")
	if documentID == "" {
		response.BadRequest(w, "missing document ID")
		return
	}
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

	t, err := ctrl.DeleteDocument(r.Context(), documentID, func(context.Context, domain.DocumentRef) bool {
		return confirmed
	})
	if err != nil {
		response.FromError(w, err)
		return
	}
	waitTurn(w, r, t, http.StatusOK)
}

// Upload sends a multipart file to the QA service and binds it
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controller(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "file exceeds "+strconv.FormatInt(h.maxUploadBytes, 10)+" bytes")
			return
		}
		response.BadRequest(w, "no file uploaded")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "no file uploaded")
		return
	}
	defer file.Close()

	t, err := ctrl.SubmitUpload(r.Context(), domain.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Content:  file,
	})
	if err != nil {
		response.FromError(w, err)
		return
	}

	// the turn reads from file until it finishes, so outlive the request
	res, _ := t.Wait(context.WithoutCancel(r.Context()))
	writeTurn(w, res, http.StatusCreated)
}
