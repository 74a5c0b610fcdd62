package api

import (
	"net/http"

	"github.com/starford/noterefs/internal/workspace"
)

// Handler holds API route handlers.
type Handler struct {
	ws *workspace.Workspace
}

// NewHandler creates a new Handler.
func NewHandler(ws *workspace.Workspace) *Handler {
	return &Handler{ws: ws}
}

// OpenDocument handles POST /api/documents.
//
//	@Summary		Open a note and start maintaining its references summary
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PathRequest	true	"Note to open"
//	@Success		200		{object}	DocumentView
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) OpenDocument(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := h.ws.Open(r.Context(), req.Path)
	if err != nil {
		writeError(w, "open document", req.Path, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetDocument handles GET /api/documents. Without a path query parameter it
// lists the open documents.
//
//	@Summary		Get an open document or list open documents
//	@Tags			documents
//	@Produce		json
//	@Param			path	query		string	false	"Note path"
//	@Success		200		{object}	DocumentView
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		docs, err := h.ws.Documents(r.Context())
		if err != nil {
			writeError(w, "list documents", "", err)
			return
		}
		if docs == nil {
			docs = []string{}
		}
		writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs})
		return
	}
	view, err := h.ws.Get(r.Context(), path)
	if err != nil {
		writeError(w, "get document", path, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// CloseDocument handles DELETE /api/documents.
//
//	@Summary		Close a document, removing its references summary
//	@Tags			documents
//	@Param			path	query	string	true	"Note path"
//	@Param			force	query	bool	false	"Discard unsaved changes"
//	@Success		204		"Document closed"
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [delete]
func (h *Handler) CloseDocument(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	force := q.Get("force") == "1" || q.Get("force") == "true"
	if err := h.ws.Close(r.Context(), path, force); err != nil {
		writeError(w, "close document", path, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EditDocument handles POST /api/documents/edits.
//
//	@Summary		Apply an edit to an open document
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EditRequest	true	"Edit to apply"
//	@Success		200		{object}	DocumentView
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse	"Edit touches the references region"
//	@Security		BearerAuth
//	@Router			/documents/edits [post]
func (h *Handler) EditDocument(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := h.ws.Edit(r.Context(), req.Path, req.Offset, req.Delete, req.Insert)
	if err != nil {
		writeError(w, "edit document", req.Path, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SaveDocument handles POST /api/documents/save.
//
//	@Summary		Save an open document without its references summary
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PathRequest	true	"Document to save"
//	@Success		200		{object}	DocumentView
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/save [post]
func (h *Handler) SaveDocument(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := h.ws.Save(r.Context(), req.Path)
	if err != nil {
		writeError(w, "save document", req.Path, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// RefreshDocument handles POST /api/documents/refresh.
//
//	@Summary		Recompute the references summary now
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PathRequest	true	"Document to refresh"
//	@Success		200		{object}	DocumentView
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/refresh [post]
func (h *Handler) RefreshDocument(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := h.ws.Refresh(r.Context(), req.Path)
	if err != nil {
		writeError(w, "refresh document", req.Path, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ActivateReference handles POST /api/documents/activate.
//
//	@Summary		Open the reference at an offset of the summary
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ActivateRequest	true	"Activation"
//	@Success		200		{object}	ActivateResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/activate [post]
func (h *Handler) ActivateReference(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	target, ok, err := h.ws.Activate(r.Context(), req.Path, req.Offset)
	if err != nil {
		writeError(w, "activate reference", req.Path, err)
		return
	}
	writeJSON(w, http.StatusOK, ActivateResponse{Target: target, Opened: ok})
}

// GetReferences handles GET /api/references.
//
//	@Summary		Compute the links and backlinks of a note
//	@Tags			references
//	@Produce		json
//	@Param			path	query		string	true	"Note path"
//	@Success		200		{object}	ReferencesResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/references [get]
func (h *Handler) GetReferences(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	snap, err := h.ws.References(r.Context(), path)
	if err != nil {
		writeError(w, "get references", path, err)
		return
	}
	writeJSON(w, http.StatusOK, ReferencesResponse{Path: path, References: snap})
}
