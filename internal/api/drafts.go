package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vssflow/internal/models"
)

const maxDraftBytes = 4 << 20

// DraftStore is the subset of the drafts service the API uses directly.
type DraftStore interface {
	List() ([]models.DraftMetadata, error)
	Put(path string, data []byte) (models.DraftMetadata, error)
	Delete(path string) error
}

func (h *Handler) draftsEnabled(w http.ResponseWriter) bool {
	if h.drafts == nil {
		writeJSON(w, http.StatusNotFound, errorBody("drafts are disabled"))
		return false
	}
	return true
}

// ListDrafts handles GET /api/drafts.
//
//	@Summary		List local drafts
//	@Tags			drafts
//	@Produce		json
//	@Success		200	{object}	DraftListResponse
//	@Security		BearerAuth
//	@Router			/drafts [get]
func (h *Handler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	if !h.draftsEnabled(w) {
		return
	}
	list, err := h.drafts.List()
	if err != nil {
		writeError(w, "list drafts", err)
		return
	}
	if list == nil {
		list = []models.DraftMetadata{}
	}
	writeJSON(w, http.StatusOK, DraftListResponse{Drafts: list})
}

// UploadDraft handles POST /api/drafts/upload (multipart/form-data, field
// "file"). The document is validated before it is written.
//
//	@Summary		Upload a draft document
//	@Tags			drafts
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Draft YAML"
//	@Success		201		{object}	models.DraftMetadata
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/drafts/upload [post]
func (h *Handler) UploadDraft(w http.ResponseWriter, r *http.Request) {
	if !h.draftsEnabled(w) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxDraftBytes)
	if err := r.ParseMultipartForm(maxDraftBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
		return
	}
	meta, err := h.drafts.Put(header.Filename, data)
	if err != nil {
		writeError(w, "upload draft", err)
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

// DeleteDraft handles DELETE /api/drafts/*.
func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	if !h.draftsEnabled(w) {
		return
	}
	path := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if err := h.drafts.Delete(path); err != nil {
		writeError(w, "delete draft", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportDraft handles POST /api/sessions/{sid}/drafts.
//
//	@Summary		Export the session graph as a local draft
//	@Tags			drafts
//	@Accept			json
//	@Produce		json
//	@Param			sid		path		string			true	"Session id"
//	@Param			body	body		DraftRequest	true	"Draft path"
//	@Success		201		{object}	models.DraftMetadata
//	@Failure		409		{object}	errResponse	"Drafts disabled"
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/drafts [post]
func (h *Handler) ExportDraft(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	meta, err := session(r).ExportDraft(req.Path)
	if err != nil {
		writeError(w, "export draft", err)
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

// ImportDraft handles POST /api/sessions/{sid}/drafts/import.
func (h *Handler) ImportDraft(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s := session(r)
	if _, err := s.ImportDraft(req.Path); err != nil {
		writeError(w, "import draft", err)
		return
	}
	g, version := s.Graph()
	w.Header().Set("ETag", etag(version))
	writeJSON(w, http.StatusOK, GraphResponse{Version: version, Nodes: g.Nodes, Edges: g.Edges})
}
