package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vssflow/internal/canvas"
	"github.com/starford/vssflow/internal/editor"
	"github.com/starford/vssflow/internal/graph"
	"github.com/starford/vssflow/internal/palette"
)

// Handler holds API route handlers.
type Handler struct {
	sessions *editor.Manager
	drafts   DraftStore
}

// NewHandler creates a new Handler. drafts may be nil when drafts are disabled.
func NewHandler(sessions *editor.Manager, drafts DraftStore) *Handler {
	return &Handler{sessions: sessions, drafts: drafts}
}

// urlParam returns a path parameter, percent-decoded (edge ids contain "->").
func urlParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// versionMatches enforces an optional If-Match header against the session's
// graph version. It writes a 409 response and returns false on mismatch.
func versionMatches(w http.ResponseWriter, r *http.Request, s *editor.Session) bool {
	h := r.Header.Get("If-Match")
	if h == "" || h == "*" {
		return true
	}
	want, ok := parseETag(h)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("malformed If-Match"))
		return false
	}
	if _, current := s.Graph(); current != want {
		writeJSON(w, http.StatusConflict, errorBody("graph version mismatch"))
		return false
	}
	return true
}

// Palette handles GET /api/palette.
//
//	@Summary		List the node palette
//	@Tags			palette
//	@Produce		json
//	@Success		200	{array}	palette.Entry
//	@Security		BearerAuth
//	@Router			/palette [get]
func (h *Handler) Palette(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, palette.Entries())
}

// ListSessions handles GET /api/sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.List())
}

// CreateSession handles POST /api/sessions.
//
//	@Summary		Start an editing session with the seed graph
//	@Tags			sessions
//	@Produce		json
//	@Success		201	{object}	SessionResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	w.Header().Set("Location", "/api/sessions/"+s.ID())
	writeJSON(w, http.StatusCreated, s.Info())
}

// GetSession handles GET /api/sessions/{sid}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, session(r).Info())
}

// CloseSession handles DELETE /api/sessions/{sid}.
//
//	@Summary		Discard a session and its unsaved graph
//	@Tags			sessions
//	@Param			sid	path	string	true	"Session id"
//	@Success		204	"Session closed"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid} [delete]
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(session(r).ID()); err != nil {
		writeError(w, "close session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetGraph handles GET /api/sessions/{sid}/graph.
//
//	@Summary		Get the session graph
//	@Tags			graph
//	@Produce		json
//	@Param			sid				path		string	true	"Session id"
//	@Param			If-None-Match	header		string	false	"ETag of a cached graph"
//	@Success		200				{object}	GraphResponse
//	@Success		304				"Graph unchanged"
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/graph [get]
func (h *Handler) GetGraph(w http.ResponseWriter, r *http.Request) {
	g, version := session(r).Graph()
	tag := etag(version)
	w.Header().Set("ETag", tag)
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		if v, ok := parseETag(inm); ok && v == version {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	writeJSON(w, http.StatusOK, GraphResponse{Version: version, Nodes: g.Nodes, Edges: g.Edges})
}

// writeMutation responds with v and the new graph ETag.
func writeMutation(w http.ResponseWriter, s *editor.Session, status int, v any) {
	_, version := s.Graph()
	w.Header().Set("ETag", etag(version))
	writeJSON(w, status, v)
}

// AddNode handles POST /api/sessions/{sid}/nodes.
//
//	@Summary		Add a palette node
//	@Tags			graph
//	@Accept			json
//	@Produce		json
//	@Param			sid		path		string			true	"Session id"
//	@Param			body	body		AddNodeRequest	true	"Palette key and optional position"
//	@Success		201		{object}	graph.Node
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/nodes [post]
func (h *Handler) AddNode(w http.ResponseWriter, r *http.Request) {
	s := session(r)
	var req AddNodeRequest
	if !decodeJSON(w, r, &req) || !versionMatches(w, r, s) {
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("key is required"))
		return
	}
	n, err := s.AddNode(req.Key, req.Position)
	if err != nil {
		writeError(w, "add node", err)
		return
	}
	writeMutation(w, s, http.StatusCreated, n)
}

// Drop handles POST /api/sessions/{sid}/drop.
func (h *Handler) Drop(w http.ResponseWriter, r *http.Request) {
	s := session(r)
	var req DropRequest
	if !decodeJSON(w, r, &req) || !versionMatches(w, r, s) {
		return
	}
	n, err := s.Drop(req.Key, req.Bounds, req.Client)
	if err != nil {
		writeError(w, "drop node", err)
		return
	}
	writeMutation(w, s, http.StatusCreated, n)
}

// UpdateNode handles PATCH /api/sessions/{sid}/nodes/{nid}.
//
// The body is a map of field name to value, validated like the property
// panel.
func (h *Handler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	s := session(r)
	var req FieldsRequest
	if !decodeJSON(w, r, &req) || !versionMatches(w, r, s) {
		return
	}
	n, err := s.EditNode(urlParam(r, "nid"), req)
	if err != nil {
		writeError(w, "update node", err)
		return
	}
	writeMutation(w, s, http.StatusOK, n)
}

// MoveNode handles PUT /api/sessions/{sid}/nodes/{nid}/position.
func (h *Handler) MoveNode(w http.ResponseWriter, r *http.Request) {
	s := session(r)
	var pos graph.Position
	if !decodeJSON(w, r, &pos) || !versionMatches(w, r, s) {
		return
	}
	id := urlParam(r, "nid")
	if err := s.MoveNode(id, pos); err != nil {
		writeError(w, "move node", err)
		return
	}
	writeMutation(w, s, http.StatusOK, map[string]any{"id": id, "position": pos})
}

// RemoveNode handles DELETE /api/sessions/{sid}/nodes/{nid}.
//
//	@Summary		Remove a node and its edges
//	@Tags			graph
//	@Param			sid	path	string	true	"Session id"
//	@Param			nid	path	string	true	"Node id"
//	@Success		204	"Node removed"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/nodes/{nid} [delete]
func (h *Handler) RemoveNode(w http.ResponseWriter, r *http.Request) {
	s := session(r)
	if !versionMatches(w, r, s) {
		return
	}
	if err := s.RemoveNode(urlParam(r, "nid")); err != nil {
		writeError(w, "remove node", err)
		return
	}
	_, version := s.Graph()
	w.Header().Set("ETag", etag(version))
	w.WriteHeader(http.StatusNoContent)
}

// Connect handles POST /api/sessions/{sid}/edges.
//
//	@Summary		Connect two nodes
//	@Tags			graph
//	@Accept			json
//	@Produce		json
//	@Param			sid		path		string			true	"Session id"
//	@Param			body	body		ConnectRequest	true	"Edge endpoints"
//	@Success		201		{object}	graph.Edge
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/edges [post]
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	s := session(r)
	var req ConnectRequest
	if !decodeJSON(w, r, &req) || !versionMatches(w, r, s) {
		return
	}
	e, err := s.Connect(req.Source, req.Target)
	if err != nil {
		writeError(w, "connect", err)
		return
	}
	writeMutation(w, s, http.StatusCreated, e)
}

// RemoveEdge handles DELETE /api/sessions/{sid}/edges/{eid}.
func (h *Handler) RemoveEdge(w http.ResponseWriter, r *http.Request) {
	s := session(r)
	if !versionMatches(w, r, s) {
		return
	}
	if err := s.RemoveEdge(urlParam(r, "eid")); err != nil {
		writeError(w, "remove edge", err)
		return
	}
	_, version := s.Graph()
	w.Header().Set("ETag", etag(version))
	w.WriteHeader(http.StatusNoContent)
}

// GetViewport handles GET /api/sessions/{sid}/viewport.
func (h *Handler) GetViewport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, session(r).Viewport())
}

// SetViewport handles PUT /api/sessions/{sid}/viewport. Zoom is clamped.
func (h *Handler) SetViewport(w http.ResponseWriter, r *http.Request) {
	var v canvas.Viewport
	if !decodeJSON(w, r, &v) {
		return
	}
	writeJSON(w, http.StatusOK, session(r).SetViewport(v))
}

// PanViewport handles POST /api/sessions/{sid}/viewport/pan.
func (h *Handler) PanViewport(w http.ResponseWriter, r *http.Request) {
	var req PanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, session(r).Pan(req.DX, req.DY))
}

// ZoomViewport handles POST /api/sessions/{sid}/viewport/zoom. The zoom
// stays within [canvas.MinZoom, canvas.MaxZoom].
func (h *Handler) ZoomViewport(w http.ResponseWriter, r *http.Request) {
	var req ZoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Factor <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("factor must be positive"))
		return
	}
	writeJSON(w, http.StatusOK, session(r).ZoomAt(req.Factor, req.At))
}

// Select handles POST /api/sessions/{sid}/selection/{nid}.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	form, err := session(r).Select(urlParam(r, "nid"))
	if err != nil {
		writeError(w, "select", err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// Deselect handles DELETE /api/sessions/{sid}/selection.
func (h *Handler) Deselect(w http.ResponseWriter, r *http.Request) {
	session(r).Deselect()
	w.WriteHeader(http.StatusNoContent)
}

// GetInspector handles GET /api/sessions/{sid}/inspector.
func (h *Handler) GetInspector(w http.ResponseWriter, r *http.Request) {
	form, err := session(r).Inspector()
	if err != nil {
		writeError(w, "inspector", err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// SetFields handles PATCH /api/sessions/{sid}/inspector.
//
//	@Summary		Edit inspector fields of the selected node
//	@Tags			inspector
//	@Accept			json
//	@Produce		json
//	@Param			sid		path		string			true	"Session id"
//	@Param			body	body		FieldsRequest	true	"Field values by name"
//	@Success		200		{object}	inspector.Form
//	@Failure		409		{object}	errResponse	"No node selected"
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/inspector [patch]
func (h *Handler) SetFields(w http.ResponseWriter, r *http.Request) {
	var req FieldsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	form, err := session(r).SetFields(req)
	if err != nil {
		writeError(w, "set fields", err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// SaveInspector handles POST /api/sessions/{sid}/inspector/save.
func (h *Handler) SaveInspector(w http.ResponseWriter, r *http.Request) {
	s := session(r)
	n, err := s.SaveInspector()
	if err != nil {
		writeError(w, "save inspector", err)
		return
	}
	slog.Debug("node updated", slog.String("session", s.ID()), slog.String("node", n.ID))
	writeMutation(w, s, http.StatusOK, n)
}
