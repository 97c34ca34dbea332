package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vssflow/internal/editor"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// drafts may be nil when the drafts directory is disabled.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(sessions *editor.Manager, drafts DraftStore, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(sessions, drafts)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/palette", h.Palette)

	// Editing sessions.
	r.Get("/sessions", h.ListSessions)
	r.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{sid}", func(r chi.Router) {
		r.Use(h.sessionCtx)
		r.Get("/", h.GetSession)
		r.Delete("/", h.CloseSession)

		// Graph.
		r.Get("/graph", h.GetGraph)
		r.Post("/nodes", h.AddNode)
		r.Post("/drop", h.Drop)
		r.Patch("/nodes/{nid}", h.UpdateNode)
		r.Put("/nodes/{nid}/position", h.MoveNode)
		r.Delete("/nodes/{nid}", h.RemoveNode)
		r.Post("/edges", h.Connect)
		r.Delete("/edges/{eid}", h.RemoveEdge)

		// Canvas and inspector.
		r.Get("/viewport", h.GetViewport)
		r.Put("/viewport", h.SetViewport)
		r.Post("/viewport/pan", h.PanViewport)
		r.Post("/viewport/zoom", h.ZoomViewport)
		r.Post("/selection/{nid}", h.Select)
		r.Delete("/selection", h.Deselect)
		r.Get("/inspector", h.GetInspector)
		r.Patch("/inspector", h.SetFields)
		r.Post("/inspector/save", h.SaveInspector)

		// Persistence.
		r.Get("/scripts", h.ListScripts)
		r.Post("/scripts/{id}/open", h.OpenScript)
		r.Post("/save", h.SaveScript)
		r.Post("/run", h.RunScript)
		r.Post("/drafts", h.ExportDraft)
		r.Post("/drafts/import", h.ImportDraft)
	})

	// Local drafts.
	r.Get("/drafts", h.ListDrafts)
	r.Post("/drafts/upload", h.UploadDraft)
	r.Delete("/drafts/*", h.DeleteDraft)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
