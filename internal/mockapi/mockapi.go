// Package mockapi serves a stand-in for the VSS scripts endpoints, backed
// by the SQLite script store. Responses use the VSS envelope.
package mockapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vssflow/internal/apperr"
	"github.com/starford/vssflow/internal/models"
	"github.com/starford/vssflow/internal/scriptstore"
)

// Handler holds the mock backend routes.
type Handler struct {
	repo   scriptstore.Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewRouter returns a router serving /scripts, /scripts/{id} and
// /scripts/run/{id}.
func NewRouter(repo scriptstore.Repository, logger *slog.Logger) chi.Router {
	h := &Handler{repo: repo, logger: logger, now: time.Now}

	r := chi.NewRouter()
	r.Get("/scripts", h.ListScripts)
	r.Post("/scripts", h.SaveScript)
	r.Post("/scripts/run/{id}", h.RunScript)
	r.Get("/scripts/run/{id}", h.ListRuns)
	r.Get("/scripts/{id}", h.GetScript)
	r.Delete("/scripts/{id}", h.DeleteScript)
	return r
}

func (h *Handler) respond(w http.ResponseWriter, status int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	env := models.Envelope[any]{
		Code:      status,
		Message:   msg,
		Data:      data,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}
	if err := json.NewEncoder(w).Encode(env); err != nil {
		h.logger.Error("mock api encode failed", slog.String("error", err.Error()))
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		h.respond(w, http.StatusNotFound, "script not found", nil)
		return
	}
	h.logger.Error("mock api failed", slog.String("op", op), slog.String("error", err.Error()))
	h.respond(w, http.StatusInternalServerError, "internal error", nil)
}

// ListScripts handles GET /scripts?q=.
func (h *Handler) ListScripts(w http.ResponseWriter, r *http.Request) {
	scripts, err := h.repo.ListScripts(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		h.fail(w, "list", err)
		return
	}
	h.respond(w, http.StatusOK, "ok", scripts)
}

// GetScript handles GET /scripts/{id}.
func (h *Handler) GetScript(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.GetScript(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get", err)
		return
	}
	h.respond(w, http.StatusOK, "ok", s)
}

// SaveScript handles POST /scripts. A body without id creates a script.
func (h *Handler) SaveScript(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req models.Script
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, "invalid JSON", nil)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		h.respond(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	saved, err := h.repo.SaveScript(r.Context(), req)
	if err != nil {
		h.fail(w, "save", err)
		return
	}
	h.respond(w, http.StatusOK, "saved", saved)
}

// DeleteScript handles DELETE /scripts/{id}.
func (h *Handler) DeleteScript(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.DeleteScript(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete", err)
		return
	}
	h.respond(w, http.StatusOK, "deleted", nil)
}

// RunScript handles POST /scripts/run/{id}.
func (h *Handler) RunScript(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.repo.RecordRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "run", err)
		return
	}
	h.logger.Info("mock script run", slog.String("script_id", receipt.ScriptID), slog.String("run_id", receipt.RunID))
	h.respond(w, http.StatusOK, "run started", receipt)
}

// ListRuns handles GET /scripts/run/{id}.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.repo.GetScript(r.Context(), id); err != nil {
		h.fail(w, "runs", err)
		return
	}
	runs, err := h.repo.Runs(r.Context(), id)
	if err != nil {
		h.fail(w, "runs", err)
		return
	}
	if runs == nil {
		runs = []models.RunReceipt{}
	}
	h.respond(w, http.StatusOK, "ok", runs)
}
