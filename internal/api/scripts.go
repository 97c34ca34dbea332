package api

import (
	"net/http"

	"github.com/starford/vssflow/internal/models"
)

// ListScripts handles GET /api/sessions/{sid}/scripts.
//
//	@Summary		Load saved scripts from the backend
//	@Tags			scripts
//	@Produce		json
//	@Param			sid	path		string	true	"Session id"
//	@Success		200	{object}	ScriptListResponse
//	@Failure		502	{object}	errResponse	"Backend failure"
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/scripts [get]
func (h *Handler) ListScripts(w http.ResponseWriter, r *http.Request) {
	scripts, err := session(r).LoadScripts(r.Context())
	if err != nil {
		writeError(w, "list scripts", err)
		return
	}
	if scripts == nil {
		scripts = []models.Script{}
	}
	writeJSON(w, http.StatusOK, ScriptListResponse{Scripts: scripts})
}

// OpenScript handles POST /api/sessions/{sid}/scripts/{id}/open.
func (h *Handler) OpenScript(w http.ResponseWriter, r *http.Request) {
	s := session(r)
	sc, err := s.OpenScript(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeError(w, "open script", err)
		return
	}
	writeMutation(w, s, http.StatusOK, sc)
}

// SaveScript handles POST /api/sessions/{sid}/save.
//
//	@Summary		Save the graph as a script
//	@Tags			scripts
//	@Accept			json
//	@Produce		json
//	@Param			sid		path		string				true	"Session id"
//	@Param			body	body		SaveScriptRequest	false	"Script name; defaults to the bound script"
//	@Success		200		{object}	models.Script
//	@Failure		422		{object}	errResponse
//	@Failure		502		{object}	errResponse	"Backend failure"
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/save [post]
func (h *Handler) SaveScript(w http.ResponseWriter, r *http.Request) {
	var req SaveScriptRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	sc, err := session(r).SaveScript(r.Context(), req.Name)
	if err != nil {
		writeError(w, "save script", err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// RunScript handles POST /api/sessions/{sid}/run.
//
//	@Summary		Run a saved script
//	@Tags			scripts
//	@Accept			json
//	@Param			sid		path	string				true	"Session id"
//	@Param			body	body	RunScriptRequest	false	"Script id; defaults to the bound script"
//	@Success		202		"Run started"
//	@Failure		422		{object}	errResponse
//	@Failure		502		{object}	errResponse	"Backend failure"
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/run [post]
func (h *Handler) RunScript(w http.ResponseWriter, r *http.Request) {
	var req RunScriptRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	s := session(r)
	if err := s.RunScript(r.Context(), req.ID); err != nil {
		writeError(w, "run script", err)
		return
	}
	id := req.ID
	if id == "" {
		id = s.Info().Script.ScriptID
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "started"})
}
