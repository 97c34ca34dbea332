package api

import (
	"github.com/starford/vssflow/internal/canvas"
	"github.com/starford/vssflow/internal/editor"
	"github.com/starford/vssflow/internal/graph"
	"github.com/starford/vssflow/internal/models"
)

// AddNodeRequest is the request body for click-to-add. Without a position
// the node lands at the palette default.
type AddNodeRequest struct {
	Key      string          `json:"key" example:"branch" validate:"required"`
	Position *graph.Position `json:"position,omitempty"`
}

// DropRequest is the request body for dropping a palette item on the canvas.
type DropRequest struct {
	Key    string       `json:"key" example:"data_source" validate:"required"`
	Bounds canvas.Rect  `json:"bounds" validate:"required"`
	Client canvas.Point `json:"client" validate:"required"`
}

// ConnectRequest is the request body for adding an edge.
type ConnectRequest struct {
	Source string `json:"source" example:"3f0c..." validate:"required"`
	Target string `json:"target" example:"9a41..." validate:"required"`
}

// PanRequest shifts the viewport by screen pixels.
type PanRequest struct {
	DX float64 `json:"dx" example:"-40"`
	DY float64 `json:"dy" example:"25"`
}

// ZoomRequest scales the viewport around a canvas-relative point, typically
// the cursor position of a wheel event.
type ZoomRequest struct {
	Factor float64      `json:"factor" example:"1.1" validate:"required"`
	At     canvas.Point `json:"at"`
}

// SaveScriptRequest is the request body for saving the graph remotely.
type SaveScriptRequest struct {
	Name string `json:"name" example:"Bottle cap check"`
}

// RunScriptRequest is the request body for running a script. An empty id
// runs the script the session is bound to.
type RunScriptRequest struct {
	ID string `json:"id,omitempty" example:"s-42"`
}

// DraftRequest names a draft file relative to the drafts directory.
type DraftRequest struct {
	Path string `json:"path" example:"line-a/cap-check.yaml" validate:"required"`
}

// FieldsRequest sets inspector fields by name.
type FieldsRequest map[string]any

// GraphResponse is the graph of a session with its version.
type GraphResponse struct {
	Version uint64       `json:"version" example:"12" validate:"required"`
	Nodes   []graph.Node `json:"nodes" validate:"required"`
	Edges   []graph.Edge `json:"edges" validate:"required"`
}

// SessionResponse summarises a session.
type SessionResponse = editor.Info

// ScriptListResponse wraps the saved scripts.
type ScriptListResponse struct {
	Scripts []models.Script `json:"scripts" validate:"required"`
}

// DraftListResponse wraps local drafts.
type DraftListResponse struct {
	Drafts []models.DraftMetadata `json:"drafts" validate:"required"`
}
