// Package gateway bridges an editing session's graph store and the remote
// VSS scripts API. It is the only component that talks to the backend.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/starford/vssflow/internal/apperr"
	"github.com/starford/vssflow/internal/graph"
	"github.com/starford/vssflow/internal/metrics"
	"github.com/starford/vssflow/internal/models"
	"github.com/starford/vssflow/internal/vssapi"
)

// Operation names used in notifications and metrics.
const (
	OpLoad = "load"
	OpOpen = "open"
	OpSave = "save"
	OpRun  = "run"
)

// Generic messages for failures that carry no server message.
const (
	msgLoadFailed = "failed to load script list"
	msgSaveFailed = "failed to save script"
	msgRunFailed  = "failed to run script"
	msgOpenFailed = "script content is malformed"
)

// ScriptsAPI is the subset of the VSS API the gateway needs.
type ScriptsAPI interface {
	ListScripts(ctx context.Context) ([]models.Script, error)
	SaveScript(ctx context.Context, s models.Script) (*models.Script, error)
	RunScript(ctx context.Context, id string) error
}

// Store is the graph store seen by the gateway.
type Store interface {
	Snapshot() graph.Graph
	Restore(g graph.Graph) error
	Version() uint64
}

// Status describes the script the session is bound to.
type Status struct {
	ScriptID     string `json:"script_id,omitempty"`
	Name         string `json:"name,omitempty"`
	SavedVersion uint64 `json:"saved_version"`
	Dirty        bool   `json:"dirty"`
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMetrics records every backend call.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithIDFunc sets the id generator used when opening a script with empty
// content requires fresh seed nodes.
func WithIDFunc(fn func() string) Option {
	return func(g *Gateway) {
		g.newID = fn
	}
}

// Gateway loads, saves and runs scripts for one editing session.
type Gateway struct {
	api     ScriptsAPI
	store   Store
	notify  Notifier
	metrics *metrics.Metrics
	logger  *slog.Logger
	newID   func() string

	loads singleflight.Group

	mu           sync.Mutex
	scripts      []models.Script
	scriptID     string
	name         string
	savedVersion uint64
}

// New creates a gateway. A nil notifier discards notifications.
func New(api ScriptsAPI, store Store, notify Notifier, opts ...Option) *Gateway {
	if notify == nil {
		notify = NotifierFunc(func(Notification) {})
	}
	g := &Gateway{
		api:    api,
		store:  store,
		notify: notify,
		logger: slog.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Load fetches the saved script list. Concurrent callers share one request.
// The graph is never touched. Cancelling ctx does not abort the request.
func (g *Gateway) Load(ctx context.Context) ([]models.Script, error) {
	ctx = context.WithoutCancel(ctx)
	v, err, _ := g.loads.Do(OpLoad, func() (any, error) {
		started := time.Now()
		scripts, err := g.api.ListScripts(ctx)
		g.metrics.ObserveGateway(OpLoad, started, err)
		if err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.scripts = scripts
		g.mu.Unlock()
		return scripts, nil
	})
	if err != nil {
		g.fail(OpLoad, "", msgLoadFailed, err)
		return nil, fmt.Errorf("gateway: load: %w", err)
	}
	return cloneScripts(v.([]models.Script)), nil
}

// Open replaces the session graph with the content of a loaded script and
// binds the gateway to it. Empty content opens the seed graph. On error the
// graph is untouched.
func (g *Gateway) Open(id string) (models.Script, error) {
	g.mu.Lock()
	var (
		script models.Script
		found  bool
	)
	for _, s := range g.scripts {
		if s.ID == id {
			script, found = s, true
			break
		}
	}
	g.mu.Unlock()
	if !found {
		return models.Script{}, fmt.Errorf("gateway: open %s: %w", id, apperr.ErrNotFound)
	}

	decoded, err := graph.Decode(script.Content)
	if err == nil && len(decoded.Nodes) == 0 {
		decoded = graph.Seed(g.newID)
	}
	if err == nil {
		err = g.store.Restore(decoded)
	}
	if err != nil {
		g.fail(OpOpen, id, msgOpenFailed, err)
		return models.Script{}, fmt.Errorf("gateway: open %s: %w", id, err)
	}

	g.mu.Lock()
	g.scriptID, g.name = script.ID, script.Name
	g.savedVersion = g.store.Version()
	g.mu.Unlock()

	g.notify.Notify(Notification{
		Level:    LevelInfo,
		Action:   OpOpen,
		ScriptID: script.ID,
		Message:  fmt.Sprintf("opened %q", script.Name),
	})
	return script, nil
}

// Save serializes the graph as it is at call time and creates or updates
// the bound script. An empty name keeps the bound name. The local graph is
// never modified. The request outlives a cancelled ctx so a save the backend
// commits always binds the session.
func (g *Gateway) Save(ctx context.Context, name string) (models.Script, error) {
	ctx = context.WithoutCancel(ctx)
	g.mu.Lock()
	id := g.scriptID
	if name == "" {
		name = g.name
	}
	g.mu.Unlock()
	if name == "" {
		err := fmt.Errorf("gateway: save: name is required: %w", apperr.ErrValidation)
		g.notify.Notify(Notification{Level: LevelError, Action: OpSave, Message: "script name is required"})
		return models.Script{}, err
	}

	version := g.store.Version()
	content, err := graph.Encode(g.store.Snapshot())
	if err != nil {
		g.fail(OpSave, id, msgSaveFailed, err)
		return models.Script{}, fmt.Errorf("gateway: save: %w", err)
	}

	started := time.Now()
	saved, err := g.api.SaveScript(ctx, models.Script{ID: id, Name: name, Content: content})
	g.metrics.ObserveGateway(OpSave, started, err)
	if err != nil {
		g.fail(OpSave, id, msgSaveFailed, err)
		return models.Script{}, fmt.Errorf("gateway: save: %w", err)
	}

	g.mu.Lock()
	g.scriptID, g.name = saved.ID, saved.Name
	if g.name == "" {
		g.name = name
	}
	g.savedVersion = version
	g.upsert(models.Script{ID: g.scriptID, Name: g.name, Content: content})
	g.mu.Unlock()

	g.notify.Notify(Notification{Level: LevelSuccess, Action: OpSave, ScriptID: saved.ID, Message: "script saved"})
	return *saved, nil
}

// Run triggers remote execution. An empty id runs the bound script.
// Cancelling ctx does not abort the request.
func (g *Gateway) Run(ctx context.Context, id string) error {
	ctx = context.WithoutCancel(ctx)
	if id == "" {
		g.mu.Lock()
		id = g.scriptID
		g.mu.Unlock()
	}
	if id == "" {
		g.notify.Notify(Notification{Level: LevelError, Action: OpRun, Message: "no script selected"})
		return fmt.Errorf("gateway: run: no script selected: %w", apperr.ErrValidation)
	}

	started := time.Now()
	err := g.api.RunScript(ctx, id)
	g.metrics.ObserveGateway(OpRun, started, err)
	if err != nil {
		g.fail(OpRun, id, msgRunFailed, err)
		return fmt.Errorf("gateway: run %s: %w", id, err)
	}
	g.notify.Notify(Notification{Level: LevelSuccess, Action: OpRun, ScriptID: id, Message: "script run started"})
	return nil
}

// Status reports the bound script and whether the graph changed since the
// last open or save.
func (g *Gateway) Status() Status {
	g.mu.Lock()
	st := Status{ScriptID: g.scriptID, Name: g.name, SavedVersion: g.savedVersion}
	g.mu.Unlock()
	st.Dirty = g.store.Version() != st.SavedVersion
	return st
}

// Bind associates the session with a script without touching the graph.
// Used when a draft that remembers its script id is imported.
func (g *Gateway) Bind(id, name string) {
	g.mu.Lock()
	g.scriptID, g.name = id, name
	g.mu.Unlock()
}

// upsert must be called with g.mu held.
func (g *Gateway) upsert(s models.Script) {
	for i := range g.scripts {
		if g.scripts[i].ID == s.ID {
			g.scripts[i] = s
			return
		}
	}
	g.scripts = append(g.scripts, s)
}

func (g *Gateway) fail(op, scriptID, generic string, err error) {
	g.logger.Error("gateway operation failed",
		slog.String("op", op),
		slog.String("script_id", scriptID),
		slog.String("error", err.Error()))
	g.notify.Notify(Notification{
		Level:    LevelError,
		Action:   op,
		ScriptID: scriptID,
		Message:  messageFor(err, generic),
	})
}

// messageFor picks the user-visible text: the server message (or
// "HTTP <status>") for API errors, a fixed message otherwise.
func messageFor(err error, generic string) string {
	var apiErr *vssapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return generic
}

func cloneScripts(in []models.Script) []models.Script {
	out := make([]models.Script, len(in))
	for i, s := range in {
		out[i] = s
		out[i].Content = append([]byte(nil), s.Content...)
	}
	return out
}
