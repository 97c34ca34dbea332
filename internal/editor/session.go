// Package editor ties the graph store, canvas, inspector and persistence
// gateway of one editing session together, and manages the set of live
// sessions.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/starford/vssflow/internal/apperr"
	"github.com/starford/vssflow/internal/canvas"
	"github.com/starford/vssflow/internal/gateway"
	"github.com/starford/vssflow/internal/graph"
	"github.com/starford/vssflow/internal/inspector"
	"github.com/starford/vssflow/internal/metrics"
	"github.com/starford/vssflow/internal/models"
	"github.com/starford/vssflow/internal/palette"
	"github.com/starford/vssflow/internal/parser"
	"github.com/starford/vssflow/internal/sse"
)

// Events receives session events for SSE clients.
type Events interface {
	Publish(event sse.Event)
	PublishGraphChange(session string, version uint64)
}

// Drafts exports and imports draft files.
type Drafts interface {
	Export(path, name, scriptID string, g graph.Graph) (models.DraftMetadata, error)
	Import(path string) (*parser.Draft, error)
}

// Info summarises a session.
type Info struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	LastUsed  time.Time       `json:"last_used"`
	Nodes     int             `json:"nodes"`
	Edges     int             `json:"edges"`
	Version   uint64          `json:"version"`
	Selected  string          `json:"selected,omitempty"`
	Viewport  canvas.Viewport `json:"viewport"`
	Script    gateway.Status  `json:"script"`
}

// Session is one script editor. All methods are safe for concurrent use.
type Session struct {
	id        string
	createdAt time.Time
	lastUsed  atomic.Int64

	store     *graph.Store
	canvas    *canvas.Controller
	inspector *inspector.Inspector
	gateway   *gateway.Gateway
	drafts    Drafts
	events    Events
	metrics   *metrics.Metrics
	newNodeID func() string
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

func (s *Session) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Notify forwards a gateway notification to the session's SSE clients.
func (s *Session) Notify(n gateway.Notification) {
	if s.events == nil {
		return
	}
	s.events.Publish(sse.Event{Type: sse.TypeNotification, Session: s.id, Data: n})
}

func (s *Session) changed(op string) {
	s.metrics.GraphMutation(op)
	if s.events != nil {
		s.events.PublishGraphChange(s.id, s.store.Version())
	}
}

// Info returns a summary of the session state.
func (s *Session) Info() Info {
	nodes, edges := s.store.Counts()
	sel, _ := s.canvas.Selected()
	return Info{
		ID:        s.id,
		CreatedAt: s.createdAt,
		LastUsed:  s.idleSince(),
		Nodes:     nodes,
		Edges:     edges,
		Version:   s.store.Version(),
		Selected:  sel,
		Viewport:  s.canvas.Viewport(),
		Script:    s.gateway.Status(),
	}
}

// Graph returns a snapshot of the graph and its version.
func (s *Session) Graph() (graph.Graph, uint64) {
	// Read the version first so a racing mutation makes the pair look stale,
	// never fresher than it is.
	v := s.store.Version()
	return s.store.Snapshot(), v
}

// AddNode instantiates palette entry key at pos, or at the default
// click-to-add position when pos is nil.
func (s *Session) AddNode(key string, pos *graph.Position) (graph.Node, error) {
	var (
		n   graph.Node
		err error
	)
	if pos == nil {
		n, err = s.canvas.AddFromPalette(key)
	} else {
		n, err = palette.Instantiate(s.store, key, *pos)
	}
	if err != nil {
		return graph.Node{}, err
	}
	s.changed("add_node")
	return n, nil
}

// Drop instantiates key where a palette item was released on the canvas.
func (s *Session) Drop(key string, bounds canvas.Rect, client canvas.Point) (graph.Node, error) {
	n, err := s.canvas.Drop(key, bounds, client)
	if err != nil {
		return graph.Node{}, err
	}
	s.changed("add_node")
	return n, nil
}

// MoveNode repositions a node.
func (s *Session) MoveNode(id string, pos graph.Position) error {
	if err := s.canvas.MoveNode(id, pos); err != nil {
		return err
	}
	s.changed("move_node")
	return nil
}

// RemoveNode deletes a node and its edges. An inspector bound to the node
// is closed.
func (s *Session) RemoveNode(id string) error {
	if err := s.canvas.RemoveNode(id); err != nil {
		return err
	}
	if f, ok := s.inspector.Form(); ok && f.NodeID == id {
		s.inspector.Close()
	}
	s.changed("remove_node")
	return nil
}

// Connect adds an edge from source to target.
func (s *Session) Connect(source, target string) (graph.Edge, error) {
	e, err := s.canvas.Connect(source, target)
	if err != nil {
		return graph.Edge{}, err
	}
	s.changed("connect")
	return e, nil
}

// RemoveEdge deletes an edge.
func (s *Session) RemoveEdge(id string) error {
	if err := s.canvas.RemoveEdge(id); err != nil {
		return err
	}
	s.changed("remove_edge")
	return nil
}

// Viewport returns the canvas pan/zoom.
func (s *Session) Viewport() canvas.Viewport {
	return s.canvas.Viewport()
}

// SetViewport replaces the pan/zoom; zoom is clamped.
func (s *Session) SetViewport(v canvas.Viewport) canvas.Viewport {
	return s.canvas.SetViewport(v)
}

// Pan shifts the viewport by screen pixels.
func (s *Session) Pan(dx, dy float64) canvas.Viewport {
	return s.canvas.Pan(dx, dy)
}

// ZoomAt scales the viewport keeping the graph point under at fixed.
func (s *Session) ZoomAt(factor float64, at canvas.Point) canvas.Viewport {
	return s.canvas.ZoomAt(factor, at)
}

// Select clicks node id and binds the inspector to it.
func (s *Session) Select(id string) (inspector.Form, error) {
	n, err := s.canvas.Click(id)
	if err != nil {
		return inspector.Form{}, err
	}
	return s.inspector.Bind(n), nil
}

// Deselect closes the inspector without saving.
func (s *Session) Deselect() {
	s.inspector.Close()
}

// Inspector returns the bound form.
func (s *Session) Inspector() (inspector.Form, error) {
	f, ok := s.inspector.Form()
	if !ok {
		return inspector.Form{}, inspector.ErrNotBound
	}
	return f, nil
}

// SetFields edits several inspector fields. Fields are applied in name
// order and the first rejected field stops the update.
func (s *Session) SetFields(values map[string]any) (inspector.Form, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	f, err := s.Inspector()
	if err != nil {
		return inspector.Form{}, err
	}
	for _, name := range names {
		if f, err = s.inspector.Set(name, values[name]); err != nil {
			return inspector.Form{}, err
		}
	}
	return f, nil
}

// SaveInspector commits the form to the graph and closes the inspector.
func (s *Session) SaveInspector() (graph.Node, error) {
	n, err := s.inspector.Save()
	if err != nil {
		return graph.Node{}, err
	}
	s.changed("update_node")
	return n, nil
}

// EditNode sets fields of node id through the inspector, so the field set
// and validation are those of the property panel. The inspector is left
// unbound and the selection cleared whatever the outcome.
func (s *Session) EditNode(id string, values map[string]any) (graph.Node, error) {
	if _, err := s.Select(id); err != nil {
		return graph.Node{}, err
	}
	if _, err := s.SetFields(values); err != nil {
		s.inspector.Close()
		return graph.Node{}, err
	}
	n, err := s.SaveInspector()
	if err != nil {
		s.inspector.Close()
		return graph.Node{}, err
	}
	return n, nil
}

// LoadScripts fetches the saved script list.
func (s *Session) LoadScripts(ctx context.Context) ([]models.Script, error) {
	return s.gateway.Load(ctx)
}

// OpenScript replaces the graph with a loaded script.
func (s *Session) OpenScript(ctx context.Context, id string) (models.Script, error) {
	sc, err := s.gateway.Open(id)
	if errors.Is(err, apperr.ErrNotFound) {
		// The list may not have been fetched yet in this session.
		if _, lerr := s.gateway.Load(ctx); lerr != nil {
			return models.Script{}, lerr
		}
		sc, err = s.gateway.Open(id)
	}
	if err != nil {
		return models.Script{}, err
	}
	s.afterRestore()
	return sc, nil
}

// afterRestore resets canvas and inspector state that may point at nodes of
// the replaced graph.
func (s *Session) afterRestore() {
	s.inspector.Close()
	s.changed("restore")
}

// SaveScript persists the current graph under name.
func (s *Session) SaveScript(ctx context.Context, name string) (models.Script, error) {
	return s.gateway.Save(ctx, name)
}

// RunScript triggers remote execution; an empty id runs the bound script.
func (s *Session) RunScript(ctx context.Context, id string) error {
	return s.gateway.Run(ctx, id)
}

// ExportDraft writes the graph to a local draft file.
func (s *Session) ExportDraft(path string) (models.DraftMetadata, error) {
	if s.drafts == nil {
		return models.DraftMetadata{}, fmt.Errorf("editor: drafts are disabled: %w", apperr.ErrConflict)
	}
	st := s.gateway.Status()
	g, _ := s.Graph()
	return s.drafts.Export(path, st.Name, st.ScriptID, g)
}

// ImportDraft replaces the graph with a local draft and binds the session
// to the script the draft was exported from.
func (s *Session) ImportDraft(path string) (*parser.Draft, error) {
	if s.drafts == nil {
		return nil, fmt.Errorf("editor: drafts are disabled: %w", apperr.ErrConflict)
	}
	d, err := s.drafts.Import(path)
	if err != nil {
		return nil, err
	}
	g, err := d.Graph()
	if err != nil {
		return nil, err
	}
	if len(g.Nodes) == 0 {
		g = graph.Seed(s.newNodeID)
	}
	if err := s.store.Restore(g); err != nil {
		return nil, fmt.Errorf("editor: import %s: %w", path, err)
	}
	s.gateway.Bind(d.ScriptID, d.Name)
	s.afterRestore()
	return d, nil
}
