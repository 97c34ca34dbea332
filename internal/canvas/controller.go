package canvas

import (
	"fmt"
	"sync"

	"github.com/starford/vssflow/internal/apperr"
	"github.com/starford/vssflow/internal/graph"
	"github.com/starford/vssflow/internal/palette"
)

// Store is the graph store surface the controller drives.
type Store interface {
	palette.NodeAdder
	Node(id string) (graph.Node, bool)
	MoveNode(id string, pos graph.Position) error
	Connect(source, target string) (graph.Edge, error)
	RemoveNode(id string) error
	RemoveEdge(id string) error
}

// Controller owns the viewport and the selection state of one canvas.
//
// Selection has two states: Unselected and Selected(node). Clicking a node
// enters Selected, clicking another node moves directly to the new node, and
// Deselect returns to Unselected.
type Controller struct {
	store Store

	mu       sync.Mutex
	viewport Viewport
	selected string
}

// NewController creates a controller with an identity viewport and no selection.
func NewController(store Store) *Controller {
	return &Controller{store: store, viewport: Viewport{Zoom: 1}}
}

// Viewport returns the current pan/zoom transform.
func (c *Controller) Viewport() Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport
}

// SetViewport replaces the pan/zoom transform, clamping the zoom.
func (c *Controller) SetViewport(v Viewport) Viewport {
	v.Zoom = clamp(v.zoom(), MinZoom, MaxZoom)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = v
	return v
}

// Pan shifts the viewport by (dx, dy) screen pixels.
func (c *Controller) Pan(dx, dy float64) Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = c.viewport.Pan(dx, dy)
	return c.viewport
}

// ZoomAt scales the viewport around the canvas-relative point at.
func (c *Controller) ZoomAt(factor float64, at Point) Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = c.viewport.ZoomAt(factor, at)
	return c.viewport
}

// AddFromPalette handles a click on a palette entry.
func (c *Controller) AddFromPalette(key string) (graph.Node, error) {
	return palette.Instantiate(c.store, key, palette.DefaultPosition)
}

// Drop handles a palette entry released over the canvas. bounds is the
// canvas element's client rectangle and client the pointer position; the
// node lands at the graph-space projection of the canvas-relative point.
func (c *Controller) Drop(key string, bounds Rect, client Point) (graph.Node, error) {
	if key == "" {
		return graph.Node{}, fmt.Errorf("canvas: drop without palette entry: %w", apperr.ErrValidation)
	}
	pos := c.Viewport().Project(Point{X: client.X - bounds.Left, Y: client.Y - bounds.Top})
	return palette.Instantiate(c.store, key, pos)
}

// Connect joins the output port of source to the input port of target.
func (c *Controller) Connect(source, target string) (graph.Edge, error) {
	return c.store.Connect(source, target)
}

// MoveNode handles a node drag ending at pos.
func (c *Controller) MoveNode(id string, pos graph.Position) error {
	return c.store.MoveNode(id, pos)
}

// RemoveNode deletes a node and drops the selection if it pointed at it.
func (c *Controller) RemoveNode(id string) error {
	if err := c.store.RemoveNode(id); err != nil {
		return err
	}
	c.mu.Lock()
	if c.selected == id {
		c.selected = ""
	}
	c.mu.Unlock()
	return nil
}

// RemoveEdge deletes an edge.
func (c *Controller) RemoveEdge(id string) error {
	return c.store.RemoveEdge(id)
}

// Click selects node id and returns its current data.
func (c *Controller) Click(id string) (graph.Node, error) {
	n, ok := c.store.Node(id)
	if !ok {
		return graph.Node{}, fmt.Errorf("canvas: node %s: %w", id, apperr.ErrNotFound)
	}
	c.mu.Lock()
	c.selected = id
	c.mu.Unlock()
	return n, nil
}

// Deselect returns to the Unselected state.
func (c *Controller) Deselect() {
	c.mu.Lock()
	c.selected = ""
	c.mu.Unlock()
}

// Selected returns the selected node id, if any.
func (c *Controller) Selected() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected, c.selected != ""
}
