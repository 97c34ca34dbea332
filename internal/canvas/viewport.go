// Package canvas translates pointer interactions on the editor canvas into
// graph store mutations and tracks node selection.
package canvas

import "github.com/starford/vssflow/internal/graph"

// Zoom limits of the viewport.
const (
	MinZoom = 0.5
	MaxZoom = 2.0
)

// Point is a screen-space coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is the bounding rectangle of the canvas element in client coordinates.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport is the pan/zoom transform of the canvas: a graph point g is drawn
// at screen position g*Zoom + (X, Y).
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

func (v Viewport) zoom() float64 {
	if v.Zoom <= 0 {
		return 1
	}
	return v.Zoom
}

// Project converts a canvas-relative screen point into graph space.
func (v Viewport) Project(p Point) graph.Position {
	z := v.zoom()
	return graph.Position{X: (p.X - v.X) / z, Y: (p.Y - v.Y) / z}
}

// Pan shifts the viewport by (dx, dy) screen pixels.
func (v Viewport) Pan(dx, dy float64) Viewport {
	v.X += dx
	v.Y += dy
	return v
}

// ZoomAt scales the viewport by factor keeping the graph point under the
// screen point at fixed. The resulting zoom is clamped to [MinZoom, MaxZoom].
func (v Viewport) ZoomAt(factor float64, at Point) Viewport {
	if factor <= 0 {
		return v
	}
	anchor := v.Project(at)
	z := clamp(v.zoom()*factor, MinZoom, MaxZoom)
	return Viewport{
		X:    at.X - anchor.X*z,
		Y:    at.Y - anchor.Y*z,
		Zoom: z,
	}
}

func clamp(f, lo, hi float64) float64 {
	return max(lo, min(hi, f))
}
