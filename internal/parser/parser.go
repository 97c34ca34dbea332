// Package parser reads and writes script drafts: YAML documents holding a
// script's name, its remote id and the node graph.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/vssflow/internal/apperr"
	"github.com/starford/vssflow/internal/graph"
)

// Draft is a locally stored script.
type Draft struct {
	Name       string       `yaml:"name"`
	ScriptID   string       `yaml:"script_id,omitempty"`
	ExportedAt time.Time    `yaml:"exported_at,omitempty"`
	Nodes      []graph.Node `yaml:"nodes"`
	Edges      []graph.Edge `yaml:"edges"`
}

// NewDraft captures g under name.
func NewDraft(name, scriptID string, g graph.Graph, at time.Time) *Draft {
	g = g.Clone()
	return &Draft{
		Name:       name,
		ScriptID:   scriptID,
		ExportedAt: at.UTC().Truncate(time.Second),
		Nodes:      g.Nodes,
		Edges:      g.Edges,
	}
}

// Parse decodes a draft document. Unknown keys are rejected, and the graph
// must pass validation.
func Parse(data []byte) (*Draft, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("parser: empty draft: %w", apperr.ErrValidation)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var d Draft
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parser: empty draft: %w", apperr.ErrValidation)
		}
		return nil, fmt.Errorf("parser: decode draft: %v: %w", err, apperr.ErrValidation)
	}
	d.Name = strings.TrimSpace(d.Name)

	for i := range d.Nodes {
		if d.Nodes[i].Attributes.Label == "" {
			d.Nodes[i].Attributes.Label = d.Nodes[i].Kind.DisplayName()
		}
	}
	for i := range d.Edges {
		if d.Edges[i].ID == "" {
			d.Edges[i].ID = graph.EdgeID(d.Edges[i].Source, d.Edges[i].Target)
		}
	}
	if _, err := d.Graph(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Render encodes d as a YAML document.
func Render(d *Draft) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("parser: encode draft: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("parser: encode draft: %w", err)
	}
	return buf.Bytes(), nil
}

// Graph returns the validated graph held by the draft.
func (d *Draft) Graph() (graph.Graph, error) {
	g := graph.Graph{Nodes: d.Nodes, Edges: d.Edges}
	if g.Nodes == nil {
		g.Nodes = []graph.Node{}
	}
	if g.Edges == nil {
		g.Edges = []graph.Edge{}
	}
	if err := graph.Validate(g); err != nil {
		return graph.Graph{}, fmt.Errorf("parser: draft %q: %w", d.Name, err)
	}
	return g.Clone(), nil
}
