package graph

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/starford/vssflow/internal/apperr"
)

// Element types of the serialized script content.
const (
	ElementNode = "node"
	ElementEdge = "edge"
)

// element is one entry of a script's content array. Nodes come first,
// in canvas order, followed by edges.
type element struct {
	Type     string      `json:"type"`
	ID       string      `json:"id"`
	Kind     Kind        `json:"kind,omitempty"`
	Position *Position   `json:"position,omitempty"`
	Data     *Attributes `json:"data,omitempty"`
	Source   string      `json:"source,omitempty"`
	Target   string      `json:"target,omitempty"`
}

// Encode serializes g into the content array stored by the scripts API.
func Encode(g Graph) (json.RawMessage, error) {
	elems := make([]element, 0, len(g.Nodes)+len(g.Edges))
	for i := range g.Nodes {
		node := g.Nodes[i].clone()
		pos, attrs := node.Position, node.Attributes
		elems = append(elems, element{
			Type:     ElementNode,
			ID:       node.ID,
			Kind:     node.Kind,
			Position: &pos,
			Data:     &attrs,
		})
	}
	for _, e := range g.Edges {
		elems = append(elems, element{
			Type:   ElementEdge,
			ID:     e.ID,
			Source: e.Source,
			Target: e.Target,
		})
	}
	data, err := json.Marshal(elems)
	if err != nil {
		return nil, fmt.Errorf("graph: encode content: %w", err)
	}
	return data, nil
}

// Decode parses a content array produced by Encode. The result is fully
// validated; a malformed payload yields an error and no graph. Empty or
// null content decodes to an empty graph.
func Decode(raw json.RawMessage) (Graph, error) {
	g := Graph{Nodes: []Node{}, Edges: []Edge{}}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return g, nil
	}

	var elems []element
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return Graph{}, fmt.Errorf("graph: decode content: %v: %w", err, apperr.ErrValidation)
	}
	for i, el := range elems {
		switch el.Type {
		case ElementNode:
			n := Node{ID: el.ID, Kind: el.Kind}
			if el.Position != nil {
				n.Position = *el.Position
			}
			if el.Data != nil {
				n.Attributes = *el.Data
			}
			if n.Attributes.Label == "" {
				n.Attributes.Label = n.Kind.DisplayName()
			}
			g.Nodes = append(g.Nodes, n)
		case ElementEdge:
			id := el.ID
			if id == "" {
				id = EdgeID(el.Source, el.Target)
			}
			g.Edges = append(g.Edges, Edge{ID: id, Source: el.Source, Target: el.Target})
		default:
			return Graph{}, fmt.Errorf("graph: content element %d has unknown type %q: %w", i, el.Type, apperr.ErrValidation)
		}
	}
	if err := Validate(g); err != nil {
		return Graph{}, err
	}
	return g, nil
}
