// Package palette defines the closed catalog of node archetypes that can be
// placed on the canvas, together with the per-kind property schema.
package palette

import (
	"fmt"

	"github.com/starford/vssflow/internal/apperr"
	"github.com/starford/vssflow/internal/graph"
)

// DefaultPosition is where click-to-add places new nodes.
var DefaultPosition = graph.Position{X: 150, Y: 100}

// Entry is one palette item.
type Entry struct {
	Key    string     `json:"key"`
	Kind   graph.Kind `json:"kind"`
	Label  string     `json:"label"`
	Icon   string     `json:"icon"`
	Fields []Field    `json:"fields"`
}

var entries = []Entry{
	{Key: string(graph.KindDataSource), Kind: graph.KindDataSource, Label: "Data Source", Icon: "gateway"},
	{Key: string(graph.KindProcessor), Kind: graph.KindProcessor, Label: "Processor", Icon: "apartment"},
	{Key: string(graph.KindBranch), Kind: graph.KindBranch, Label: "Branch", Icon: "branches"},
	{Key: string(graph.KindVariable), Kind: graph.KindVariable, Label: "Variable", Icon: "field-number"},
	{Key: string(graph.KindLoop), Kind: graph.KindLoop, Label: "Loop", Icon: "sync"},
	{Key: string(graph.KindOutput), Kind: graph.KindOutput, Label: "Output", Icon: "logout"},
}

// Entries returns the catalog in display order.
func Entries() []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		e.Fields = FieldsFor(e.Kind)
		out[i] = e
	}
	return out
}

// Lookup finds the entry with the given key.
func Lookup(key string) (Entry, bool) {
	for _, e := range entries {
		if e.Key == key {
			e.Fields = FieldsFor(e.Kind)
			return e, true
		}
	}
	return Entry{}, false
}

// NodeAdder is the part of the graph store the palette needs.
type NodeAdder interface {
	AddNode(kind graph.Kind, pos graph.Position) (graph.Node, error)
}

// Instantiate creates a default node for the palette entry key at pos.
func Instantiate(store NodeAdder, key string, pos graph.Position) (graph.Node, error) {
	e, ok := Lookup(key)
	if !ok {
		return graph.Node{}, fmt.Errorf("palette: unknown entry %q: %w", key, apperr.ErrNotFound)
	}
	return store.AddNode(e.Kind, pos)
}
