// Package inspector implements the property panel bound to the selected
// canvas node. The visible fields depend only on the node kind.
package inspector

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/starford/vssflow/internal/apperr"
	"github.com/starford/vssflow/internal/graph"
	"github.com/starford/vssflow/internal/palette"
)

// ErrNotBound is returned when no node is bound to the inspector.
var ErrNotBound = errors.New("inspector: no node bound")

// Updater commits attribute patches.
type Updater interface {
	UpdateNode(id string, patch graph.Patch) (graph.Node, error)
}

// Deselector clears the canvas selection.
type Deselector interface {
	Deselect()
}

// Form is the state of the property panel.
type Form struct {
	NodeID string          `json:"node_id"`
	Kind   graph.Kind      `json:"kind"`
	Fields []palette.Field `json:"fields"`
	Values map[string]any  `json:"values"`
}

// Inspector edits one node at a time.
type Inspector struct {
	store Updater
	sel   Deselector

	mu   sync.Mutex
	form *Form
}

// New creates an unbound inspector.
func New(store Updater, sel Deselector) *Inspector {
	return &Inspector{store: store, sel: sel}
}

// Bind opens the inspector on node n, initialising the form from its
// current attributes. Any edits to a previously bound node are dropped.
func (i *Inspector) Bind(n graph.Node) Form {
	fields := palette.FieldsFor(n.Kind)
	f := &Form{
		NodeID: n.ID,
		Kind:   n.Kind,
		Fields: fields,
		Values: initialValues(fields, n.Attributes),
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.form = f
	return f.copy()
}

// Form returns the current form.
func (i *Inspector) Form() (Form, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.form == nil {
		return Form{}, false
	}
	return i.form.copy(), true
}

// Set edits one field of the bound form. Fields outside the bound kind's
// schema are rejected.
func (i *Inspector) Set(name string, raw any) (Form, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.form == nil {
		return Form{}, ErrNotBound
	}
	field, ok := palette.FieldNamed(i.form.Kind, name)
	if !ok {
		return Form{}, fmt.Errorf("inspector: %s nodes have no field %q: %w", i.form.Kind, name, apperr.ErrValidation)
	}
	v, err := coerce(field, raw)
	if err != nil {
		return Form{}, err
	}
	i.form.Values[name] = v
	return i.form.copy(), nil
}

// Save commits the form into the store and closes the inspector.
// A validation error leaves the inspector bound.
func (i *Inspector) Save() (graph.Node, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.form == nil {
		return graph.Node{}, ErrNotBound
	}
	v, err := decode(i.form.Values)
	if err != nil {
		return graph.Node{}, err
	}
	if err := v.Validate(); err != nil {
		return graph.Node{}, fmt.Errorf("inspector: %v: %w", err, apperr.ErrValidation)
	}

	id, patch := i.form.NodeID, v.patch(i.form.Values)
	i.form = nil
	i.sel.Deselect()

	n, err := i.store.UpdateNode(id, patch)
	if err != nil {
		return graph.Node{}, fmt.Errorf("inspector: save %s: %w", id, err)
	}
	return n, nil
}

// Close discards in-progress edits and clears the selection.
func (i *Inspector) Close() {
	i.mu.Lock()
	i.form = nil
	i.mu.Unlock()
	i.sel.Deselect()
}

func (f *Form) copy() Form {
	return Form{
		NodeID: f.NodeID,
		Kind:   f.Kind,
		Fields: append([]palette.Field(nil), f.Fields...),
		Values: maps.Clone(f.Values),
	}
}
