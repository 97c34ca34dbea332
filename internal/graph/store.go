package graph

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/vssflow/internal/apperr"
)

// Option configures a Store.
type Option func(*Store)

// WithIDFunc replaces the node id generator (default: random UUIDs).
func WithIDFunc(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// Store is the authoritative node and edge collection of one editing session.
//
// All methods are safe for concurrent use; mutations are applied in the
// order they acquire the lock.
type Store struct {
	mu      sync.RWMutex
	nodes   []Node
	edges   []Edge
	newID   func() string
	version uint64
}

// New creates a store holding the seed graph.
func New(opts ...Option) *Store {
	s := &Store{newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	seed := Seed(s.newID)
	s.nodes = seed.Nodes
	s.edges = seed.Edges
	return s
}

// Version increases on every successful mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// AddNode appends a node of kind at pos with default attributes.
func (s *Store) AddNode(kind Kind, pos Position) (Node, error) {
	if !kind.Valid() || kind.IsTerminal() {
		return Node{}, fmt.Errorf("graph: unknown node kind %q: %w", kind, apperr.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := Node{
		ID:         s.newID(),
		Kind:       kind,
		Position:   pos,
		Attributes: Attributes{Label: kind.DisplayName()},
	}
	s.nodes = append(s.nodes, n)
	s.version++
	return n.clone(), nil
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return Node{}, false
	}
	return s.nodes[i].clone(), true
}

// UpdateNode merges patch into the attributes of node id.
func (s *Store) UpdateNode(id string, patch Patch) (Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return Node{}, fmt.Errorf("graph: node %s: %w", id, apperr.ErrNotFound)
	}
	patch.apply(&s.nodes[i].Attributes)
	s.version++
	return s.nodes[i].clone(), nil
}

// MoveNode sets the graph-space position of node id.
func (s *Store) MoveNode(id string, pos Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("graph: node %s: %w", id, apperr.ErrNotFound)
	}
	s.nodes[i].Position = pos
	s.version++
	return nil
}

// Connect appends an edge from source to target. An identical existing
// edge is returned instead of adding a duplicate.
func (s *Store) Connect(source, target string) (Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	si, ti := s.indexOf(source), s.indexOf(target)
	if si < 0 {
		return Edge{}, fmt.Errorf("graph: source node %s: %w", source, apperr.ErrNotFound)
	}
	if ti < 0 {
		return Edge{}, fmt.Errorf("graph: target node %s: %w", target, apperr.ErrNotFound)
	}
	if err := checkEdge(s.nodes[si], s.nodes[ti]); err != nil {
		return Edge{}, err
	}

	e := Edge{ID: EdgeID(source, target), Source: source, Target: target}
	if slices.Contains(s.edges, e) {
		return e, nil
	}
	s.edges = append(s.edges, e)
	s.version++
	return e, nil
}

// RemoveNode deletes node id together with every edge touching it.
func (s *Store) RemoveNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("graph: node %s: %w", id, apperr.ErrNotFound)
	}
	s.nodes = slices.Delete(s.nodes, i, i+1)
	s.edges = slices.DeleteFunc(s.edges, func(e Edge) bool {
		return e.Source == id || e.Target == id
	})
	s.version++
	return nil
}

// RemoveEdge deletes the edge with the given id.
func (s *Store) RemoveEdge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.edges, func(e Edge) bool { return e.ID == id })
	if i < 0 {
		return fmt.Errorf("graph: edge %s: %w", id, apperr.ErrNotFound)
	}
	s.edges = slices.Delete(s.edges, i, i+1)
	s.version++
	return nil
}

// Snapshot returns a deep copy of the current graph.
func (s *Store) Snapshot() Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Graph{Nodes: s.nodes, Edges: s.edges}.Clone()
}

// Counts returns the number of nodes and edges.
func (s *Store) Counts() (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), len(s.edges)
}

// Restore replaces the whole graph with g. On a validation error the store
// is left unchanged.
func (s *Store) Restore(g Graph) error {
	if err := Validate(g); err != nil {
		return err
	}
	g = g.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = g.Nodes
	s.edges = g.Edges
	s.version++
	return nil
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.nodes, func(n Node) bool { return n.ID == id })
}

func checkEdge(src, dst Node) error {
	if src.ID == dst.ID && src.Kind != KindLoop {
		return fmt.Errorf("graph: self-loop on %s node %s: %w", src.Kind, src.ID, apperr.ErrInvalidEdge)
	}
	if !src.Kind.emitsOutput() {
		return fmt.Errorf("graph: %s node %s has no output port: %w", src.Kind, src.ID, apperr.ErrInvalidEdge)
	}
	if !dst.Kind.acceptsInput() {
		return fmt.Errorf("graph: %s node %s has no input port: %w", dst.Kind, dst.ID, apperr.ErrInvalidEdge)
	}
	return nil
}

// Validate checks the structural invariants of g: unique non-empty node
// ids, known kinds, and edges whose endpoints exist and respect node ports.
func Validate(g Graph) error {
	byID := make(map[string]Node, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("graph: node without id: %w", apperr.ErrValidation)
		}
		if !n.Kind.Valid() {
			return fmt.Errorf("graph: node %s has unknown kind %q: %w", n.ID, n.Kind, apperr.ErrValidation)
		}
		if _, dup := byID[n.ID]; dup {
			return fmt.Errorf("graph: duplicate node id %s: %w", n.ID, apperr.ErrValidation)
		}
		byID[n.ID] = n
	}
	seen := make(map[string]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		src, ok := byID[e.Source]
		if !ok {
			return fmt.Errorf("graph: edge %s references missing source %s: %w", e.ID, e.Source, apperr.ErrValidation)
		}
		dst, ok := byID[e.Target]
		if !ok {
			return fmt.Errorf("graph: edge %s references missing target %s: %w", e.ID, e.Target, apperr.ErrValidation)
		}
		if err := checkEdge(src, dst); err != nil {
			return err
		}
		if e.ID != EdgeID(e.Source, e.Target) {
			return fmt.Errorf("graph: edge id %q does not match its endpoints: %w", e.ID, apperr.ErrValidation)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("graph: duplicate edge %s: %w", e.ID, apperr.ErrValidation)
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}
