package graph

// Operator is a Branch comparison operator.
type Operator string

// Branch operators.
const (
	OpGreater  Operator = ">"
	OpLess     Operator = "<"
	OpEqual    Operator = "=="
	OpNotEqual Operator = "!="
)

// Operators lists the branch operators in display order.
var Operators = []Operator{OpGreater, OpLess, OpEqual, OpNotEqual}

// Position is a point in graph space.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Attributes is the kind-dependent property bag of a node.
// Only the fields belonging to the node's kind are meaningful.
type Attributes struct {
	Label     string   `json:"label" yaml:"label"`
	Source    string   `json:"source,omitempty" yaml:"source,omitempty"`
	Config    string   `json:"config,omitempty" yaml:"config,omitempty"`
	Operator  Operator `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value     *float64 `json:"value,omitempty" yaml:"value,omitempty"`
	VarName   string   `json:"varName,omitempty" yaml:"varName,omitempty"`
	Iteration *int     `json:"iteration,omitempty" yaml:"iteration,omitempty"`
	Target    string   `json:"target,omitempty" yaml:"target,omitempty"`
}

// Node is a typed unit of work on the canvas.
type Node struct {
	ID         string     `json:"id" yaml:"id"`
	Kind       Kind       `json:"kind" yaml:"kind"`
	Position   Position   `json:"position" yaml:"position"`
	Attributes Attributes `json:"data" yaml:"data"`
}

// Patch is a partial attribute update. Nil fields are left untouched.
// ClearValue and ClearIteration reset the optional numbers and win over
// Value and Iteration.
type Patch struct {
	Label     *string
	Source    *string
	Config    *string
	Operator  *Operator
	Value     *float64
	VarName   *string
	Iteration *int
	Target    *string

	ClearValue     bool
	ClearIteration bool
}

// apply merges p into a.
func (p Patch) apply(a *Attributes) {
	if p.Label != nil {
		a.Label = *p.Label
	}
	if p.Source != nil {
		a.Source = *p.Source
	}
	if p.Config != nil {
		a.Config = *p.Config
	}
	if p.Operator != nil {
		a.Operator = *p.Operator
	}
	switch {
	case p.ClearValue:
		a.Value = nil
	case p.Value != nil:
		v := *p.Value
		a.Value = &v
	}
	if p.VarName != nil {
		a.VarName = *p.VarName
	}
	switch {
	case p.ClearIteration:
		a.Iteration = nil
	case p.Iteration != nil:
		n := *p.Iteration
		a.Iteration = &n
	}
	if p.Target != nil {
		a.Target = *p.Target
	}
}

func (n Node) clone() Node {
	if n.Attributes.Value != nil {
		v := *n.Attributes.Value
		n.Attributes.Value = &v
	}
	if n.Attributes.Iteration != nil {
		it := *n.Attributes.Iteration
		n.Attributes.Iteration = &it
	}
	return n
}

// Edge connects a source node's output port to a target node's input port.
type Edge struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// EdgeID derives the identity of the edge between source and target.
func EdgeID(source, target string) string {
	return source + "->" + target
}

// Graph is a snapshot of nodes and edges.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Clone returns a deep copy of g.
func (g Graph) Clone() Graph {
	out := Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = n.clone()
	}
	copy(out.Edges, g.Edges)
	return out
}

// Seed returns the initial graph of a fresh session: a video stream input
// and an output terminal, no edges.
func Seed(newID func() string) Graph {
	return Graph{
		Nodes: []Node{
			{ID: newID(), Kind: KindInput, Position: Position{X: 0, Y: 0}, Attributes: Attributes{Label: KindInput.DisplayName()}},
			{ID: newID(), Kind: KindTerminalOutput, Position: Position{X: 400, Y: 0}, Attributes: Attributes{Label: KindTerminalOutput.DisplayName()}},
		},
		Edges: []Edge{},
	}
}
