// Package graph holds the node graph of a script editing session.
package graph

// Kind identifies a node archetype and, through the palette, its attribute schema.
type Kind string

// Palette kinds.
const (
	KindDataSource Kind = "data_source"
	KindProcessor  Kind = "processor"
	KindBranch     Kind = "branch"
	KindVariable   Kind = "variable"
	KindLoop       Kind = "loop"
	KindOutput     Kind = "output"
)

// Terminal kinds, used only by the two seed nodes.
const (
	KindInput          Kind = "input"
	KindTerminalOutput Kind = "terminal_output"
)

var displayNames = map[Kind]string{
	KindDataSource:     "Data Source",
	KindProcessor:      "Processor",
	KindBranch:         "Branch",
	KindVariable:       "Variable",
	KindLoop:           "Loop",
	KindOutput:         "Output",
	KindInput:          "Video Stream Input",
	KindTerminalOutput: "Output",
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := displayNames[k]
	return ok
}

// IsTerminal reports whether k is one of the seed terminal markers.
func (k Kind) IsTerminal() bool {
	return k == KindInput || k == KindTerminalOutput
}

// DisplayName is the default label given to new nodes of this kind.
func (k Kind) DisplayName() string {
	return displayNames[k]
}

// acceptsInput reports whether nodes of this kind have a target port.
func (k Kind) acceptsInput() bool {
	return k != KindInput
}

// emitsOutput reports whether nodes of this kind have a source port.
func (k Kind) emitsOutput() bool {
	return k != KindTerminalOutput
}
