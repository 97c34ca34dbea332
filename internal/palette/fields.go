package palette

import "github.com/starford/vssflow/internal/graph"

// FieldType selects the input control of a property field.
type FieldType string

// Field types.
const (
	FieldText   FieldType = "text"
	FieldNumber FieldType = "number"
	FieldSelect FieldType = "select"
)

// Field names as they appear in node attributes.
const (
	FieldLabel     = "label"
	FieldSource    = "source"
	FieldConfig    = "config"
	FieldOperator  = "operator"
	FieldValue     = "value"
	FieldVarName   = "varName"
	FieldIteration = "iteration"
	FieldTarget    = "target"
)

// Option is a choice of a select field.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Field describes one property input.
type Field struct {
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Type        FieldType `json:"type"`
	Placeholder string    `json:"placeholder,omitempty"`
	Options     []Option  `json:"options,omitempty"`
}

var labelField = Field{Name: FieldLabel, Label: "Label", Type: FieldText}

var operatorOptions = []Option{
	{Value: string(graph.OpGreater), Label: "Greater than (>)"},
	{Value: string(graph.OpLess), Label: "Less than (<)"},
	{Value: string(graph.OpEqual), Label: "Equal (==)"},
	{Value: string(graph.OpNotEqual), Label: "Not equal (!=)"},
}

var kindFields = map[graph.Kind][]Field{
	graph.KindDataSource: {
		{Name: FieldSource, Label: "Data source", Type: FieldText, Placeholder: "e.g. camera-1"},
	},
	graph.KindProcessor: {
		{Name: FieldConfig, Label: "Processing config", Type: FieldText, Placeholder: "e.g. threshold 0.5"},
	},
	graph.KindBranch: {
		{Name: FieldOperator, Label: "Comparison operator", Type: FieldSelect, Options: operatorOptions},
		{Name: FieldValue, Label: "Comparison value", Type: FieldNumber},
	},
	graph.KindVariable: {
		{Name: FieldVarName, Label: "Variable name", Type: FieldText, Placeholder: "e.g. count"},
	},
	graph.KindLoop: {
		{Name: FieldIteration, Label: "Iterations", Type: FieldNumber},
	},
	graph.KindOutput: {
		{Name: FieldTarget, Label: "Output target", Type: FieldText, Placeholder: "e.g. log"},
	},
}

// FieldsFor returns the property fields shown for a node of kind k:
// the label followed by the kind-specific fields. Terminal and unknown
// kinds only carry a label.
func FieldsFor(k graph.Kind) []Field {
	specific := kindFields[k]
	out := make([]Field, 0, 1+len(specific))
	out = append(out, labelField)
	for _, f := range specific {
		if f.Options != nil {
			f.Options = append([]Option(nil), f.Options...)
		}
		out = append(out, f)
	}
	return out
}

// FieldNamed returns the named field of kind k, if the kind exposes it.
func FieldNamed(k graph.Kind, name string) (Field, bool) {
	for _, f := range FieldsFor(k) {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
