package inspector

import (
	"errors"
	"fmt"
	"math"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mitchellh/mapstructure"

	"github.com/starford/vssflow/internal/apperr"
	"github.com/starford/vssflow/internal/graph"
	"github.com/starford/vssflow/internal/palette"
)

// values is the typed view of a form. Nil pointers are fields that are
// either absent from the node kind or left empty.
type values struct {
	Label     *string  `mapstructure:"label"`
	Source    *string  `mapstructure:"source"`
	Config    *string  `mapstructure:"config"`
	Operator  *string  `mapstructure:"operator"`
	Value     *float64 `mapstructure:"value"`
	VarName   *string  `mapstructure:"varName"`
	Iteration *int     `mapstructure:"iteration"`
	Target    *string  `mapstructure:"target"`
}

// Validate checks value ranges.
func (v *values) Validate() error {
	return validation.ValidateStruct(v,
		validation.Field(&v.Label, validation.RuneLength(0, 128)),
		validation.Field(&v.Operator, validation.In(
			string(graph.OpGreater), string(graph.OpLess), string(graph.OpEqual), string(graph.OpNotEqual),
		)),
		validation.Field(&v.Value, validation.By(finite)),
		validation.Field(&v.Iteration, validation.By(positive)),
	)
}

func finite(value any) error {
	if f, ok := value.(*float64); ok && f != nil && (math.IsNaN(*f) || math.IsInf(*f, 0)) {
		return errors.New("must be a finite number")
	}
	return nil
}

func positive(value any) error {
	if n, ok := value.(*int); ok && n != nil && *n < 1 {
		return errors.New("must be a positive integer")
	}
	return nil
}

// patch builds the store update for a form. Number fields present in the
// form but left empty clear the stored value.
func (v *values) patch(form map[string]any) graph.Patch {
	p := graph.Patch{
		Label:     v.Label,
		Source:    v.Source,
		Config:    v.Config,
		Value:     v.Value,
		VarName:   v.VarName,
		Iteration: v.Iteration,
		Target:    v.Target,
	}
	if v.Operator != nil {
		op := graph.Operator(*v.Operator)
		p.Operator = &op
	}
	if _, ok := form[palette.FieldValue]; ok && v.Value == nil {
		p.ClearValue = true
	}
	if _, ok := form[palette.FieldIteration]; ok && v.Iteration == nil {
		p.ClearIteration = true
	}
	return p
}

func decode(in map[string]any) (*values, error) {
	var out values
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(in); err != nil {
		return nil, fmt.Errorf("inspector: %v: %w", err, apperr.ErrValidation)
	}
	return &out, nil
}

// coerce converts a raw input for field f into the form's canonical value
// (string, float64, int or nil).
func coerce(f palette.Field, raw any) (any, error) {
	if f.Type == palette.FieldNumber {
		if raw == nil || raw == "" {
			return nil, nil
		}
		if x, ok := raw.(float64); ok && f.Name == palette.FieldIteration && x != math.Trunc(x) {
			return nil, fmt.Errorf("inspector: %s must be an integer: %w", f.Name, apperr.ErrValidation)
		}
	}
	v, err := decode(map[string]any{f.Name: raw})
	if err != nil {
		return nil, err
	}
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("inspector: %v: %w", err, apperr.ErrValidation)
	}
	switch f.Name {
	case palette.FieldLabel:
		return deref(v.Label), nil
	case palette.FieldSource:
		return deref(v.Source), nil
	case palette.FieldConfig:
		return deref(v.Config), nil
	case palette.FieldOperator:
		return deref(v.Operator), nil
	case palette.FieldValue:
		return *v.Value, nil
	case palette.FieldVarName:
		return deref(v.VarName), nil
	case palette.FieldIteration:
		return *v.Iteration, nil
	case palette.FieldTarget:
		return deref(v.Target), nil
	}
	return nil, fmt.Errorf("inspector: unknown field %q: %w", f.Name, apperr.ErrValidation)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// initialValues reads the fields of kind k from a node's attributes.
func initialValues(fields []palette.Field, a graph.Attributes) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		switch f.Name {
		case palette.FieldLabel:
			out[f.Name] = a.Label
		case palette.FieldSource:
			out[f.Name] = a.Source
		case palette.FieldConfig:
			out[f.Name] = a.Config
		case palette.FieldOperator:
			out[f.Name] = string(a.Operator)
		case palette.FieldValue:
			if a.Value != nil {
				out[f.Name] = *a.Value
			} else {
				out[f.Name] = nil
			}
		case palette.FieldVarName:
			out[f.Name] = a.VarName
		case palette.FieldIteration:
			if a.Iteration != nil {
				out[f.Name] = *a.Iteration
			} else {
				out[f.Name] = nil
			}
		case palette.FieldTarget:
			out[f.Name] = a.Target
		}
	}
	return out
}
