package inspector

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/starford/vssflow/internal/apperr"
	"github.com/starford/vssflow/internal/canvas"
	"github.com/starford/vssflow/internal/graph"
)

func testEnv(t *testing.T) (*Inspector, *canvas.Controller, *graph.Store) {
	t.Helper()
	n := 0
	s := graph.New(graph.WithIDFunc(func() string {
		n++
		return fmt.Sprintf("n%d", n)
	}))
	c := canvas.NewController(s)
	return New(s, c), c, s
}

func keys(f Form) []string {
	out := make([]string, len(f.Fields))
	for i, fd := range f.Fields {
		out[i] = fd.Name
	}
	return out
}

func TestBindFieldSetPerKind(t *testing.T) {
	insp, c, _ := testEnv(t)
	want := map[string][]string{
		"data_source": {"label", "source"},
		"processor":   {"label", "config"},
		"branch":      {"label", "operator", "value"},
		"variable":    {"label", "varName"},
		"loop":        {"label", "iteration"},
		"output":      {"label", "target"},
	}
	for key, names := range want {
		n, err := c.AddFromPalette(key)
		if err != nil {
			t.Fatal(err)
		}
		f := insp.Bind(n)
		if got := keys(f); !slices.Equal(got, names) {
			t.Errorf("%s fields = %v, want %v", key, got, names)
		}
		if len(f.Values) != len(names) {
			t.Errorf("%s values = %v", key, f.Values)
		}
		if f.Values["label"] != n.Attributes.Label {
			t.Errorf("%s label = %v", key, f.Values["label"])
		}
	}
}

func TestScenarioBranchEdit(t *testing.T) {
	insp, c, s := testEnv(t)
	n, _ := c.AddFromPalette("branch")
	sel, err := c.Click(n.ID)
	if err != nil {
		t.Fatal(err)
	}
	insp.Bind(sel)

	if _, err := insp.Set("operator", ">"); err != nil {
		t.Fatalf("Set operator: %v", err)
	}
	if _, err := insp.Set("value", "10"); err != nil {
		t.Fatalf("Set value: %v", err)
	}
	saved, err := insp.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok := insp.Form(); ok {
		t.Error("inspector should close after save")
	}
	if _, ok := c.Selected(); ok {
		t.Error("selection should clear after save")
	}
	got, _ := s.Node(n.ID)
	if got.Attributes.Label != "Branch" {
		t.Errorf("label = %q, want Branch", got.Attributes.Label)
	}
	if got.Attributes.Operator != graph.OpGreater || got.Attributes.Value == nil || *got.Attributes.Value != 10 {
		t.Errorf("attributes = %+v", got.Attributes)
	}
	if saved.ID != n.ID {
		t.Errorf("saved node = %+v", saved)
	}
}

func TestSaveClearsEmptiedNumber(t *testing.T) {
	insp, c, s := testEnv(t)
	n, _ := c.AddFromPalette("branch")

	insp.Bind(n)
	if _, err := insp.Set("value", 10.0); err != nil {
		t.Fatal(err)
	}
	if _, err := insp.Save(); err != nil {
		t.Fatal(err)
	}

	stored, _ := s.Node(n.ID)
	f := insp.Bind(stored)
	if f.Values["value"] != 10.0 {
		t.Fatalf("rebound value = %v, want 10", f.Values["value"])
	}
	f, err := insp.Set("value", "")
	if err != nil {
		t.Fatal(err)
	}
	if f.Values["value"] != nil {
		t.Fatalf("form value = %v, want empty", f.Values["value"])
	}
	saved, err := insp.Save()
	if err != nil {
		t.Fatal(err)
	}
	if saved.Attributes.Value != nil {
		t.Errorf("saved value = %v, want cleared", *saved.Attributes.Value)
	}
	if got, _ := s.Node(n.ID); got.Attributes.Value != nil {
		t.Errorf("store value = %v, want cleared", *got.Attributes.Value)
	}
}

func TestSetRejectsForeignField(t *testing.T) {
	insp, c, _ := testEnv(t)
	n, _ := c.AddFromPalette("loop")
	insp.Bind(n)
	if _, err := insp.Set("operator", ">"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestSetValidation(t *testing.T) {
	insp, c, _ := testEnv(t)
	br, _ := c.AddFromPalette("branch")
	insp.Bind(br)
	for _, tc := range []struct {
		field string
		raw   any
	}{
		{"operator", ">="},
		{"value", "ten"},
	} {
		if _, err := insp.Set(tc.field, tc.raw); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Set(%s, %v) err = %v", tc.field, tc.raw, err)
		}
	}

	loop, _ := c.AddFromPalette("loop")
	insp.Bind(loop)
	for _, raw := range []any{0, -2, 2.5, "x"} {
		if _, err := insp.Set("iteration", raw); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Set(iteration, %v) err = %v", raw, err)
		}
	}
	f, err := insp.Set("iteration", float64(3))
	if err != nil {
		t.Fatalf("Set iteration: %v", err)
	}
	if f.Values["iteration"] != 3 {
		t.Errorf("iteration = %#v, want int 3", f.Values["iteration"])
	}
}

func TestCloseDiscardsEdits(t *testing.T) {
	insp, c, s := testEnv(t)
	n, _ := c.AddFromPalette("variable")
	_, _ = c.Click(n.ID)
	insp.Bind(n)
	if _, err := insp.Set("varName", "count"); err != nil {
		t.Fatal(err)
	}
	before := s.Version()
	insp.Close()
	if _, ok := c.Selected(); ok {
		t.Error("close should deselect")
	}
	got, _ := s.Node(n.ID)
	if got.Attributes.VarName != "" {
		t.Errorf("varName = %q, want empty", got.Attributes.VarName)
	}
	if s.Version() != before {
		t.Error("close must not touch the store")
	}
	if _, err := insp.Save(); !errors.Is(err, ErrNotBound) {
		t.Errorf("save after close err = %v", err)
	}
}

func TestRebindSwitchesNode(t *testing.T) {
	insp, c, s := testEnv(t)
	a, _ := c.AddFromPalette("data_source")
	b, _ := c.AddFromPalette("output")
	insp.Bind(a)
	_, _ = insp.Set("source", "camera-1")
	insp.Bind(b)
	_, _ = insp.Set("target", "log")
	if _, err := insp.Save(); err != nil {
		t.Fatal(err)
	}
	ga, _ := s.Node(a.ID)
	gb, _ := s.Node(b.ID)
	if ga.Attributes.Source != "" {
		t.Errorf("edits of previous node leaked: %q", ga.Attributes.Source)
	}
	if gb.Attributes.Target != "log" {
		t.Errorf("target = %q", gb.Attributes.Target)
	}
}

func TestSaveRemovedNode(t *testing.T) {
	insp, c, s := testEnv(t)
	n, _ := c.AddFromPalette("processor")
	insp.Bind(n)
	_ = s.RemoveNode(n.ID)
	if _, err := insp.Save(); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, ok := insp.Form(); ok {
		t.Error("inspector should be closed")
	}
}

func TestTerminalNodeOnlyLabel(t *testing.T) {
	insp, _, s := testEnv(t)
	seed := s.Snapshot().Nodes[0]
	f := insp.Bind(seed)
	if got := keys(f); !slices.Equal(got, []string{"label"}) {
		t.Errorf("fields = %v", got)
	}
	_, _ = insp.Set("label", "Camera A")
	if _, err := insp.Save(); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Node(seed.ID)
	if got.Attributes.Label != "Camera A" {
		t.Errorf("label = %q", got.Attributes.Label)
	}
}
