package parser

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/starford/vssflow/internal/apperr"
	"github.com/starford/vssflow/internal/graph"
)

const sample = `---
name: Cap check
script_id: s-42
nodes:
  - id: in
    kind: input
    position: {x: 0, y: 0}
    data: {label: Video Stream Input}
  - id: b1
    kind: branch
    position: {x: 150, y: 100}
    data:
      label: Torque gate
      operator: ">"
      value: 10
  - id: l1
    kind: loop
    position: {x: 300, y: 100}
    data:
      iteration: 3
edges:
  - {source: in, target: b1}
  - {id: b1->l1, source: b1, target: l1}
`

func TestParse_Sample(t *testing.T) {
	d, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Name != "Cap check" || d.ScriptID != "s-42" {
		t.Errorf("header = %q / %q", d.Name, d.ScriptID)
	}
	if len(d.Nodes) != 3 || len(d.Edges) != 2 {
		t.Fatalf("nodes/edges = %d/%d", len(d.Nodes), len(d.Edges))
	}
	br := d.Nodes[1].Attributes
	if br.Operator != graph.OpGreater || br.Value == nil || *br.Value != 10 {
		t.Errorf("branch attrs = %+v", br)
	}
	if d.Nodes[2].Attributes.Label != "Loop" {
		t.Errorf("default label = %q, want Loop", d.Nodes[2].Attributes.Label)
	}
	if d.Edges[0].ID != "in->b1" {
		t.Errorf("derived edge id = %q", d.Edges[0].ID)
	}
}

func TestRenderParseRoundTrip(t *testing.T) {
	s := graph.New()
	v, _ := s.AddNode(graph.KindVariable, graph.Position{X: 12.5, Y: -3})
	name := "count"
	if _, err := s.UpdateNode(v.ID, graph.Patch{VarName: &name}); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if _, err := s.Connect(snap.Nodes[0].ID, v.ID); err != nil {
		t.Fatal(err)
	}
	want := s.Snapshot()

	at := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	out, err := Render(NewDraft("counter", "", want, at))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(string(out), "script_id") {
		t.Errorf("empty script_id rendered:\n%s", out)
	}
	d, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse: %v\n%s", err, out)
	}
	got, err := d.Graph()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch\n got: %+v\nwant: %+v", got, want)
	}
	if !d.ExportedAt.Equal(at) {
		t.Errorf("exported_at = %v", d.ExportedAt)
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":         "   \n",
		"not yaml":      "name: [unterminated",
		"unknown key":   "name: x\nowner: me\nnodes: []\nedges: []\n",
		"dangling edge": "name: x\nnodes: []\nedges:\n  - {source: a, target: b}\n",
		"bad kind":      "name: x\nnodes:\n  - {id: a, kind: camera}\nedges: []\n",
		"duplicate ids": "name: x\nnodes:\n  - {id: a, kind: loop}\n  - {id: a, kind: loop}\nedges: []\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestParse_EmptyGraph(t *testing.T) {
	d, err := Parse([]byte("name: blank\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	g, err := d.Graph()
	if err != nil {
		t.Fatal(err)
	}
	if g.Nodes == nil || g.Edges == nil || len(g.Nodes) != 0 {
		t.Errorf("graph = %#v", g)
	}
}
