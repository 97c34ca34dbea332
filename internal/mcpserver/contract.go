package mcpserver

// ScriptContentContract describes the graph model and the two on-disk
// forms of a script: the JSON content array stored by the scripts API and
// the YAML draft document kept in the drafts directory.
const ScriptContentContract = `# VSS Script Content Format

A script is a directed graph of typed nodes. Every graph starts from an
` + "`" + `input` + "`" + ` node ("Video Stream Input") and ends at a ` + "`" + `terminal_output` + "`" + ` node
("Result Output"). Use the ` + "`" + `list_palette` + "`" + ` tool for the kinds you can add.

## Node kinds and fields

| kind            | fields                                  | ports        |
|-----------------|-----------------------------------------|--------------|
| data_source     | label, source                           | in, out      |
| processor       | label, config                           | in, out      |
| branch          | label, operator (> < == !=), value      | in, out      |
| variable        | label, varName                          | in, out      |
| loop            | label, iteration (integer >= 1)         | in, out      |
| output          | label, target                           | in, out      |
| input           | label                                   | out only     |
| terminal_output | label                                   | in only      |

## Rules

1. Node ids are unique. Edge ids are ` + "`" + `<source>-><target>` + "`" + `.
2. An edge needs an output port on its source and an input port on its target.
3. Self-loops are only allowed on ` + "`" + `loop` + "`" + ` nodes.
4. Connecting the same pair twice is a no-op.
5. Removing a node removes every edge that touches it.

## Scripts API content

` + "`" + `content` + "`" + ` is a JSON array. Nodes come first, then edges:

` + "```" + `json
[
  {"type": "node", "id": "in", "kind": "input", "position": {"x": 0, "y": 0}, "data": {"label": "Video Stream Input"}},
  {"type": "node", "id": "b1", "kind": "branch", "position": {"x": 150, "y": 100}, "data": {"label": "Torque gate", "operator": ">", "value": 10}},
  {"type": "edge", "id": "in->b1", "source": "in", "target": "b1"}
]
` + "```" + `

## Draft documents

Drafts are YAML files (` + "`" + `.yaml` + "`" + ` or ` + "`" + `.yml` + "`" + `) under the drafts directory:

` + "```" + `yaml
name: Cap check
script_id: s-42          # optional, the saved script this draft came from
nodes:
  - id: in
    kind: input
    position: {x: 0, y: 0}
  - id: b1
    kind: branch
    position: {x: 150, y: 100}
    data: {label: Torque gate, operator: ">", value: 10}
edges:
  - {source: in, target: b1}   # id defaults to in->b1
` + "```" + `

Unknown keys are rejected. A missing label defaults to the kind's display name.
`
