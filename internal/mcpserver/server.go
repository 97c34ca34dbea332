// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the script editor as tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vssflow/internal/editor"
	"github.com/starford/vssflow/internal/graph"
	"github.com/starford/vssflow/internal/models"
	"github.com/starford/vssflow/internal/palette"
	"github.com/starford/vssflow/internal/vssapi"
)

const contractURI = "vssflow://script-content"

// DraftStore stores validated draft documents.
type DraftStore interface {
	List() ([]models.DraftMetadata, error)
	Put(path string, data []byte) (models.DraftMetadata, error)
}

// Server wraps the MCP server with editor tools.
type Server struct {
	mcp      *server.MCPServer
	sessions *editor.Manager
	drafts   DraftStore
	logger   *slog.Logger
}

// New creates a new MCP server with all editor tools registered. drafts may
// be nil, in which case the draft tools are not registered.
func New(sessions *editor.Manager, drafts DraftStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{sessions: sessions, drafts: drafts, logger: logger}

	s.mcp = server.NewMCPServer(
		"VSS Flow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_palette",
		mcp.WithDescription("List the node kinds that can be added to a script, with their property fields."),
	), s.listPalette)

	s.mcp.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription(createSessionDescription()),
	), s.createSession)

	s.mcp.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Return the nodes and edges of a session graph with its version."),
		mcp.WithString("session", mcp.Required(), mcp.Description("Session id")),
	), s.getGraph)

	s.mcp.AddTool(mcp.NewTool("add_node",
		mcp.WithDescription("Add a node from the palette. Without x/y the node is placed at the default position."),
		mcp.WithString("session", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Palette key, e.g. branch"),
			mcp.Enum(paletteKeys()...)),
		mcp.WithNumber("x", mcp.Description("Canvas x coordinate")),
		mcp.WithNumber("y", mcp.Description("Canvas y coordinate")),
	), s.addNode)

	s.mcp.AddTool(mcp.NewTool("connect",
		mcp.WithDescription("Connect the output of one node to the input of another. "+
			"Read the "+contractURI+" resource for the connection rules."),
		mcp.WithString("session", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source node id")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Target node id")),
	), s.connect)

	s.mcp.AddTool(mcp.NewTool("update_node",
		mcp.WithDescription("Set property fields of a node. Only the fields listed for the node kind are accepted."),
		mcp.WithString("session", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("node", mcp.Required(), mcp.Description("Node id")),
		mcp.WithObject("fields", mcp.Required(), mcp.Description(`Field values by name, e.g. {"operator": ">", "value": 10}`)),
	), s.updateNode)

	s.mcp.AddTool(mcp.NewTool("remove_node",
		mcp.WithDescription("Remove a node and every edge touching it."),
		mcp.WithString("session", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("node", mcp.Required(), mcp.Description("Node id")),
	), s.removeNode)

	s.mcp.AddTool(mcp.NewTool("list_scripts",
		mcp.WithDescription("Load the saved scripts from the VSS backend."),
		mcp.WithString("session", mcp.Required(), mcp.Description("Session id")),
	), s.listScripts)

	s.mcp.AddTool(mcp.NewTool("open_script",
		mcp.WithDescription("Replace the session graph with a saved script."),
		mcp.WithString("session", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Script id")),
	), s.openScript)

	s.mcp.AddTool(mcp.NewTool("save_script",
		mcp.WithDescription("Save the session graph to the VSS backend. The name is required for a graph that was never saved."),
		mcp.WithString("session", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("name", mcp.Description("Script name")),
	), s.saveScript)

	s.mcp.AddTool(mcp.NewTool("run_script",
		mcp.WithDescription("Run a saved script. Without an id the script the session is bound to runs."),
		mcp.WithString("session", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("id", mcp.Description("Script id")),
	), s.runScript)

	if drafts != nil {
		s.mcp.AddTool(mcp.NewTool("list_drafts",
			mcp.WithDescription("List the local draft documents."),
		), s.listDrafts)

		s.mcp.AddTool(mcp.NewTool("fetch_draft",
			mcp.WithDescription("Download a YAML draft from an http(s) URL or a base64 data URI and store it in the drafts directory. "+
				"The document is validated before it is written."),
			mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:application/yaml;base64,... URI")),
			mcp.WithString("path", mcp.Description("Draft path; derived from the URL when empty")),
		), s.fetchDraft)
	}

	// Resource: content format contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Script Content Format",
			mcp.WithResourceDescription("Node kinds, connection rules, the scripts API content array and the draft document format."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// createSessionDescription names the seed nodes by the labels they get.
func createSessionDescription() string {
	return fmt.Sprintf("Start an editing session. The graph starts with a %s node and an %s node, not connected. "+
		"Returns the session id used by every other tool.",
		graph.KindInput.DisplayName(), graph.KindTerminalOutput.DisplayName())
}

func paletteKeys() []string {
	entries := palette.Entries()
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// errorResult turns a domain error into a tool error. Backend failures keep
// the server message.
func errorResult(err error) *mcp.CallToolResult {
	var apiErr *vssapi.Error
	if errors.As(err, &apiErr) {
		return mcp.NewToolResultError("scripts backend: " + apiErr.Error())
	}
	if vssapi.IsTransport(err) {
		return mcp.NewToolResultError("scripts backend unreachable")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) session(req mcp.CallToolRequest) (*editor.Session, error) {
	id, err := req.RequireString("session")
	if err != nil {
		return nil, err
	}
	return s.sessions.Get(id)
}

func (s *Server) listPalette(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(palette.Entries()), nil
}

func (s *Server) createSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess := s.sessions.Create()
	s.logger.Info("mcp session created", slog.String("session", sess.ID()))
	return jsonResult(sess.Info()), nil
}

func (s *Server) getGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req)
	if err != nil {
		return errorResult(err), nil
	}
	g, version := sess.Graph()
	return jsonResult(map[string]any{"version": version, "nodes": g.Nodes, "edges": g.Edges}), nil
}

func (s *Server) addNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req)
	if err != nil {
		return errorResult(err), nil
	}
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var pos *graph.Position
	args := req.GetArguments()
	if _, ok := args["x"]; ok {
		pos = &graph.Position{X: req.GetFloat("x", 0), Y: req.GetFloat("y", 0)}
	}
	n, err := sess.AddNode(kind, pos)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(n), nil
}

func (s *Server) connect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req)
	if err != nil {
		return errorResult(err), nil
	}
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := sess.Connect(source, target)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(e), nil
}

func (s *Server) updateNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req)
	if err != nil {
		return errorResult(err), nil
	}
	id, err := req.RequireString("node")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fields, ok := req.GetArguments()["fields"].(map[string]any)
	if !ok || len(fields) == 0 {
		return mcp.NewToolResultError("fields must be a non-empty object"), nil
	}
	n, err := sess.EditNode(id, fields)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(n), nil
}

func (s *Server) removeNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req)
	if err != nil {
		return errorResult(err), nil
	}
	id, err := req.RequireString("node")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := sess.RemoveNode(id); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed: %s", id)), nil
}

func (s *Server) listScripts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req)
	if err != nil {
		return errorResult(err), nil
	}
	scripts, err := sess.LoadScripts(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	type summary struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	out := make([]summary, 0, len(scripts))
	for _, sc := range scripts {
		out = append(out, summary{ID: sc.ID, Name: sc.Name})
	}
	return jsonResult(out), nil
}

func (s *Server) openScript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req)
	if err != nil {
		return errorResult(err), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sc, err := sess.OpenScript(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("opened: %s (%s)", sc.Name, sc.ID)), nil
}

func (s *Server) saveScript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req)
	if err != nil {
		return errorResult(err), nil
	}
	sc, err := sess.SaveScript(ctx, req.GetString("name", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s (%s)", sc.Name, sc.ID)), nil
}

func (s *Server) runScript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req)
	if err != nil {
		return errorResult(err), nil
	}
	id := req.GetString("id", "")
	if err := sess.RunScript(ctx, id); err != nil {
		return errorResult(err), nil
	}
	if id == "" {
		id = sess.Info().Script.ScriptID
	}
	return mcp.NewToolResultText(fmt.Sprintf("run started: %s", id)), nil
}

func (s *Server) listDrafts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.drafts.List()
	if err != nil {
		return errorResult(err), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("no drafts found"), nil
	}
	return jsonResult(list), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     ScriptContentContract,
		},
	}, nil
}
