// Package mcpbridge exports registered plugin actions as MCP tools, so any
// MCP-speaking host can drive the agent's capabilities directly. Tools are
// named "<plugin>.<action>" and carry the action's input schema.
package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wilhg/conduit/pkg/agent"
	"github.com/wilhg/conduit/pkg/errmodel"
)

// Options configures the bridge.
type Options struct {
	// Runtime is handed to every action invocation. Required.
	Runtime agent.Runtime

	// Plugins to export. Nil exports the process-wide registry.
	Plugins []*agent.Plugin

	// Name and Version identify the server to clients. Empty uses
	// "conduit" / "dev".
	Name    string
	Version string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server wraps an MCP server whose tools invoke plugin actions.
type Server struct {
	srv *mcp.Server
	rt  agent.Runtime
	log *slog.Logger
}

// New builds the bridge and registers one tool per action.
func New(opts Options) (*Server, error) {
	if opts.Runtime == nil {
		return nil, errmodel.Config("missing_runtime", "mcp bridge needs a runtime", nil)
	}
	plugins := opts.Plugins
	if plugins == nil {
		plugins = agent.Plugins()
	}
	name := opts.Name
	if name == "" {
		name = "conduit"
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		srv: mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		rt:  opts.Runtime,
		log: log,
	}
	for _, p := range plugins {
		for _, a := range p.Actions {
			tool, err := toolFor(p.Name, a)
			if err != nil {
				return nil, err
			}
			s.srv.AddTool(tool, s.handler(a))
			log.Debug("exported tool", "tool", tool.Name)
		}
	}
	return s, nil
}

// Run serves MCP over stdio until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.srv.Run(ctx, &mcp.StdioTransport{})
}

func toolFor(pluginName string, a agent.Action) (*mcp.Tool, error) {
	desc := a.Describe()
	schema, err := toolSchema(desc)
	if err != nil {
		return nil, errmodel.Config("bad_schema", "action schema failed to parse",
			map[string]any{"action": desc.Name})
	}
	return &mcp.Tool{
		Name:        ToolName(pluginName, desc.Name),
		Description: desc.Description,
		InputSchema: schema,
	}, nil
}

// ToolName is the exported tool identifier for an action.
func ToolName(pluginName, actionName string) string {
	return pluginName + "." + strings.ToLower(actionName)
}

// toolSchema decodes the action's schema; actions without one accept any
// object.
func toolSchema(desc agent.ActionDescriptor) (*jsonschema.Schema, error) {
	if len(desc.InputSchema) == 0 {
		return &jsonschema.Schema{Type: "object"}, nil
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(desc.InputSchema, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

// handler adapts an action to the MCP tool call shape. The tool arguments
// become pre-extracted action parameters, so no generation round-trip runs
// on this path.
func (s *Server) handler(a agent.Action) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		opts := map[string]any{}
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &opts); err != nil {
				return errorResult(fmt.Sprintf("arguments are not a JSON object: %v", err)), nil
			}
		}

		var results []agent.HandlerResult
		cb := func(_ context.Context, res agent.HandlerResult) error {
			results = append(results, res)
			return nil
		}
		if err := a.Handle(ctx, s.rt, agent.Message{Source: "mcp"}, nil, opts, cb); err != nil {
			s.log.Warn("tool invocation failed", "action", a.Describe().Name, "err", err)
			return errorResult(err.Error()), nil
		}

		var content []mcp.Content
		for _, res := range results {
			if res.Text != "" {
				content = append(content, &mcp.TextContent{Text: res.Text})
			}
			if len(res.Data) > 0 {
				raw, err := json.Marshal(res.Data)
				if err == nil {
					content = append(content, &mcp.TextContent{Text: string(raw)})
				}
			}
		}
		if len(content) == 0 {
			content = append(content, &mcp.TextContent{Text: "ok"})
		}
		return &mcp.CallToolResult{Content: content}, nil
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
