// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes conversion tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/xmltable/internal/apperr"
	"github.com/starford/xmltable/internal/runservice"
	"github.com/starford/xmltable/internal/storage"
)

// InputFormatURI is the resource URI of the input format contract.
const InputFormatURI = "xmltable://input-format"

// Server wraps the MCP server with conversion tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *runservice.Service
	store    storage.Provider
	suffix   string
	contract string
}

// New creates a new MCP server with all tools registered. contract is the
// text served by get_input_contract (see InputFormatContract).
func New(svc *runservice.Service, store storage.Provider, suffix, contract string) *Server {
	s := &Server{svc: svc, store: store, suffix: suffix, contract: contract}

	s.mcp = server.NewMCPServer(
		"xmltable",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("convert",
		mcp.WithDescription("Convert every XML export under the input root into the CSV output. "+
			"Returns the run summary (files, skipped, records, dropped duplicates)."),
	), s.convert)

	s.mcp.AddTool(mcp.NewTool("list_inputs",
		mcp.WithDescription("List the input files a conversion would read."),
	), s.listInputs)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent conversion runs, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 50)")),
	), s.listRuns)

	s.mcp.AddTool(mcp.NewTool("get_run_files",
		mcp.WithDescription("Show how each input file contributed to a run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run ID returned by convert or list_runs")),
	), s.getRunFiles)

	s.mcp.AddTool(mcp.NewTool("read_output",
		mcp.WithDescription("Read the current CSV output, truncated to limit bytes."),
		mcp.WithNumber("limit", mcp.Description("Maximum bytes to return (default 1 MiB)")),
	), s.readOutput)

	s.mcp.AddTool(mcp.NewTool("get_input_contract",
		mcp.WithDescription("Returns the accepted XML input format and the output columns. "+
			"Call this before preparing input files."),
	), s.getInputContract)

	s.mcp.AddResource(
		mcp.NewResource(InputFormatURI, "Input Format Contract",
			mcp.WithResourceDescription("XML export shape that xmltable converts into CSV rows."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readInputFormatResource,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) convert(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.Convert(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrConversionRunning) {
			return mcp.NewToolResultError("a conversion is already running; retry later"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rep)
}

func (s *Server) listInputs(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metas, err := s.store.List(s.suffix)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(metas) == 0 {
		return mcp.NewToolResultText("no input files found"), nil
	}
	paths := make([]string, 0, len(metas))
	for _, m := range metas {
		paths = append(paths, m.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := s.svc.ListRuns(ctx, req.GetInt("limit", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(runs)
}

func (s *Server) getRunFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	files, err := s.svc.RunFiles(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError("run not found: " + id), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(files)
}

func (s *Server) readOutput(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.svc.ReadOutput(ctx, int64(req.GetInt("limit", 0)))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError("no output yet; run convert first"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	text := out.Content
	if out.Truncated {
		text += "\n[truncated]"
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) getInputContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.contract), nil
}

func (s *Server) readInputFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      InputFormatURI,
			MIMEType: "text/markdown",
			Text:     s.contract,
		},
	}, nil
}
