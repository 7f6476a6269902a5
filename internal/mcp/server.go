// Package mcp exposes the task tools over the Model Context Protocol.
//
// The same handlers that back the Genkit tools serve MCP clients; results
// cross the protocol as the JSON wire strings the agent sees.
package mcp

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/taskyard/taskyard/internal/tools"
)

// Server wraps the MCP SDK server and the task tool handlers.
type Server struct {
	mcpServer *mcp.Server
	tasks     *tools.Tasks
	name      string
	version   string
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
	Tasks   *tools.Tasks
}

// NewServer creates a new MCP server with all task tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Tasks == nil {
		return nil, fmt.Errorf("task handlers are required")
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		mcpServer: mcpServer,
		tasks:     cfg.Tasks,
		name:      cfg.Name,
		version:   cfg.Version,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Run starts the MCP server on the given transport. Blocks until the
// context is cancelled or the transport closes.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

// registerTools registers the five task tools.
func (s *Server) registerTools() error {
	if err := register(s, tools.AddTaskName,
		"Add a new task for the user. Requires user_id and title (max 200 characters); description is optional.",
		s.tasks.AddTask); err != nil {
		return err
	}
	if err := register(s, tools.ListTasksName,
		"List the user's tasks. Optional filter: 'all' (default), 'completed', or 'incomplete'.",
		s.tasks.ListTasks); err != nil {
		return err
	}
	if err := register(s, tools.UpdateTaskName,
		"Update an existing task's title or description. The task is found by case-insensitive title match.",
		s.tasks.UpdateTask); err != nil {
		return err
	}
	if err := register(s, tools.CompleteTaskName,
		"Mark a task as completed. The task is found by case-insensitive title match.",
		s.tasks.CompleteTask); err != nil {
		return err
	}
	if err := register(s, tools.DeleteTaskName,
		"Delete a task permanently. The task is found by case-insensitive title match.",
		s.tasks.DeleteTask); err != nil {
		return err
	}
	return nil
}

// register infers the input schema from In and wires a handler method into
// the MCP server. Responses carry the same JSON wire strings the Genkit
// tools return; hard failures become error results.
func register[In any](s *Server, name, description string, fn func(*ai.ToolContext, In) (tools.Result, error)) error {
	inputSchema, err := jsonschema.For[In](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", name, err)
	}

	tool := &mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		result, err := fn(&ai.ToolContext{Context: ctx}, in)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result.Wire()}},
			IsError: result.Status == tools.StatusError,
		}, nil, nil
	})

	return nil
}
