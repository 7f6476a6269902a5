package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	mcpSdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/taskyard/taskyard/db"
	"github.com/taskyard/taskyard/internal/config"
	"github.com/taskyard/taskyard/internal/mcp"
	"github.com/taskyard/taskyard/internal/task"
	"github.com/taskyard/taskyard/internal/tools"
)

// runMCP initializes and starts the MCP server on stdio transport.
// Only storage is wired up; no model provider is needed because the MCP
// client brings its own model.
func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting MCP server", "version", Version)

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}
	defer pool.Close()

	store, err := task.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating task store: %w", err)
	}
	handlers, err := tools.NewTasks(store, logger)
	if err != nil {
		return fmt.Errorf("creating task tools: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Name:    "taskyard",
		Version: Version,
		Tasks:   handlers,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	logger.Info("MCP server ready", "name", "taskyard", "version", Version, "transport", "stdio")

	if err := mcpServer.Run(ctx, &mcpSdk.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	logger.Info("MCP server shut down gracefully")
	return nil
}
