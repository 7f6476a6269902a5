// Package cmd provides CLI commands for taskyard.
//
// Commands:
//   - serve: HTTP API server (chat, tasks, conversations)
//   - mcp: Model Context Protocol server exposing the task tools
//   - migrate: apply pending database migrations and exit
//
// Signal handling and graceful shutdown are implemented
// for all long-running commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
)

// Execute is the main entry point for the taskyard CLI application.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "mcp":
		return runMCP()
	case "migrate":
		return runMigrate()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Taskyard - conversational task management assistant")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  taskyard serve [addr]  Start HTTP API server (default: 127.0.0.1:3400)")
	fmt.Println("  taskyard mcp           Start MCP server (for Claude Desktop/Cursor)")
	fmt.Println("  taskyard migrate       Apply pending database migrations")
	fmt.Println("  taskyard --version     Show version information")
	fmt.Println("  taskyard --help        Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY         Required for the googleai provider (default)")
	fmt.Println("  OPENAI_API_KEY         Required for the openai provider")
	fmt.Println("  DATABASE_URL           PostgreSQL connection URL override")
	fmt.Println("  DEBUG                  Optional: Enable debug logging")
}
