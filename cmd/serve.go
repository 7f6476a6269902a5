package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskyard/taskyard/api"
	"github.com/taskyard/taskyard/internal/app"
	"github.com/taskyard/taskyard/internal/config"
)

// runServe initializes and starts the HTTP API server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr, err := parseServeAddr(cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	if err := checkProviderEnv(cfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting HTTP API server", "version", Version)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	server := api.NewServer(api.Config{
		Health:       api.NewHealthHandler(a.DBPool, logger),
		Chat:         api.NewChatHandler(a.Chat, logger),
		Task:         api.NewTaskHandler(a.TaskStore, logger),
		Conversation: api.NewConversationHandler(a.Conversations, logger),
		Logger:       logger,
	})

	logger.Info("HTTP server ready",
		"addr", addr,
		"api", "/api/*",
		"health", "/health, /ready",
	)

	if err := server.Run(ctx, addr); err != nil {
		return fmt.Errorf("HTTP server: %w", err)
	}
	return nil
}

// checkProviderEnv verifies the API key for the selected provider is set.
// Ollama runs locally and needs no key.
func checkProviderEnv(cfg *config.Config) error {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case config.ProviderOllama:
		// no key required
	default:
		if os.Getenv("GEMINI_API_KEY") == "" {
			fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "To set your API key:")
			fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "Get your API key at: https://ai.google.dev/")
			return fmt.Errorf("GEMINI_API_KEY not set")
		}
	}
	return nil
}
