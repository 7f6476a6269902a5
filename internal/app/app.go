// Package app provides application initialization and dependency wiring.
//
// App is the container that assembles configuration, database, Genkit, the
// task tools, the agent runner, and the chat orchestrator. Construction
// happens once in Setup; Close releases everything in reverse order.
package app

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskyard/taskyard/internal/agent"
	"github.com/taskyard/taskyard/internal/chat"
	"github.com/taskyard/taskyard/internal/config"
	"github.com/taskyard/taskyard/internal/conversation"
	"github.com/taskyard/taskyard/internal/log"
	"github.com/taskyard/taskyard/internal/task"
	"github.com/taskyard/taskyard/internal/tools"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit *genkit.Genkit
	DBPool *pgxpool.Pool

	TaskStore     *task.Store
	Conversations *conversation.Store
	Tasks         *tools.Tasks
	Tools         []ai.Tool

	Agent *agent.Runner
	Chat  *chat.Service

	// Lifecycle management
	otelCleanup func()
	dbCleanup   func()
	cancel      context.CancelFunc
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.cancel != nil {
		a.cancel()
	}
	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
