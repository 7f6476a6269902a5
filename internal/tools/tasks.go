package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/taskyard/taskyard/internal/task"
)

// Tool name constants for task operations registered with Genkit.
const (
	// AddTaskName is the Genkit tool name for creating a task.
	AddTaskName = "add_task"
	// ListTasksName is the Genkit tool name for listing tasks.
	ListTasksName = "list_tasks"
	// UpdateTaskName is the Genkit tool name for updating a task.
	UpdateTaskName = "update_task"
	// CompleteTaskName is the Genkit tool name for completing a task.
	CompleteTaskName = "complete_task"
	// DeleteTaskName is the Genkit tool name for deleting a task.
	DeleteTaskName = "delete_task"
)

// AddTaskInput defines input for the add_task tool.
type AddTaskInput struct {
	UserID      string `json:"user_id" jsonschema_description:"The ID of the user who owns the task"`
	Title       string `json:"title" jsonschema_description:"The title of the task (required, max 200 characters)"`
	Description string `json:"description,omitempty" jsonschema_description:"Optional description of the task"`
}

// ListTasksInput defines input for the list_tasks tool.
type ListTasksInput struct {
	UserID string `json:"user_id" jsonschema_description:"The ID of the user whose tasks to list"`
	Filter string `json:"filter,omitempty" jsonschema_description:"Filter by status: 'all', 'completed', or 'incomplete'. Defaults to 'all'"`
}

// UpdateTaskInput defines input for the update_task tool.
type UpdateTaskInput struct {
	UserID         string `json:"user_id" jsonschema_description:"The ID of the user who owns the task"`
	TaskTitle      string `json:"task_title" jsonschema_description:"The current title of the task to find and update"`
	NewTitle       string `json:"new_title,omitempty" jsonschema_description:"The new title for the task (leave empty to keep current)"`
	NewDescription string `json:"new_description,omitempty" jsonschema_description:"The new description (leave empty to keep current)"`
}

// CompleteTaskInput defines input for the complete_task tool.
type CompleteTaskInput struct {
	UserID    string `json:"user_id" jsonschema_description:"The ID of the user who owns the task"`
	TaskTitle string `json:"task_title" jsonschema_description:"The title of the task to mark as complete"`
}

// DeleteTaskInput defines input for the delete_task tool.
type DeleteTaskInput struct {
	UserID    string `json:"user_id" jsonschema_description:"The ID of the user who owns the task"`
	TaskTitle string `json:"task_title" jsonschema_description:"The title of the task to delete"`
}

// Tasks holds dependencies for task operation handlers.
// Use NewTasks to create an instance, then either:
//   - Call methods directly (for MCP)
//   - Use RegisterTasks to register with Genkit
type Tasks struct {
	store  *task.Store
	logger *slog.Logger
}

// NewTasks creates a Tasks instance.
func NewTasks(store *task.Store, logger *slog.Logger) (*Tasks, error) {
	if store == nil {
		return nil, fmt.Errorf("task store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tasks{store: store, logger: logger}, nil
}

// RegisterTasks registers all task operation tools with Genkit.
// Tool results cross the model boundary as JSON strings (see Result.Wire).
func RegisterTasks(g *genkit.Genkit, t *Tasks) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if t == nil {
		return nil, fmt.Errorf("Tasks is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, AddTaskName,
			"Add a new task for the user. "+
				"Requires: user_id and title (max 200 characters); description is optional. "+
				"Returns: the created task with its id, title, description, and completed flag. "+
				"Use this when the user asks to add, create, or remember something to do.",
			wire(t.AddTask)),
		genkit.DefineTool(g, ListTasksName,
			"List the user's tasks. "+
				"Requires: user_id. Optional filter: 'all' (default), 'completed', or 'incomplete'. "+
				"Returns: count, the applied filter, and the matching tasks newest first. "+
				"Use this when the user asks what they have to do or what they have finished.",
			wire(t.ListTasks)),
		genkit.DefineTool(g, UpdateTaskName,
			"Update an existing task's title or description. "+
				"Requires: user_id and task_title (current title, matched case-insensitively). "+
				"Provide new_title and/or new_description; empty fields keep the current value. "+
				"Returns: the updated task, or an error if no task with that title exists. "+
				"Use this when the user asks to rename or edit a task.",
			wire(t.UpdateTask)),
		genkit.DefineTool(g, CompleteTaskName,
			"Mark a task as completed. "+
				"Requires: user_id and task_title (matched case-insensitively). "+
				"Always sets the task to completed; it is not a toggle. "+
				"Returns: the completed task, or an error if no task with that title exists. "+
				"Use this when the user says they finished or did something.",
			wire(t.CompleteTask)),
		genkit.DefineTool(g, DeleteTaskName,
			"Delete a task permanently. "+
				"Requires: user_id and task_title (matched case-insensitively). "+
				"Returns: the deleted task's title, or an error if no task with that title exists. "+
				"Use this when the user asks to remove or forget a task. This cannot be undone.",
			wire(t.DeleteTask)),
	}, nil
}

// ToolNames returns the names of all task tools.
func ToolNames() []string {
	return []string{AddTaskName, ListTasksName, UpdateTaskName, CompleteTaskName, DeleteTaskName}
}

// wire adapts a handler method into a Genkit tool function returning the
// string wire format.
func wire[In any](fn func(*ai.ToolContext, In) (Result, error)) func(*ai.ToolContext, In) (string, error) {
	return func(tctx *ai.ToolContext, input In) (string, error) {
		r, err := fn(tctx, input)
		if err != nil {
			return "", err
		}
		return r.Wire(), nil
	}
}

// AddTask creates a task for the user.
// Validation failures are returned in Result.Error; only identity
// violations and context cancellation return a Go error.
func (t *Tasks) AddTask(tctx *ai.ToolContext, input AddTaskInput) (Result, error) {
	ctx := reqCtx(tctx)
	t.logger.Debug("AddTask called", "user_id", input.UserID)

	if err := t.checkUser(ctx, input.UserID); err != nil {
		if errors.Is(err, errMissingUserID) {
			return Failure(ErrCodeValidation, "user_id is required"), nil
		}
		return Result{}, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Failure(ErrCodeValidation, "Task title cannot be empty"), nil
	}
	if utf8.RuneCountInString(title) > task.MaxTitleLength {
		return Failure(ErrCodeValidation, "Task title must be 200 characters or fewer"), nil
	}

	created, err := t.store.Add(ctx, input.UserID, title, strings.TrimSpace(input.Description))
	if err != nil {
		t.logger.Warn("AddTask store failure", "user_id", input.UserID, "error", err)
		return Failure(ErrCodeExecution, "Failed to create task"), nil
	}

	t.logger.Debug("AddTask succeeded", "task_id", created.ID, "user_id", input.UserID)
	return Success(map[string]any{"task": taskPayload(created, true)}), nil
}

// ListTasks returns the user's tasks, newest first, optionally filtered by
// completion state. Unknown filter values fall back to listing everything.
func (t *Tasks) ListTasks(tctx *ai.ToolContext, input ListTasksInput) (Result, error) {
	ctx := reqCtx(tctx)
	t.logger.Debug("ListTasks called", "user_id", input.UserID, "filter", input.Filter)

	if err := t.checkUser(ctx, input.UserID); err != nil {
		if errors.Is(err, errMissingUserID) {
			return Failure(ErrCodeValidation, "user_id is required"), nil
		}
		return Result{}, err
	}

	filter := input.Filter
	if filter == "" {
		filter = string(task.FilterAll)
	}

	tasks, err := t.store.List(ctx, input.UserID, task.NormalizeFilter(filter))
	if err != nil {
		t.logger.Warn("ListTasks store failure", "user_id", input.UserID, "error", err)
		return Failure(ErrCodeExecution, "Failed to list tasks"), nil
	}

	payload := make([]map[string]any, 0, len(tasks))
	for _, tk := range tasks {
		payload = append(payload, taskPayload(tk, true))
	}

	return Success(map[string]any{
		"count":  len(payload),
		"filter": filter,
		"tasks":  payload,
	}), nil
}

// UpdateTask updates the title and/or description of the first task whose
// title matches task_title. Empty new values keep the current ones.
func (t *Tasks) UpdateTask(tctx *ai.ToolContext, input UpdateTaskInput) (Result, error) {
	ctx := reqCtx(tctx)
	t.logger.Debug("UpdateTask called", "user_id", input.UserID, "task_title", input.TaskTitle)

	if err := t.checkUser(ctx, input.UserID); err != nil {
		if errors.Is(err, errMissingUserID) {
			return Failure(ErrCodeValidation, "user_id is required"), nil
		}
		return Result{}, err
	}

	var newTitle, newDescription *string
	if v := strings.TrimSpace(input.NewTitle); v != "" {
		if utf8.RuneCountInString(v) > task.MaxTitleLength {
			return Failure(ErrCodeValidation, "Task title must be 200 characters or fewer"), nil
		}
		newTitle = &v
	}
	if input.NewDescription != "" {
		v := strings.TrimSpace(input.NewDescription)
		newDescription = &v
	}

	updated, err := t.store.UpdateByTitle(ctx, input.UserID, input.TaskTitle, newTitle, newDescription)
	if errors.Is(err, task.ErrNotFound) {
		return NotFound(fmt.Sprintf("Task with title '%s' not found", input.TaskTitle)), nil
	}
	if err != nil {
		t.logger.Warn("UpdateTask store failure", "user_id", input.UserID, "error", err)
		return Failure(ErrCodeExecution, "Failed to update task"), nil
	}

	t.logger.Debug("UpdateTask succeeded", "task_id", updated.ID, "user_id", input.UserID)
	return Success(map[string]any{"task": taskPayload(updated, true)}), nil
}

// CompleteTask marks the first task whose title matches task_title as
// completed. The flag is set, not toggled.
func (t *Tasks) CompleteTask(tctx *ai.ToolContext, input CompleteTaskInput) (Result, error) {
	ctx := reqCtx(tctx)
	t.logger.Debug("CompleteTask called", "user_id", input.UserID, "task_title", input.TaskTitle)

	if err := t.checkUser(ctx, input.UserID); err != nil {
		if errors.Is(err, errMissingUserID) {
			return Failure(ErrCodeValidation, "user_id is required"), nil
		}
		return Result{}, err
	}

	completed, err := t.store.CompleteByTitle(ctx, input.UserID, input.TaskTitle)
	if errors.Is(err, task.ErrNotFound) {
		return NotFound(fmt.Sprintf("Task with title '%s' not found", input.TaskTitle)), nil
	}
	if err != nil {
		t.logger.Warn("CompleteTask store failure", "user_id", input.UserID, "error", err)
		return Failure(ErrCodeExecution, "Failed to complete task"), nil
	}

	t.logger.Debug("CompleteTask succeeded", "task_id", completed.ID, "user_id", input.UserID)
	return Success(map[string]any{"task": taskPayload(completed, false)}), nil
}

// DeleteTask removes the first task whose title matches task_title.
func (t *Tasks) DeleteTask(tctx *ai.ToolContext, input DeleteTaskInput) (Result, error) {
	ctx := reqCtx(tctx)
	t.logger.Debug("DeleteTask called", "user_id", input.UserID, "task_title", input.TaskTitle)

	if err := t.checkUser(ctx, input.UserID); err != nil {
		if errors.Is(err, errMissingUserID) {
			return Failure(ErrCodeValidation, "user_id is required"), nil
		}
		return Result{}, err
	}

	title, err := t.store.DeleteByTitle(ctx, input.UserID, input.TaskTitle)
	if errors.Is(err, task.ErrNotFound) {
		return NotFound(fmt.Sprintf("Task with title '%s' not found", input.TaskTitle)), nil
	}
	if err != nil {
		t.logger.Warn("DeleteTask store failure", "user_id", input.UserID, "error", err)
		return Failure(ErrCodeExecution, "Failed to delete task"), nil
	}

	t.logger.Debug("DeleteTask succeeded", "user_id", input.UserID, "title", title)
	return Success(map[string]any{"deleted_task": title}), nil
}

// errMissingUserID marks an empty user_id argument. Methods translate it
// into a validation Result so the agent can repair the call.
var errMissingUserID = errors.New("user_id is required")

// checkUser enforces the tenant boundary. When the orchestrator bound an
// authenticated identity to the context, a tool call naming a different
// user_id is a hard error that aborts the call.
func (t *Tasks) checkUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errMissingUserID
	}
	if bound := UserIDFromContext(ctx); bound != "" && bound != userID {
		t.logger.Warn("cross-user tool call rejected", "bound", bound, "requested", userID)
		return fmt.Errorf("user_id does not match the authenticated user")
	}
	return nil
}

// reqCtx unwraps the request context from a tool invocation. MCP callers
// invoke handler methods with a nil ToolContext.
func reqCtx(tctx *ai.ToolContext) context.Context {
	if tctx != nil && tctx.Context != nil {
		return tctx.Context
	}
	return context.Background()
}

// taskPayload builds the wire representation of a task. The completed-task
// payload omits the description.
func taskPayload(t *task.Task, withDescription bool) map[string]any {
	p := map[string]any{
		"id":        t.ID.String(),
		"title":     t.Title,
		"completed": t.Completed,
	}
	if withDescription {
		p["description"] = t.Description
	}
	return p
}
