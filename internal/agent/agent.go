// Package agent drives a single conversational turn through the model.
//
// The Runner submits the conversation history plus the new user message to
// Genkit with the task tools attached, lets the agentic loop run its tool
// calls, and returns the final text together with a record of every tool
// invocation made during the turn.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/taskyard/taskyard/internal/conversation"
	"github.com/taskyard/taskyard/internal/log"
	"github.com/taskyard/taskyard/internal/tools"
)

const (
	// FallbackResponse is returned when the model produces no text and no
	// tool requests.
	FallbackResponse = "I'm sorry, I wasn't able to generate a response."

	// maxToolResultLength bounds the recorded tool result string.
	maxToolResultLength = 200

	// defaultMaxTurns bounds the agentic loop when Config leaves it unset.
	defaultMaxTurns = 5
)

// Invocation records one tool call made during a turn.
type Invocation struct {
	Name   string `json:"name"`
	Result string `json:"result,omitempty"`
}

// Result is the outcome of a completed turn.
type Result struct {
	Text        string
	Invocations []Invocation
}

// Config contains all required parameters for the Runner.
type Config struct {
	Genkit *genkit.Genkit
	Model  string // provider-qualified model name, e.g. "googleai/gemini-2.5-flash"
	Tools  []ai.Tool
	Logger log.Logger

	MaxTurns    int
	RateLimiter *rate.Limiter // nil = use default
}

// validate checks if all required parameters are present.
func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return fmt.Errorf("genkit instance is required")
	}
	if cfg.Model == "" {
		return fmt.Errorf("model name is required")
	}
	if len(cfg.Tools) == 0 {
		return fmt.Errorf("at least one tool is required")
	}
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// Runner executes conversational turns. It is stateless across turns and
// safe for concurrent use; all configuration is captured at construction.
type Runner struct {
	g        *genkit.Genkit
	model    string
	logger   log.Logger
	maxTurns int
	limiter  *rate.Limiter

	toolRefs  []ai.ToolRef // cached for ai.WithTools
	toolNames string       // cached comma-separated for logging
}

// New creates a Runner from the given configuration.
func New(cfg Config) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	// Default: 10 requests/sec sustained, burst of 30.
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}

	toolRefs := make([]ai.ToolRef, len(cfg.Tools))
	names := make([]string, len(cfg.Tools))
	for i, t := range cfg.Tools {
		toolRefs[i] = t
		names[i] = t.Name()
	}

	r := &Runner{
		g:         cfg.Genkit,
		model:     cfg.Model,
		logger:    cfg.Logger,
		maxTurns:  maxTurns,
		limiter:   limiter,
		toolRefs:  toolRefs,
		toolNames: strings.Join(names, ", "),
	}

	r.logger.Info("agent runner initialized",
		"model", r.model,
		"tools", r.toolNames,
		"max_turns", r.maxTurns,
	)
	return r, nil
}

// RunTurn submits one turn: the prior history plus the new user message.
// The user identity is bound both into the system prompt (so the model
// passes the right user_id to tools) and into the context (so tools reject
// calls naming anyone else).
//
// A model failure is reported as ErrUnavailable. An empty model response
// with no tool activity yields FallbackResponse instead of empty text.
func (r *Runner) RunTurn(ctx context.Context, userID string, history []conversation.Message, message string) (*Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	ctx = tools.ContextWithUserID(ctx, userID)
	messages := append(historyMessages(history), ai.NewUserMessage(ai.NewTextPart(message)))

	r.logger.Debug("executing turn",
		"user_id", userID,
		"history_len", len(history),
		"message_length", len(message),
	)

	resp, err := genkit.Generate(ctx, r.g,
		ai.WithModelName(r.model),
		ai.WithSystem(systemPrompt(userID)),
		ai.WithMessages(messages...),
		ai.WithTools(r.toolRefs...),
		ai.WithMaxTurns(r.maxTurns),
	)
	if err != nil {
		r.logger.Warn("model generation failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text := resp.Text()
	invocations := toolInvocations(resp)

	// No final text, fall back. Tool calls may have succeeded; the stored
	// assistant message must still be non-blank.
	if strings.TrimSpace(text) == "" {
		r.logger.Warn("model returned empty response", "user_id", userID, "tool_calls", len(invocations))
		text = FallbackResponse
	}

	r.logger.Debug("turn completed",
		"user_id", userID,
		"response_length", len(text),
		"tool_calls", len(invocations),
	)
	return &Result{Text: text, Invocations: invocations}, nil
}

// historyMessages converts stored messages into model messages.
func historyMessages(history []conversation.Message) []*ai.Message {
	msgs := make([]*ai.Message, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case conversation.RoleAssistant:
			msgs = append(msgs, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		default:
			msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}
	return msgs
}

// toolInvocations walks the full request transcript for tool responses
// produced during the agentic loop.
func toolInvocations(resp *ai.ModelResponse) []Invocation {
	if resp == nil || resp.Request == nil {
		return nil
	}

	var invocations []Invocation
	for _, msg := range resp.Request.Messages {
		for _, part := range msg.Content {
			if part.ToolResponse == nil {
				continue
			}
			invocations = append(invocations, Invocation{
				Name:   part.ToolResponse.Name,
				Result: truncate(outputString(part.ToolResponse.Output), maxToolResultLength),
			})
		}
	}
	return invocations
}

// outputString renders a tool output as a string. Task tools return JSON
// strings already; anything else is re-marshaled.
func outputString(output any) string {
	if output == nil {
		return ""
	}
	if s, ok := output.(string); ok {
		return s
	}
	b, err := json.Marshal(output)
	if err != nil {
		return fmt.Sprintf("%v", output)
	}
	return string(b)
}

// truncate bounds s to n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
