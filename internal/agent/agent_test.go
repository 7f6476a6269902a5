package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/taskyard/taskyard/internal/conversation"
	"github.com/taskyard/taskyard/internal/log"
	"github.com/taskyard/taskyard/internal/testutil"
)

type echoInput struct {
	Text string `json:"text"`
}

// newTestRunner wires a Runner against the mock model.
func newTestRunner(t *testing.T, mock *testutil.MockLLM) *Runner {
	t.Helper()

	ctx := context.Background()
	g := genkit.Init(ctx)
	mock.RegisterModel(g)

	echo := genkit.DefineTool(g, "echo", "Echoes the input text.",
		func(_ *ai.ToolContext, in echoInput) (string, error) {
			return in.Text, nil
		})

	r, err := New(Config{
		Genkit:   g,
		Model:    "mock/test-model",
		Tools:    []ai.Tool{echo},
		Logger:   log.NewNop(),
		MaxTurns: 3,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestNew_Validation(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)
	echo := genkit.DefineTool(g, "echo", "Echoes the input text.",
		func(_ *ai.ToolContext, in echoInput) (string, error) {
			return in.Text, nil
		})

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing genkit", Config{Model: "m", Tools: []ai.Tool{echo}, Logger: log.NewNop()}},
		{"missing model", Config{Genkit: g, Tools: []ai.Tool{echo}, Logger: log.NewNop()}},
		{"missing tools", Config{Genkit: g, Model: "m", Logger: log.NewNop()}},
		{"missing logger", Config{Genkit: g, Model: "m", Tools: []ai.Tool{echo}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestRunTurn_TextResponse(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddResponse("hello", "Hi there! How can I help with your tasks?")

	r := newTestRunner(t, mock)

	got, err := r.RunTurn(context.Background(), "alice", nil, "hello")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if got.Text != "Hi there! How can I help with your tasks?" {
		t.Errorf("Text = %q", got.Text)
	}
	if len(got.Invocations) != 0 {
		t.Errorf("Invocations = %v, want none", got.Invocations)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(calls))
	}
	if calls[0].UserMessage != "hello" {
		t.Errorf("last user message = %q", calls[0].UserMessage)
	}
}

func TestRunTurn_EmptyResponseFallback(t *testing.T) {
	mock := testutil.NewMockLLM("")

	r := newTestRunner(t, mock)

	got, err := r.RunTurn(context.Background(), "alice", nil, "anything")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if got.Text != FallbackResponse {
		t.Errorf("Text = %q, want fallback", got.Text)
	}
}

func TestRunTurn_ToolCalls(t *testing.T) {
	long := strings.Repeat("x", 300)
	mock := testutil.NewMockLLM("fallthrough")
	mock.AddToolResponse("remember", []*ai.ToolRequest{
		{Name: "echo", Input: map[string]any{"text": long}},
	}, "Echoed it back.")

	r := newTestRunner(t, mock)

	got, err := r.RunTurn(context.Background(), "alice", nil, "remember this")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if got.Text != "Echoed it back." {
		t.Errorf("Text = %q", got.Text)
	}
	if len(got.Invocations) != 1 {
		t.Fatalf("Invocations = %+v, want 1", got.Invocations)
	}
	inv := got.Invocations[0]
	if inv.Name != "echo" {
		t.Errorf("invocation name = %q, want echo", inv.Name)
	}
	// The 300-char tool result is recorded truncated.
	if n := len([]rune(inv.Result)); n != 200 {
		t.Errorf("invocation result length = %d, want 200", n)
	}
	if !strings.HasPrefix(inv.Result, "xxx") {
		t.Errorf("invocation result = %q", inv.Result)
	}

	// Two model calls: one requesting the tool, one finishing with text.
	if calls := mock.Calls(); len(calls) != 2 {
		t.Errorf("model calls = %d, want 2", len(calls))
	}
	mock.Reset()
	if calls := mock.Calls(); len(calls) != 0 {
		t.Errorf("model calls after Reset = %d, want 0", len(calls))
	}
}

func TestRunTurn_ToolCallsEmptyFinalText(t *testing.T) {
	// Tool call succeeds but the model finishes with no text at all.
	mock := testutil.NewMockLLM("")
	mock.AddToolResponse("add", []*ai.ToolRequest{
		{Name: "echo", Input: map[string]any{"text": "buy milk"}},
	}, "")

	r := newTestRunner(t, mock)

	got, err := r.RunTurn(context.Background(), "alice", nil, "add buy milk")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if got.Text != FallbackResponse {
		t.Errorf("Text = %q, want fallback", got.Text)
	}
	// The tool activity is still reported.
	if len(got.Invocations) != 1 || got.Invocations[0].Name != "echo" {
		t.Errorf("Invocations = %+v", got.Invocations)
	}
}

func TestRunTurn_UnknownModel(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)
	testutil.NewMockLLM("x").RegisterModel(g)
	echo := genkit.DefineTool(g, "echo", "Echoes the input text.",
		func(_ *ai.ToolContext, in echoInput) (string, error) {
			return in.Text, nil
		})

	r, err := New(Config{
		Genkit: g,
		Model:  "mock/missing",
		Tools:  []ai.Tool{echo},
		Logger: log.NewNop(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := r.RunTurn(ctx, "alice", nil, "hello"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("RunTurn() error = %v, want ErrUnavailable", err)
	}
}

func TestRunTurn_HistoryForwarded(t *testing.T) {
	mock := testutil.NewMockLLM("default answer")

	r := newTestRunner(t, mock)

	history := []conversation.Message{
		{Role: conversation.RoleUser, Content: "add buy milk"},
		{Role: conversation.RoleAssistant, Content: "Added Buy milk."},
	}

	got, err := r.RunTurn(context.Background(), "alice", history, "what's on my list?")
	if err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	if got.Text != "default answer" {
		t.Errorf("Text = %q", got.Text)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(calls))
	}
	// The mock reads the last user message; history must not displace it.
	if calls[0].UserMessage != "what's on my list?" {
		t.Errorf("last user message = %q", calls[0].UserMessage)
	}
}

func TestHistoryMessages_Roles(t *testing.T) {
	history := []conversation.Message{
		{Role: conversation.RoleUser, Content: "one"},
		{Role: conversation.RoleAssistant, Content: "two"},
		{Role: "unknown", Content: "three"},
	}

	msgs := historyMessages(history)
	if len(msgs) != 3 {
		t.Fatalf("len(msgs) = %d, want 3", len(msgs))
	}
	if msgs[0].Role != ai.RoleUser {
		t.Errorf("msgs[0].Role = %v, want user", msgs[0].Role)
	}
	if msgs[1].Role != ai.RoleModel {
		t.Errorf("msgs[1].Role = %v, want model", msgs[1].Role)
	}
	// Unknown roles degrade to user rather than dropping content.
	if msgs[2].Role != ai.RoleUser {
		t.Errorf("msgs[2].Role = %v, want user", msgs[2].Role)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 200); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	long := strings.Repeat("a", 300)
	if got := truncate(long, 200); len([]rune(got)) != 200 {
		t.Errorf("len(truncate(long)) = %d, want 200", len([]rune(got)))
	}
}

func TestOutputString(t *testing.T) {
	if got := outputString(nil); got != "" {
		t.Errorf("outputString(nil) = %q", got)
	}
	if got := outputString(`{"success":true}`); got != `{"success":true}` {
		t.Errorf("outputString(string) = %q", got)
	}
	if got := outputString(map[string]any{"n": 1}); got != `{"n":1}` {
		t.Errorf("outputString(map) = %q", got)
	}
}

func TestSystemPrompt_BindsUserID(t *testing.T) {
	p := systemPrompt("user-42")
	if !strings.HasSuffix(p, "Current user_id: user-42") {
		t.Errorf("prompt does not bind user id: %q", p[len(p)-60:])
	}
}
