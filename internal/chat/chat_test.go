package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/taskyard/taskyard/internal/agent"
	"github.com/taskyard/taskyard/internal/conversation"
	"github.com/taskyard/taskyard/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeStore is an in-memory ConversationStore safe for concurrent use.
type fakeStore struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]string // id -> owner
	messages      map[uuid.UUID][]conversation.Message

	appendErrOn int // fail the nth Append (1-based); 0 = never
	appendCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[uuid.UUID]string),
		messages:      make(map[uuid.UUID][]conversation.Message),
	}
}

func (f *fakeStore) Create(_ context.Context, userID string) (*conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.conversations[id] = userID
	return &conversation.Conversation{ID: id, UserID: userID}, nil
}

func (f *fakeStore) Resolve(_ context.Context, id uuid.UUID, userID string) (*conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.conversations[id]
	if !ok || owner != userID {
		return nil, nil
	}
	return &conversation.Conversation{ID: id, UserID: owner}, nil
}

func (f *fakeStore) Append(_ context.Context, conversationID uuid.UUID, userID, role, content string) (*conversation.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCalls++
	if f.appendErrOn > 0 && f.appendCalls == f.appendErrOn {
		return nil, fmt.Errorf("disk full")
	}
	owner, ok := f.conversations[conversationID]
	if !ok || owner != userID {
		return nil, conversation.ErrNotFound
	}
	m := conversation.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		Content:        content,
	}
	f.messages[conversationID] = append(f.messages[conversationID], m)
	return &m, nil
}

func (f *fakeStore) History(_ context.Context, conversationID uuid.UUID, userID string, limit int) ([]conversation.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.conversations[conversationID]
	if !ok || owner != userID {
		return nil, nil
	}
	msgs := f.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// fakeRunner returns a canned result or error and records its input.
type fakeRunner struct {
	result *agent.Result
	err    error

	mu         sync.Mutex
	gotUserID  string
	gotHistory []conversation.Message
	gotMessage string
}

func (f *fakeRunner) RunTurn(_ context.Context, userID string, history []conversation.Message, message string) (*agent.Result, error) {
	f.mu.Lock()
	f.gotUserID = userID
	f.gotHistory = history
	f.gotMessage = message
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newService(t *testing.T, store ConversationStore, runner TurnRunner) *Service {
	t.Helper()
	s, err := NewService(store, runner, log.NewNop(), 50)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return s
}

func TestSend_NewConversation(t *testing.T) {
	store := newFakeStore()
	runner := &fakeRunner{result: &agent.Result{
		Text: "Added Buy milk.",
		Invocations: []agent.Invocation{
			{Name: "add_task", Result: `{"success":true}`},
		},
	}}
	s := newService(t, store, runner)

	turn, err := s.Send(context.Background(), "alice", nil, "add buy milk")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if turn.Response != "Added Buy milk." {
		t.Errorf("Response = %q", turn.Response)
	}
	if len(turn.ToolInvocations) != 1 || turn.ToolInvocations[0].Name != "add_task" {
		t.Errorf("ToolInvocations = %+v", turn.ToolInvocations)
	}
	if runner.gotUserID != "alice" {
		t.Errorf("runner user id = %q", runner.gotUserID)
	}

	// Both messages persisted, user first.
	msgs := store.messages[turn.ConversationID]
	if len(msgs) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != conversation.RoleUser || msgs[0].Content != "add buy milk" {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].Role != conversation.RoleAssistant || msgs[1].Content != "Added Buy milk." {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
}

func TestSend_ContinuesExistingConversation(t *testing.T) {
	store := newFakeStore()
	runner := &fakeRunner{result: &agent.Result{Text: "You have one task."}}
	s := newService(t, store, runner)

	first, err := s.Send(context.Background(), "alice", nil, "add buy milk")
	if err != nil {
		t.Fatalf("Send() #1 error = %v", err)
	}

	second, err := s.Send(context.Background(), "alice", &first.ConversationID, "what's on my list?")
	if err != nil {
		t.Fatalf("Send() #2 error = %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Errorf("conversation id changed between turns")
	}

	// The second turn sees the first turn's two messages as history.
	if len(runner.gotHistory) != 2 {
		t.Errorf("history length = %d, want 2", len(runner.gotHistory))
	}
	if runner.gotMessage != "what's on my list?" {
		t.Errorf("runner message = %q", runner.gotMessage)
	}
}

func TestSend_EmptyMessage(t *testing.T) {
	s := newService(t, newFakeStore(), &fakeRunner{result: &agent.Result{Text: "x"}})

	for _, msg := range []string{"", "   ", "\t\n"} {
		if _, err := s.Send(context.Background(), "alice", nil, msg); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Send(%q) error = %v, want ErrEmptyMessage", msg, err)
		}
	}
}

func TestSend_AccessDenied(t *testing.T) {
	store := newFakeStore()
	runner := &fakeRunner{result: &agent.Result{Text: "x"}}
	s := newService(t, store, runner)

	// Unknown conversation id.
	missing := uuid.New()
	if _, err := s.Send(context.Background(), "alice", &missing, "hello"); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Send() unknown id error = %v, want ErrAccessDenied", err)
	}

	// Conversation owned by someone else looks identical.
	turn, err := s.Send(context.Background(), "alice", nil, "mine")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if _, err := s.Send(context.Background(), "bob", &turn.ConversationID, "hello"); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Send() foreign id error = %v, want ErrAccessDenied", err)
	}
}

func TestSend_UpstreamFailure(t *testing.T) {
	store := newFakeStore()
	runner := &fakeRunner{err: fmt.Errorf("%w: connect refused", agent.ErrUnavailable)}
	s := newService(t, store, runner)

	_, err := s.Send(context.Background(), "alice", nil, "hello")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Send() error = %v, want ErrUpstreamUnavailable", err)
	}

	// No messages persisted on a failed turn.
	for id := range store.messages {
		if len(store.messages[id]) != 0 {
			t.Errorf("failed turn persisted messages: %v", store.messages[id])
		}
	}
}

func TestSend_PersistenceFailure(t *testing.T) {
	tests := []struct {
		name        string
		appendErrOn int
	}{
		{"user message write fails", 1},
		{"assistant message write fails", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.appendErrOn = tt.appendErrOn
			runner := &fakeRunner{result: &agent.Result{Text: "generated"}}
			s := newService(t, store, runner)

			_, err := s.Send(context.Background(), "alice", nil, "hello")
			if !errors.Is(err, ErrPersistence) {
				t.Fatalf("Send() error = %v, want ErrPersistence", err)
			}
		})
	}
}

func TestSend_ConcurrentNewConversationsAreDistinct(t *testing.T) {
	store := newFakeStore()
	runner := &fakeRunner{result: &agent.Result{Text: "ok"}}
	s := newService(t, store, runner)

	const turns = 8
	ids := make([]uuid.UUID, turns)
	var wg sync.WaitGroup
	for i := range turns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			turn, err := s.Send(context.Background(), "alice", nil, "hello")
			if err != nil {
				t.Errorf("Send() error = %v", err)
				return
			}
			ids[i] = turn.ConversationID
		}()
	}
	wg.Wait()

	seen := make(map[uuid.UUID]bool, turns)
	for _, id := range ids {
		if id == (uuid.UUID{}) {
			continue // that send already reported its error
		}
		if seen[id] {
			t.Fatalf("two turns without a conversation id shared conversation %s", id)
		}
		seen[id] = true
	}
}

func TestNewService_Validation(t *testing.T) {
	store := newFakeStore()
	runner := &fakeRunner{}

	tests := []struct {
		name   string
		store  ConversationStore
		runner TurnRunner
		logger log.Logger
		limit  int
	}{
		{"nil store", nil, runner, log.NewNop(), 50},
		{"nil runner", store, nil, log.NewNop(), 50},
		{"nil logger", store, runner, nil, 50},
		{"zero limit", store, runner, log.NewNop(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewService(tt.store, tt.runner, tt.logger, tt.limit); err == nil {
				t.Error("NewService() expected error")
			}
		})
	}
}
