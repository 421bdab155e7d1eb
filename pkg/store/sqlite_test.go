package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/concierged/concierge/pkg/convo"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state", "concierge.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoadContext_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadContext(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestContextRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := convo.New("u7")
	c.SetActiveAgent("todo_agent")
	c.Topic = "todo"
	c.LastIntent = "add_todo"
	c.AddKeywords("todo", "task", "groceries")
	c.OpenPending(convo.PendingRequest{
		RequestType:  "add_todo",
		AgentName:    "todo_agent",
		RequiredInfo: []string{"task"},
		Context:      map[string]string{"priority": "high"},
	})
	c.RecordInteraction("todo_agent", "add_todo", convo.ResultSuccess, map[string]string{"task": "buy milk"})
	c.RecordInteraction("reminder_agent", "set_reminder", convo.ResultFailure, nil)

	snap := c.Snapshot()
	if err := s.SaveContext(ctx, "u7", snap); err != nil {
		t.Fatalf("SaveContext: %v", err)
	}

	loaded, err := s.LoadContext(ctx, "u7")
	if err != nil {
		t.Fatalf("LoadContext: %v", err)
	}

	if loaded.State != snap.State {
		t.Errorf("state = %q, want %q", loaded.State, snap.State)
	}
	if loaded.ActiveAgent != snap.ActiveAgent {
		t.Errorf("active agent = %q, want %q", loaded.ActiveAgent, snap.ActiveAgent)
	}
	if loaded.ActiveAgentTurnsLeft != snap.ActiveAgentTurnsLeft {
		t.Errorf("turns left = %d, want %d", loaded.ActiveAgentTurnsLeft, snap.ActiveAgentTurnsLeft)
	}
	if !reflect.DeepEqual(loaded.Keywords, snap.Keywords) {
		t.Errorf("keywords = %v, want %v", loaded.Keywords, snap.Keywords)
	}
	if len(loaded.PendingRequests) != 1 ||
		loaded.PendingRequests[0].AgentName != "todo_agent" ||
		!reflect.DeepEqual(loaded.PendingRequests[0].RequiredInfo, []string{"task"}) {
		t.Errorf("pending = %+v", loaded.PendingRequests)
	}

	// History must be order-preserving.
	if len(loaded.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(loaded.History))
	}
	if loaded.History[0].AgentName != "todo_agent" || loaded.History[1].AgentName != "reminder_agent" {
		t.Errorf("history order = %q, %q", loaded.History[0].AgentName, loaded.History[1].AgentName)
	}
	if loaded.History[0].Metadata["task"] != "buy milk" {
		t.Errorf("history metadata = %v", loaded.History[0].Metadata)
	}

	// Top-level stamps are stored at millisecond precision.
	if !loaded.StartedAt.Equal(snap.StartedAt.Truncate(time.Millisecond)) {
		t.Errorf("started at = %v, want %v", loaded.StartedAt, snap.StartedAt)
	}

	// Saving again must overwrite, not duplicate.
	c.ResolvePending("todo_agent")
	if err := s.SaveContext(ctx, "u7", c.Snapshot()); err != nil {
		t.Fatalf("second SaveContext: %v", err)
	}
	loaded, err = s.LoadContext(ctx, "u7")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(loaded.PendingRequests) != 0 {
		t.Errorf("pending after resolve = %+v, want empty", loaded.PendingRequests)
	}
	if loaded.State != string(convo.StateAgentActive) {
		t.Errorf("state = %q, want AGENT_ACTIVE", loaded.State)
	}
}

func TestDeleteContext(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := convo.New("gone")
	if err := s.SaveContext(ctx, "gone", c.Snapshot()); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteContext(ctx, "gone"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadContext(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err after delete = %v, want ErrNotFound", err)
	}
}

func TestTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddTask(ctx, Task{ID: "t1", UserID: "u1", Kind: TaskKindTodo, Title: "buy milk", Priority: "high"}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := s.AddTask(ctx, Task{ID: "t2", UserID: "u1", Kind: TaskKindTodo, Title: "water plants"}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := s.AddTask(ctx, Task{ID: "r1", UserID: "u1", Kind: TaskKindReminder, Title: "dentist", Time: "9am"}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := s.AddTask(ctx, Task{ID: "t3", UserID: "u2", Kind: TaskKindTodo, Title: "other user"}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	todos, err := s.ListTasks(ctx, "u1", TaskKindTodo)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(todos) != 2 || todos[0].Title != "buy milk" || todos[1].Title != "water plants" {
		t.Errorf("todos = %+v, want buy milk then water plants", todos)
	}

	if err := s.CompleteTask(ctx, "u1", "t1"); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	todos, err = s.ListTasks(ctx, "u1", TaskKindTodo)
	if err != nil {
		t.Fatal(err)
	}
	if len(todos) != 1 || todos[0].ID != "t2" {
		t.Errorf("open todos after complete = %+v", todos)
	}

	if err := s.CompleteTask(ctx, "u1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteTask(missing) = %v, want ErrNotFound", err)
	}
}
