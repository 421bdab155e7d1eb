package agents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/concierged/concierge/pkg/intent"
	"github.com/concierged/concierge/pkg/providers"
	"github.com/concierged/concierge/pkg/store"
)

type memTasks struct {
	mu    sync.Mutex
	tasks []store.Task
}

func (m *memTasks) AddTask(_ context.Context, task store.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *memTasks) ListTasks(_ context.Context, userID, kind string) ([]store.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Task
	for _, task := range m.tasks {
		if task.UserID == userID && task.Kind == kind && !task.Done {
			out = append(out, task)
		}
	}
	return out, nil
}

func (m *memTasks) CompleteTask(_ context.Context, userID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].UserID == userID && m.tasks[i].ID == taskID {
			m.tasks[i].Done = true
			return nil
		}
	}
	return store.ErrNotFound
}

type fakeProvider struct {
	reply       string
	err         error
	gotMessages []providers.Message
}

func (f *fakeProvider) Chat(_ context.Context, messages []providers.Message, _ string, _ map[string]interface{}) (*providers.LLMResponse, error) {
	f.gotMessages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &providers.LLMResponse{Content: f.reply, FinishReason: "stop"}, nil
}

func (f *fakeProvider) GetDefaultModel() string { return "fake-model" }

func TestReminderAgent_SetAndList(t *testing.T) {
	tasks := &memTasks{}
	agent := NewReminderAgent(tasks)
	ctx := context.Background()

	reply, err := agent.Handle(ctx, Invocation{
		UserID:    "u1",
		Utterance: "remind me to call mom at 5pm",
		Action:    intent.ActionSetReminder,
		Slots: map[string]string{
			intent.SlotTime:        "5pm",
			intent.SlotDescription: "call mom",
		},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(reply, "call mom") || !strings.Contains(reply, "5pm") {
		t.Fatalf("reply = %q", reply)
	}

	reply, err = agent.Handle(ctx, Invocation{UserID: "u1", Action: intent.ActionListReminders})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(reply, "1. call mom at 5pm") {
		t.Fatalf("list reply = %q", reply)
	}
}

func TestReminderAgent_MissingTimeFails(t *testing.T) {
	agent := NewReminderAgent(&memTasks{})
	if _, err := agent.Handle(context.Background(), Invocation{
		UserID: "u1",
		Action: intent.ActionSetReminder,
		Slots:  map[string]string{intent.SlotDescription: "stretch"},
	}); err == nil {
		t.Fatalf("expected error without a time slot")
	}
}

func TestReminderAgent_Recurrence(t *testing.T) {
	cases := []struct {
		utterance string
		want      string
	}{
		{"remind me to stretch every day at 9am", "@daily"},
		{"remind me weekly to water the plants at noon", "@weekly"},
		{"remind me every morning to journal", "0 8 * * *"},
		{"remind me to call mom at 5pm", ""},
	}

	agent := NewReminderAgent(&memTasks{})
	for _, tc := range cases {
		if got := agent.detectRecurrence(tc.utterance); got != tc.want {
			t.Errorf("detectRecurrence(%q) = %q, want %q", tc.utterance, got, tc.want)
		}
	}
}

func TestTodoAgent_AddAndList(t *testing.T) {
	tasks := &memTasks{}
	agent := NewTodoAgent(tasks)
	ctx := context.Background()

	reply, err := agent.Handle(ctx, Invocation{
		UserID: "u1",
		Action: intent.ActionAddTodo,
		Slots: map[string]string{
			intent.SlotTask:     "buy groceries",
			intent.SlotPriority: "high",
		},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(reply, "buy groceries") || !strings.Contains(reply, "high") {
		t.Fatalf("reply = %q", reply)
	}

	reply, err = agent.Handle(ctx, Invocation{UserID: "u1", Action: intent.ActionListTodos})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(reply, "1. buy groceries [high]") {
		t.Fatalf("list reply = %q", reply)
	}
}

func TestTodoAgent_ScopedByUser(t *testing.T) {
	tasks := &memTasks{}
	agent := NewTodoAgent(tasks)
	ctx := context.Background()

	if _, err := agent.Handle(ctx, Invocation{
		UserID: "u1",
		Action: intent.ActionAddTodo,
		Slots:  map[string]string{intent.SlotTask: "u1 item"},
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	reply, err := agent.Handle(ctx, Invocation{UserID: "u2", Action: intent.ActionListTodos})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(reply, "empty") {
		t.Fatalf("u2 should see an empty list, got %q", reply)
	}
}

func TestEmailAgent_ComposeStoresDraft(t *testing.T) {
	tasks := &memTasks{}
	provider := &fakeProvider{reply: "Hi Bob,\n\nSee you at 3.\n"}
	agent := NewEmailAgent(provider, tasks, "fake-model", nil)
	ctx := context.Background()

	reply, err := agent.Handle(ctx, Invocation{
		UserID:    "u1",
		Utterance: "write an email to bob about the meeting",
		Action:    intent.ActionComposeEmail,
		Slots:     map[string]string{intent.SlotRecipients: "bob"},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(reply, "for bob") || !strings.Contains(reply, "See you at 3.") {
		t.Fatalf("reply = %q", reply)
	}

	drafts, err := tasks.ListTasks(ctx, "u1", store.TaskKindEmail)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(drafts) != 1 || drafts[0].Recipients != "bob" {
		t.Fatalf("drafts = %+v", drafts)
	}
}

func TestEmailAgent_ProviderErrorPropagates(t *testing.T) {
	provider := &fakeProvider{err: errors.New("model unavailable")}
	agent := NewEmailAgent(provider, &memTasks{}, "fake-model", nil)

	_, err := agent.Handle(context.Background(), Invocation{
		UserID:    "u1",
		Utterance: "write an email to bob",
		Action:    intent.ActionComposeEmail,
	})
	if err == nil || !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("err = %v", err)
	}
}

func TestGeneralAgent_PassesUtterance(t *testing.T) {
	provider := &fakeProvider{reply: "Sunny with a light breeze."}
	agent := NewGeneralAgent(provider, "fake-model", nil)

	reply, err := agent.Handle(context.Background(), Invocation{
		UserID:    "u1",
		Utterance: "how is the weather?",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply != "Sunny with a light breeze." {
		t.Fatalf("reply = %q", reply)
	}
	if len(provider.gotMessages) != 2 || provider.gotMessages[1].Content != "how is the weather?" {
		t.Fatalf("messages = %+v", provider.gotMessages)
	}
}

func TestRegistry_ExecuteUnknownAgent(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Execute(context.Background(), "missing_agent", Invocation{}); err == nil {
		t.Fatalf("expected error for unknown agent")
	}
}

func TestRegistry_HasAndList(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewTodoAgent(&memTasks{}))
	reg.Register(NewReminderAgent(&memTasks{}))

	if !reg.Has("todo_agent") || !reg.Has("reminder_agent") {
		t.Fatalf("registered agents missing: %v", reg.List())
	}
	if reg.Has("email_agent") {
		t.Fatalf("unexpected agent present")
	}
	if got := reg.List(); len(got) != 2 || got[0] != "reminder_agent" {
		t.Fatalf("List = %v", got)
	}
}
