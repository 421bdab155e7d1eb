package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/concierged/concierge/pkg/intent"
	"github.com/concierged/concierge/pkg/store"
)

// TodoAgent adds and lists to-do items.
type TodoAgent struct {
	tasks store.TaskStore
}

func NewTodoAgent(tasks store.TaskStore) *TodoAgent {
	return &TodoAgent{tasks: tasks}
}

func (a *TodoAgent) Name() string {
	return "todo_agent"
}

func (a *TodoAgent) Handle(ctx context.Context, inv Invocation) (string, error) {
	switch inv.Action {
	case intent.ActionListTodos:
		return a.list(ctx, inv.UserID)
	case intent.ActionAddTodo:
		return a.add(ctx, inv)
	default:
		return "", fmt.Errorf("todo agent cannot handle action %q", inv.Action)
	}
}

func (a *TodoAgent) add(ctx context.Context, inv Invocation) (string, error) {
	title := strings.TrimSpace(inv.Slot(intent.SlotTask))
	if title == "" {
		return "", fmt.Errorf("todo task is required")
	}

	task := store.Task{
		ID:       uuid.NewString(),
		UserID:   inv.UserID,
		Kind:     store.TaskKindTodo,
		Title:    title,
		Priority: strings.ToLower(strings.TrimSpace(inv.Slot(intent.SlotPriority))),
		Time:     strings.TrimSpace(inv.Slot(intent.SlotTime)),
	}
	if err := a.tasks.AddTask(ctx, task); err != nil {
		return "", fmt.Errorf("save todo: %w", err)
	}

	if task.Priority != "" {
		return fmt.Sprintf("Added to your list: %s (priority: %s)", title, task.Priority), nil
	}
	return fmt.Sprintf("Added to your list: %s", title), nil
}

func (a *TodoAgent) list(ctx context.Context, userID string) (string, error) {
	tasks, err := a.tasks.ListTasks(ctx, userID, store.TaskKindTodo)
	if err != nil {
		return "", fmt.Errorf("list todos: %w", err)
	}
	if len(tasks) == 0 {
		return "Your to-do list is empty.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You have %d item(s) on your list:\n", len(tasks))
	for i, task := range tasks {
		fmt.Fprintf(&b, "%d. %s", i+1, task.Title)
		if task.Priority != "" {
			fmt.Fprintf(&b, " [%s]", task.Priority)
		}
		if task.Time != "" {
			fmt.Fprintf(&b, " (due %s)", task.Time)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
