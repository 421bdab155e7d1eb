package store

import (
	"context"
	"errors"

	"github.com/concierged/concierge/pkg/convo"
)

// ErrNotFound marks a missing record, as opposed to a store failure. A
// transient outage must never be reported as "no context": callers rely on
// the distinction to avoid silently resetting a user's conversation.
var ErrNotFound = errors.New("store: not found")

// ContextStore persists conversation contexts keyed by user id.
type ContextStore interface {
	LoadContext(ctx context.Context, userID string) (convo.Snapshot, error)
	SaveContext(ctx context.Context, userID string, snap convo.Snapshot) error
	DeleteContext(ctx context.Context, userID string) error
}

// Task kinds held in the task store.
const (
	TaskKindTodo     = "todo"
	TaskKindReminder = "reminder"
	TaskKindEmail    = "email_draft"
)

// Task is one stored to-do item, reminder, or email draft.
type Task struct {
	ID          string
	UserID      string
	Kind        string
	Title       string
	Time        string
	Priority    string
	Recipients  string
	Body        string
	Recurrence  string
	Done        bool
	CreatedAtMS int64
	UpdatedAtMS int64
}

// TaskStore persists agent task records.
type TaskStore interface {
	AddTask(ctx context.Context, task Task) error
	ListTasks(ctx context.Context, userID, kind string) ([]Task, error)
	CompleteTask(ctx context.Context, userID, taskID string) error
}
