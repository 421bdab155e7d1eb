package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/concierged/concierge/pkg/intent"
	"github.com/concierged/concierge/pkg/store"
)

// ReminderAgent creates and lists reminders. Recurring reminders carry a
// cron expression validated before storage.
type ReminderAgent struct {
	tasks store.TaskStore
	gron  *gronx.Gronx
}

func NewReminderAgent(tasks store.TaskStore) *ReminderAgent {
	return &ReminderAgent{
		tasks: tasks,
		gron:  gronx.New(),
	}
}

func (a *ReminderAgent) Name() string {
	return "reminder_agent"
}

func (a *ReminderAgent) Handle(ctx context.Context, inv Invocation) (string, error) {
	switch inv.Action {
	case intent.ActionListReminders:
		return a.list(ctx, inv.UserID)
	case intent.ActionSetReminder:
		return a.set(ctx, inv)
	default:
		return "", fmt.Errorf("reminder agent cannot handle action %q", inv.Action)
	}
}

func (a *ReminderAgent) set(ctx context.Context, inv Invocation) (string, error) {
	when := strings.TrimSpace(inv.Slot(intent.SlotTime))
	if when == "" {
		return "", fmt.Errorf("reminder time is required")
	}

	title := strings.TrimSpace(inv.Slot(intent.SlotDescription))
	if title == "" {
		title = "reminder"
	}

	recurrence := a.detectRecurrence(inv.Utterance)

	task := store.Task{
		ID:         uuid.NewString(),
		UserID:     inv.UserID,
		Kind:       store.TaskKindReminder,
		Title:      title,
		Time:       when,
		Recurrence: recurrence,
	}
	if err := a.tasks.AddTask(ctx, task); err != nil {
		return "", fmt.Errorf("save reminder: %w", err)
	}

	if recurrence != "" {
		return fmt.Sprintf("Recurring reminder set: %s at %s (%s)", title, when, recurrence), nil
	}
	return fmt.Sprintf("Reminder set: %s at %s", title, when), nil
}

func (a *ReminderAgent) list(ctx context.Context, userID string) (string, error) {
	tasks, err := a.tasks.ListTasks(ctx, userID, store.TaskKindReminder)
	if err != nil {
		return "", fmt.Errorf("list reminders: %w", err)
	}
	if len(tasks) == 0 {
		return "You have no reminders.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You have %d reminder(s):\n", len(tasks))
	for i, task := range tasks {
		fmt.Fprintf(&b, "%d. %s at %s", i+1, task.Title, task.Time)
		if task.Recurrence != "" {
			fmt.Fprintf(&b, " (%s)", task.Recurrence)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

var recurrencePhrases = []struct {
	pattern *regexp.Regexp
	cron    string
}{
	{regexp.MustCompile(`(?i)\bevery\s+day\b|\bdaily\b`), "@daily"},
	{regexp.MustCompile(`(?i)\bevery\s+week\b|\bweekly\b`), "@weekly"},
	{regexp.MustCompile(`(?i)\bevery\s+month\b|\bmonthly\b`), "@monthly"},
	{regexp.MustCompile(`(?i)\bevery\s+hour\b|\bhourly\b`), "@hourly"},
	{regexp.MustCompile(`(?i)\bevery\s+morning\b`), "0 8 * * *"},
	{regexp.MustCompile(`(?i)\bevery\s+evening\b|\bevery\s+night\b`), "0 20 * * *"},
}

var cronLike = regexp.MustCompile(`(?:\S+\s+){4}\S+`)

// detectRecurrence maps natural recurrence phrases to cron expressions.
// A literal cron expression in the utterance is accepted if it validates.
func (a *ReminderAgent) detectRecurrence(utterance string) string {
	for _, phrase := range recurrencePhrases {
		if phrase.pattern.MatchString(utterance) {
			return phrase.cron
		}
	}
	if m := cronLike.FindString(utterance); m != "" {
		expr := strings.TrimSpace(m)
		if a.gron.IsValid(expr) {
			return expr
		}
	}
	return ""
}
