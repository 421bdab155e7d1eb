package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/concierged/concierge/pkg/intent"
	"github.com/concierged/concierge/pkg/providers"
	"github.com/concierged/concierge/pkg/store"
)

const emailDraftPrompt = "You are an assistant that drafts short, clear emails. " +
	"Write only the email body, no preamble and no subject line unless asked."

// EmailAgent drafts and manages emails through the configured model
// provider. Drafts are stored; nothing is actually sent anywhere.
type EmailAgent struct {
	provider providers.LLMProvider
	tasks    store.TaskStore
	model    string
	options  map[string]interface{}
}

func NewEmailAgent(provider providers.LLMProvider, tasks store.TaskStore, model string, options map[string]interface{}) *EmailAgent {
	return &EmailAgent{
		provider: provider,
		tasks:    tasks,
		model:    model,
		options:  options,
	}
}

func (a *EmailAgent) Name() string {
	return "email_agent"
}

func (a *EmailAgent) Handle(ctx context.Context, inv Invocation) (string, error) {
	switch inv.Action {
	case intent.ActionListEmails:
		return a.list(ctx, inv.UserID)
	case intent.ActionComposeEmail, intent.ActionSendEmail, intent.ActionScheduleEmail:
		return a.compose(ctx, inv)
	case intent.ActionSearchEmail, intent.ActionEmailSummary, intent.ActionManageEmail, intent.ActionEmailGeneral:
		return a.respond(ctx, inv)
	default:
		return "", fmt.Errorf("email agent cannot handle action %q", inv.Action)
	}
}

func (a *EmailAgent) compose(ctx context.Context, inv Invocation) (string, error) {
	recipients := strings.TrimSpace(inv.Slot(intent.SlotRecipients))

	body, err := a.draft(ctx, inv)
	if err != nil {
		return "", err
	}

	task := store.Task{
		ID:         uuid.NewString(),
		UserID:     inv.UserID,
		Kind:       store.TaskKindEmail,
		Title:      summarizeRequest(inv.Utterance),
		Recipients: recipients,
		Body:       body,
		Time:       strings.TrimSpace(inv.Slot(intent.SlotTime)),
	}
	if err := a.tasks.AddTask(ctx, task); err != nil {
		return "", fmt.Errorf("save email draft: %w", err)
	}

	var b strings.Builder
	b.WriteString("Here's a draft")
	if recipients != "" {
		fmt.Fprintf(&b, " for %s", recipients)
	}
	if task.Time != "" {
		fmt.Fprintf(&b, " (scheduled for %s)", task.Time)
	}
	b.WriteString(":\n\n")
	b.WriteString(body)
	return b.String(), nil
}

func (a *EmailAgent) respond(ctx context.Context, inv Invocation) (string, error) {
	resp, err := a.provider.Chat(ctx, []providers.Message{
		{Role: providers.RoleSystem, Content: "You are an email assistant. The user cannot access a real mailbox through you; help with drafting, wording, and organizing instead."},
		{Role: providers.RoleUser, Content: inv.Utterance},
	}, a.model, a.options)
	if err != nil {
		return "", fmt.Errorf("email response: %w", err)
	}
	return resp.Content, nil
}

func (a *EmailAgent) draft(ctx context.Context, inv Invocation) (string, error) {
	prompt := inv.Utterance
	if recipients := inv.Slot(intent.SlotRecipients); recipients != "" {
		prompt = fmt.Sprintf("%s\n\nRecipient: %s", prompt, recipients)
	}

	resp, err := a.provider.Chat(ctx, []providers.Message{
		{Role: providers.RoleSystem, Content: emailDraftPrompt},
		{Role: providers.RoleUser, Content: prompt},
	}, a.model, a.options)
	if err != nil {
		return "", fmt.Errorf("draft email: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("draft email: provider returned empty content")
	}
	return resp.Content, nil
}

func (a *EmailAgent) list(ctx context.Context, userID string) (string, error) {
	tasks, err := a.tasks.ListTasks(ctx, userID, store.TaskKindEmail)
	if err != nil {
		return "", fmt.Errorf("list email drafts: %w", err)
	}
	if len(tasks) == 0 {
		return "You have no email drafts.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You have %d draft(s):\n", len(tasks))
	for i, task := range tasks {
		fmt.Fprintf(&b, "%d. %s", i+1, task.Title)
		if task.Recipients != "" {
			fmt.Fprintf(&b, " (to %s)", task.Recipients)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func summarizeRequest(utterance string) string {
	s := strings.TrimSpace(utterance)
	if len(s) > 80 {
		return s[:80] + "..."
	}
	if s == "" {
		return "email draft"
	}
	return s
}
