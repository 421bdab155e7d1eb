package agents

import (
	"context"
	"fmt"

	"github.com/concierged/concierge/pkg/providers"
)

const generalSystemPrompt = "You are a concise personal assistant. You can set reminders, " +
	"manage a to-do list, and draft emails when asked. Answer everything else briefly and helpfully."

// GeneralAgent answers utterances no specialized agent claimed.
type GeneralAgent struct {
	provider providers.LLMProvider
	model    string
	options  map[string]interface{}
}

func NewGeneralAgent(provider providers.LLMProvider, model string, options map[string]interface{}) *GeneralAgent {
	return &GeneralAgent{
		provider: provider,
		model:    model,
		options:  options,
	}
}

func (a *GeneralAgent) Name() string {
	return "general_agent"
}

func (a *GeneralAgent) Handle(ctx context.Context, inv Invocation) (string, error) {
	resp, err := a.provider.Chat(ctx, []providers.Message{
		{Role: providers.RoleSystem, Content: generalSystemPrompt},
		{Role: providers.RoleUser, Content: inv.Utterance},
	}, a.model, a.options)
	if err != nil {
		return "", fmt.Errorf("general response: %w", err)
	}
	return resp.Content, nil
}
