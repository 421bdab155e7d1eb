package providers

import "context"

// Message roles accepted by chat-completions style APIs.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of model input. Content is always a flat string;
// providers that answer with structured content parts are normalized on
// the way in (see flattenMessageContent).
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UsageInfo mirrors the usage block of a chat-completions response.
type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// LLMResponse is one model completion.
type LLMResponse struct {
	Content      string
	FinishReason string
	Usage        *UsageInfo
}

// LLMProvider is the model backend contract used by agents.
type LLMProvider interface {
	Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error)
	GetDefaultModel() string
}
