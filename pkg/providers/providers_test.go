package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/concierged/concierge/pkg/config"
)

func TestChat_SendsModelAndAuth(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	}))
	defer server.Close()

	p, err := newChatCompletionsProvider("openrouter", server.URL, "model-x", "", NewAPIKeyAuth(NewStaticTokenSource("sk-test", "test")))
	if err != nil {
		t.Fatalf("newChatCompletionsProvider: %v", err)
	}

	resp, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", map[string]interface{}{
		"max_tokens":  256,
		"temperature": 0.5,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "hello" || resp.FinishReason != "stop" {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 4 {
		t.Fatalf("usage = %+v", resp.Usage)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotBody["model"] != "model-x" {
		t.Fatalf("model = %v, want default applied", gotBody["model"])
	}
	if gotBody["max_tokens"] != float64(256) {
		t.Fatalf("max_tokens = %v", gotBody["max_tokens"])
	}
}

func TestChat_APIErrorSurfacesMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer server.Close()

	p, err := newChatCompletionsProvider("openrouter", server.URL, "model-x", "", NewAPIKeyAuth(NewStaticTokenSource("sk-test", "test")))
	if err != nil {
		t.Fatalf("newChatCompletionsProvider: %v", err)
	}

	_, err = p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "status=401") || !strings.Contains(got, "bad key") {
		t.Fatalf("error = %q", got)
	}
}

func TestFlattenMessageContent(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want string
	}{
		{"plain string", "hello", "hello"},
		{"text parts", []interface{}{
			map[string]interface{}{"type": "text", "text": "part one "},
			map[string]interface{}{"type": "text", "text": "part two"},
		}, "part one part two"},
		{"content field fallback", []interface{}{
			map[string]interface{}{"content": "alt"},
		}, "alt"},
		{"mixed junk skipped", []interface{}{
			42,
			map[string]interface{}{"type": "image_url"},
			map[string]interface{}{"text": "kept"},
		}, "kept"},
		{"nil", nil, ""},
		{"number", 3.14, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := flattenMessageContent(tc.in); got != tc.want {
				t.Fatalf("flattenMessageContent = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseResponse_NoChoices(t *testing.T) {
	resp, err := parseChatCompletionsResponse([]byte(`{"choices":[]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if resp.Content != "" || resp.FinishReason != "stop" {
		t.Fatalf("empty choices should degrade gracefully: %+v", resp)
	}
}

func TestCreateProvider_UnsupportedName(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Agents.Provider = "not-a-provider"
	if _, err := CreateProvider(cfg); err == nil {
		t.Fatalf("expected unsupported provider error")
	}
}

func TestValidateProviderConfig_MissingCredentials(t *testing.T) {
	cfg := config.DefaultConfig()
	if err := ValidateProviderConfig(cfg); err == nil {
		t.Fatalf("expected missing key error")
	}

	cfg.Providers.OpenRouter.APIKey = "sk-or-test"
	if err := ValidateProviderConfig(cfg); err != nil {
		t.Fatalf("ValidateProviderConfig: %v", err)
	}
}

func TestCreateProvider_OpenAI(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Agents.Provider = "openai"
	cfg.Providers.OpenAI.APIKey = "sk-test"

	p, err := CreateProvider(cfg)
	if err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}
	if p.GetDefaultModel() != defaultOpenAIModel {
		t.Fatalf("default model = %q", p.GetDefaultModel())
	}
}
