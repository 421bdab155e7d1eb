package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Router    RouterConfig    `json:"router"`
	Agents    AgentsConfig    `json:"agents"`
	Channels  ChannelsConfig  `json:"channels"`
	Providers ProvidersConfig `json:"providers"`
	mu        sync.RWMutex
}

// RouterConfig tunes the dispatcher's continuity behavior.
type RouterConfig struct {
	StickinessTurns   int `json:"stickiness_turns" env:"CONCIERGE_ROUTER_STICKINESS_TURNS"`
	HistoryLimit      int `json:"history_limit" env:"CONCIERGE_ROUTER_HISTORY_LIMIT"`
	KeywordScanWindow int `json:"keyword_scan_window" env:"CONCIERGE_ROUTER_KEYWORD_SCAN_WINDOW"`
}

type AgentsConfig struct {
	Workspace   string  `json:"workspace" env:"CONCIERGE_AGENTS_WORKSPACE"`
	Provider    string  `json:"provider" env:"CONCIERGE_AGENTS_PROVIDER"`
	Model       string  `json:"model" env:"CONCIERGE_AGENTS_MODEL"`
	MaxTokens   int     `json:"max_tokens" env:"CONCIERGE_AGENTS_MAX_TOKENS"`
	Temperature float64 `json:"temperature" env:"CONCIERGE_AGENTS_TEMPERATURE"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

type DiscordConfig struct {
	Token     string              `json:"token" env:"CONCIERGE_CHANNELS_DISCORD_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"CONCIERGE_CHANNELS_DISCORD_ALLOW_FROM"`
}

type ProvidersConfig struct {
	OpenRouter OpenRouterConfig `json:"openrouter"`
	OpenAI     OpenAIConfig     `json:"openai"`
}

type OpenRouterConfig struct {
	APIKey  string `json:"api_key" env:"CONCIERGE_PROVIDERS_OPENROUTER_API_KEY"`
	APIBase string `json:"api_base" env:"CONCIERGE_PROVIDERS_OPENROUTER_API_BASE"`
	Proxy   string `json:"proxy,omitempty" env:"CONCIERGE_PROVIDERS_OPENROUTER_PROXY"`
}

type OpenAIConfig struct {
	APIKey  string `json:"api_key" env:"CONCIERGE_PROVIDERS_OPENAI_API_KEY"`
	APIBase string `json:"api_base" env:"CONCIERGE_PROVIDERS_OPENAI_API_BASE"`
	Proxy   string `json:"proxy,omitempty" env:"CONCIERGE_PROVIDERS_OPENAI_PROXY"`
}

func DefaultConfig() *Config {
	return &Config{
		Router: RouterConfig{
			StickinessTurns:   3,
			HistoryLimit:      50,
			KeywordScanWindow: 3,
		},
		Agents: AgentsConfig{
			Workspace:   "~/.concierge/workspace",
			Provider:    "openrouter",
			Model:       "openai/gpt-5.2",
			MaxTokens:   2048,
			Temperature: 0.7,
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Token:     "",
				AllowFrom: FlexibleStringSlice{},
			},
		},
		Providers: ProvidersConfig{},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Agents.Workspace)
}

func (c *Config) GetAPIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Providers.OpenRouter.APIKey
}

func (c *Config) GetAPIBase() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Providers.OpenRouter.APIBase != "" {
		return c.Providers.OpenRouter.APIBase
	}
	return "https://openrouter.ai/api/v1"
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
