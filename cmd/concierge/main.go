package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/chzyer/readline"
	"github.com/joho/godotenv"

	"github.com/concierged/concierge/pkg/agents"
	"github.com/concierged/concierge/pkg/bus"
	"github.com/concierged/concierge/pkg/channels"
	"github.com/concierged/concierge/pkg/config"
	"github.com/concierged/concierge/pkg/convo"
	"github.com/concierged/concierge/pkg/dispatch"
	"github.com/concierged/concierge/pkg/logger"
	"github.com/concierged/concierge/pkg/providers"
	"github.com/concierged/concierge/pkg/router"
	"github.com/concierged/concierge/pkg/store"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const (
	appName          = "concierge"
	sessionCacheSize = 128
)

// formatVersion returns the version string with optional git commit
func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// formatBuildInfo returns build time and go version info
func formatBuildInfo() (build string, goVer string) {
	if buildTime != "" {
		build = buildTime
	}
	goVer = goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return
}

func printVersion() {
	fmt.Printf("%s %s\n", appName, formatVersion())
	build, goVer := formatBuildInfo()
	if build != "" {
		fmt.Printf("  Build: %s\n", build)
	}
	if goVer != "" {
		fmt.Printf("  Go: %s\n", goVer)
	}
}

func main() {
	_ = godotenv.Load()

	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".concierge", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}

func validateRuntimeConfig(cfg *config.Config, requireDiscord bool) error {
	configPath := getConfigPath()
	if err := providers.ValidateProviderConfig(cfg); err != nil {
		return fmt.Errorf("%w (set it in %s or via environment)", err, configPath)
	}
	if requireDiscord && strings.TrimSpace(cfg.Channels.Discord.Token) == "" {
		return fmt.Errorf("channels.discord.token is required in %s or CONCIERGE_CHANNELS_DISCORD_TOKEN", configPath)
	}
	return nil
}

// appRuntime bundles everything a command needs to route and answer messages.
type appRuntime struct {
	cfg        *config.Config
	store      *store.SQLiteStore
	dispatcher *dispatch.Dispatcher
	bus        *bus.MessageBus
}

func buildRuntime(cfg *config.Config) (*appRuntime, error) {
	dbPath := filepath.Join(cfg.WorkspacePath(), "state", "concierge.db")
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	sessions, err := store.NewSessions(st, sessionCacheSize,
		convo.WithHistoryLimit(cfg.Router.HistoryLimit),
		convo.WithStickinessTurns(cfg.Router.StickinessTurns),
	)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init sessions: %w", err)
	}

	provider, err := providers.CreateProvider(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("create provider: %w", err)
	}

	llmOptions := map[string]interface{}{
		"max_tokens":  cfg.Agents.MaxTokens,
		"temperature": cfg.Agents.Temperature,
	}

	registry := agents.NewRegistry()
	registry.Register(agents.NewReminderAgent(st))
	registry.Register(agents.NewTodoAgent(st))
	registry.Register(agents.NewEmailAgent(provider, st, cfg.Agents.Model, llmOptions))
	fallback := agents.NewGeneralAgent(provider, cfg.Agents.Model, llmOptions)

	rtr := router.New(sessions, registry, router.Config{
		KeywordScanWindow: cfg.Router.KeywordScanWindow,
	})

	msgBus := bus.NewMessageBus()
	dispatcher := dispatch.New(msgBus, rtr, registry, fallback)

	logger.InfoCF("main", "Runtime initialized", map[string]interface{}{
		"agents":   registry.Count(),
		"provider": providers.ActiveProviderName(cfg),
		"db":       dbPath,
	})

	return &appRuntime{
		cfg:        cfg,
		store:      st,
		dispatcher: dispatcher,
		bus:        msgBus,
	}, nil
}

func (rt *appRuntime) Close() {
	rt.bus.Close()
	if err := rt.store.Close(); err != nil {
		logger.WarnCF("main", "Error closing state store", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func onboard() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
		fmt.Print("Overwrite? (y/n): ")
		reader := bufio.NewReader(os.Stdin)
		response, readErr := reader.ReadString('\n')
		if readErr != nil {
			fmt.Println("Aborted.")
			return nil
		}
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(configPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	workspace := cfg.WorkspacePath()
	if err := os.MkdirAll(filepath.Join(workspace, "state"), 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	fmt.Printf("%s is ready!\n", appName)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add your API key to", configPath)
	fmt.Println("     Get one at: https://openrouter.ai/keys")
	fmt.Println("  2. (Gateway mode) Add your Discord bot token to channels.discord.token")
	fmt.Printf("  3. Chat locally: %s chat -m \"remind me to stretch at 9am\"\n", appName)
	fmt.Printf("  4. Run gateway: %s gateway\n", appName)
	fmt.Printf("  5. Check readiness: %s status\n", appName)
	return nil
}

func chatCmd(message string, debug bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("Debug mode enabled")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := validateRuntimeConfig(cfg, false); err != nil {
		return err
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if strings.TrimSpace(message) != "" {
		response, err := rt.dispatcher.ProcessDirect(context.Background(), message)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s %s\n", appName, response)
		return nil
	}

	fmt.Printf("%s Interactive mode (Ctrl+C to exit)\n\n", appName)
	interactiveMode(rt.dispatcher)
	return nil
}

func interactiveMode(dispatcher *dispatch.Dispatcher) {
	prompt := fmt.Sprintf("%s You: ", appName)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".concierge_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})

	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveMode(dispatcher)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return
		}

		response, err := dispatcher.ProcessDirect(context.Background(), input)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		fmt.Printf("\n%s %s\n\n", appName, response)
	}
}

func simpleInteractiveMode(dispatcher *dispatch.Dispatcher) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("%s You: ", appName)
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return
		}

		response, err := dispatcher.ProcessDirect(context.Background(), input)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		fmt.Printf("\n%s %s\n\n", appName, response)
	}
}

func gatewayCmd(debug bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("Debug mode enabled")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := validateRuntimeConfig(cfg, true); err != nil {
		return err
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	channelManager, err := channels.NewManager(cfg, rt.bus)
	if err != nil {
		return fmt.Errorf("create channel manager: %w", err)
	}

	enabledChannels := channelManager.GetEnabledChannels()
	fmt.Printf("Channels enabled: %s\n", strings.Join(enabledChannels, ", "))
	fmt.Println("Press Ctrl+C to stop")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := channelManager.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}

	go func() {
		if err := rt.dispatcher.Run(ctx); err != nil {
			logger.ErrorCF("main", "Dispatcher stopped with error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()
	rt.dispatcher.Stop()
	if err := channelManager.StopAll(context.Background()); err != nil {
		logger.WarnCF("main", "Error stopping channels", map[string]interface{}{
			"error": err.Error(),
		})
	}
	logger.Sync()
	fmt.Println("Gateway stopped")
	return nil
}

func statusCmd() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	configPath := getConfigPath()

	fmt.Printf("%s Status\n", appName)
	fmt.Printf("Version: %s\n", formatVersion())
	build, _ := formatBuildInfo()
	if build != "" {
		fmt.Printf("Build: %s\n", build)
	}
	fmt.Println()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config:", configPath, "ok")
	} else {
		fmt.Println("Config:", configPath, "missing")
	}

	workspace := cfg.WorkspacePath()
	if _, err := os.Stat(workspace); err == nil {
		fmt.Println("Workspace:", workspace, "ok")
	} else {
		fmt.Println("Workspace:", workspace, "missing")
	}
	stateDB := filepath.Join(workspace, "state", "concierge.db")
	if _, err := os.Stat(stateDB); err == nil {
		fmt.Println("State DB:", stateDB, "ok")
	} else {
		fmt.Println("State DB:", stateDB, "not initialized")
	}

	status := func(ready bool) string {
		if ready {
			return "ok"
		}
		return "not set"
	}

	fmt.Printf("Provider: %s\n", providers.ActiveProviderName(cfg))
	fmt.Printf("Model: %s\n", cfg.Agents.Model)

	apiReady := strings.TrimSpace(cfg.GetAPIKey()) != ""
	discordReady := strings.TrimSpace(cfg.Channels.Discord.Token) != ""

	fmt.Println("API key:", status(apiReady))
	fmt.Println("Discord token:", status(discordReady))
	fmt.Println("Chat ready:", status(apiReady))
	fmt.Println("Gateway ready:", status(apiReady && discordReady))
	return nil
}
