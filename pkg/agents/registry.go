package agents

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/concierged/concierge/pkg/logger"
)

type Registry struct {
	agents map[string]Agent
	mu     sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]Agent),
	}
}

func (r *Registry) Register(agent Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.Name()] = agent
}

func (r *Registry) Get(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[name]
	return agent, ok
}

// Has satisfies the router's agent directory.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Execute dispatches one invocation to a named agent with timing logs.
func (r *Registry) Execute(ctx context.Context, name string, inv Invocation) (string, error) {
	agent, ok := r.Get(name)
	if !ok {
		logger.ErrorCF("agents", "Agent not found", map[string]interface{}{
			"agent": name,
		})
		return "", fmt.Errorf("agent %q not found", name)
	}

	logger.InfoCF("agents", "Agent invocation started", map[string]interface{}{
		"agent":  name,
		"action": inv.Action,
		"user":   inv.UserID,
	})

	start := time.Now()
	reply, err := agent.Handle(ctx, inv)
	duration := time.Since(start)

	if err != nil {
		logger.ErrorCF("agents", "Agent invocation failed", map[string]interface{}{
			"agent":       name,
			"action":      inv.Action,
			"duration_ms": duration.Milliseconds(),
			"error":       err.Error(),
		})
		return "", err
	}

	logger.InfoCF("agents", "Agent invocation completed", map[string]interface{}{
		"agent":        name,
		"action":       inv.Action,
		"duration_ms":  duration.Milliseconds(),
		"reply_length": len(reply),
	})
	return reply, nil
}
