package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/concierged/concierge/pkg/agents"
	"github.com/concierged/concierge/pkg/bus"
	"github.com/concierged/concierge/pkg/convo"
	"github.com/concierged/concierge/pkg/intent"
	"github.com/concierged/concierge/pkg/logger"
	"github.com/concierged/concierge/pkg/router"
	"github.com/concierged/concierge/pkg/store"
)

// Dispatcher consumes inbound messages, routes each one, invokes the
// chosen agent, records the outcome, and publishes the reply.
type Dispatcher struct {
	bus      *bus.MessageBus
	router   *router.Router
	agents   *agents.Registry
	fallback agents.Agent
	running  atomic.Bool
}

func New(msgBus *bus.MessageBus, rtr *router.Router, registry *agents.Registry, fallback agents.Agent) *Dispatcher {
	return &Dispatcher{
		bus:      msgBus,
		router:   rtr,
		agents:   registry,
		fallback: fallback,
	}
}

func (d *Dispatcher) Run(ctx context.Context) error {
	d.running.Store(true)

	for d.running.Load() {
		select {
		case <-ctx.Done():
			return nil
		default:
			msg, ok := d.bus.ConsumeInbound(ctx)
			if !ok {
				continue
			}

			response, err := d.processMessage(ctx, msg)
			if err != nil {
				logger.ErrorCF("dispatch", "Message processing failed", map[string]interface{}{
					"channel": msg.Channel,
					"error":   err.Error(),
				})
				response = "Something went wrong handling that. Please try again."
			}

			if response != "" {
				d.bus.PublishOutbound(bus.OutboundMessage{
					Channel: msg.Channel,
					ChatID:  msg.ChatID,
					Content: response,
				})
			}
		}
	}

	return nil
}

func (d *Dispatcher) Stop() {
	d.running.Store(false)
}

// ProcessDirect handles one utterance synchronously, used by the CLI REPL.
func (d *Dispatcher) ProcessDirect(ctx context.Context, content string) (string, error) {
	return d.processMessage(ctx, bus.InboundMessage{
		Channel:  "cli",
		SenderID: "local-user",
		ChatID:   "direct",
		Content:  content,
	})
}

func (d *Dispatcher) processMessage(ctx context.Context, msg bus.InboundMessage) (string, error) {
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return "", nil
	}

	userID, err := store.ResolveUserKey(msg.SessionKey, msg.Channel, msg.SenderID)
	if err != nil {
		return "", fmt.Errorf("resolve user: %w", err)
	}

	logger.InfoCF("dispatch", "Processing message", map[string]interface{}{
		"channel":   msg.Channel,
		"chat_id":   msg.ChatID,
		"sender_id": msg.SenderID,
	})

	if response, handled := d.handleCommand(ctx, userID, content); handled {
		return response, nil
	}

	decision, err := d.router.Route(ctx, userID, content)
	if err != nil {
		return "", fmt.Errorf("route message: %w", err)
	}

	if decision.PendingOpened {
		return promptForMissing(decision), nil
	}

	if !decision.Routed() {
		if d.fallback == nil {
			return "I'm not sure how to help with that.", nil
		}
		return d.fallback.Handle(ctx, agents.Invocation{
			UserID:    userID,
			Utterance: content,
		})
	}

	reply, execErr := d.agents.Execute(ctx, decision.AgentName, agents.Invocation{
		UserID:    userID,
		Utterance: content,
		Action:    decision.Action,
		Slots:     decision.Slots,
	})

	// List queries were already logged by the router.
	if !decision.IsListQuery {
		result := convo.ResultSuccess
		if execErr != nil {
			result = convo.ResultFailure
		}
		if recErr := d.router.RecordOutcome(ctx, userID, decision.AgentName, decision.Action, result, nil); recErr != nil {
			logger.WarnCF("dispatch", "Failed to record outcome", map[string]interface{}{
				"agent": decision.AgentName,
				"error": recErr.Error(),
			})
		}
	}

	if execErr != nil {
		return "", fmt.Errorf("agent %s: %w", decision.AgentName, execErr)
	}
	return reply, nil
}

// promptForMissing asks the user for the first slot the agent cannot
// proceed without.
func promptForMissing(decision router.Decision) string {
	if len(decision.RequiredInfo) == 0 {
		return "Could you give me a bit more detail?"
	}
	switch decision.RequiredInfo[0] {
	case intent.SlotTime:
		return "What time should I set that for?"
	case intent.SlotTask:
		return "What should I add to your list?"
	case intent.SlotRecipients:
		return "Who should the email go to?"
	case intent.SlotDescription:
		return "What should the reminder say?"
	default:
		return fmt.Sprintf("I still need the %s. What should it be?", decision.RequiredInfo[0])
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, userID, content string) (string, bool) {
	if !strings.HasPrefix(content, "/") {
		return "", false
	}

	parts := strings.Fields(content)
	if len(parts) == 0 {
		return "", false
	}

	switch parts[0] {
	case "/reset":
		if err := d.router.Reset(ctx, userID); err != nil {
			return fmt.Sprintf("Failed to reset conversation: %v", err), true
		}
		return "Started a new conversation.", true

	case "/agents":
		names := d.agents.List()
		if len(names) == 0 {
			return "No agents registered.", true
		}
		return "Available agents: " + strings.Join(names, ", "), true

	case "/help":
		return strings.Join([]string{
			"Commands:",
			"  /reset  - start a new conversation",
			"  /agents - list available agents",
			"  /help   - this message",
		}, "\n"), true
	}

	return "", false
}
