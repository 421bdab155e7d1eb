package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/concierged/concierge/pkg/convo"
	"github.com/concierged/concierge/pkg/intent"
	"github.com/concierged/concierge/pkg/logger"
	"github.com/concierged/concierge/pkg/store"
)

// Well-known agent names the dispatcher routes to.
const (
	ReminderAgentName = "reminder_agent"
	TodoAgentName     = "todo_agent"
	EmailAgentName    = "email_agent"
)

// domainPrecedence is the fixed evaluation order: todo keyword sets are
// more specific and suppress reminder false-positives, so todo wins ties.
var domainPrecedence = []intent.Domain{
	intent.DomainTodo,
	intent.DomainReminder,
	intent.DomainMessage,
}

func agentFor(domain intent.Domain) string {
	switch domain {
	case intent.DomainReminder:
		return ReminderAgentName
	case intent.DomainTodo:
		return TodoAgentName
	case intent.DomainMessage:
		return EmailAgentName
	}
	return ""
}

// Directory answers which agents are currently available.
type Directory interface {
	Has(name string) bool
}

// Decision is the outcome of routing one utterance.
type Decision struct {
	AgentName     string
	Action        string
	Slots         map[string]string
	IsListQuery   bool
	PendingOpened bool
	RequiredInfo  []string
}

// Routed reports whether a specialized agent was chosen; when false the
// caller falls back to a general conversational response.
func (d Decision) Routed() bool {
	return d.AgentName != ""
}

// Config carries the router tunables.
type Config struct {
	// KeywordScanWindow is how many recent interactions are scanned when a
	// context keyword matches.
	KeywordScanWindow int
}

// Router turns (utterance, user) pairs into routing decisions and keeps
// each user's ConversationContext coherent across turns.
type Router struct {
	sessions *store.Sessions
	agents   Directory
	cfg      Config
}

func New(sessions *store.Sessions, agents Directory, cfg Config) *Router {
	if cfg.KeywordScanWindow <= 0 {
		cfg.KeywordScanWindow = 3
	}
	return &Router{sessions: sessions, agents: agents, cfg: cfg}
}

// Route decides which agent should handle the utterance and mutates the
// user's context accordingly. The context is persisted before returning;
// on a persistence failure or an internal panic the in-memory context is
// rolled back to its last persisted snapshot and the error surfaces.
func (r *Router) Route(ctx context.Context, userID, utterance string) (decision Decision, err error) {
	c, release, err := r.sessions.Acquire(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	defer release()

	lastGood := c.Snapshot()

	// A context parked in ERROR by a previous recovered failure rejoins the
	// state machine on the next turn; a failed persist below rolls this back.
	if c.State == convo.StateError {
		_ = c.SetState(convo.StateIdle)
	}

	defer func() {
		if rec := recover(); rec != nil {
			rollback(c, lastGood)
			_ = c.SetState(convo.StateError)
			decision = Decision{}
			err = fmt.Errorf("routing panic for %s: %v", userID, rec)
		}
	}()

	decision = r.decide(c, utterance)

	if err := r.sessions.Persist(ctx, c); err != nil {
		rollback(c, lastGood)
		return Decision{}, err
	}

	logger.DebugCF("router", "Routed utterance", map[string]interface{}{
		"user_id": userID,
		"agent":   decision.AgentName,
		"action":  decision.Action,
		"list":    decision.IsListQuery,
		"pending": decision.PendingOpened,
	})
	return decision, nil
}

// decide implements the fixed priority order; the first matching rule
// wins.
func (r *Router) decide(c *convo.Context, utterance string) Decision {
	det := intent.Detect(utterance)

	// Rule 1: explicit list queries bypass slot-filling entirely.
	for _, domain := range domainPrecedence {
		res := det.ByDomain(domain)
		if !res.Matched || !strings.HasPrefix(res.Details.Action, "list_") {
			continue
		}
		agent := agentFor(domain)
		if !r.agents.Has(agent) {
			continue
		}
		c.LastIntent = res.Details.Action
		c.RecordInteraction(agent, res.Details.Action, convo.ResultSuccess, nil)
		return Decision{
			AgentName:   agent,
			Action:      res.Details.Action,
			Slots:       res.Details.Slots,
			IsListQuery: true,
		}
	}

	// Rule 2: a fresh domain match, todo > reminder > message.
	for _, domain := range domainPrecedence {
		res := det.ByDomain(domain)
		if !res.Matched {
			continue
		}
		agent := agentFor(domain)
		if !r.agents.Has(agent) {
			continue
		}

		c.Topic = string(domain)
		c.LastIntent = res.Details.Action
		c.SetActiveAgent(agent)
		c.AddKeywords(intent.DomainKeywords(domain)...)

		missing := missingSlots(domain, res.Details)
		if len(missing) > 0 {
			c.OpenPending(convo.PendingRequest{
				RequestType:  res.Details.Action,
				AgentName:    agent,
				RequiredInfo: missing,
				Context:      res.Details.Slots,
			})
			return Decision{
				AgentName:     agent,
				Action:        res.Details.Action,
				Slots:         res.Details.Slots,
				PendingOpened: true,
				RequiredInfo:  missing,
			}
		}

		_ = c.SetState(convo.StateAgentActive)
		return Decision{
			AgentName: agent,
			Action:    res.Details.Action,
			Slots:     res.Details.Slots,
		}
	}

	// Rule 3: an open pending request on the active agent claims the turn;
	// short follow-ups ("9am") carry no domain keywords of their own. A
	// follow-up that still supplies nothing extractable re-prompts instead
	// of invoking the agent with a hole in its slots.
	if c.ActiveAgent != "" {
		if req, ok := c.Pending(c.ActiveAgent); ok {
			c.SetActiveAgent(c.ActiveAgent) // rearm stickiness
			slots := fillSlots(req, utterance)
			if missing := missingFrom(req.RequiredInfo, slots); len(missing) > 0 {
				c.OpenPending(convo.PendingRequest{
					RequestType:  req.RequestType,
					AgentName:    req.AgentName,
					RequiredInfo: missing,
					Context:      slots,
				})
				return Decision{
					AgentName:     c.ActiveAgent,
					Action:        req.RequestType,
					Slots:         slots,
					PendingOpened: true,
					RequiredInfo:  missing,
				}
			}
			return Decision{
				AgentName: c.ActiveAgent,
				Action:    req.RequestType,
				Slots:     slots,
			}
		}
	}

	// Rule 4: context keywords bias toward the most recent matching
	// interaction.
	if c.MatchesKeyword(utterance) {
		for _, past := range c.Recent(r.cfg.KeywordScanWindow) {
			if r.agents.Has(past.AgentName) {
				r.touchOrBurn(c, past.AgentName)
				return continuityDecision(c, past.AgentName, past.Action, utterance)
			}
		}
	}

	// Rule 5: short-lived stickiness for natural follow-ups.
	if c.ActiveAgent != "" {
		if recent := c.Recent(1); len(recent) == 1 && recent[0].AgentName == c.ActiveAgent {
			c.SetActiveAgent(c.ActiveAgent)
			return continuityDecision(c, c.ActiveAgent, recent[0].Action, utterance)
		}
	}

	// Rule 6: explicit-mention fallback. Todo keywords outrank reminder
	// keywords for the same reason as rule 2; the clarification patterns
	// recover from a prior misroute the user is correcting.
	hasTodoKeyword := intent.ContainsAnyKeyword(utterance, intent.TodoKeywords)
	if hasTodoKeyword && r.agents.Has(TodoAgentName) {
		r.touchOrBurn(c, TodoAgentName)
		return continuityDecision(c, TodoAgentName, intent.ActionAddTodo, utterance)
	}
	if !hasTodoKeyword && intent.ContainsAnyKeyword(utterance, intent.ReminderKeywords) && r.agents.Has(ReminderAgentName) {
		r.touchOrBurn(c, ReminderAgentName)
		return continuityDecision(c, ReminderAgentName, intent.ActionSetReminder, utterance)
	}
	for _, re := range intent.ClarificationPatterns {
		if re.MatchString(utterance) && r.agents.Has(TodoAgentName) {
			r.touchOrBurn(c, TodoAgentName)
			return continuityDecision(c, TodoAgentName, intent.ActionAddTodo, utterance)
		}
	}

	// Rule 7: nothing specialized; burn one turn of stickiness.
	c.TouchStickiness()
	return Decision{}
}

// touchOrBurn rearms stickiness when the turn lands on the active agent
// and burns a turn otherwise.
func (r *Router) touchOrBurn(c *convo.Context, agent string) {
	if agent == c.ActiveAgent && agent != "" {
		c.SetActiveAgent(agent)
		return
	}
	c.TouchStickiness()
}

// continuityDecision finishes a rule reached without a fresh intent match.
// The utterance alone supplies the slots; when the action's required slot
// is still absent a pending request is opened so the next turn can fill it,
// rather than invoking the agent with incomplete input.
func continuityDecision(c *convo.Context, agent, action, utterance string) Decision {
	slots := utteranceSlots(action, utterance)
	missing := missingFrom(requiredSlot(action), slots)
	if len(missing) == 0 {
		return Decision{AgentName: agent, Action: action, Slots: slots}
	}

	c.SetActiveAgent(agent)
	c.OpenPending(convo.PendingRequest{
		RequestType:  action,
		AgentName:    agent,
		RequiredInfo: missing,
		Context:      slots,
	})
	return Decision{
		AgentName:     agent,
		Action:        action,
		Slots:         slots,
		PendingOpened: true,
		RequiredInfo:  missing,
	}
}

// utteranceSlots extracts whatever an action's slots can be parsed out of
// a bare utterance, with no rule-table match to lean on.
func utteranceSlots(action, utterance string) map[string]string {
	slots := make(map[string]string)
	switch action {
	case intent.ActionSetReminder:
		if tm, ok := intent.ExtractTime(utterance); ok {
			slots[intent.SlotTime] = tm
		}
	case intent.ActionAddTodo:
		if task, ok := intent.ExtractTask(utterance); ok {
			slots[intent.SlotTask] = task
		}
		if prio, ok := intent.ExtractPriority(utterance); ok {
			slots[intent.SlotPriority] = prio
		}
	}
	return slots
}

// requiredSlot names the slot an action cannot execute without. List
// queries and free-form email actions need none.
func requiredSlot(action string) []string {
	switch action {
	case intent.ActionSetReminder:
		return []string{intent.SlotTime}
	case intent.ActionAddTodo:
		return []string{intent.SlotTask}
	case intent.ActionComposeEmail:
		return []string{intent.SlotRecipients}
	}
	return nil
}

// missingFrom returns the required slot names not yet filled.
func missingFrom(required []string, slots map[string]string) []string {
	var missing []string
	for _, name := range required {
		if strings.TrimSpace(slots[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// missingSlots names the required slot a domain cannot proceed without.
func missingSlots(domain intent.Domain, d intent.Details) []string {
	switch domain {
	case intent.DomainReminder:
		if !d.Has(intent.SlotTime) {
			return []string{intent.SlotTime}
		}
	case intent.DomainTodo:
		if !d.Has(intent.SlotTask) {
			return []string{intent.SlotTask}
		}
	case intent.DomainMessage:
		if d.Action == intent.ActionComposeEmail && !d.Has(intent.SlotRecipients) {
			return []string{intent.SlotRecipients}
		}
	}
	return nil
}

// fillSlots merges the pending request's captured context with whatever
// the follow-up utterance supplies for the still-missing slots.
func fillSlots(req convo.PendingRequest, utterance string) map[string]string {
	slots := make(map[string]string, len(req.Context)+len(req.RequiredInfo))
	for k, v := range req.Context {
		slots[k] = v
	}
	for _, name := range req.RequiredInfo {
		switch name {
		case intent.SlotTime:
			if tm, ok := intent.ExtractTime(utterance); ok {
				slots[name] = tm
			}
		case intent.SlotTask:
			if task, ok := intent.ExtractTask(utterance); ok {
				slots[name] = task
			}
		case intent.SlotPriority:
			if prio, ok := intent.ExtractPriority(utterance); ok {
				slots[name] = prio
			}
		default:
			// Free-text slots (description, recipients) take the raw
			// follow-up verbatim.
			if trimmed := strings.TrimSpace(utterance); trimmed != "" {
				slots[name] = trimmed
			}
		}
	}
	return slots
}

// RecordOutcome appends the completed invocation to the interaction log
// and, on success, resolves the agent's pending request.
func (r *Router) RecordOutcome(ctx context.Context, userID, agentName, action, result string, metadata map[string]string) error {
	c, release, err := r.sessions.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	lastGood := c.Snapshot()
	c.RecordInteraction(agentName, action, result, metadata)
	if result == convo.ResultSuccess {
		c.ResolvePending(agentName)
	}

	if err := r.sessions.Persist(ctx, c); err != nil {
		rollback(c, lastGood)
		return err
	}
	return nil
}

// Reset starts a new conversation for the user, clearing everything except
// identity.
func (r *Router) Reset(ctx context.Context, userID string) error {
	c, release, err := r.sessions.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	lastGood := c.Snapshot()
	c.Reset()
	if err := r.sessions.Persist(ctx, c); err != nil {
		rollback(c, lastGood)
		return err
	}
	return nil
}

// rollback restores a context in place from its last persisted snapshot.
func rollback(c *convo.Context, snap convo.Snapshot) {
	_ = c.Restore(snap)
}
