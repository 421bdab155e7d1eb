package convo

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// DefaultHistoryLimit caps the interaction log; the oldest entry is
	// evicted first.
	DefaultHistoryLimit = 50
	// DefaultStickinessTurns is how many routed turns an active agent
	// survives without being touched again.
	DefaultStickinessTurns = 3
)

// Interaction results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// PendingRequest is an incomplete multi-turn task awaiting missing slots.
// At most one per agent name may exist at a time; opening a second one for
// the same agent replaces the first (last-write-wins).
type PendingRequest struct {
	RequestType  string            `json:"request_type"`
	AgentName    string            `json:"agent_name"`
	RequiredInfo []string          `json:"required_info"`
	Context      map[string]string `json:"context,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	LastUpdated  time.Time         `json:"last_updated"`
}

// Interaction is an immutable log record of one completed agent invocation.
type Interaction struct {
	AgentName string            `json:"agent_name"`
	Action    string            `json:"action"`
	Result    string            `json:"result"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Context is the per-user aggregate the router reads and mutates. It is not
// safe for concurrent use; the session manager serializes access per user.
type Context struct {
	UserID               string
	State                State
	ActiveAgent          string
	ActiveAgentTurnsLeft int
	PendingRequests      []PendingRequest
	Topic                string
	LastIntent           string
	Keywords             map[string]struct{}
	History              []Interaction
	StartedAt            time.Time
	LastActivity         time.Time

	historyLimit    int
	stickinessTurns int
}

// Option tunes a Context at construction/restore time.
type Option func(*Context)

func WithHistoryLimit(n int) Option {
	return func(c *Context) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

func WithStickinessTurns(n int) Option {
	return func(c *Context) {
		if n > 0 {
			c.stickinessTurns = n
		}
	}
}

func New(userID string, opts ...Option) *Context {
	now := time.Now().UTC()
	c := &Context{
		UserID:          userID,
		State:           StateIdle,
		Keywords:        make(map[string]struct{}),
		StartedAt:       now,
		LastActivity:    now,
		historyLimit:    DefaultHistoryLimit,
		stickinessTurns: DefaultStickinessTurns,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Context) touch() {
	c.LastActivity = time.Now().UTC()
}

// SetState moves the state machine, rejecting illegal edges.
func (c *Context) SetState(to State) error {
	if !canTransition(c.State, to) {
		return &ErrBadTransition{From: c.State, To: to}
	}
	c.State = to
	c.touch()
	return nil
}

// SetActiveAgent marks an agent sticky and rearms the turn counter.
func (c *Context) SetActiveAgent(name string) {
	c.ActiveAgent = name
	c.ActiveAgentTurnsLeft = c.stickinessTurns
	c.touch()
}

// TouchStickiness burns one turn of active-agent stickiness. When the
// counter hits zero the agent is dropped and, if nothing is pending, the
// conversation goes back to IDLE.
func (c *Context) TouchStickiness() {
	if c.ActiveAgent == "" {
		return
	}
	c.ActiveAgentTurnsLeft--
	if c.ActiveAgentTurnsLeft > 0 {
		return
	}
	c.ActiveAgent = ""
	c.ActiveAgentTurnsLeft = 0
	if len(c.PendingRequests) == 0 && c.State == StateAgentActive {
		_ = c.SetState(StateIdle)
	}
	c.touch()
}

// OpenPending registers an incomplete request. An existing request for the
// same agent is replaced; this is the last-write-wins invariant, not an
// accidental overwrite.
func (c *Context) OpenPending(req PendingRequest) {
	now := time.Now().UTC()
	req.CreatedAt = now
	req.LastUpdated = now

	replaced := false
	for i := range c.PendingRequests {
		if c.PendingRequests[i].AgentName == req.AgentName {
			req.CreatedAt = c.PendingRequests[i].CreatedAt
			c.PendingRequests[i] = req
			replaced = true
			break
		}
	}
	if !replaced {
		c.PendingRequests = append(c.PendingRequests, req)
	}
	_ = c.SetState(StateWaitingForInput)
}

// Pending returns the open request for an agent, if any.
func (c *Context) Pending(agentName string) (PendingRequest, bool) {
	for _, req := range c.PendingRequests {
		if req.AgentName == agentName {
			return req, true
		}
	}
	return PendingRequest{}, false
}

// ResolvePending removes the open request for an agent. When the last one
// goes, WAITING_FOR_INPUT advances to AGENT_ACTIVE and the active agent is
// deliberately retained for continuity.
func (c *Context) ResolvePending(agentName string) bool {
	for i, req := range c.PendingRequests {
		if req.AgentName != agentName {
			continue
		}
		c.PendingRequests = append(c.PendingRequests[:i], c.PendingRequests[i+1:]...)
		if len(c.PendingRequests) == 0 && c.State == StateWaitingForInput {
			_ = c.SetState(StateAgentActive)
		}
		c.touch()
		return true
	}
	return false
}

// AddKeywords extends the routing-bias keyword set.
func (c *Context) AddKeywords(keywords ...string) {
	if c.Keywords == nil {
		c.Keywords = make(map[string]struct{})
	}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			c.Keywords[kw] = struct{}{}
		}
	}
}

// MatchesKeyword reports whether the utterance contains any context
// keyword, case-insensitive substring match.
func (c *Context) MatchesKeyword(utterance string) bool {
	lower := strings.ToLower(utterance)
	for kw := range c.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// RecordInteraction appends to the capped interaction log, evicting the
// oldest entry beyond the limit.
func (c *Context) RecordInteraction(agentName, action, result string, metadata map[string]string) {
	c.History = append(c.History, Interaction{
		AgentName: agentName,
		Action:    action,
		Result:    result,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	})
	if limit := c.historyLimit; len(c.History) > limit {
		c.History = c.History[len(c.History)-limit:]
	}
	c.touch()
}

// Recent returns up to n interactions, newest first.
func (c *Context) Recent(n int) []Interaction {
	if n <= 0 || len(c.History) == 0 {
		return nil
	}
	if n > len(c.History) {
		n = len(c.History)
	}
	out := make([]Interaction, 0, n)
	for i := len(c.History) - 1; i >= len(c.History)-n; i-- {
		out = append(out, c.History[i])
	}
	return out
}

// Reset clears everything except identity, for an explicit "start new
// conversation".
func (c *Context) Reset() {
	now := time.Now().UTC()
	c.State = StateIdle
	c.ActiveAgent = ""
	c.ActiveAgentTurnsLeft = 0
	c.PendingRequests = nil
	c.Topic = ""
	c.LastIntent = ""
	c.Keywords = make(map[string]struct{})
	c.History = nil
	c.StartedAt = now
	c.LastActivity = now
}

// Snapshot is the flat persisted form of a Context. State is a plain
// string and timestamps are RFC 3339; schema stability across the five
// state values is the only hard compatibility requirement.
type Snapshot struct {
	UserID               string           `json:"user_id"`
	State                string           `json:"state"`
	ActiveAgent          string           `json:"active_agent,omitempty"`
	ActiveAgentTurnsLeft int              `json:"active_agent_turns_left"`
	PendingRequests      []PendingRequest `json:"pending_requests,omitempty"`
	Topic                string           `json:"conversation_topic,omitempty"`
	LastIntent           string           `json:"last_user_intent,omitempty"`
	Keywords             []string         `json:"context_keywords,omitempty"`
	History              []Interaction    `json:"interaction_history,omitempty"`
	StartedAt            time.Time        `json:"conversation_start_time"`
	LastActivity         time.Time        `json:"last_activity"`
}

// Snapshot produces the persisted form. Keywords are sorted so round-trips
// compare equal.
func (c *Context) Snapshot() Snapshot {
	keywords := make([]string, 0, len(c.Keywords))
	for kw := range c.Keywords {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)

	pending := make([]PendingRequest, len(c.PendingRequests))
	copy(pending, c.PendingRequests)
	history := make([]Interaction, len(c.History))
	copy(history, c.History)

	return Snapshot{
		UserID:               c.UserID,
		State:                string(c.State),
		ActiveAgent:          c.ActiveAgent,
		ActiveAgentTurnsLeft: c.ActiveAgentTurnsLeft,
		PendingRequests:      pending,
		Topic:                c.Topic,
		LastIntent:           c.LastIntent,
		Keywords:             keywords,
		History:              history,
		StartedAt:            c.StartedAt,
		LastActivity:         c.LastActivity,
	}
}

// Restore rebuilds the Context in place from a snapshot, keeping the
// configured limits. Used to roll back after a failed persist.
func (c *Context) Restore(snap Snapshot) error {
	restored, err := FromSnapshot(snap, WithHistoryLimit(c.historyLimit), WithStickinessTurns(c.stickinessTurns))
	if err != nil {
		return err
	}
	*c = *restored
	return nil
}

// FromSnapshot rebuilds a Context, validating the state value.
func FromSnapshot(snap Snapshot, opts ...Option) (*Context, error) {
	state := State(snap.State)
	if !state.Valid() {
		return nil, fmt.Errorf("unknown conversation state %q", snap.State)
	}

	c := New(snap.UserID, opts...)
	c.State = state
	c.ActiveAgent = snap.ActiveAgent
	c.ActiveAgentTurnsLeft = snap.ActiveAgentTurnsLeft
	c.PendingRequests = append([]PendingRequest(nil), snap.PendingRequests...)
	c.Topic = snap.Topic
	c.LastIntent = snap.LastIntent
	c.AddKeywords(snap.Keywords...)
	c.History = append([]Interaction(nil), snap.History...)
	if limit := c.historyLimit; len(c.History) > limit {
		c.History = c.History[len(c.History)-limit:]
	}
	if !snap.StartedAt.IsZero() {
		c.StartedAt = snap.StartedAt
	}
	if !snap.LastActivity.IsZero() {
		c.LastActivity = snap.LastActivity
	}
	return c, nil
}
