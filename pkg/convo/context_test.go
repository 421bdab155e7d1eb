package convo

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
)

func TestStateTransitions(t *testing.T) {
	c := New("u1")
	if c.State != StateIdle {
		t.Fatalf("new context state = %s, want IDLE", c.State)
	}

	if err := c.SetState(StateWaitingForInput); err != nil {
		t.Fatalf("IDLE -> WAITING_FOR_INPUT: %v", err)
	}
	if err := c.SetState(StateAgentActive); err != nil {
		t.Fatalf("WAITING_FOR_INPUT -> AGENT_ACTIVE: %v", err)
	}
	if err := c.SetState(StateIdle); err != nil {
		t.Fatalf("AGENT_ACTIVE -> IDLE: %v", err)
	}

	if err := c.SetState(StateMultiAgent); err == nil {
		t.Error("IDLE -> MULTI_AGENT should be rejected")
	}
	if err := c.SetState(StateError); err != nil {
		t.Errorf("any -> ERROR should be allowed: %v", err)
	}
	if err := c.SetState(StateWaitingForInput); err == nil {
		t.Error("ERROR -> WAITING_FOR_INPUT should be rejected")
	}
}

func TestOpenPending_LastWriteWinsPerAgent(t *testing.T) {
	c := New("u1")
	c.OpenPending(PendingRequest{
		RequestType:  "set_reminder",
		AgentName:    "reminder_agent",
		RequiredInfo: []string{"time"},
	})
	c.OpenPending(PendingRequest{
		RequestType:  "set_reminder",
		AgentName:    "reminder_agent",
		RequiredInfo: []string{"time", "description"},
	})

	if len(c.PendingRequests) != 1 {
		t.Fatalf("pending count = %d, want 1 (replacement)", len(c.PendingRequests))
	}
	req, ok := c.Pending("reminder_agent")
	if !ok {
		t.Fatal("expected open pending request")
	}
	if len(req.RequiredInfo) != 2 {
		t.Errorf("RequiredInfo = %v, want the replacing request's slots", req.RequiredInfo)
	}
	if c.State != StateWaitingForInput {
		t.Errorf("state = %s, want WAITING_FOR_INPUT", c.State)
	}
}

func TestResolvePending_RetainsActiveAgent(t *testing.T) {
	c := New("u1")
	c.SetActiveAgent("reminder_agent")
	c.OpenPending(PendingRequest{RequestType: "set_reminder", AgentName: "reminder_agent", RequiredInfo: []string{"time"}})

	if !c.ResolvePending("reminder_agent") {
		t.Fatal("ResolvePending returned false")
	}
	if len(c.PendingRequests) != 0 {
		t.Errorf("pending count = %d, want 0", len(c.PendingRequests))
	}
	if c.State != StateAgentActive {
		t.Errorf("state = %s, want AGENT_ACTIVE", c.State)
	}
	if c.ActiveAgent != "reminder_agent" {
		t.Errorf("active agent = %q, want retained", c.ActiveAgent)
	}

	if c.ResolvePending("reminder_agent") {
		t.Error("second resolve should return false")
	}
}

func TestTouchStickiness_ExpiresAfterConfiguredTurns(t *testing.T) {
	c := New("u1", WithStickinessTurns(2))
	c.SetActiveAgent("todo_agent")
	if err := c.SetState(StateAgentActive); err != nil {
		t.Fatal(err)
	}

	c.TouchStickiness()
	if c.ActiveAgent != "todo_agent" {
		t.Fatal("agent dropped one turn early")
	}
	c.TouchStickiness()
	if c.ActiveAgent != "" {
		t.Errorf("active agent = %q, want expired", c.ActiveAgent)
	}
	if c.State != StateIdle {
		t.Errorf("state = %s, want IDLE after expiry", c.State)
	}

	// Re-touching rearms the counter.
	c.SetActiveAgent("todo_agent")
	if c.ActiveAgentTurnsLeft != 2 {
		t.Errorf("turns left = %d, want 2 after rearm", c.ActiveAgentTurnsLeft)
	}
}

func TestRecordInteraction_HistoryCapFIFO(t *testing.T) {
	c := New("u1")
	for i := 0; i < DefaultHistoryLimit+10; i++ {
		c.RecordInteraction("todo_agent", fmt.Sprintf("action-%d", i), ResultSuccess, nil)
	}

	if len(c.History) != DefaultHistoryLimit {
		t.Fatalf("history length = %d, want %d", len(c.History), DefaultHistoryLimit)
	}
	if c.History[0].Action != "action-10" {
		t.Errorf("oldest entry = %q, want action-10 (FIFO eviction)", c.History[0].Action)
	}
	if c.History[len(c.History)-1].Action != fmt.Sprintf("action-%d", DefaultHistoryLimit+9) {
		t.Errorf("newest entry = %q", c.History[len(c.History)-1].Action)
	}
}

func TestFromSnapshot_TrimsHistoryToLimit(t *testing.T) {
	c := New("u1")
	for i := 0; i < 8; i++ {
		c.RecordInteraction("todo_agent", fmt.Sprintf("action-%d", i), ResultSuccess, nil)
	}

	// A snapshot written under a larger limit must honor a smaller one on
	// restore, newest entries kept.
	restored, err := FromSnapshot(c.Snapshot(), WithHistoryLimit(3))
	if err != nil {
		t.Fatalf("FromSnapshot: %v", err)
	}
	if len(restored.History) != 3 {
		t.Fatalf("history length = %d, want 3", len(restored.History))
	}
	if restored.History[0].Action != "action-5" || restored.History[2].Action != "action-7" {
		t.Errorf("kept entries = %q..%q, want action-5..action-7",
			restored.History[0].Action, restored.History[2].Action)
	}
}

func TestRecent_NewestFirst(t *testing.T) {
	c := New("u1")
	c.RecordInteraction("a", "one", ResultSuccess, nil)
	c.RecordInteraction("b", "two", ResultSuccess, nil)
	c.RecordInteraction("c", "three", ResultFailure, nil)

	recent := c.Recent(2)
	if len(recent) != 2 || recent[0].AgentName != "c" || recent[1].AgentName != "b" {
		t.Errorf("Recent(2) = %+v, want newest first", recent)
	}
}

func TestKeywordMatching(t *testing.T) {
	c := New("u1")
	c.AddKeywords("Todo", "task", "")

	if !c.MatchesKeyword("anything about my TASK list") {
		t.Error("case-insensitive substring match expected")
	}
	if c.MatchesKeyword("unrelated chatter") {
		t.Error("unexpected keyword match")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := New("u42")
	c.SetActiveAgent("todo_agent")
	c.Topic = "todo"
	c.LastIntent = "add_todo"
	c.AddKeywords("todo", "task")
	c.OpenPending(PendingRequest{
		RequestType:  "add_todo",
		AgentName:    "todo_agent",
		RequiredInfo: []string{"task"},
		Context:      map[string]string{"priority": "high"},
	})
	c.RecordInteraction("todo_agent", "add_todo", ResultSuccess, map[string]string{"task": "buy milk"})
	c.RecordInteraction("reminder_agent", "set_reminder", ResultFailure, nil)

	snap := c.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}

	restored, err := FromSnapshot(decoded)
	if err != nil {
		t.Fatalf("FromSnapshot: %v", err)
	}

	if !reflect.DeepEqual(restored.Snapshot(), snap) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", restored.Snapshot(), snap)
	}
}

func TestFromSnapshot_RejectsUnknownState(t *testing.T) {
	_, err := FromSnapshot(Snapshot{UserID: "u1", State: "HALF_OPEN"})
	if err == nil {
		t.Fatal("expected error for unknown state")
	}
}

func TestReset_KeepsIdentityOnly(t *testing.T) {
	c := New("u1")
	c.SetActiveAgent("todo_agent")
	c.AddKeywords("todo")
	c.RecordInteraction("todo_agent", "add_todo", ResultSuccess, nil)
	c.OpenPending(PendingRequest{RequestType: "add_todo", AgentName: "todo_agent", RequiredInfo: []string{"task"}})

	c.Reset()

	if c.UserID != "u1" {
		t.Error("identity must survive reset")
	}
	if c.State != StateIdle || c.ActiveAgent != "" || len(c.PendingRequests) != 0 ||
		len(c.Keywords) != 0 || len(c.History) != 0 {
		t.Errorf("reset left residue: %+v", c)
	}
}
