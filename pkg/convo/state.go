package convo

import "fmt"

// State is the conversation state machine value. The set is closed; any
// string outside it is rejected at restore time.
type State string

const (
	StateIdle            State = "IDLE"
	StateWaitingForInput State = "WAITING_FOR_INPUT"
	StateAgentActive     State = "AGENT_ACTIVE"
	StateMultiAgent      State = "MULTI_AGENT"
	StateError           State = "ERROR"
)

func (s State) Valid() bool {
	switch s {
	case StateIdle, StateWaitingForInput, StateAgentActive, StateMultiAgent, StateError:
		return true
	}
	return false
}

// canTransition encodes the legal state machine edges:
//
//	IDLE --(domain match w/ missing slot)--> WAITING_FOR_INPUT
//	WAITING_FOR_INPUT --(slot filled)--> AGENT_ACTIVE
//	AGENT_ACTIVE --(stickiness lapses)--> IDLE
//	AGENT_ACTIVE --(new domain match)--> WAITING_FOR_INPUT | AGENT_ACTIVE | MULTI_AGENT
//	any --> ERROR, ERROR --> IDLE (reset)
func canTransition(from, to State) bool {
	if from == to {
		return true
	}
	if to == StateError {
		return true
	}
	switch from {
	case StateIdle:
		return to == StateWaitingForInput || to == StateAgentActive
	case StateWaitingForInput:
		return to == StateAgentActive || to == StateIdle
	case StateAgentActive:
		return to == StateWaitingForInput || to == StateIdle || to == StateMultiAgent
	case StateMultiAgent:
		return to == StateWaitingForInput || to == StateAgentActive || to == StateIdle
	case StateError:
		return to == StateIdle
	}
	return false
}

// ErrBadTransition reports an attempted illegal state machine edge.
type ErrBadTransition struct {
	From, To State
}

func (e *ErrBadTransition) Error() string {
	return fmt.Sprintf("illegal conversation state transition %s -> %s", e.From, e.To)
}
