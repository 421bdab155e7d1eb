package agents

import "context"

// Invocation is one routed turn handed to an agent.
type Invocation struct {
	UserID    string
	Utterance string
	Action    string
	Slots     map[string]string
}

// Slot returns the extracted value for a slot name, or "".
func (inv Invocation) Slot(name string) string {
	return inv.Slots[name]
}

// Agent handles all actions of one task domain and answers with a
// user-facing reply.
type Agent interface {
	Name() string
	Handle(ctx context.Context, inv Invocation) (string, error)
}
