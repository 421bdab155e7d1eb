package bus

import "strings"

// InboundMessage is one user utterance arriving from a channel, normalized
// before the dispatcher sees it.
type InboundMessage struct {
	Channel    string
	SenderID   string
	SenderName string
	ChatID     string
	Content    string
	SessionKey string
	Metadata   map[string]string
}

// normalize cleans a message at the bus boundary so every consumer sees
// the same shape: surrounding whitespace is stripped from the utterance
// and a channel that supplies no display name falls back to the sender ID.
func (m *InboundMessage) normalize() {
	m.Content = strings.TrimSpace(m.Content)
	m.SessionKey = strings.TrimSpace(m.SessionKey)
	if m.SenderName == "" {
		m.SenderName = m.SenderID
	}
}

// OutboundMessage is one reply on its way back to a channel.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
}

// MessageHandler delivers an outbound message on a specific channel.
type MessageHandler func(msg OutboundMessage) error
