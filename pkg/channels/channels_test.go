package channels

import (
	"context"
	"strings"
	"testing"

	"github.com/concierged/concierge/pkg/bus"
)

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		name      string
		allowList []string
		senderID  string
		want      bool
	}{
		{"empty list allows everyone", nil, "12345", true},
		{"exact id match", []string{"12345"}, "12345", true},
		{"id part of compound sender", []string{"12345"}, "12345|alice", true},
		{"username part of compound sender", []string{"alice"}, "12345|alice", true},
		{"at-prefixed username", []string{"@alice"}, "12345|alice", true},
		{"not listed", []string{"12345"}, "99999", false},
		{"blank entries ignored", []string{"", "  "}, "12345", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewBaseChannel("test", nil, bus.NewMessageBus(), tt.allowList)
			if got := c.IsAllowed(tt.senderID); got != tt.want {
				t.Fatalf("IsAllowed(%q) = %v, want %v", tt.senderID, got, tt.want)
			}
		})
	}
}

func TestHandleMessagePublishesInbound(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()

	c := NewBaseChannel("discord", nil, mb, nil)
	c.HandleMessage("42", "alice", "chat-1", "hello", map[string]string{"message_id": "m1"})

	msg, ok := mb.ConsumeInbound(context.Background())
	if !ok {
		t.Fatal("expected inbound message")
	}
	if msg.Channel != "discord" || msg.SenderID != "42" || msg.SenderName != "alice" {
		t.Fatalf("unexpected message identity: %+v", msg)
	}
	if msg.ChatID != "chat-1" || msg.Content != "hello" {
		t.Fatalf("unexpected message payload: %+v", msg)
	}
	if msg.Metadata["message_id"] != "m1" {
		t.Fatalf("metadata not carried: %+v", msg.Metadata)
	}
}

func TestHandleMessageRejectsDisallowedSender(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()

	c := NewBaseChannel("discord", nil, mb, []string{"allowed-user"})
	c.HandleMessage("stranger", "stranger", "chat-1", "hello", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := mb.ConsumeInbound(ctx); ok {
		t.Fatal("expected no inbound message for disallowed sender")
	}
}

func TestSplitMessageShortContent(t *testing.T) {
	chunks := splitMessage("hello", 1500)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("expected single chunk, got %v", chunks)
	}
}

func TestSplitMessagePrefersNewlineBoundary(t *testing.T) {
	content := strings.Repeat("a", 90) + "\n" + strings.Repeat("b", 90)
	chunks := splitMessage(content, 100)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[1], "b") {
		t.Fatalf("expected split at newline, second chunk starts with %q", chunks[1][:1])
	}
}

func TestSplitMessageKeepsCodeBlockTogether(t *testing.T) {
	code := "```\n" + strings.Repeat("x\n", 40) + "```"
	content := "intro\n" + code
	chunks := splitMessage(content, 60)

	for i, chunk := range chunks {
		if strings.Count(chunk, "```")%2 != 0 {
			t.Fatalf("chunk %d has unbalanced code fence: %q", i, chunk)
		}
	}
}

func TestIsInternalChannel(t *testing.T) {
	if !isInternalChannel("cli") || !isInternalChannel("system") {
		t.Fatal("cli and system should be internal")
	}
	if isInternalChannel("discord") {
		t.Fatal("discord should not be internal")
	}
}
