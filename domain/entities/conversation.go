package entities

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultDedupWindow is how long an identical role/text pair is suppressed
// after it was last recorded.
const DefaultDedupWindow = 5 * time.Second

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// ConversationMessage is one visible entry of the conversation log.
type ConversationMessage struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewConversationMessage builds a message whose ID is derived from role, text
// and time. The ID is only used for identity when rendering.
func NewConversationMessage(role MessageRole, text string, at time.Time) ConversationMessage {
	return ConversationMessage{
		ID:        fmt.Sprintf("%s-%s-%d", role, text, at.UnixMilli()),
		Role:      role,
		Text:      text,
		Timestamp: at,
	}
}

// Validate validates the message data
func (m ConversationMessage) Validate() error {
	if m.Role != MessageRoleUser && m.Role != MessageRoleAssistant {
		return errors.New("invalid message role")
	}
	if strings.TrimSpace(m.Text) == "" {
		return errors.New("text is required")
	}
	return nil
}

// Conversation is the in-memory, per-process message log of one client.
// It is safe for concurrent use since final transcripts can arrive from both
// the voice stream and the realtime channel.
type Conversation struct {
	mu       sync.Mutex
	window   time.Duration
	messages []ConversationMessage
}

// NewConversation creates an empty log. A non-positive window falls back to
// DefaultDedupWindow.
func NewConversation(window time.Duration) *Conversation {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Conversation{window: window}
}

// Append records text for role at the given time unless an identical role/text
// pair was recorded less than the dedup window earlier. It reports whether the
// message was added.
func (c *Conversation) Append(role MessageRole, text string, at time.Time) (ConversationMessage, bool) {
	msg := NewConversationMessage(role, text, at)
	if msg.Validate() != nil {
		return msg, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isDuplicate(msg) {
		return msg, false
	}
	c.messages = append(c.messages, msg)
	return msg, true
}

func (c *Conversation) isDuplicate(msg ConversationMessage) bool {
	for i := len(c.messages) - 1; i >= 0; i-- {
		prev := c.messages[i]
		if prev.Role != msg.Role || prev.Text != msg.Text {
			continue
		}
		delta := msg.Timestamp.Sub(prev.Timestamp)
		if delta < 0 {
			delta = -delta
		}
		if delta < c.window {
			return true
		}
	}
	return false
}

// Messages returns a copy of the recorded messages in arrival order.
func (c *Conversation) Messages() []ConversationMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ConversationMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Clear drops every message and returns how many were dropped. Dedup starts
// over afterwards.
func (c *Conversation) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.messages)
	c.messages = nil
	return n
}
