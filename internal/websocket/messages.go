package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sameerkhansf/vapi-takehome/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeTranscript MessageType = "transcript"
	MessageTypePing       MessageType = "ping"
	MessageTypePong       MessageType = "pong"
	MessageTypeError      MessageType = "error"
)

// TranscriptType distinguishes partial from final transcripts.
type TranscriptType string

const (
	TranscriptPartial TranscriptType = "partial"
	TranscriptFinal   TranscriptType = "final"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// TranscriptMessage carries one transcript line for the realtime feed.
type TranscriptMessage struct {
	BaseMessage
	Role           entities.MessageRole `json:"role"`
	TranscriptType TranscriptType       `json:"transcriptType"`
	Transcript     string               `json:"transcript"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// NewTranscriptMessage builds a final transcript message stamped with at.
func NewTranscriptMessage(role entities.MessageRole, text string, at time.Time) TranscriptMessage {
	return TranscriptMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeTranscript,
			Timestamp: at.UTC().Format(time.RFC3339Nano),
		},
		Role:           role,
		TranscriptType: TranscriptFinal,
		Transcript:     text,
	}
}

// Time parses the message timestamp, falling back to now when it is missing
// or malformed.
func (m BaseMessage) Time() time.Time {
	if t, err := time.Parse(time.RFC3339Nano, m.Timestamp); err == nil {
		return t
	}
	return time.Now()
}

// ParseMessage decodes an inbound or outbound message by its type.
func ParseMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeTranscript:
		var msg TranscriptMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid transcript message: %w", err)
		}
		if msg.Role != entities.MessageRoleUser && msg.Role != entities.MessageRoleAssistant {
			return nil, fmt.Errorf("invalid transcript role: %q", msg.Role)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case MessageTypePong:
		var msg PongMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid pong message: %w", err)
		}
		return &msg, nil

	case MessageTypeError:
		var msg ErrorMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid error message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}
