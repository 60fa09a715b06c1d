package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"

	MetadataThreadID = "threadId"
)

type ChatMessage struct {
	Id            uuid.UUID
	SessionId     uuid.UUID // demo_sessions.id
	MessageOrder  int
	SenderType    string
	Content       string
	Metadata      map[string]interface{}
	TimestampSent time.Time
}

// ThreadID returns the soft partition tag, or "" when the turn carries none.
func (m *ChatMessage) ThreadID() string {
	if m.Metadata == nil {
		return ""
	}
	if v, ok := m.Metadata[MetadataThreadID].(string); ok {
		return v
	}
	return ""
}
