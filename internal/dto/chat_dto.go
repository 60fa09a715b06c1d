package dto

import (
	"time"

	"ai-secretary-funnel-be/internal/entity"

	"github.com/google/uuid"
)

// CompleteRequest is the orchestrator boundary: sessionId is the client
// session identifier or the durable row id.
type CompleteRequest struct {
	SessionId  string `json:"sessionId" validate:"required,max=128"`
	ThreadId   string `json:"threadId" validate:"max=128"`
	Message    string `json:"message" validate:"required,max=4000"`
	NowEpochMs int64  `json:"nowEpochMs" validate:"gte=0"`
}

// SendRequest drives the simulated chat for a live visitor.
type SendRequest struct {
	VisitorId  string `json:"visitorId" validate:"required,max=128"`
	ThreadId   string `json:"threadId" validate:"max=128"`
	Message    string `json:"message" validate:"required,max=4000"`
	NowEpochMs int64  `json:"nowEpochMs" validate:"gte=0"`
}

type ChatMessageResponse struct {
	Id            uuid.UUID              `json:"id"`
	MessageOrder  int                    `json:"messageOrder"`
	SenderType    string                 `json:"senderType"`
	Content       string                 `json:"content"`
	Metadata      map[string]interface{} `json:"metadata"`
	TimestampSent time.Time              `json:"timestampSent"`
}

func NewChatMessageResponses(messages []*entity.ChatMessage) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, ChatMessageResponse{
			Id:            m.Id,
			MessageOrder:  m.MessageOrder,
			SenderType:    m.SenderType,
			Content:       m.Content,
			Metadata:      m.Metadata,
			TimestampSent: m.TimestampSent,
		})
	}
	return out
}
